package nw

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
)

const (
	faviconURLFormat   = `https://www.google.com/s2/favicons?sz=%d&domain=%s`
	DefaultFaviconSize = 64
)

// EnrichedItem is a feed item with derived attributes and its final dek.
type EnrichedItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	SourceLabel string `json:"source_label,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	TimeAgo     string `json:"time_ago,omitempty"`
	Domain      string `json:"domain,omitempty"`
	Dek         string `json:"dek"`

	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Enrich derives secondary attributes of given item, with given dek.
func Enrich(item FeedItem, dek string, now time.Time) EnrichedItem {
	return EnrichedItem{
		Title:       item.Title,
		Link:        item.Link,
		SourceLabel: item.SourceLabel,
		ImageURL:    ResolveImage(item),
		TimeAgo:     TimeAgo(item.PublishedAt, now),
		Domain:      PublisherDomain(item.Link),
		Dek:         dek,
		PublishedAt: item.PublishedAt,
	}
}

// ResolveImage resolves the thumbnail image url of given item.
//
// Priority: media tag > enclosure > first `<img src>` in the description.
// Only http/https urls are accepted.
func ResolveImage(item FeedItem) string {
	if isHTTPURL(item.MediaURL) {
		return item.MediaURL
	}
	if isHTTPURL(item.EnclosureURL) {
		return item.EnclosureURL
	}
	if src := firstImageSource(item.RawHTML); isHTTPURL(src) {
		return src
	}
	return ""
}

// find the first `<img src>` in given html fragment
func firstImageSource(fragment string) string {
	if !strings.Contains(strings.ToLower(fragment), "<img") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

// TimeAgo returns a human-readable duration from `published` to `now`.
//
// Returns an empty string if there is no publish time.
func TimeAgo(published *time.Time, now time.Time) string {
	if published == nil || published.IsZero() {
		return ""
	}
	return humanize.RelTime(*published, now, "ago", "from now")
}

// PublisherDomain returns the host of given link.
func PublisherDomain(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// FaviconURL returns the url of a favicon for given domain.
//
// If `size` is not positive, `DefaultFaviconSize` is used.
func FaviconURL(domain string, size int) string {
	if domain == "" {
		return ""
	}
	if size <= 0 {
		size = DefaultFaviconSize
	}
	return fmt.Sprintf(faviconURLFormat, size, url.QueryEscape(domain))
}
