package nw

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"
	"go.opentelemetry.io/otel/attribute"
)

const (
	fetchFeedTimeoutSeconds = 15 // 15 seconds' timeout for fetching a feed

	customKeySource = "source"
)

// FeedItem is a raw item parsed from a feed.
type FeedItem struct {
	Title        string     `json:"title"`
	Link         string     `json:"link"`
	Description  string     `json:"description"` // stripped of markup, whitespaces collapsed
	RawHTML      string     `json:"-"`           // original description (for finding inline images)
	SourceLabel  string     `json:"source_label,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	MediaURL     string     `json:"media_url,omitempty"`
	EnclosureURL string     `json:"enclosure_url,omitempty"`
}

// rssTranslator keeps the `<source>` of each RSS item,
// which is dropped by the default translator.
type rssTranslator struct {
	gofeed.DefaultRSSTranslator
}

// Translate translates given RSS feed into a universal feed.
func (t *rssTranslator) Translate(feed any) (*gofeed.Feed, error) {
	rssFeed, ok := feed.(*rss.Feed)
	if !ok {
		return nil, fmt.Errorf("feed did not match expected type of *rss.Feed")
	}

	translated, err := t.DefaultRSSTranslator.Translate(rssFeed)
	if err != nil {
		return nil, err
	}

	for i, item := range rssFeed.Items {
		if i >= len(translated.Items) {
			break
		}
		if item.Source != nil && item.Source.Title != "" {
			if translated.Items[i].Custom == nil {
				translated.Items[i].Custom = map[string]string{}
			}
			translated.Items[i].Custom[customKeySource] = item.Source.Title
		}
	}

	return translated, nil
}

// return a new feed parser
func newFeedParser() *gofeed.Parser {
	fp := gofeed.NewParser()
	fp.RSSTranslator = &rssTranslator{}
	return fp
}

// fetch feed from given url and parse at most `limit` items of it.
func (c *Client) fetchFeedItems(ctx context.Context, url string, limit int) (items []FeedItem, err error) {
	v(c.verbose, "fetching feed from url: %s", url)

	ctx, span := tracer.Start(ctx, "nw.FetchFeed")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("nw.item_count", len(items)))
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, fetchFeedTimeoutSeconds*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", fakeUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed from url: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http error %d from url: '%s'", ErrHTTPStatus, resp.StatusCode, url)
	}

	fetched, err := newFeedParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed from '%s': %w", url, err)
	}

	v(c.verbose, "fetched %d item(s)", len(fetched.Items))

	items = []FeedItem{}
	for _, item := range fetched.Items {
		if len(items) >= limit {
			break
		}
		items = append(items, toFeedItem(item))
	}

	return items, nil
}

// convert a parsed feed item
func toFeedItem(item *gofeed.Item) FeedItem {
	converted := FeedItem{
		Title:       stripTags(item.Title),
		Link:        item.Link,
		Description: collapseSpaces(stripTags(item.Description)),
		RawHTML:     item.Description,
		SourceLabel: stripTags(item.Custom[customKeySource]),
		MediaURL:    mediaURL(item),
	}
	if converted.Link == "" && len(item.Links) > 0 {
		converted.Link = item.Links[0]
	}
	if item.PublishedParsed != nil {
		converted.PublishedAt = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		converted.PublishedAt = item.UpdatedParsed
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			converted.EnclosureURL = enc.URL
			break
		}
	}

	return converted
}

// get the first url of media extensions (`media:content`, then `media:thumbnail`)
func mediaURL(item *gofeed.Item) string {
	if mediaExt, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, ext := range mediaExt[name] {
				if u := ext.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}
	return ""
}
