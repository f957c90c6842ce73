package nw

import (
	"math"
	"net/url"
	"strings"
)

const (
	DefaultFeedBaseURL = `https://news.google.com/rss/search`

	DefaultSearchTerms   = "national parks"
	DefaultLanguage      = "en-US"
	DefaultRegion        = "US"
	DefaultEdition       = "US:en"
	DefaultItemLimit     = 8
	DefaultCacheTTLHours = 2.0

	MinItemLimit     = 1
	MaxItemLimit     = 30
	MinCacheTTLHours = 0.25
	MaxCacheTTLHours = 24.0
)

// FeedQuery is the per-render query of a news feed.
type FeedQuery struct {
	SearchTerms   string  `json:"search_terms"`
	Language      string  `json:"language"`        // hl
	Region        string  `json:"region"`          // gl
	Edition       string  `json:"edition"`         // ceid
	ItemLimit     int     `json:"item_limit"`      // 1 ~ 30
	CacheTTLHours float64 `json:"cache_ttl_hours"` // 0.25 ~ 24
}

// DefaultFeedQuery returns a feed query with default values.
func DefaultFeedQuery() FeedQuery {
	return FeedQuery{
		SearchTerms:   DefaultSearchTerms,
		Language:      DefaultLanguage,
		Region:        DefaultRegion,
		Edition:       DefaultEdition,
		ItemLimit:     DefaultItemLimit,
		CacheTTLHours: DefaultCacheTTLHours,
	}
}

// Normalized returns a copy of the query with trimmed strings and clamped numbers.
//
// Zero values are replaced with defaults, except for the search terms.
func (q FeedQuery) Normalized() FeedQuery {
	q.SearchTerms = strings.TrimSpace(q.SearchTerms)
	q.Language = orDefault(strings.TrimSpace(q.Language), DefaultLanguage)
	q.Region = orDefault(strings.TrimSpace(q.Region), DefaultRegion)
	q.Edition = orDefault(strings.TrimSpace(q.Edition), DefaultEdition)

	if q.ItemLimit == 0 {
		q.ItemLimit = DefaultItemLimit
	}
	q.ItemLimit = min(max(q.ItemLimit, MinItemLimit), MaxItemLimit)

	if q.CacheTTLHours == 0 || math.IsNaN(q.CacheTTLHours) || math.IsInf(q.CacheTTLHours, 0) {
		q.CacheTTLHours = DefaultCacheTTLHours
	}
	q.CacheTTLHours = min(max(q.CacheTTLHours, MinCacheTTLHours), MaxCacheTTLHours)

	return q
}

// BuildFeedURL builds a feed url with given base url and query.
//
// If `base` is empty, `DefaultFeedBaseURL` is used.
func BuildFeedURL(base string, q FeedQuery) string {
	if base == "" {
		base = DefaultFeedBaseURL
	}

	params := url.Values{}
	params.Set("q", q.SearchTerms)
	params.Set("hl", q.Language)
	params.Set("gl", q.Region)
	params.Set("ceid", q.Edition)

	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + params.Encode()
	}

	// keep parameters already in the base url
	merged := u.Query()
	for k, vs := range params {
		merged[k] = vs
	}
	u.RawQuery = merged.Encode()

	return u.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
