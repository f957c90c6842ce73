// Package nw for fetching news feeds, rewriting their deks, and rendering them as HTML widgets
package nw

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/feeds"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	feedCacheKeyPrefix = "nw:feed:"

	PublishContentType = `application/rss+xml`
)

var (
	ErrHTTPStatus      = errors.New("unexpected http status")
	ErrNoContent       = errors.New("no content")
	ErrUnknownProvider = errors.New("unknown ai provider")
)

// Client struct
type Client struct {
	store    Store
	rewriter *DekRewriter
	metrics  *Metrics

	httpClient         *http.Client
	feedBaseURL        string
	faviconSize        int
	rewriteConcurrency int

	now func() time.Time

	verbose bool
}

// NewClient returns a new client with memory store.
func NewClient(settings Settings) (*Client, error) {
	return NewClientWithStore(settings, NewMemStore(defaultMemStoreSize))
}

// NewClientWithDB returns a new client with SQLite DB store.
func NewClientWithDB(settings Settings, dbFilepath string) (client *Client, err error) {
	if dbStore, err := NewDBStore(dbFilepath); err == nil {
		return NewClientWithStore(settings, dbStore)
	} else {
		return nil, fmt.Errorf("failed to create a client with DB: %w", err)
	}
}

// NewClientWithRedis returns a new client with Redis store.
func NewClientWithRedis(settings Settings, redisURL string) (client *Client, err error) {
	if redisStore, err := NewRedisStore(redisURL, ""); err == nil {
		return NewClientWithStore(settings, redisStore)
	} else {
		return nil, fmt.Errorf("failed to create a client with redis: %w", err)
	}
}

// NewClientWithStore returns a new client with given store.
//
// Both feeds and deks are cached in `store`.
func NewClientWithStore(settings Settings, store Store) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}

	rewriter, err := NewDekRewriter(settings, store)
	if err != nil {
		return nil, fmt.Errorf("failed to create a dek rewriter: %w", err)
	}

	return &Client{
		store:    store,
		rewriter: rewriter,

		httpClient:         &http.Client{},
		feedBaseURL:        DefaultFeedBaseURL,
		faviconSize:        DefaultFaviconSize,
		rewriteConcurrency: 1,

		now: time.Now,
	}, nil
}

// SetFeedBaseURL sets the base url of feeds.
func (c *Client) SetFeedBaseURL(base string) {
	c.feedBaseURL = base
}

// SetHTTPClient sets the http client for fetching feeds.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetFaviconSize sets the pixel size of favicons.
func (c *Client) SetFaviconSize(size int) {
	c.faviconSize = size
}

// SetRewriteConcurrency sets the number of concurrent dek rewrites. (default: 1)
func (c *Client) SetRewriteConcurrency(n int) {
	c.rewriteConcurrency = max(1, n)
}

// SetRewriteInterval sets the minimum interval between dek rewrite requests.
func (c *Client) SetRewriteInterval(interval time.Duration) {
	c.rewriter.SetInterval(interval)
}

// SetMetrics sets the client's metrics.
func (c *Client) SetMetrics(m *Metrics) {
	c.metrics = m
	c.rewriter.SetMetrics(m)
}

// SetVerbose sets the client's verbose mode.
func (c *Client) SetVerbose(v bool) {
	c.verbose = v
	c.rewriter.SetVerbose(v)
	c.store.SetVerbose(v)
}

// FeedURL returns the feed url of given query.
func (c *Client) FeedURL(q FeedQuery) string {
	return BuildFeedURL(c.feedBaseURL, q.Normalized())
}

// FeedCacheKey returns the cache key of a feed with given url and item limit.
func FeedCacheKey(feedURL string, limit int) string {
	sum := md5.Sum(fmt.Appendf(nil, "%s|%d", feedURL, limit))
	return feedCacheKeyPrefix + hex.EncodeToString(sum[:])
}

// return the ttl of feed cache for given hours
func feedCacheTTL(hours float64) time.Duration {
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		hours = DefaultCacheTTLHours
	}
	return time.Duration(min(max(MinCacheTTLHours, hours), MaxCacheTTLHours) * float64(time.Hour))
}

// Items returns enriched items of given query, from the cache or freshly fetched.
//
// On a cache miss, the feed is fetched, and each item is enriched and its dek rewritten.
// The result is cached even if it is empty.
//
// It never fails: a feed which could not be fetched results in an empty list.
func (c *Client) Items(ctx context.Context, q FeedQuery) (items []EnrichedItem) {
	q = q.Normalized()
	feedURL := BuildFeedURL(c.feedBaseURL, q)

	ctx, span := tracer.Start(ctx, "nw.Items", trace.WithAttributes(
		attribute.String("nw.feed_url", feedURL),
		attribute.Int("nw.item_limit", q.ItemLimit),
	))
	defer span.End()

	key := FeedCacheKey(feedURL, q.ItemLimit)
	if cached, exists := c.store.Get(ctx, key); exists {
		if err := json.Unmarshal(cached, &items); err == nil {
			v(c.verbose, "using %d cached item(s) of feed: %s", len(items), feedURL)

			c.metrics.recordFeedCache(true)
			span.SetAttributes(attribute.Bool("nw.cache_hit", true))

			return items
		} else {
			log.Printf("failed to decode cached items of feed '%s': %s", feedURL, err)
		}
	}
	c.metrics.recordFeedCache(false)
	span.SetAttributes(attribute.Bool("nw.cache_hit", false))

	items = c.assemble(ctx, feedURL, q.ItemLimit)

	if encoded, err := json.Marshal(items); err == nil {
		c.store.Set(ctx, key, encoded, feedCacheTTL(q.CacheTTLHours))
	} else {
		log.Printf("failed to encode items of feed '%s': %s", feedURL, err)
	}

	return items
}

// fetch, rewrite, and enrich items of given feed
func (c *Client) assemble(ctx context.Context, feedURL string, limit int) []EnrichedItem {
	raw, err := c.fetchFeedItems(ctx, feedURL, limit)
	c.metrics.recordFetch(err)
	if err != nil {
		log.Printf("failed to fetch feed items: %s", err)

		return []EnrichedItem{}
	}

	deks := c.rewriteDeks(ctx, raw)

	now := c.now()
	items := make([]EnrichedItem, 0, len(raw))
	for i, item := range raw {
		items = append(items, Enrich(item, deks[i], now))
	}

	v(c.verbose, "assembled %d item(s) of feed: %s", len(items), feedURL)

	return items
}

// rewrite deks of given items, keeping their order
func (c *Client) rewriteDeks(ctx context.Context, items []FeedItem) []string {
	deks := make([]string, len(items))

	var g errgroup.Group
	g.SetLimit(max(1, c.rewriteConcurrency))
	for i, item := range items {
		g.Go(func() error {
			deks[i] = c.rewriter.Rewrite(ctx, item.Link, item.Title, item.SourceLabel, item.Description)
			return nil
		})
	}
	_ = g.Wait()

	return deks
}

// Render renders items of given query as an HTML fragment.
//
// If the favicon size of `opts` is not set, the client's one is used.
func (c *Client) Render(ctx context.Context, q FeedQuery, opts RenderOptions) string {
	if opts.FaviconSize <= 0 {
		opts.FaviconSize = c.faviconSize
	}

	return Render(c.Items(ctx, q), opts)
}

// DeleteExpiredCache deletes expired entries from the store, if it supports it.
func (c *Client) DeleteExpiredCache() {
	if deleter, ok := c.store.(interface{ DeleteExpired() }); ok {
		deleter.DeleteExpired()
	}
}

// Close closes the client's store, if it needs to be closed.
func (c *Client) Close() error {
	if closer, ok := c.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// PublishXML returns XML bytes (application/rss+xml) of given enriched items.
func (c *Client) PublishXML(
	title, link, description string,
	items []EnrichedItem,
) (bytes []byte, err error) {
	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: link},
		Description: description,
		Created:     c.now(),
	}

	// NOTE: drop items without link (they cannot be identified)
	items = slices.DeleteFunc(slices.Clone(items), func(item EnrichedItem) bool {
		return len(item.Link) <= 0
	})

	var feedItems []*feeds.Item
	for _, item := range items {
		feedItem := feeds.Item{
			Id:    item.Link,
			Title: item.Title,
			Link: &feeds.Link{
				Href: item.Link,
			},
			Description: item.Dek,
		}
		if source := sourceLine(item); source != "" {
			feedItem.Author = &feeds.Author{Name: source}
		}
		if item.PublishedAt != nil {
			feedItem.Created = *item.PublishedAt
		}

		feedItems = append(feedItems, &feedItem)
	}
	feed.Items = feedItems

	rssFeed := (&feeds.Rss{
		Feed: feed,
	}).RssFeed()

	return xml.MarshalIndent(rssFeed.FeedXml(), "", "  ")
}
