package nw

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixed time for tests
var testNow = time.Date(2026, 10, 12, 13, 0, 0, 0, time.UTC)

func TestClientItems(t *testing.T) {
	feedServer, hits := newFeedServer(t, http.StatusOK, sampleFeedXML)

	client := newTestClient(t, nil)
	client.SetFeedBaseURL(feedServer.URL + "/rss/search")
	client.now = func() time.Time { return testNow }

	q := DefaultFeedQuery()
	q.ItemLimit = 2

	items := client.Items(context.Background(), q)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "Park reopens after storm", first.Title)
	assert.Equal(t, "Example Times", first.SourceLabel)
	assert.Equal(t, "www.example.com", first.Domain)
	assert.Equal(t, "https://img.example.com/park.jpg", first.ImageURL)
	assert.Equal(t, "3 hours ago", first.TimeAgo)

	// deks are raw descriptions when rewriting is disabled
	assert.Equal(t, "Park reopens after storm Example Times", first.Dek)
	assert.Equal(t, "Rangers counted record visitors.", items[1].Dek)

	// cached
	cached := client.Items(context.Background(), q)
	require.Len(t, cached, len(items))
	for i := range items {
		assert.Equal(t, items[i].Title, cached[i].Title)
		assert.Equal(t, items[i].Dek, cached[i].Dek)
		assert.Equal(t, items[i].ImageURL, cached[i].ImageURL)
		require.NotNil(t, cached[i].PublishedAt)
		assert.True(t, items[i].PublishedAt.Equal(*cached[i].PublishedAt))
	}
	assert.Equal(t, int32(1), hits.Load())

	// different limit, different cache key
	q.ItemLimit = 3
	assert.Len(t, client.Items(context.Background(), q), 3)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClientItemsFailuresAreCached(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
	}{
		"failed feed": {http.StatusInternalServerError, "error"},
		"empty feed":  {http.StatusOK, emptyFeedXML},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			feedServer, hits := newFeedServer(t, tt.status, tt.body)

			client := newTestClient(t, nil)
			client.SetFeedBaseURL(feedServer.URL)

			items := client.Items(context.Background(), DefaultFeedQuery())
			assert.NotNil(t, items)
			assert.Empty(t, items)

			items = client.Items(context.Background(), DefaultFeedQuery())
			assert.Empty(t, items)
			assert.Equal(t, int32(1), hits.Load())

			assert.Equal(t, "<p>No news items found.</p>", client.Render(context.Background(), DefaultFeedQuery(), RenderOptions{}))
		})
	}
}

func TestClientRender(t *testing.T) {
	feedServer, _ := newFeedServer(t, http.StatusOK, sampleFeedXML)

	client := newTestClient(t, nil)
	client.SetFeedBaseURL(feedServer.URL)
	client.SetFaviconSize(32)

	rendered := client.Render(context.Background(), DefaultFeedQuery(), RenderOptions{
		Layout:       LayoutCards,
		OpenInNewTab: true,
	})

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	require.NoError(t, err)

	assert.True(t, doc.Find("div.news-widget").HasClass("gn-cards"))
	assert.Equal(t, 3, doc.Find("article.nw-item").Length())

	favicon, _ := doc.Find("img.nw-favicon").First().Attr("src")
	assert.Equal(t, FaviconURL("www.example.com", 32), favicon)
}

// start a fake chat completion server which rewrites deks as: `Dek of <title>.`
func newTitleEchoingCompletionServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Messages) < 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		prompt := body.Messages[1].Content
		title := strings.TrimPrefix(strings.SplitN(prompt, "\n", 2)[0], "Title: ")

		// respond out of order
		if strings.HasPrefix(title, "Park") {
			time.Sleep(100 * time.Millisecond)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, completionResponse(fmt.Sprintf("Dek of *%s*.", title)))
	}))
	t.Cleanup(server.Close)

	return server
}

func TestClientItemsWithRewrite(t *testing.T) {
	feedServer, _ := newFeedServer(t, http.StatusOK, sampleFeedXML)
	completionServer := newTitleEchoingCompletionServer(t)

	settings := DefaultSettings()
	settings.AIEnabled = true
	settings.APIKey = testAPIKey
	settings.BaseURL = completionServer.URL + "/v1"

	client, err := NewClientWithStore(settings, NewMemStore(100))
	require.NoError(t, err)
	client.SetFeedBaseURL(feedServer.URL)
	client.SetRewriteConcurrency(3)

	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	client.SetMetrics(metrics)

	items := client.Items(context.Background(), DefaultFeedQuery())
	require.Len(t, items, 3)

	// in feed order, regardless of completion order
	assert.Equal(t, "Dek of Park reopens after storm.", items[0].Dek)
	assert.Equal(t, "Dek of Rangers count record visitors.", items[1].Dek)
	assert.Equal(t, "Dek of Trail guide.", items[2].Dek)

	_ = client.Items(context.Background(), DefaultFeedQuery())

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.DekRewrites.WithLabelValues(string(RewriteRewritten))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedFetches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedCache.WithLabelValues("hit")))
}

func TestFeedCacheKey(t *testing.T) {
	a := FeedCacheKey("https://news.google.com/rss/search?q=parks", 8)

	assert.True(t, strings.HasPrefix(a, feedCacheKeyPrefix))
	assert.Equal(t, a, FeedCacheKey("https://news.google.com/rss/search?q=parks", 8))
	assert.NotEqual(t, a, FeedCacheKey("https://news.google.com/rss/search?q=parks", 9))
	assert.NotEqual(t, a, FeedCacheKey("https://news.google.com/rss/search?q=lakes", 8))
}

func TestFeedCacheTTL(t *testing.T) {
	assert.Equal(t, 2*time.Hour, feedCacheTTL(2))
	assert.Equal(t, 15*time.Minute, feedCacheTTL(0))
	assert.Equal(t, 24*time.Hour, feedCacheTTL(100))
	assert.Equal(t, 2*time.Hour, feedCacheTTL(math.NaN()))
	assert.Equal(t, 2*time.Hour, feedCacheTTL(math.Inf(-1)))
}

func TestClientItemsWithNaNTTL(t *testing.T) {
	feedServer, hits := newFeedServer(t, http.StatusOK, sampleFeedXML)

	mr := miniredis.RunT(t)
	client, err := NewClientWithStore(DefaultSettings(), newRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ""))
	require.NoError(t, err)
	client.SetFeedBaseURL(feedServer.URL)

	q := DefaultFeedQuery()
	q.CacheTTLHours = math.NaN()

	assert.Len(t, client.Items(context.Background(), q), 3)
	key := FeedCacheKey(client.FeedURL(q), q.ItemLimit)
	assert.Equal(t, 2*time.Hour, mr.TTL(key))

	// expires with the default ttl
	mr.FastForward(2*time.Hour + time.Second)
	assert.Len(t, client.Items(context.Background(), q), 3)
	assert.Equal(t, int32(2), hits.Load())
}

func TestPublishXML(t *testing.T) {
	client := newTestClient(t, nil)

	published := testNow.Add(-time.Hour)
	items := []EnrichedItem{
		{
			Title:       "Park reopens after storm",
			Link:        "https://www.example.com/news/park",
			SourceLabel: "Example Times",
			Dek:         "The park reopened on Monday.",
			PublishedAt: &published,
		},
		{
			Title: "Item without link",
		},
	}

	b, err := client.PublishXML("National parks", "https://example.com/widget", "News about national parks", items)
	require.NoError(t, err)

	var parsed struct {
		XMLName xml.Name `xml:"rss"`
		Channel struct {
			Title string `xml:"title"`
			Items []struct {
				Title       string `xml:"title"`
				Link        string `xml:"link"`
				Description string `xml:"description"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	require.NoError(t, xml.Unmarshal(b, &parsed))

	assert.Equal(t, "National parks", parsed.Channel.Title)
	require.Len(t, parsed.Channel.Items, 1)
	assert.Equal(t, "Park reopens after storm", parsed.Channel.Items[0].Title)
	assert.Equal(t, "https://www.example.com/news/park", parsed.Channel.Items[0].Link)
	assert.Equal(t, "The park reopened on Monday.", parsed.Channel.Items[0].Description)
}
