package nw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeedXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
<title>"national parks" - Google News</title>
<link>https://news.google.com/search?q=national+parks</link>
<description>Google News</description>
<item>
<title>Park reopens after &lt;b&gt;storm&lt;/b&gt;</title>
<link>https://www.example.com/news/park-reopens</link>
<guid isPermaLink="false">item-1</guid>
<pubDate>Mon, 12 Oct 2026 10:00:00 GMT</pubDate>
<description>&lt;a href="https://www.example.com/news/park-reopens"&gt;Park reopens after storm&lt;/a&gt;&amp;nbsp;&amp;nbsp;&lt;font color="#6f6f6f"&gt;Example Times&lt;/font&gt;</description>
<source url="https://www.example.com">Example Times</source>
<media:content url="https://img.example.com/park.jpg" medium="image"/>
<enclosure url="https://cdn.example.com/enclosure.jpg" type="image/jpeg" length="100"/>
</item>
<item>
<title>Rangers count record visitors</title>
<link>https://news.example.org/rangers</link>
<guid isPermaLink="false">item-2</guid>
<pubDate>Sun, 11 Oct 2026 08:30:00 GMT</pubDate>
<description>Rangers   counted
record visitors.</description>
<enclosure url="https://cdn.example.org/rangers.jpg" type="image/jpeg" length="100"/>
</item>
<item>
<title>Trail guide</title>
<link>https://blog.example.net/trail</link>
<guid isPermaLink="false">item-3</guid>
<description>&lt;p&gt;&lt;img src="https://inline.example.net/trail.png"&gt;A guide to the trail.&lt;/p&gt;</description>
</item>
</channel>
</rss>`

const emptyFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>empty</title><link>https://example.com</link><description>nothing</description></channel></rss>`

// start a feed server which responds with given status and body, counting requests
func newFeedServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server, &hits
}

// return a client with AI rewriting disabled
func newTestClient(t *testing.T, store Store) *Client {
	t.Helper()

	if store == nil {
		store = NewMemStore(100)
	}
	client, err := NewClientWithStore(DefaultSettings(), store)
	require.NoError(t, err)

	return client
}

func TestFetchFeedItems(t *testing.T) {
	server, _ := newFeedServer(t, http.StatusOK, sampleFeedXML)
	client := newTestClient(t, nil)

	items, err := client.fetchFeedItems(context.Background(), server.URL, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)

	first := items[0]
	assert.Equal(t, "Park reopens after storm", first.Title)
	assert.Equal(t, "https://www.example.com/news/park-reopens", first.Link)
	assert.Equal(t, "Park reopens after storm Example Times", first.Description)
	assert.Equal(t, "Example Times", first.SourceLabel)
	assert.Equal(t, "https://img.example.com/park.jpg", first.MediaURL)
	assert.Equal(t, "https://cdn.example.com/enclosure.jpg", first.EnclosureURL)
	require.NotNil(t, first.PublishedAt)
	assert.True(t, first.PublishedAt.Equal(time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)))

	second := items[1]
	assert.Equal(t, "Rangers counted record visitors.", second.Description)
	assert.Empty(t, second.SourceLabel)
	assert.Empty(t, second.MediaURL)
	assert.Equal(t, "https://cdn.example.org/rangers.jpg", second.EnclosureURL)

	third := items[2]
	assert.Nil(t, third.PublishedAt)
	assert.Equal(t, "A guide to the trail.", third.Description)
	assert.Contains(t, third.RawHTML, "https://inline.example.net/trail.png")

	enriched := Enrich(third, third.Description, time.Now())
	assert.Equal(t, "https://inline.example.net/trail.png", enriched.ImageURL)
}

func TestFetchFeedItemsLimit(t *testing.T) {
	server, _ := newFeedServer(t, http.StatusOK, sampleFeedXML)
	client := newTestClient(t, nil)

	items, err := client.fetchFeedItems(context.Background(), server.URL, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// in document order
	assert.Equal(t, "Park reopens after storm", items[0].Title)
	assert.Equal(t, "Rangers count record visitors", items[1].Title)
}

func TestFetchFeedItemsFailures(t *testing.T) {
	client := newTestClient(t, nil)

	t.Run("http status", func(t *testing.T) {
		server, _ := newFeedServer(t, http.StatusServiceUnavailable, "unavailable")

		items, err := client.fetchFeedItems(context.Background(), server.URL, 10)
		assert.ErrorIs(t, err, ErrHTTPStatus)
		assert.Empty(t, items)
	})

	t.Run("malformed document", func(t *testing.T) {
		server, _ := newFeedServer(t, http.StatusOK, "this is not a feed")

		items, err := client.fetchFeedItems(context.Background(), server.URL, 10)
		assert.Error(t, err)
		assert.Empty(t, items)
	})

	t.Run("unreachable", func(t *testing.T) {
		server, _ := newFeedServer(t, http.StatusOK, sampleFeedXML)
		url := server.URL
		server.Close()

		items, err := client.fetchFeedItems(context.Background(), url, 10)
		assert.Error(t, err)
		assert.Empty(t, items)
	})
}

func TestFetchEmptyFeed(t *testing.T) {
	server, _ := newFeedServer(t, http.StatusOK, emptyFeedXML)
	client := newTestClient(t, nil)

	items, err := client.fetchFeedItems(context.Background(), server.URL, 10)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
