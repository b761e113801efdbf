package feed

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news_aggregator/internal/domain"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Lewiston Tribune</title>
    <link>https://lmtribune.com</link>
    <description>Local news</description>
    <item>
      <title>Bridge reopens after repairs</title>
      <link>https://lmtribune.com/news/bridge-reopens</link>
      <description>&lt;p&gt;The &lt;b&gt;Memorial Bridge&lt;/b&gt; reopened   Monday.&lt;/p&gt;</description>
      <pubDate>Mon, 19 Oct 2026 07:30:00 -0700</pubDate>
      <category>Transportation</category>
      <category>Local</category>
      <category>Local</category>
    </item>
    <item>
      <link>https://lmtribune.com/news/untitled</link>
    </item>
    <item>
      <title>Broken link</title>
      <link>javascript:alert(1)</link>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Valley weather outlook</title>
    <link href="https://klewtv.com/weather/outlook"/>
    <updated>2026-10-18T12:00:00Z</updated>
    <summary>Rain expected.</summary>
  </entry>
</feed>`

type FetcherTest struct {
	fetcher *Fetcher
	now     time.Time
}

func newFetcher(t *testing.T) FetcherTest {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	f := New(Config{Timeout: time.Second, UserAgent: "TestAgent"}, logger)
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }
	return FetcherTest{fetcher: f, now: now}
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TestAgent", r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_RSS(t *testing.T) {
	ft := newFetcher(t)
	srv := serve(t, http.StatusOK, rssFixture)

	articles, err := ft.fetcher.Fetch(context.Background(), srv.URL+"/rss", 42)
	require.NoError(t, err)
	require.Len(t, articles, 2)

	first := articles[0]
	assert.Equal(t, "Bridge reopens after repairs", first.Title)
	assert.Equal(t, "The Memorial Bridge reopened Monday.", first.Content)
	assert.Equal(t, "https://lmtribune.com/news/bridge-reopens", first.URL)
	assert.Equal(t, int64(42), first.SourceID)
	assert.Equal(t, ft.now, first.FetchedAt)
	require.NotNil(t, first.PublishedAt)
	assert.True(t, first.PublishedAt.Equal(time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)))
	require.NotNil(t, first.Keywords)
	assert.Equal(t, "Transportation, Local", *first.Keywords)

	require.NotNil(t, first.Transparency)
	assert.Equal(t, "Lewiston Tribune", first.Transparency.SourceName)
	assert.Equal(t, srv.URL+"/rss", first.Transparency.FeedURL)
	assert.Equal(t, ft.now, first.Transparency.FetchedAt)

	second := articles[1]
	assert.Equal(t, "No Title", second.Title)
	assert.Equal(t, "", second.Content)
	assert.Nil(t, second.PublishedAt)
	assert.Nil(t, second.Keywords)
}

func TestFetch_AtomWithoutFeedTitle(t *testing.T) {
	ft := newFetcher(t)
	srv := serve(t, http.StatusOK, atomFixture)

	articles, err := ft.fetcher.Fetch(context.Background(), srv.URL, 1)
	require.NoError(t, err)
	require.Len(t, articles, 1)

	assert.Equal(t, "Valley weather outlook", articles[0].Title)
	assert.Equal(t, "Rain expected.", articles[0].Content)
	assert.Equal(t, "Unknown Source", articles[0].Transparency.SourceName)
	require.NotNil(t, articles[0].PublishedAt)
	assert.True(t, articles[0].PublishedAt.Equal(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)))
}

func TestFetch_MalformedFeedIsEmpty(t *testing.T) {
	ft := newFetcher(t)
	srv := serve(t, http.StatusOK, "this is definitely not a feed")

	articles, err := ft.fetcher.Fetch(context.Background(), srv.URL, 1)

	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestFetch_ServerErrorPropagates(t *testing.T) {
	ft := newFetcher(t)
	srv := serve(t, http.StatusBadGateway, "")

	articles, err := ft.fetcher.Fetch(context.Background(), srv.URL, 1)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamFetch)
	assert.Nil(t, articles)
}

func TestFetch_OversizedFeedIsError(t *testing.T) {
	ft := newFetcher(t)
	ft.fetcher.maxBytes = int64(len(atomFixture)) - 1
	srv := serve(t, http.StatusOK, atomFixture)

	articles, err := ft.fetcher.Fetch(context.Background(), srv.URL, 1)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamFetch)
	assert.Contains(t, err.Error(), "feed larger than")
	assert.Nil(t, articles)
}

func TestFetch_FeedAtSizeLimit(t *testing.T) {
	ft := newFetcher(t)
	ft.fetcher.maxBytes = int64(len(atomFixture))
	srv := serve(t, http.StatusOK, atomFixture)

	articles, err := ft.fetcher.Fetch(context.Background(), srv.URL, 1)

	require.NoError(t, err)
	assert.Len(t, articles, 1)
}

func TestFetch_UnreachablePropagates(t *testing.T) {
	ft := newFetcher(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := ft.fetcher.Fetch(context.Background(), url, 1)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamFetch)
}

func TestHTMLToText(t *testing.T) {
	assert.Equal(t, "a b", htmlToText("  a \n b "))
	assert.Equal(t, "Fish & Game", htmlToText("Fish &amp; Game"))
	assert.Equal(t, "one two", htmlToText("<div>one</div><div> two</div>"))
}
