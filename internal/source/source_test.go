package source_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kovalyov-valentin/feed-sync/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Upidev</title>
    <link>http://upidev.fr</link>
    <description>Upidev blog</description>
    <item>
      <title>Angular X</title>
      <link>http://upidev.fr/angular-x</link>
      <description>summary one</description>
      <pubDate>Sat, 01 Jul 2023 15:00:00 +0300</pubDate>
      <category>Linux</category>
      <category>OS</category>
    </item>
    <item>
      <title>Django 3</title>
      <link>http://upidev.fr/django-3</link>
      <description>summary two</description>
      <pubDate>Sun, 02 Jul 2023 10:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

func serve(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv.URL
}

func feedHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}
}

func TestGoFeedFetch(t *testing.T) {
	url := serve(t, feedHandler(rssFeed))

	feed, err := source.NewGoFeed(nil, "").Fetch(context.Background(), url)
	require.NoError(t, err)

	assert.Equal(t, "Upidev", feed.Title)
	assert.Equal(t, url, feed.URL)
	require.Len(t, feed.Items, 2)

	first := feed.Items[0]
	assert.Equal(t, "Angular X", first.Title)
	assert.Equal(t, "summary one", first.Summary)
	assert.Equal(t, "http://upidev.fr/angular-x", first.Link)
	assert.Equal(t, []string{"Linux", "OS"}, first.Tags)
	require.NotNil(t, first.Published)
	assert.True(t, first.Published.Equal(time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)))

	assert.Empty(t, feed.Items[1].Tags)
}

func TestRSSFetch(t *testing.T) {
	url := serve(t, feedHandler(rssFeed))

	feed, err := source.NewRSS(nil, "").Fetch(context.Background(), url)
	require.NoError(t, err)

	assert.Equal(t, "Upidev", feed.Title)
	require.Len(t, feed.Items, 2)
	assert.Equal(t, "Angular X", feed.Items[0].Title)
	assert.Equal(t, "Django 3", feed.Items[1].Title)
}

func TestFetchErrors(t *testing.T) {
	parsers := map[string]source.Parser{
		source.KindGoFeed: source.NewGoFeed(nil, ""),
		source.KindRSS:    source.NewRSS(nil, ""),
	}

	for kind, parser := range parsers {
		t.Run(kind+" not found", func(t *testing.T) {
			url := serve(t, http.NotFound)

			_, err := parser.Fetch(context.Background(), url)

			var fetchErr *source.FetchError
			assert.True(t, errors.As(err, &fetchErr))
		})

		t.Run(kind+" timeout", func(t *testing.T) {
			url := serve(t, func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			})

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			_, err := parser.Fetch(ctx, url)

			var fetchErr *source.FetchError
			require.True(t, errors.As(err, &fetchErr))
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})

		t.Run(kind+" unreachable", func(t *testing.T) {
			_, err := parser.Fetch(context.Background(), "http://127.0.0.1:1/feed")

			var fetchErr *source.FetchError
			assert.True(t, errors.As(err, &fetchErr))
		})
	}
}

func TestGoFeedParseError(t *testing.T) {
	url := serve(t, feedHandler("this is not a feed"))

	_, err := source.NewGoFeed(nil, "").Fetch(context.Background(), url)

	var parseErr *source.ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestUserAgent(t *testing.T) {
	var got string
	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.UserAgent()
		fmt.Fprint(w, rssFeed)
	})

	_, err := source.NewGoFeed(nil, "feed-sync-test").Fetch(context.Background(), url)
	require.NoError(t, err)

	assert.Equal(t, "feed-sync-test", got)
}

func TestNew(t *testing.T) {
	p, err := source.New(source.KindRSS, nil, "")
	require.NoError(t, err)
	assert.IsType(t, &source.RSS{}, p)

	p, err = source.New("", nil, "")
	require.NoError(t, err)
	assert.IsType(t, &source.GoFeed{}, p)

	_, err = source.New("atom-only", nil, "")
	assert.Error(t, err)
}
