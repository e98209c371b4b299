package podcast_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mjharwood/medley/internal/podcast"
	"github.com/stretchr/testify/assert"
)

const feedDocument = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>Cast</title>
    <link>http://example.com/cast</link>
    <description>A show about things</description>
    <language>en</language>
    <copyright>© Example</copyright>
    <itunes:author>Author McAuthorface</itunes:author>
    <itunes:image href="http://example.com/cast.jpg"/>
    <item>
      <title>Episode One</title>
      <description>The first one</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
      <enclosure url="http://example.com/ep1.mp3" length="1024" type="audio/mpeg"/>
      <itunes:duration>1:02:03</itunes:duration>
      <itunes:explicit>yes</itunes:explicit>
    </item>
    <item>
      <title>Episode Two</title>
      <link>http://example.com/ep2</link>
      <itunes:duration>180</itunes:duration>
    </item>
    <item>
      <title>No playable URL</title>
    </item>
  </channel>
</rss>`

func Test_Fetch_MapsFeedDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedDocument))
	}))
	defer server.Close()

	show, err := podcast.NewFeedFetcher().Fetch(context.Background(), server.URL)
	assert.NoError(t, err)

	assert.Equal(t, server.URL, show.FeedURL)
	assert.Equal(t, "Cast", show.Title)
	assert.Equal(t, "Author McAuthorface", show.Author)
	assert.Equal(t, "A show about things", show.Description)
	assert.Equal(t, "http://example.com/cast.jpg", show.ImageURL)
	assert.Equal(t, "en", show.Language)
	assert.Equal(t, "http://example.com/cast", show.SiteURL)

	// The item with no enclosure and no link is dropped.
	assert.Len(t, show.Episodes, 2)

	first := show.EpisodeByOnlinePath("http://example.com/ep1.mp3")
	assert.NotNil(t, first)
	assert.Equal(t, "Episode One", first.Title)
	assert.Equal(t, 3723, first.DurationSeconds)
	assert.True(t, first.Explicit)
	assert.Equal(t, 2006, first.ReleaseDate.Year())

	// Without an enclosure, the item link is the online path.
	second := show.EpisodeByOnlinePath("http://example.com/ep2")
	assert.NotNil(t, second)
	assert.Equal(t, 180, second.DurationSeconds)
	assert.False(t, second.Explicit)
}

func Test_Fetch_UnreachableFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	show, err := podcast.NewFeedFetcher().Fetch(context.Background(), server.URL)
	assert.Error(t, err)
	assert.Nil(t, show)
}

func Test_Fetch_MalformedDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not XML"))
	}))
	defer server.Close()

	show, err := podcast.NewFeedFetcher().Fetch(context.Background(), server.URL)
	assert.Error(t, err)
	assert.Nil(t, show)
}
