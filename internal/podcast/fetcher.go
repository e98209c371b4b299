package podcast

import (
	"context"
	"strconv"
	"strings"

	"github.com/mjharwood/medley/internal/media"
	"github.com/mmcdole/gofeed"
)

type (
	// FeedFetcher retrieves and parses a podcast RSS feed in to the
	// library entity shape. Implementations must return an error for
	// unreachable or unparseable feeds; a reachable feed with zero
	// episodes is not an error.
	FeedFetcher interface {
		Fetch(ctx context.Context, feedURL string) (*media.PodcastShow, error)
	}

	feedFetcher struct {
		parser *gofeed.Parser
	}
)

func NewFeedFetcher() *feedFetcher {
	return &feedFetcher{parser: gofeed.NewParser()}
}

// Fetch downloads and parses the RSS document at the given URL. Feed
// items with no playable URL (no enclosure and no link) are skipped.
func (fetcher *feedFetcher) Fetch(ctx context.Context, feedURL string) (*media.PodcastShow, error) {
	feed, err := fetcher.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	show := &media.PodcastShow{
		FeedURL:     feedURL,
		Title:       feed.Title,
		Description: feed.Description,
		Copyright:   feed.Copyright,
		Language:    feed.Language,
		SiteURL:     feed.Link,
	}

	if feed.Image != nil {
		show.ImageURL = feed.Image.URL
	}
	if feed.ITunesExt != nil {
		show.Author = feed.ITunesExt.Author
		if show.ImageURL == "" {
			show.ImageURL = feed.ITunesExt.Image
		}
	}
	if show.Author == "" && len(feed.Authors) > 0 && feed.Authors[0] != nil {
		show.Author = feed.Authors[0].Name
	}

	for _, item := range feed.Items {
		episode := episodeFromItem(item)
		if episode == nil {
			continue
		}

		show.Episodes = append(show.Episodes, episode)
	}

	return show, nil
}

func episodeFromItem(item *gofeed.Item) *media.PodcastEpisode {
	onlinePath := item.Link
	if len(item.Enclosures) > 0 && item.Enclosures[0].URL != "" {
		onlinePath = item.Enclosures[0].URL
	}
	if onlinePath == "" {
		return nil
	}

	episode := &media.PodcastEpisode{
		OnlinePath:  onlinePath,
		Title:       item.Title,
		Description: item.Description,
	}

	if item.PublishedParsed != nil {
		episode.ReleaseDate = *item.PublishedParsed
	}
	if item.ITunesExt != nil {
		episode.DurationSeconds = parseDuration(item.ITunesExt.Duration)
		episode.Explicit = strings.EqualFold(item.ITunesExt.Explicit, "yes") || strings.EqualFold(item.ITunesExt.Explicit, "true")
	}

	return episode
}

// parseDuration handles the two itunes:duration shapes seen in the wild,
// a plain second count and a HH:MM:SS / MM:SS clock value.
func parseDuration(raw string) int {
	if raw == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		return seconds
	}

	total := 0
	for _, part := range strings.Split(raw, ":") {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}

		total = total*60 + value
	}

	return total
}
