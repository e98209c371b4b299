// The podcast package synchronizes remote RSS feeds in to the library.
// Syncing an already-known feed merges the fresh fetch on to the stored
// show: scalar fields are overwritten, episodes are matched by their
// online path and updated in place or appended. Episodes absent from the
// latest fetch are never deleted, as feeds commonly window their history.
package podcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mjharwood/medley/internal/database"
	"github.com/mjharwood/medley/internal/event"
	"github.com/mjharwood/medley/internal/media"
	"github.com/mjharwood/medley/pkg/logger"
	"github.com/mjharwood/medley/pkg/worker"
)

var log = logger.Get("PodcastServ")

// ErrFeedIdentityMismatch is returned when a merge is attempted between
// a stored show and a fetched show with a different feed URL. This is a
// caller contract violation rather than a runtime feed condition, so it
// is surfaced as an error instead of a MEDIA_ERROR event.
var ErrFeedIdentityMismatch = errors.New("fetched feed URL does not match the show being merged")

type (
	podcastStore interface {
		GetShowByFeedURL(db database.Queryable, feedURL string) (*media.PodcastShow, error)
		GetShowWithEpisodes(db database.Queryable, showID int64) (*media.PodcastShow, error)
		AllShows(db database.Queryable) ([]*media.PodcastShow, error)
		SaveShow(db database.Queryable, show *media.PodcastShow) error
		DeleteShow(db database.Queryable, showID int64) error
		DeleteEpisode(db database.Queryable, episodeID int64) error
	}

	Config struct {
		// Controls the number of workers used by RefreshAll. Each worker
		// syncs one subscribed feed at a time; feeds are independent rows
		// so concurrent syncs never contend on the same show.
		RefreshParallelism int `yaml:"refresh_parallelism" env:"MEDLEY_PODCAST_REFRESH_PARALLELISM" env-default:"2"`

		// How often the background refresh re-syncs every subscribed feed.
		RefreshIntervalSeconds int `yaml:"refresh_interval_seconds" env:"MEDLEY_PODCAST_REFRESH_INTERVAL_SECONDS" env-default:"3600"`
	}

	Service struct {
		config   Config
		db       database.Queryable
		store    podcastStore
		fetcher  FeedFetcher
		eventBus event.EventDispatcher
	}
)

func (config Config) RefreshInterval() time.Duration {
	return time.Duration(config.RefreshIntervalSeconds) * time.Second
}

func New(config Config, db database.Queryable, store podcastStore, fetcher FeedFetcher, eventBus event.EventDispatcher) *Service {
	return &Service{
		config:   config,
		db:       db,
		store:    store,
		fetcher:  fetcher,
		eventBus: eventBus,
	}
}

// Run re-syncs every subscribed feed on a fixed interval until the
// provided context is cancelled. An initial refresh is performed
// immediately on startup.
func (service *Service) Run(ctx context.Context) error {
	refreshTicker := time.NewTicker(service.config.RefreshInterval())
	defer refreshTicker.Stop()

	if err := service.RefreshAll(ctx, service.config.RefreshParallelism); err != nil {
		log.Errorf("Podcast refresh failed: %v\n", err)
	}

	for {
		select {
		case <-refreshTicker.C:
			if err := service.RefreshAll(ctx, service.config.RefreshParallelism); err != nil {
				log.Errorf("Podcast refresh failed: %v\n", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// AddOrUpdateFromURL fetches the feed at the given URL and either stores
// it as a new subscription or merges it on to the existing show for that
// URL. Fetch and parse failures raise a MEDIA_ERROR event and return a
// nil show with a nil error; the scan-style contract is that per-feed
// failures surface through the event bus rather than aborting callers.
func (service *Service) AddOrUpdateFromURL(ctx context.Context, feedURL string) (*media.PodcastShow, error) {
	fetched, err := service.fetcher.Fetch(ctx, feedURL)
	if err != nil || fetched == nil {
		service.dispatchError(feedURL, err)
		return nil, nil
	}

	existing, err := service.store.GetShowByFeedURL(service.db, feedURL)
	if err == media.ErrNotFound {
		if err := service.saveShow(fetched); err != nil {
			service.dispatchError(feedURL, err)
			return nil, nil
		}

		service.eventBus.Dispatch(event.MEDIA_ADDED, fetched)
		return fetched, nil
	} else if err != nil {
		service.dispatchError(feedURL, err)
		return nil, nil
	}

	if err := mergeShow(existing, fetched); err != nil {
		return nil, err
	}

	if err := service.saveShow(existing); err != nil {
		service.dispatchError(feedURL, err)
		return nil, nil
	}

	service.eventBus.Dispatch(event.MEDIA_UPDATED, existing)
	return existing, nil
}

// RefreshAll re-syncs every subscribed feed using a small worker pool.
// The method blocks until all feeds have been attempted; per-feed
// failures surface as MEDIA_ERROR events without failing the refresh.
func (service *Service) RefreshAll(ctx context.Context, parallelism int) error {
	shows, err := service.store.AllShows(service.db)
	if err != nil {
		return err
	}
	if len(shows) == 0 {
		return nil
	}
	if parallelism < 1 {
		parallelism = 1
	}

	feedChannel := make(chan string, len(shows))
	for _, show := range shows {
		feedChannel <- show.FeedURL
	}
	close(feedChannel)

	pool := worker.NewWorkerPool()
	for i := 0; i < parallelism; i++ {
		label := fmt.Sprintf("podcast-refresh-%d", i)
		pool.PushWorker(worker.NewWorker(label, func(w worker.Worker) (bool, error) {
			select {
			case <-ctx.Done():
				return false, nil
			case feedURL, ok := <-feedChannel:
				if !ok {
					return false, nil
				}

				if _, err := service.AddOrUpdateFromURL(ctx, feedURL); err != nil {
					log.Errorf("Refresh of feed '%s' failed: %v\n", feedURL, err)
				}
				return true, nil
			}
		}))
	}

	if err := pool.Start(); err != nil {
		return err
	}
	pool.Close()
	return nil
}

// RemoveShow deletes the show; its episodes are owned rows and removed
// by the store as part of the same operation.
func (service *Service) RemoveShow(show *media.PodcastShow) error {
	if err := service.store.DeleteShow(service.db, show.ID); err != nil {
		return err
	}

	service.eventBus.Dispatch(event.MEDIA_REMOVED, show)
	return nil
}

// RemoveEpisode deletes a single episode. Unlike the audio and video
// cascades, a show left with zero episodes is retained.
func (service *Service) RemoveEpisode(episode *media.PodcastEpisode) error {
	if err := service.store.DeleteEpisode(service.db, episode.ID); err != nil {
		return err
	}

	service.eventBus.Dispatch(event.MEDIA_REMOVED, episode)
	return nil
}

// mergeShow overlays the fetched feed on to the stored show in place.
// Scalar fields are overwritten unconditionally; fetched episodes update
// their stored counterpart (matched by online path) or are appended.
func mergeShow(existing *media.PodcastShow, fetched *media.PodcastShow) error {
	if existing.FeedURL != fetched.FeedURL {
		return ErrFeedIdentityMismatch
	}

	existing.Title = fetched.Title
	existing.Author = fetched.Author
	existing.Description = fetched.Description
	existing.ImageURL = fetched.ImageURL
	existing.Copyright = fetched.Copyright
	existing.Language = fetched.Language
	existing.SiteURL = fetched.SiteURL
	existing.LastUpdated = fetched.LastUpdated

	for _, incoming := range fetched.Episodes {
		if current := existing.EpisodeByOnlinePath(incoming.OnlinePath); current != nil {
			current.Title = incoming.Title
			current.Description = incoming.Description
			current.ReleaseDate = incoming.ReleaseDate
			current.DurationSeconds = incoming.DurationSeconds
			current.Explicit = incoming.Explicit
			continue
		}

		existing.Episodes = append(existing.Episodes, incoming)
	}

	return nil
}

// saveShow persists the show and its owned episodes in one transaction;
// a partially merged show must never be observable.
func (service *Service) saveShow(show *media.PodcastShow) error {
	return database.InTx(service.db, func(tx database.Queryable) error {
		return service.store.SaveShow(tx, show)
	})
}

func (service *Service) dispatchError(feedURL string, err error) {
	log.Warnf("Podcast sync of '%s' failed: %v\n", feedURL, err)
	service.eventBus.Dispatch(event.MEDIA_ERROR, event.MediaError{
		Path:      feedURL,
		MediaType: media.PODCAST,
		Err:       err,
	})
}
