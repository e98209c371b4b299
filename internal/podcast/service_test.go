package podcast_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mjharwood/medley/internal/database"
	"github.com/mjharwood/medley/internal/event"
	"github.com/mjharwood/medley/internal/media"
	"github.com/mjharwood/medley/internal/podcast"
	"github.com/mjharwood/medley/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func init() {
	logger.SetMinLoggingLevel(logger.ERROR.Level())
}

var errExpected = errors.New("test: expected error")

// fakeFetcher returns a fresh copy of the configured show per fetch, as
// the real fetcher does. It is safe for concurrent use so the refresh
// pool can be tested against it.
type fakeFetcher struct {
	mutex sync.Mutex
	shows map[string]*media.PodcastShow
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, feedURL string) (*media.PodcastShow, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	configured, ok := f.shows[feedURL]
	if !ok {
		return nil, nil
	}

	copied := *configured
	copied.Episodes = nil
	for _, episode := range configured.Episodes {
		copiedEpisode := *episode
		copied.Episodes = append(copied.Episodes, &copiedEpisode)
	}

	return &copied, nil
}

func (f *fakeFetcher) fetchCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.calls
}

type fakePodcastStore struct {
	shows  map[int64]*media.PodcastShow
	nextID int64
}

func newFakePodcastStore() *fakePodcastStore {
	return &fakePodcastStore{shows: make(map[int64]*media.PodcastShow)}
}

func (s *fakePodcastStore) GetShowByFeedURL(_ database.Queryable, feedURL string) (*media.PodcastShow, error) {
	for _, show := range s.shows {
		if show.FeedURL == feedURL {
			return show, nil
		}
	}

	return nil, media.ErrNotFound
}

func (s *fakePodcastStore) GetShowWithEpisodes(_ database.Queryable, showID int64) (*media.PodcastShow, error) {
	show, ok := s.shows[showID]
	if !ok {
		return nil, media.ErrNotFound
	}

	return show, nil
}

func (s *fakePodcastStore) AllShows(_ database.Queryable) ([]*media.PodcastShow, error) {
	shows := make([]*media.PodcastShow, 0, len(s.shows))
	for _, show := range s.shows {
		shows = append(shows, show)
	}

	return shows, nil
}

func (s *fakePodcastStore) SaveShow(_ database.Queryable, show *media.PodcastShow) error {
	if show.ID <= 0 {
		s.nextID++
		show.ID = s.nextID
	}
	for _, episode := range show.Episodes {
		if episode.ID <= 0 {
			s.nextID++
			episode.ID = s.nextID
		}
		episode.ShowID = show.ID
	}

	s.shows[show.ID] = show
	return nil
}

func (s *fakePodcastStore) DeleteShow(_ database.Queryable, showID int64) error {
	delete(s.shows, showID)
	return nil
}

func (s *fakePodcastStore) DeleteEpisode(_ database.Queryable, episodeID int64) error {
	for _, show := range s.shows {
		for i, episode := range show.Episodes {
			if episode.ID == episodeID {
				show.Episodes = append(show.Episodes[:i], show.Episodes[i+1:]...)
				return nil
			}
		}
	}

	return nil
}

type recordedEvent struct {
	event   event.Event
	payload event.Payload
}

// eventRecorder is mutex-guarded because RefreshAll dispatches events
// from its worker goroutines.
type eventRecorder struct {
	mutex   sync.Mutex
	records []recordedEvent
}

func newEventRecorder(bus event.EventCoordinator) *eventRecorder {
	recorder := &eventRecorder{}
	for _, ev := range []event.Event{event.MEDIA_ADDED, event.MEDIA_UPDATED, event.MEDIA_REMOVED, event.MEDIA_ERROR} {
		bus.RegisterHandlerFunction(ev, func(ev event.Event, payload event.Payload) {
			recorder.mutex.Lock()
			defer recorder.mutex.Unlock()
			recorder.records = append(recorder.records, recordedEvent{ev, payload})
		})
	}

	return recorder
}

func (recorder *eventRecorder) snapshot() []recordedEvent {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return append([]recordedEvent(nil), recorder.records...)
}

func feedWithEpisodes(feedURL string, onlinePaths ...string) *media.PodcastShow {
	show := &media.PodcastShow{
		FeedURL:     feedURL,
		Title:       "Cast",
		Author:      "Author",
		Description: "A show",
	}
	for _, path := range onlinePaths {
		show.Episodes = append(show.Episodes, &media.PodcastEpisode{OnlinePath: path, Title: "Episode " + path})
	}

	return show
}

type podcastHarness struct {
	service *podcast.Service
	store   *fakePodcastStore
	fetcher *fakeFetcher
	events  *eventRecorder
}

func newPodcastHarness(fetcher *fakeFetcher) *podcastHarness {
	bus := event.New()
	store := newFakePodcastStore()
	config := podcast.Config{RefreshParallelism: 2, RefreshIntervalSeconds: 3600}
	return &podcastHarness{
		service: podcast.New(config, nil, store, fetcher, bus),
		store:   store,
		fetcher: fetcher,
		events:  newEventRecorder(bus),
	}
}

func Test_AddOrUpdateFromURL_FirstSync(t *testing.T) {
	const feedURL = "http://feeds.example/cast.xml"
	harness := newPodcastHarness(&fakeFetcher{shows: map[string]*media.PodcastShow{
		feedURL: feedWithEpisodes(feedURL, "e1", "e2", "e3", "e4", "e5"),
	}})

	show, err := harness.service.AddOrUpdateFromURL(context.Background(), feedURL)
	assert.NoError(t, err)
	assert.NotNil(t, show)
	assert.Positive(t, show.ID)

	assert.Len(t, harness.store.shows, 1)
	assert.Len(t, harness.store.shows[show.ID].Episodes, 5)

	// A first sync emits exactly one event, for the show itself.
	events := harness.events.snapshot()
	if assert.Len(t, events, 1) {
		assert.Equal(t, event.MEDIA_ADDED, events[0].event)
		assert.Equal(t, show, events[0].payload)
	}
}

func Test_AddOrUpdateFromURL_MergeNeverDeletesEpisodes(t *testing.T) {
	const feedURL = "http://feeds.example/cast.xml"
	fetcher := &fakeFetcher{shows: map[string]*media.PodcastShow{
		feedURL: feedWithEpisodes(feedURL, "e1", "e2"),
	}}
	harness := newPodcastHarness(fetcher)

	first, err := harness.service.AddOrUpdateFromURL(context.Background(), feedURL)
	assert.NoError(t, err)

	// The feed window moved on: e2 dropped off, e3 arrived, and e1's
	// scalar fields changed.
	refetched := feedWithEpisodes(feedURL, "e1", "e3")
	refetched.Episodes[0].Title = "Episode e1 (remastered)"
	refetched.Title = "Cast (rebranded)"
	fetcher.shows[feedURL] = refetched

	merged, err := harness.service.AddOrUpdateFromURL(context.Background(), feedURL)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, "Cast (rebranded)", merged.Title)

	assert.Len(t, merged.Episodes, 3)
	assert.Equal(t, "Episode e1 (remastered)", merged.EpisodeByOnlinePath("e1").Title)
	assert.NotNil(t, merged.EpisodeByOnlinePath("e2"))
	assert.NotNil(t, merged.EpisodeByOnlinePath("e3"))

	events := harness.events.snapshot()
	if assert.Len(t, events, 2) {
		assert.Equal(t, event.MEDIA_ADDED, events[0].event)
		assert.Equal(t, event.MEDIA_UPDATED, events[1].event)
	}
}

func Test_AddOrUpdateFromURL_FetchFailure(t *testing.T) {
	const feedURL = "http://feeds.example/gone.xml"
	harness := newPodcastHarness(&fakeFetcher{err: errExpected})

	show, err := harness.service.AddOrUpdateFromURL(context.Background(), feedURL)
	assert.NoError(t, err)
	assert.Nil(t, show)
	assert.Empty(t, harness.store.shows)

	events := harness.events.snapshot()
	if assert.Len(t, events, 1) {
		assert.Equal(t, event.MEDIA_ERROR, events[0].event)
		mediaError := events[0].payload.(event.MediaError)
		assert.Equal(t, feedURL, mediaError.Path)
		assert.Equal(t, media.PODCAST, mediaError.MediaType)
		assert.Equal(t, errExpected, mediaError.Err)
	}
}

func Test_AddOrUpdateFromURL_FeedIdentityMismatch(t *testing.T) {
	const feedURL = "http://feeds.example/cast.xml"
	fetcher := &fakeFetcher{shows: map[string]*media.PodcastShow{
		feedURL: feedWithEpisodes(feedURL, "e1"),
	}}
	harness := newPodcastHarness(fetcher)

	_, err := harness.service.AddOrUpdateFromURL(context.Background(), feedURL)
	assert.NoError(t, err)

	// A fetcher that reports a different feed URL than the stored show
	// being merged in to is a contract violation and must error.
	fetcher.shows[feedURL] = feedWithEpisodes("http://feeds.example/other.xml", "e1")
	show, err := harness.service.AddOrUpdateFromURL(context.Background(), feedURL)
	assert.Nil(t, show)
	assert.ErrorIs(t, err, podcast.ErrFeedIdentityMismatch)
}

func Test_RemoveShow_EmitsRemoval(t *testing.T) {
	const feedURL = "http://feeds.example/cast.xml"
	harness := newPodcastHarness(&fakeFetcher{shows: map[string]*media.PodcastShow{
		feedURL: feedWithEpisodes(feedURL, "e1"),
	}})

	show, err := harness.service.AddOrUpdateFromURL(context.Background(), feedURL)
	assert.NoError(t, err)

	assert.NoError(t, harness.service.RemoveShow(show))
	assert.Empty(t, harness.store.shows)

	events := harness.events.snapshot()
	last := events[len(events)-1]
	assert.Equal(t, event.MEDIA_REMOVED, last.event)
	assert.Equal(t, show, last.payload)
}

func Test_RemoveEpisode_DoesNotCascadeToShow(t *testing.T) {
	const feedURL = "http://feeds.example/cast.xml"
	harness := newPodcastHarness(&fakeFetcher{shows: map[string]*media.PodcastShow{
		feedURL: feedWithEpisodes(feedURL, "e1"),
	}})

	show, err := harness.service.AddOrUpdateFromURL(context.Background(), feedURL)
	assert.NoError(t, err)

	episode := show.Episodes[0]
	assert.NoError(t, harness.service.RemoveEpisode(episode))

	// A show with zero episodes is retained, unlike the audio/video
	// cascades.
	assert.Len(t, harness.store.shows, 1)
	assert.Empty(t, harness.store.shows[show.ID].Episodes)
}

func Test_RefreshAll_SyncsEverySubscribedFeed(t *testing.T) {
	fetcher := &fakeFetcher{shows: map[string]*media.PodcastShow{
		"http://feeds.example/a.xml": feedWithEpisodes("http://feeds.example/a.xml", "a1"),
		"http://feeds.example/b.xml": feedWithEpisodes("http://feeds.example/b.xml", "b1"),
		"http://feeds.example/c.xml": feedWithEpisodes("http://feeds.example/c.xml", "c1"),
	}}
	harness := newPodcastHarness(fetcher)

	for feedURL := range fetcher.shows {
		_, err := harness.service.AddOrUpdateFromURL(context.Background(), feedURL)
		assert.NoError(t, err)
	}
	assert.Equal(t, 3, fetcher.fetchCount())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	assert.NoError(t, harness.service.RefreshAll(ctx, 2))

	// Every subscription was re-fetched exactly once.
	assert.Equal(t, 6, fetcher.fetchCount())
	assert.Len(t, harness.store.shows, 3)
}

func Test_RefreshAll_ContinuesPastFailingFeed(t *testing.T) {
	const goodURL = "http://feeds.example/good.xml"
	const badURL = "http://feeds.example/bad.xml"
	fetcher := &fakeFetcher{shows: map[string]*media.PodcastShow{
		goodURL: feedWithEpisodes(goodURL, "g1"),
		badURL:  feedWithEpisodes(badURL, "b1"),
	}}
	harness := newPodcastHarness(fetcher)

	for feedURL := range fetcher.shows {
		_, err := harness.service.AddOrUpdateFromURL(context.Background(), feedURL)
		assert.NoError(t, err)
	}

	// One feed now reports a different identity, which fails its merge.
	// The refresh run still attempts every subscription.
	fetcher.shows[badURL] = feedWithEpisodes("http://feeds.example/moved.xml", "b1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	assert.NoError(t, harness.service.RefreshAll(ctx, 1))
	assert.Equal(t, 4, fetcher.fetchCount())
}

func Test_Run_RefreshesOnStartup(t *testing.T) {
	const feedURL = "http://feeds.example/cast.xml"
	fetcher := &fakeFetcher{shows: map[string]*media.PodcastShow{
		feedURL: feedWithEpisodes(feedURL, "e1"),
	}}
	harness := newPodcastHarness(fetcher)

	_, err := harness.service.AddOrUpdateFromURL(context.Background(), feedURL)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- harness.service.Run(ctx) }()

	// The background service re-syncs the subscription immediately on
	// startup, ahead of its first tick.
	assert.Eventually(t, func() bool {
		return fetcher.fetchCount() == 2
	}, time.Second*5, time.Millisecond*10)

	cancel()
	assert.NoError(t, <-done)
}
