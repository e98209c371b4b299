package ingest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mjharwood/medley/internal/database"
	"github.com/mjharwood/medley/internal/event"
	"github.com/mjharwood/medley/internal/ingest"
	"github.com/mjharwood/medley/internal/media"
	"github.com/mjharwood/medley/internal/probe"
	"github.com/stretchr/testify/assert"
)

type fakeVideoStore struct {
	shows  map[int64]*media.TVShow
	videos map[int64]*media.Video
	nextID int64
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{
		shows:  make(map[int64]*media.TVShow),
		videos: make(map[int64]*media.Video),
	}
}

func (s *fakeVideoStore) GetVideoByPath(_ database.Queryable, path string) (*media.Video, error) {
	for _, video := range s.videos {
		if video.Path == path {
			return video, nil
		}
	}

	return nil, media.ErrNotFound
}

func (s *fakeVideoStore) GetShowByTitle(_ database.Queryable, title string) (*media.TVShow, error) {
	for _, show := range s.shows {
		if show.Title == title {
			return show, nil
		}
	}

	return nil, media.ErrNotFound
}

func (s *fakeVideoStore) GetShowWithEpisodes(_ database.Queryable, showID int64) (*media.TVShow, error) {
	show, ok := s.shows[showID]
	if !ok {
		return nil, media.ErrNotFound
	}

	populated := *show
	populated.Episodes = nil
	for _, video := range s.videos {
		if video.TVShowID == showID {
			populated.Episodes = append(populated.Episodes, video)
		}
	}

	return &populated, nil
}

func (s *fakeVideoStore) SaveShow(_ database.Queryable, show *media.TVShow) error {
	if show.ID <= 0 {
		s.nextID++
		show.ID = s.nextID
	}
	s.shows[show.ID] = show
	return nil
}

func (s *fakeVideoStore) SaveVideo(_ database.Queryable, video *media.Video) error {
	if video.ID <= 0 {
		s.nextID++
		video.ID = s.nextID
	}
	s.videos[video.ID] = video
	return nil
}

func (s *fakeVideoStore) DeleteShow(_ database.Queryable, showID int64) error {
	delete(s.shows, showID)
	return nil
}

func (s *fakeVideoStore) DeleteVideo(_ database.Queryable, videoID int64) error {
	delete(s.videos, videoID)
	return nil
}

type fakeVideoParser struct {
	infos map[string]probe.VideoInfo
	err   error
	calls int
}

func (p *fakeVideoParser) GetVideoProperties(path string) (*probe.VideoInfo, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}

	info, ok := p.infos[path]
	if !ok {
		info = probe.VideoInfo{Video: media.Video{Title: filepath.Base(path)}}
	}

	info.Path = path
	return &info, nil
}

type videoHarness struct {
	service *ingest.VideoService
	store   *fakeVideoStore
	parser  *fakeVideoParser
	events  *[]recordedEvent
}

func newVideoHarness(parser *fakeVideoParser) *videoHarness {
	bus := event.New()
	store := newFakeVideoStore()
	return &videoHarness{
		service: ingest.NewVideoService(nil, store, parser, media.NewClassifier(media.ClassifierConfig{}), bus),
		store:   store,
		parser:  parser,
		events:  newEventRecorder(bus),
	}
}

func tempVideoFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	assert.NoError(t, os.WriteFile(path, []byte("video"), 0o644))
	return path
}

func Test_AddFile_EpisodicVideoCreatesShow(t *testing.T) {
	path := tempVideoFile(t, "ShowZ.S01E01.mkv")
	harness := newVideoHarness(&fakeVideoParser{infos: map[string]probe.VideoInfo{
		path: {Video: media.Video{Title: "ShowZ S01E01"}, ShowTitle: "ShowZ"},
	}})

	assert.True(t, harness.service.AddFile(path))

	assert.Len(t, harness.store.shows, 1)
	assert.Len(t, harness.store.videos, 1)

	events := *harness.events
	if assert.Len(t, events, 2) {
		assert.Equal(t, event.MEDIA_ADDED, events[0].event)
		assert.IsType(t, &media.TVShow{}, events[0].payload)
		assert.Equal(t, event.MEDIA_ADDED, events[1].event)
		assert.IsType(t, &media.Video{}, events[1].payload)
	}

	// The stored video is attached to the freshly created show.
	for _, video := range harness.store.videos {
		assert.Positive(t, video.TVShowID)
	}
}

func Test_AddFile_FilmStoredWithoutShow(t *testing.T) {
	path := tempVideoFile(t, "Some Film (2019).mp4")
	harness := newVideoHarness(&fakeVideoParser{})

	assert.True(t, harness.service.AddFile(path))

	assert.Empty(t, harness.store.shows)
	assert.Len(t, harness.store.videos, 1)
	for _, video := range harness.store.videos {
		assert.Zero(t, video.TVShowID)
	}
}

func Test_AddFile_VideoIsIdempotent(t *testing.T) {
	path := tempVideoFile(t, "ShowZ.S01E01.mkv")
	harness := newVideoHarness(&fakeVideoParser{infos: map[string]probe.VideoInfo{
		path: {Video: media.Video{Title: "ShowZ S01E01"}, ShowTitle: "ShowZ"},
	}})

	assert.True(t, harness.service.AddFile(path))
	assert.True(t, harness.service.AddFile(path))

	assert.Len(t, harness.store.shows, 1)
	assert.Len(t, harness.store.videos, 1)
	assert.Equal(t, 1, harness.parser.calls)
}

func Test_AddFile_EpisodesShareShow(t *testing.T) {
	first := tempVideoFile(t, "ShowZ.S01E01.mkv")
	second := tempVideoFile(t, "ShowZ.S01E02.mkv")
	harness := newVideoHarness(&fakeVideoParser{infos: map[string]probe.VideoInfo{
		first:  {Video: media.Video{Title: "ShowZ S01E01"}, ShowTitle: "ShowZ"},
		second: {Video: media.Video{Title: "ShowZ S01E02"}, ShowTitle: "ShowZ"},
	}})

	assert.True(t, harness.service.AddFile(first))
	assert.True(t, harness.service.AddFile(second))

	assert.Len(t, harness.store.shows, 1)
	assert.Len(t, harness.store.videos, 2)
}

func Test_AddFile_VideoProbeFailureRaisesMediaError(t *testing.T) {
	path := tempVideoFile(t, "corrupt.mkv")
	harness := newVideoHarness(&fakeVideoParser{err: errExpected})

	assert.False(t, harness.service.AddFile(path))

	events := *harness.events
	if assert.Len(t, events, 1) {
		assert.Equal(t, event.MEDIA_ERROR, events[0].event)
		mediaError := events[0].payload.(event.MediaError)
		assert.Equal(t, media.VIDEO, mediaError.MediaType)
	}
}

func Test_RemoveVideo_CascadesToEmptyShow(t *testing.T) {
	first := tempVideoFile(t, "ShowZ.S01E01.mkv")
	second := tempVideoFile(t, "ShowZ.S01E02.mkv")
	harness := newVideoHarness(&fakeVideoParser{infos: map[string]probe.VideoInfo{
		first:  {Video: media.Video{Title: "ShowZ S01E01"}, ShowTitle: "ShowZ"},
		second: {Video: media.Video{Title: "ShowZ S01E02"}, ShowTitle: "ShowZ"},
	}})
	assert.True(t, harness.service.AddFile(first))
	assert.True(t, harness.service.AddFile(second))

	videos := make([]*media.Video, 0)
	for _, video := range harness.store.videos {
		videos = append(videos, video)
	}

	assert.NoError(t, harness.service.RemoveVideo(videos[0]))
	assert.Len(t, harness.store.videos, 1)
	assert.Len(t, harness.store.shows, 1)

	assert.NoError(t, harness.service.RemoveVideo(videos[1]))
	assert.Empty(t, harness.store.videos)
	assert.Empty(t, harness.store.shows)
}
