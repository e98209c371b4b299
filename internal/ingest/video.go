package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mjharwood/medley/internal/database"
	"github.com/mjharwood/medley/internal/event"
	"github.com/mjharwood/medley/internal/media"
	"github.com/mjharwood/medley/internal/probe"
)

type (
	videoParser interface {
		GetVideoProperties(path string) (*probe.VideoInfo, error)
	}

	videoStore interface {
		GetVideoByPath(db database.Queryable, path string) (*media.Video, error)
		GetShowByTitle(db database.Queryable, title string) (*media.TVShow, error)
		GetShowWithEpisodes(db database.Queryable, showID int64) (*media.TVShow, error)
		SaveShow(db database.Queryable, show *media.TVShow) error
		SaveVideo(db database.Queryable, video *media.Video) error
		DeleteShow(db database.Queryable, showID int64) error
		DeleteVideo(db database.Queryable, videoID int64) error
	}

	// VideoService ingests video files, attaching episodic files to their
	// TV show container (created on first sight, matched by exact title
	// thereafter). Standalone films are stored without a show.
	VideoService struct {
		db         database.Queryable
		store      videoStore
		parser     videoParser
		classifier *media.Classifier
		eventBus   event.EventDispatcher
	}
)

func NewVideoService(db database.Queryable, store videoStore, parser videoParser, classifier *media.Classifier, eventBus event.EventDispatcher) *VideoService {
	return &VideoService{
		db:         db,
		store:      store,
		parser:     parser,
		classifier: classifier,
		eventBus:   eventBus,
	}
}

// AddFile ingests the file at the given path if it is a recognized video
// file; the decline, dedup and error semantics match the audio service.
func (service *VideoService) AddFile(path string) (handled bool) {
	if service.classifier.Classify(filepath.Ext(path)) != media.VIDEO {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			service.dispatchError(path, fmt.Errorf("panic during video ingestion: %v", r))
			handled = false
		}
	}()

	if _, err := service.store.GetVideoByPath(service.db, path); err == nil {
		return true
	} else if err != media.ErrNotFound {
		service.dispatchError(path, err)
		return false
	}

	info, err := service.parser.GetVideoProperties(path)
	if err != nil {
		service.dispatchError(path, err)
		return false
	}

	video := &info.Video
	var (
		show        *media.TVShow
		createdShow bool
	)

	// The show and video rows land (or fail) together so a mid-ingest
	// failure never leaves an episodeless show behind.
	err = database.InTx(service.db, func(tx database.Queryable) error {
		if info.ShowTitle != "" {
			var err error
			if show, createdShow, err = service.resolveShow(tx, info.ShowTitle); err != nil {
				return err
			}
			video.TVShowID = show.ID
		}

		return service.store.SaveVideo(tx, video)
	})
	if err != nil {
		service.dispatchError(path, err)
		return false
	}

	if createdShow {
		service.eventBus.Dispatch(event.MEDIA_ADDED, show)
	}

	service.eventBus.Dispatch(event.MEDIA_ADDED, video)
	return video.ID > 0
}

func (service *VideoService) resolveShow(db database.Queryable, title string) (*media.TVShow, bool, error) {
	show, err := service.store.GetShowByTitle(db, title)
	if err == nil {
		return show, false, nil
	} else if err != media.ErrNotFound {
		return nil, false, err
	}

	show = &media.TVShow{Title: title}
	if err := service.store.SaveShow(db, show); err != nil {
		return nil, false, err
	}

	return show, true, nil
}

// RemoveVideo deletes the video, removing the owning show as well when
// it is left with no episodes.
func (service *VideoService) RemoveVideo(video *media.Video) error {
	if err := service.store.DeleteVideo(service.db, video.ID); err != nil {
		return err
	}
	service.eventBus.Dispatch(event.MEDIA_REMOVED, video)

	if video.TVShowID > 0 {
		show, err := service.store.GetShowWithEpisodes(service.db, video.TVShowID)
		if err != nil {
			if err == media.ErrNotFound {
				return nil
			}
			return err
		}
		if len(show.Episodes) == 0 {
			return service.RemoveShow(show)
		}
	}

	return nil
}

// RemoveShow deletes the show and any episodes still attached to it.
func (service *VideoService) RemoveShow(show *media.TVShow) error {
	full, err := service.store.GetShowWithEpisodes(service.db, show.ID)
	if err != nil {
		return err
	}

	for _, episode := range full.Episodes {
		if err := service.store.DeleteVideo(service.db, episode.ID); err != nil {
			return err
		}
		service.eventBus.Dispatch(event.MEDIA_REMOVED, episode)
	}

	if err := service.store.DeleteShow(service.db, show.ID); err != nil {
		return err
	}
	service.eventBus.Dispatch(event.MEDIA_REMOVED, show)
	return nil
}

func (service *VideoService) dispatchError(path string, err error) {
	log.Warnf("Video ingestion of '%s' failed: %v\n", path, err)
	service.eventBus.Dispatch(event.MEDIA_ERROR, event.MediaError{
		Path:      path,
		MediaType: media.VIDEO,
		Err:       err,
	})
}
