package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mjharwood/medley/internal/database"
	"github.com/mjharwood/medley/internal/event"
	"github.com/mjharwood/medley/internal/media"
)

type (
	musicParser interface {
		GetMusicProperties(path string) (*media.Track, error)
		CacheAlbumImage(artistName string, albumName string, source string) (string, error)
	}

	enricher interface {
		EnrichArtist(artist *media.Artist)
		EnrichAlbum(artist *media.Artist, album *media.Album)
	}

	audioStore interface {
		GetTrackByPath(db database.Queryable, path string) (*media.Track, error)
		GetArtistByName(db database.Queryable, name string) (*media.Artist, error)
		GetArtistWithChildren(db database.Queryable, artistID int64) (*media.Artist, error)
		GetAlbum(db database.Queryable, artistID int64, name string) (*media.Album, error)
		GetAlbumWithTracks(db database.Queryable, albumID int64) (*media.Album, error)
		SaveArtist(db database.Queryable, artist *media.Artist) error
		SaveAlbum(db database.Queryable, album *media.Album) error
		SaveTrack(db database.Queryable, track *media.Track) error
		DeleteArtist(db database.Queryable, artistID int64) error
		DeleteAlbum(db database.Queryable, albumID int64) error
		DeleteTrack(db database.Queryable, trackID int64) error
	}

	// AudioService ingests music files in to the library, resolving (or
	// creating) the owning artist and album rows before persisting the
	// track itself. Newly created artists and albums are run through the
	// metadata enrichment pipeline.
	AudioService struct {
		db         database.Queryable
		store      audioStore
		parser     musicParser
		enricher   enricher
		classifier *media.Classifier
		eventBus   event.EventDispatcher
	}
)

func NewAudioService(db database.Queryable, store audioStore, parser musicParser, enricher enricher, classifier *media.Classifier, eventBus event.EventDispatcher) *AudioService {
	return &AudioService{
		db:         db,
		store:      store,
		parser:     parser,
		enricher:   enricher,
		classifier: classifier,
		eventBus:   eventBus,
	}
}

// AddFile ingests the file at the given path if it is a recognized audio
// file. Paths with an unrecognized extension, or which no longer exist on
// disk, are silently declined. A path already present in the library is
// reported as handled without re-ingesting it. Failures mid-ingestion
// raise a MEDIA_ERROR event and decline the file rather than panicking
// in to the surrounding scan.
func (service *AudioService) AddFile(path string) (handled bool) {
	if service.classifier.Classify(filepath.Ext(path)) != media.AUDIO {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			service.dispatchError(path, fmt.Errorf("panic during audio ingestion: %v", r))
			handled = false
		}
	}()

	if _, err := service.store.GetTrackByPath(service.db, path); err == nil {
		return true
	} else if err != media.ErrNotFound {
		service.dispatchError(path, err)
		return false
	}

	track, err := service.parser.GetMusicProperties(path)
	if err != nil {
		service.dispatchError(path, err)
		return false
	}
	if track.ArtistName == "" && track.AlbumName == "" && track.Title == "" {
		service.dispatchError(path, nil)
		return false
	}

	var (
		artist        *media.Artist
		album         *media.Album
		createdArtist bool
		createdAlbum  bool
	)

	// The artist, album and track rows land (or fail) together; a failure
	// partway through must not leave a childless artist or album behind.
	err = database.InTx(service.db, func(tx database.Queryable) error {
		var err error
		if artist, createdArtist, err = service.resolveArtist(tx, track.ArtistName); err != nil {
			return err
		}
		if album, createdAlbum, err = service.resolveAlbum(tx, artist, track.AlbumName, path); err != nil {
			return err
		}

		if artist != nil {
			track.ArtistID = artist.ID
		}
		if album != nil {
			track.AlbumID = album.ID
		}

		return service.store.SaveTrack(tx, track)
	})
	if err != nil {
		service.dispatchError(path, err)
		return false
	}

	if createdArtist {
		service.enrichArtist(artist)
		service.eventBus.Dispatch(event.MEDIA_ADDED, artist)
	}
	if createdAlbum {
		service.enrichAlbum(artist, album)
		service.eventBus.Dispatch(event.MEDIA_ADDED, album)
	}

	service.eventBus.Dispatch(event.MEDIA_ADDED, track)
	return track.ID > 0
}

// resolveArtist returns the library artist with the given name, creating
// one when no match exists. A nil artist (and nil error) is returned when
// the name is empty; the track is stored without an artist.
func (service *AudioService) resolveArtist(db database.Queryable, name string) (*media.Artist, bool, error) {
	if name == "" {
		return nil, false, nil
	}

	artist, err := service.store.GetArtistByName(db, name)
	if err == nil {
		return artist, false, nil
	} else if err != media.ErrNotFound {
		return nil, false, err
	}

	artist = &media.Artist{Name: name}
	if err := service.store.SaveArtist(db, artist); err != nil {
		return nil, false, err
	}

	return artist, true, nil
}

// resolveAlbum returns the artists album with the given name, creating
// one when no match exists. Album art is sourced locally first (embedded
// picture or a cover file next to the audio file); enrichment supplies a
// provider image only when no local art was found.
func (service *AudioService) resolveAlbum(db database.Queryable, artist *media.Artist, name string, sourcePath string) (*media.Album, bool, error) {
	if artist == nil || name == "" {
		return nil, false, nil
	}

	album, err := service.store.GetAlbum(db, artist.ID, name)
	if err == nil {
		return album, false, nil
	} else if err != media.ErrNotFound {
		return nil, false, err
	}

	album = &media.Album{ArtistID: artist.ID, Name: name}
	if artPath, err := service.parser.CacheAlbumImage(artist.Name, name, sourcePath); err == nil {
		album.ArtPath = artPath
	}
	if err := service.store.SaveAlbum(db, album); err != nil {
		return nil, false, err
	}

	return album, true, nil
}

// enrichArtist runs the provider pipeline over a newly created artist once
// its row is committed, so provider round-trips never hold the ingestion
// transaction open.
func (service *AudioService) enrichArtist(artist *media.Artist) {
	service.enricher.EnrichArtist(artist)
	if artist.ImagePath == "" && len(artist.Metadata) == 0 {
		return
	}

	if err := service.store.SaveArtist(service.db, artist); err != nil {
		log.Warnf("Failed to persist enrichment of artist '%s': %v\n", artist.Name, err)
	}
}

// enrichAlbum mirrors enrichArtist for a newly created album.
func (service *AudioService) enrichAlbum(artist *media.Artist, album *media.Album) {
	service.enricher.EnrichAlbum(artist, album)
	if err := service.store.SaveAlbum(service.db, album); err != nil {
		log.Warnf("Failed to persist enrichment of album '%s': %v\n", album.Name, err)
	}
}

// RemoveTrack deletes the track from the library. If the removal leaves
// the owning album with no tracks, the album is removed too; likewise an
// artist left with no albums and no tracks is removed.
func (service *AudioService) RemoveTrack(track *media.Track) error {
	if err := service.store.DeleteTrack(service.db, track.ID); err != nil {
		return err
	}
	service.eventBus.Dispatch(event.MEDIA_REMOVED, track)

	if track.AlbumID > 0 {
		album, err := service.store.GetAlbumWithTracks(service.db, track.AlbumID)
		if err != nil {
			if err == media.ErrNotFound {
				return nil
			}
			return err
		}
		if len(album.Tracks) == 0 {
			return service.RemoveAlbum(album)
		}
		return nil
	}

	if track.ArtistID > 0 {
		return service.removeArtistIfEmpty(track.ArtistID)
	}

	return nil
}

// RemoveAlbum deletes the album and any tracks still attached to it,
// cascading up to the owning artist when it is left empty.
func (service *AudioService) RemoveAlbum(album *media.Album) error {
	full, err := service.store.GetAlbumWithTracks(service.db, album.ID)
	if err != nil {
		return err
	}

	for _, track := range full.Tracks {
		if err := service.store.DeleteTrack(service.db, track.ID); err != nil {
			return err
		}
		service.eventBus.Dispatch(event.MEDIA_REMOVED, track)
	}

	if err := service.store.DeleteAlbum(service.db, album.ID); err != nil {
		return err
	}
	service.eventBus.Dispatch(event.MEDIA_REMOVED, album)

	if album.ArtistID > 0 {
		return service.removeArtistIfEmpty(album.ArtistID)
	}

	return nil
}

// RemoveArtist deletes the artist along with all of their albums and
// tracks, bottom-up so no row is ever orphaned.
func (service *AudioService) RemoveArtist(artist *media.Artist) error {
	full, err := service.store.GetArtistWithChildren(service.db, artist.ID)
	if err != nil {
		return err
	}

	for _, album := range full.Albums {
		tracked, err := service.store.GetAlbumWithTracks(service.db, album.ID)
		if err != nil {
			return err
		}
		for _, track := range tracked.Tracks {
			if err := service.store.DeleteTrack(service.db, track.ID); err != nil {
				return err
			}
			service.eventBus.Dispatch(event.MEDIA_REMOVED, track)
		}
		if err := service.store.DeleteAlbum(service.db, album.ID); err != nil {
			return err
		}
		service.eventBus.Dispatch(event.MEDIA_REMOVED, album)
	}

	for _, track := range full.Tracks {
		if err := service.store.DeleteTrack(service.db, track.ID); err != nil {
			return err
		}
		service.eventBus.Dispatch(event.MEDIA_REMOVED, track)
	}

	if err := service.store.DeleteArtist(service.db, artist.ID); err != nil {
		return err
	}
	service.eventBus.Dispatch(event.MEDIA_REMOVED, artist)
	return nil
}

func (service *AudioService) removeArtistIfEmpty(artistID int64) error {
	artist, err := service.store.GetArtistWithChildren(service.db, artistID)
	if err != nil {
		if err == media.ErrNotFound {
			return nil
		}
		return err
	}

	if len(artist.Albums) == 0 && len(artist.Tracks) == 0 {
		return service.RemoveArtist(artist)
	}

	return nil
}

func (service *AudioService) dispatchError(path string, err error) {
	if err != nil {
		log.Warnf("Audio ingestion of '%s' failed: %v\n", path, err)
	} else {
		log.Warnf("Audio ingestion of '%s' rejected: no usable tags\n", path)
	}

	service.eventBus.Dispatch(event.MEDIA_ERROR, event.MediaError{
		Path:      path,
		MediaType: media.AUDIO,
		Err:       err,
	})
}
