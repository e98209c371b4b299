// The entity model for the Medley library. Every entity is identified by an
// integer surrogate ID which is assigned by the store on first save; an ID
// of zero (or below) means the entity has not been persisted yet.
package media

import (
	"fmt"
	"time"
)

type (
	Type int

	// Artist is the top level container for the audio library. The Albums,
	// Tracks and Metadata collections are only populated by the
	// 'WithChildren' store queries.
	Artist struct {
		ID            int64  `db:"id"`
		Name          string `db:"name"`
		Biography     string `db:"biography"`
		MusicBrainzID string `db:"mbid"`
		ImagePath     string `db:"image_path"`

		Albums   []*Album         `db:"-"`
		Tracks   []*Track         `db:"-"`
		Metadata []ArtistMetadata `db:"-"`
	}

	// Album belongs to exactly one artist and is unique by
	// (artist, name) within the store.
	Album struct {
		ID       int64  `db:"id"`
		ArtistID int64  `db:"artist_id"`
		Name     string `db:"name"`
		Year     int    `db:"year"`
		ArtPath  string `db:"art_path"`

		Tracks   []*Track        `db:"-"`
		Metadata []AlbumMetadata `db:"-"`
	}

	// Track is unique by its file system path. The artist/album foreign
	// keys are optional (zero when absent) - a track can exist with no
	// album at all. The scalar tag fields are copied verbatim from the
	// local parser at ingest time.
	Track struct {
		ID              int64  `db:"id"`
		Path            string `db:"path"`
		ArtistID        int64  `db:"artist_id"`
		AlbumID         int64  `db:"album_id"`
		Title           string `db:"title"`
		ArtistName      string `db:"artist_name"`
		AlbumName       string `db:"album_name"`
		DurationSeconds int    `db:"duration_seconds"`
		TrackNumber     int    `db:"track_number"`
		DiscNumber      int    `db:"disc_number"`
	}

	// TVShow is unique by its title. Episodes is only populated by the
	// 'WithEpisodes' store query.
	TVShow struct {
		ID         int64  `db:"id"`
		Title      string `db:"title"`
		PosterPath string `db:"poster_path"`

		Episodes []*Video `db:"-"`
	}

	// Video is unique by its file system path; the owning show is
	// optional (zero when the file carries no show information).
	Video struct {
		ID              int64  `db:"id"`
		TVShowID        int64  `db:"tv_show_id"`
		Path            string `db:"path"`
		Title           string `db:"title"`
		Description     string `db:"description"`
		Width           int    `db:"width"`
		Height          int    `db:"height"`
		DurationSeconds int    `db:"duration_seconds"`
	}

	// PodcastShow is unique by its feed URL. Episodes are owned by the
	// show and persisted alongside it.
	PodcastShow struct {
		ID          int64     `db:"id"`
		FeedURL     string    `db:"feed_url"`
		Title       string    `db:"title"`
		Author      string    `db:"author"`
		Description string    `db:"description"`
		ImageURL    string    `db:"image_url"`
		Copyright   string    `db:"copyright"`
		Language    string    `db:"language"`
		SiteURL     string    `db:"site_url"`
		LastUpdated time.Time `db:"last_updated"`

		Episodes []*PodcastEpisode `db:"-"`
	}

	// PodcastEpisode is unique by its online path within its show.
	PodcastEpisode struct {
		ID              int64     `db:"id"`
		ShowID          int64     `db:"show_id"`
		OnlinePath      string    `db:"online_path"`
		Title           string    `db:"title"`
		Description     string    `db:"description"`
		ReleaseDate     time.Time `db:"release_date"`
		DurationSeconds int       `db:"duration_seconds"`
		Explicit        bool      `db:"explicit"`
	}
)

const (
	AUDIO Type = iota
	VIDEO
	SUBTITLE
	PODCAST
	UNKNOWN
)

func (t Type) String() string {
	switch t {
	case AUDIO:
		return "AUDIO"
	case VIDEO:
		return "VIDEO"
	case SUBTITLE:
		return "SUBTITLE"
	case PODCAST:
		return "PODCAST"
	default:
		return "UNKNOWN"
	}
}

// Persisted reports whether the entity has been assigned a store ID.
func Persisted(id int64) bool { return id > 0 }

func (a *Artist) String() string {
	return fmt.Sprintf("Artist{ID=%d name=%s}", a.ID, a.Name)
}

func (a *Album) String() string {
	return fmt.Sprintf("Album{ID=%d artist=%d name=%s}", a.ID, a.ArtistID, a.Name)
}

func (t *Track) String() string {
	return fmt.Sprintf("Track{ID=%d path=%s}", t.ID, t.Path)
}

func (s *TVShow) String() string {
	return fmt.Sprintf("TVShow{ID=%d title=%s}", s.ID, s.Title)
}

func (v *Video) String() string {
	return fmt.Sprintf("Video{ID=%d path=%s}", v.ID, v.Path)
}

func (s *PodcastShow) String() string {
	return fmt.Sprintf("PodcastShow{ID=%d feed=%s}", s.ID, s.FeedURL)
}

func (e *PodcastEpisode) String() string {
	return fmt.Sprintf("PodcastEpisode{ID=%d show=%d path=%s}", e.ID, e.ShowID, e.OnlinePath)
}

// EpisodeByOnlinePath finds the owned episode with the given online path,
// returning nil if the show holds no such episode.
func (s *PodcastShow) EpisodeByOnlinePath(onlinePath string) *PodcastEpisode {
	for _, episode := range s.Episodes {
		if episode.OnlinePath == onlinePath {
			return episode
		}
	}

	return nil
}
