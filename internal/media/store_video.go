package media

import (
	"database/sql"
	"errors"

	"github.com/mjharwood/medley/internal/database"
)

const videoColumns = `id, COALESCE(tv_show_id, 0) AS tv_show_id, path, title, description,
	width, height, duration_seconds`

// VideoStore is the video domain of the library store: TV shows and their
// episodes, plus standalone video files.
type VideoStore struct{}

// GetVideoByPath finds the video ingested from the exact path provided.
// This is the dedup guard lookup for the video pipeline.
func (store *VideoStore) GetVideoByPath(db database.Queryable, path string) (*Video, error) {
	var result Video
	if err := db.Get(&result, `SELECT `+videoColumns+` FROM videos WHERE path=$1`, path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &result, nil
}

// GetShowByTitle finds a TV show by an exact match on its title.
func (store *VideoStore) GetShowByTitle(db database.Queryable, title string) (*TVShow, error) {
	var result TVShow
	if err := db.Get(&result, `SELECT * FROM tv_shows WHERE title=$1`, title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &result, nil
}

// GetShowWithEpisodes fetches the show row along with its owned videos.
func (store *VideoStore) GetShowWithEpisodes(db database.Queryable, showID int64) (*TVShow, error) {
	var result TVShow
	if err := db.Get(&result, `SELECT * FROM tv_shows WHERE id=$1`, showID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := db.Select(&result.Episodes, `SELECT `+videoColumns+` FROM videos WHERE tv_show_id=$1`, showID); err != nil {
		return nil, err
	}

	return &result, nil
}

// SaveShow inserts the show if it carries no ID yet, assigning the store
// ID on to the model, and updates the existing row otherwise.
func (store *VideoStore) SaveShow(db database.Queryable, show *TVShow) error {
	if !Persisted(show.ID) {
		return db.Get(&show.ID, `
			INSERT INTO tv_shows(title, poster_path)
			VALUES ($1, $2)
			RETURNING id
		`, show.Title, show.PosterPath)
	}

	_, err := db.Exec(`UPDATE tv_shows SET title=$1, poster_path=$2 WHERE id=$3`,
		show.Title, show.PosterPath, show.ID)
	return err
}

// SaveVideo inserts or updates the video; see SaveShow. A zero-valued
// show foreign key is stored as NULL.
func (store *VideoStore) SaveVideo(db database.Queryable, video *Video) error {
	if !Persisted(video.ID) {
		return db.Get(&video.ID, `
			INSERT INTO videos(tv_show_id, path, title, description, width, height, duration_seconds)
			VALUES (NULLIF($1, 0), $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, video.TVShowID, video.Path, video.Title, video.Description,
			video.Width, video.Height, video.DurationSeconds)
	}

	_, err := db.Exec(`
		UPDATE videos SET tv_show_id=NULLIF($1, 0), path=$2, title=$3, description=$4,
			width=$5, height=$6, duration_seconds=$7
		WHERE id=$8
	`, video.TVShowID, video.Path, video.Title, video.Description,
		video.Width, video.Height, video.DurationSeconds, video.ID)
	return err
}

func (store *VideoStore) DeleteShow(db database.Queryable, showID int64) error {
	_, err := db.Exec(`DELETE FROM tv_shows WHERE id=$1`, showID)
	return err
}

func (store *VideoStore) DeleteVideo(db database.Queryable, videoID int64) error {
	_, err := db.Exec(`DELETE FROM videos WHERE id=$1`, videoID)
	return err
}
