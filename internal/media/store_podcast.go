package media

import (
	"database/sql"
	"errors"

	"github.com/mjharwood/medley/internal/database"
)

// PodcastStore is the podcast domain of the library store. Episodes are
// owned by their show and are saved/loaded alongside it.
type PodcastStore struct{}

// GetShowByFeedURL finds a podcast show by its feed URL (the unique key of
// the podcast domain), including its owned episodes.
func (store *PodcastStore) GetShowByFeedURL(db database.Queryable, feedURL string) (*PodcastShow, error) {
	var result PodcastShow
	if err := db.Get(&result, `SELECT * FROM podcast_shows WHERE feed_url=$1`, feedURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := store.loadEpisodes(db, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// GetShowWithEpisodes fetches the show row and its owned episodes by ID.
func (store *PodcastStore) GetShowWithEpisodes(db database.Queryable, showID int64) (*PodcastShow, error) {
	var result PodcastShow
	if err := db.Get(&result, `SELECT * FROM podcast_shows WHERE id=$1`, showID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := store.loadEpisodes(db, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// AllShows returns every stored show (without episodes); used by the
// refresh worker pool to enumerate feeds due for a re-sync.
func (store *PodcastStore) AllShows(db database.Queryable) ([]*PodcastShow, error) {
	var results []*PodcastShow
	if err := db.Select(&results, `SELECT * FROM podcast_shows ORDER BY id`); err != nil {
		return nil, err
	}

	return results, nil
}

// SaveShow persists the show and ALL of its owned episodes as one
// operation. New entities (ID of zero) are inserted and have their store
// IDs assigned on to the models; existing ones are updated in place.
func (store *PodcastStore) SaveShow(db database.Queryable, show *PodcastShow) error {
	if !Persisted(show.ID) {
		if err := db.Get(&show.ID, `
			INSERT INTO podcast_shows(feed_url, title, author, description, image_url, copyright, language, site_url, last_updated)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`, show.FeedURL, show.Title, show.Author, show.Description, show.ImageURL,
			show.Copyright, show.Language, show.SiteURL, show.LastUpdated); err != nil {
			return err
		}
	} else {
		if _, err := db.Exec(`
			UPDATE podcast_shows SET feed_url=$1, title=$2, author=$3, description=$4,
				image_url=$5, copyright=$6, language=$7, site_url=$8, last_updated=$9
			WHERE id=$10
		`, show.FeedURL, show.Title, show.Author, show.Description, show.ImageURL,
			show.Copyright, show.Language, show.SiteURL, show.LastUpdated, show.ID); err != nil {
			return err
		}
	}

	for _, episode := range show.Episodes {
		episode.ShowID = show.ID
		if err := store.SaveEpisode(db, episode); err != nil {
			return err
		}
	}

	return nil
}

// SaveEpisode inserts or updates a single owned episode.
func (store *PodcastStore) SaveEpisode(db database.Queryable, episode *PodcastEpisode) error {
	if !Persisted(episode.ID) {
		return db.Get(&episode.ID, `
			INSERT INTO podcast_episodes(show_id, online_path, title, description, release_date, duration_seconds, explicit)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, episode.ShowID, episode.OnlinePath, episode.Title, episode.Description,
			episode.ReleaseDate, episode.DurationSeconds, episode.Explicit)
	}

	_, err := db.Exec(`
		UPDATE podcast_episodes SET show_id=$1, online_path=$2, title=$3, description=$4,
			release_date=$5, duration_seconds=$6, explicit=$7
		WHERE id=$8
	`, episode.ShowID, episode.OnlinePath, episode.Title, episode.Description,
		episode.ReleaseDate, episode.DurationSeconds, episode.Explicit, episode.ID)
	return err
}

// DeleteShow removes the show; its episodes are removed by ownership.
func (store *PodcastStore) DeleteShow(db database.Queryable, showID int64) error {
	_, err := db.Exec(`DELETE FROM podcast_shows WHERE id=$1`, showID)
	return err
}

func (store *PodcastStore) DeleteEpisode(db database.Queryable, episodeID int64) error {
	_, err := db.Exec(`DELETE FROM podcast_episodes WHERE id=$1`, episodeID)
	return err
}

func (store *PodcastStore) loadEpisodes(db database.Queryable, show *PodcastShow) error {
	return db.Select(&show.Episodes, `
		SELECT * FROM podcast_episodes WHERE show_id=$1 ORDER BY release_date, id
	`, show.ID)
}
