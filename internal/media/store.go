package media

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/mjharwood/medley/internal/database"
	"github.com/mjharwood/medley/pkg/logger"
)

// ErrNotFound is returned by store lookups which matched no row.
var ErrNotFound = errors.New("entity does not exist")

var log = logger.Get("MediaStore")

const trackColumns = `id, path, COALESCE(artist_id, 0) AS artist_id, COALESCE(album_id, 0) AS album_id,
	title, artist_name, album_name, duration_seconds, track_number, disc_number`

// Store is the audio domain of the library store: artists, albums, tracks
// and their provider metadata records.
type Store struct{}

// GetTrackByPath finds the track ingested from the exact path provided.
// This is the dedup guard lookup - ErrNotFound means the path is free
// to ingest.
func (store *Store) GetTrackByPath(db database.Queryable, path string) (*Track, error) {
	var result Track
	if err := db.Get(&result, `SELECT `+trackColumns+` FROM tracks WHERE path=$1`, path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &result, nil
}

// GetArtistByName finds an artist by an exact, case-insensitive match on
// the trimmed name.
func (store *Store) GetArtistByName(db database.Queryable, name string) (*Artist, error) {
	query, args, err := selectArtistBuilder().Where("LOWER(name) = LOWER(?)", name).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct artist lookup query: %w", err)
	}

	var result Artist
	if err := db.Get(&result, db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &result, nil
}

// GetArtistWithChildren fetches the artist row along with its owned albums,
// tracks and metadata records.
func (store *Store) GetArtistWithChildren(db database.Queryable, artistID int64) (*Artist, error) {
	query, args, err := selectArtistBuilder().Where(squirrel.Eq{"id": artistID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct artist query: %w", err)
	}

	var result Artist
	if err := db.Get(&result, db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := db.Select(&result.Albums, `SELECT * FROM albums WHERE artist_id=$1`, artistID); err != nil {
		return nil, err
	}
	if err := db.Select(&result.Tracks, `SELECT `+trackColumns+` FROM tracks WHERE artist_id=$1`, artistID); err != nil {
		return nil, err
	}

	metadata, err := store.GetArtistMetadata(db, artistID)
	if err != nil {
		return nil, err
	}
	result.Metadata = metadata

	return &result, nil
}

// GetAlbum finds the album owned by the given artist with the given name.
func (store *Store) GetAlbum(db database.Queryable, artistID int64, name string) (*Album, error) {
	var result Album
	if err := db.Get(&result, `SELECT * FROM albums WHERE artist_id=$1 AND name=$2`, artistID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &result, nil
}

// GetAlbumWithTracks fetches the album row along with its owned tracks and
// metadata records.
func (store *Store) GetAlbumWithTracks(db database.Queryable, albumID int64) (*Album, error) {
	var result Album
	if err := db.Get(&result, `SELECT * FROM albums WHERE id=$1`, albumID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := db.Select(&result.Tracks, `SELECT `+trackColumns+` FROM tracks WHERE album_id=$1`, albumID); err != nil {
		return nil, err
	}

	metadata, err := store.GetAlbumMetadata(db, albumID)
	if err != nil {
		return nil, err
	}
	result.Metadata = metadata

	return &result, nil
}

// SaveArtist inserts the artist if it carries no ID yet, assigning the
// store ID on to the model, and updates the existing row otherwise.
func (store *Store) SaveArtist(db database.Queryable, artist *Artist) error {
	if !Persisted(artist.ID) {
		return db.Get(&artist.ID, `
			INSERT INTO artists(name, biography, mbid, image_path)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, artist.Name, artist.Biography, artist.MusicBrainzID, artist.ImagePath)
	}

	_, err := db.NamedExec(`
		UPDATE artists SET name=:name, biography=:biography, mbid=:mbid, image_path=:image_path WHERE id=:id
	`, artist)
	return err
}

// SaveAlbum inserts or updates the album; see SaveArtist.
func (store *Store) SaveAlbum(db database.Queryable, album *Album) error {
	if !Persisted(album.ID) {
		return db.Get(&album.ID, `
			INSERT INTO albums(artist_id, name, year, art_path)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, album.ArtistID, album.Name, album.Year, album.ArtPath)
	}

	_, err := db.Exec(`
		UPDATE albums SET artist_id=$1, name=$2, year=$3, art_path=$4 WHERE id=$5
	`, album.ArtistID, album.Name, album.Year, album.ArtPath, album.ID)
	return err
}

// SaveTrack inserts or updates the track; see SaveArtist. Zero-valued
// artist/album foreign keys are stored as NULL.
func (store *Store) SaveTrack(db database.Queryable, track *Track) error {
	if !Persisted(track.ID) {
		return db.Get(&track.ID, `
			INSERT INTO tracks(path, artist_id, album_id, title, artist_name, album_name, duration_seconds, track_number, disc_number)
			VALUES ($1, NULLIF($2, 0), NULLIF($3, 0), $4, $5, $6, $7, $8, $9)
			RETURNING id
		`, track.Path, track.ArtistID, track.AlbumID, track.Title, track.ArtistName,
			track.AlbumName, track.DurationSeconds, track.TrackNumber, track.DiscNumber)
	}

	_, err := db.Exec(`
		UPDATE tracks SET path=$1, artist_id=NULLIF($2, 0), album_id=NULLIF($3, 0), title=$4,
			artist_name=$5, album_name=$6, duration_seconds=$7, track_number=$8, disc_number=$9
		WHERE id=$10
	`, track.Path, track.ArtistID, track.AlbumID, track.Title, track.ArtistName,
		track.AlbumName, track.DurationSeconds, track.TrackNumber, track.DiscNumber, track.ID)
	return err
}

func (store *Store) DeleteArtist(db database.Queryable, artistID int64) error {
	_, err := db.Exec(`DELETE FROM artists WHERE id=$1`, artistID)
	return err
}

func (store *Store) DeleteAlbum(db database.Queryable, albumID int64) error {
	_, err := db.Exec(`DELETE FROM albums WHERE id=$1`, albumID)
	return err
}

func (store *Store) DeleteTrack(db database.Queryable, trackID int64) error {
	_, err := db.Exec(`DELETE FROM tracks WHERE id=$1`, trackID)
	return err
}

// metadataRow is the raw shape of the artist_metadata/album_metadata
// tables. The provider-specific fields live in the jsonb payload; the
// provider discriminator selects which variant struct to rehydrate.
type metadataRow struct {
	ID          int64                                `db:"id"`
	OwnerID     int64                                `db:"owner_id"`
	Provider    string                               `db:"provider"`
	LastUpdated time.Time                            `db:"last_updated"`
	Payload     database.JsonColumn[json.RawMessage] `db:"payload"`
}

// SaveArtistMetadata inserts the record if it carries no ID (assigning the
// store ID on to its header) and updates the payload in place otherwise.
func (store *Store) SaveArtistMetadata(db database.Queryable, record ArtistMetadata) error {
	return saveMetadataRecord(db, "artist_metadata", record.Header(), string(record.Provider()), record)
}

// SaveAlbumMetadata inserts or updates the record; see SaveArtistMetadata.
func (store *Store) SaveAlbumMetadata(db database.Queryable, record AlbumMetadata) error {
	return saveMetadataRecord(db, "album_metadata", record.Header(), string(record.Provider()), record)
}

// GetArtistMetadata returns all metadata records owned by the artist, each
// rehydrated in to its provider variant. Rows whose provider tag is not
// recognized are skipped with a warning rather than failing the fetch.
func (store *Store) GetArtistMetadata(db database.Queryable, artistID int64) ([]ArtistMetadata, error) {
	rows, err := selectMetadataRows(db, "artist_metadata", artistID)
	if err != nil {
		return nil, err
	}

	records := make([]ArtistMetadata, 0, len(rows))
	for _, row := range rows {
		variant := NewArtistMetadataVariant(ProviderType(row.Provider))
		if variant == nil {
			log.Warnf("Skipping artist metadata row %d: unrecognized provider tag %q\n", row.ID, row.Provider)
			continue
		}

		if err := rehydrateMetadata(row, variant.Header(), variant); err != nil {
			return nil, err
		}
		records = append(records, variant)
	}

	return records, nil
}

// GetAlbumMetadata returns all metadata records owned by the album; see
// GetArtistMetadata.
func (store *Store) GetAlbumMetadata(db database.Queryable, albumID int64) ([]AlbumMetadata, error) {
	rows, err := selectMetadataRows(db, "album_metadata", albumID)
	if err != nil {
		return nil, err
	}

	records := make([]AlbumMetadata, 0, len(rows))
	for _, row := range rows {
		variant := NewAlbumMetadataVariant(ProviderType(row.Provider))
		if variant == nil {
			log.Warnf("Skipping album metadata row %d: unrecognized provider tag %q\n", row.ID, row.Provider)
			continue
		}

		if err := rehydrateMetadata(row, variant.Header(), variant); err != nil {
			return nil, err
		}
		records = append(records, variant)
	}

	return records, nil
}

func saveMetadataRecord(db database.Queryable, table string, header *MetadataHeader, provider string, record any) error {
	payload := database.NewJsonColumn(record)

	header.LastUpdated = time.Now().UTC()
	if !Persisted(header.ID) {
		return db.Get(&header.ID, `
			INSERT INTO `+table+`(owner_id, provider, last_updated, payload)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, header.OwnerID, provider, header.LastUpdated, payload)
	}

	_, err := db.Exec(`
		UPDATE `+table+` SET last_updated=$1, payload=$2 WHERE id=$3
	`, header.LastUpdated, payload, header.ID)
	return err
}

func selectMetadataRows(db database.Queryable, table string, ownerID int64) ([]metadataRow, error) {
	var rows []metadataRow
	if err := db.Select(&rows, `SELECT * FROM `+table+` WHERE owner_id=$1`, ownerID); err != nil {
		return nil, err
	}

	return rows, nil
}

func rehydrateMetadata(row metadataRow, header *MetadataHeader, variant any) error {
	if raw := row.Payload.Get(); raw != nil {
		if err := json.Unmarshal(raw, variant); err != nil {
			return fmt.Errorf("failed to unmarshal %s metadata payload: %w", row.Provider, err)
		}
	}

	header.ID = row.ID
	header.OwnerID = row.OwnerID
	header.LastUpdated = row.LastUpdated
	return nil
}

func selectArtistBuilder() squirrel.SelectBuilder {
	return squirrel.Select("id", "name", "biography", "mbid", "image_path").From("artists")
}
