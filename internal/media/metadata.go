package media

import "time"

// Provider metadata is modelled as a closed variant set: one concrete
// struct per third-party provider, each embedding the shared header and
// reporting its variant tag via Provider(). The enrichment pipeline keys
// its upserts on that tag - at most one record may exist per
// (owner, provider) pair.
type (
	ProviderType string

	// MetadataHeader is the shared portion of every metadata variant.
	// OwnerID refers to the owning artist or album.
	MetadataHeader struct {
		ID          int64     `json:"-" db:"id"`
		OwnerID     int64     `json:"-" db:"owner_id"`
		LastUpdated time.Time `json:"-" db:"last_updated"`
	}

	ArtistMetadata interface {
		Provider() ProviderType
		Header() *MetadataHeader
		ImageURL() string
	}

	AlbumMetadata interface {
		Provider() ProviderType
		Header() *MetadataHeader
		ImageURL() string
	}

	SpotifyArtistMetadata struct {
		MetadataHeader
		SpotifyID  string `json:"spotify_id"`
		Popularity int    `json:"popularity"`
		Followers  int    `json:"followers"`
		Genres     string `json:"genres"`
		Image      string `json:"image"`
	}

	LastFmArtistMetadata struct {
		MetadataHeader
		URL       string `json:"url"`
		Listeners int    `json:"listeners"`
		PlayCount int    `json:"play_count"`
		Summary   string `json:"summary"`
		Image     string `json:"image"`
	}

	AppleMusicArtistMetadata struct {
		MetadataHeader
		StoreID    string `json:"store_id"`
		URL        string `json:"url"`
		GenreNames string `json:"genre_names"`
		Image      string `json:"image"`
	}

	DeezerArtistMetadata struct {
		MetadataHeader
		DeezerID   int64  `json:"deezer_id"`
		Link       string `json:"link"`
		AlbumCount int    `json:"album_count"`
		FanCount   int    `json:"fan_count"`
		Image      string `json:"image"`
	}

	SpotifyAlbumMetadata struct {
		MetadataHeader
		SpotifyID   string `json:"spotify_id"`
		ReleaseDate string `json:"release_date"`
		TotalTracks int    `json:"total_tracks"`
		Label       string `json:"label"`
		Image       string `json:"image"`
	}

	LastFmAlbumMetadata struct {
		MetadataHeader
		URL       string `json:"url"`
		Listeners int    `json:"listeners"`
		PlayCount int    `json:"play_count"`
		Summary   string `json:"summary"`
		Image     string `json:"image"`
	}

	AppleMusicAlbumMetadata struct {
		MetadataHeader
		StoreID     string `json:"store_id"`
		URL         string `json:"url"`
		Copyright   string `json:"copyright"`
		ReleaseDate string `json:"release_date"`
		Image       string `json:"image"`
	}

	DeezerAlbumMetadata struct {
		MetadataHeader
		DeezerID    int64  `json:"deezer_id"`
		Link        string `json:"link"`
		ReleaseDate string `json:"release_date"`
		TrackCount  int    `json:"track_count"`
		Image       string `json:"image"`
	}
)

const (
	SPOTIFY     ProviderType = "spotify"
	LASTFM      ProviderType = "lastfm"
	APPLE_MUSIC ProviderType = "applemusic"
	DEEZER      ProviderType = "deezer"
)

func (m *MetadataHeader) Header() *MetadataHeader { return m }

func (m *SpotifyArtistMetadata) Provider() ProviderType    { return SPOTIFY }
func (m *LastFmArtistMetadata) Provider() ProviderType     { return LASTFM }
func (m *AppleMusicArtistMetadata) Provider() ProviderType { return APPLE_MUSIC }
func (m *DeezerArtistMetadata) Provider() ProviderType     { return DEEZER }
func (m *SpotifyAlbumMetadata) Provider() ProviderType     { return SPOTIFY }
func (m *LastFmAlbumMetadata) Provider() ProviderType      { return LASTFM }
func (m *AppleMusicAlbumMetadata) Provider() ProviderType  { return APPLE_MUSIC }
func (m *DeezerAlbumMetadata) Provider() ProviderType      { return DEEZER }

func (m *SpotifyArtistMetadata) ImageURL() string    { return m.Image }
func (m *LastFmArtistMetadata) ImageURL() string     { return m.Image }
func (m *AppleMusicArtistMetadata) ImageURL() string { return m.Image }
func (m *DeezerArtistMetadata) ImageURL() string     { return m.Image }
func (m *SpotifyAlbumMetadata) ImageURL() string     { return m.Image }
func (m *LastFmAlbumMetadata) ImageURL() string      { return m.Image }
func (m *AppleMusicAlbumMetadata) ImageURL() string  { return m.Image }
func (m *DeezerAlbumMetadata) ImageURL() string      { return m.Image }

// ArtistMetadataByProvider returns the artists existing metadata record
// for the given provider, or nil if the artist holds none.
func (a *Artist) ArtistMetadataByProvider(provider ProviderType) ArtistMetadata {
	for _, record := range a.Metadata {
		if record.Provider() == provider {
			return record
		}
	}

	return nil
}

// AlbumMetadataByProvider returns the albums existing metadata record
// for the given provider, or nil if the album holds none.
func (a *Album) AlbumMetadataByProvider(provider ProviderType) AlbumMetadata {
	for _, record := range a.Metadata {
		if record.Provider() == provider {
			return record
		}
	}

	return nil
}

// NewArtistMetadataVariant constructs the empty variant struct for the
// given provider tag. Used by the store when rehydrating rows.
func NewArtistMetadataVariant(provider ProviderType) ArtistMetadata {
	switch provider {
	case SPOTIFY:
		return &SpotifyArtistMetadata{}
	case LASTFM:
		return &LastFmArtistMetadata{}
	case APPLE_MUSIC:
		return &AppleMusicArtistMetadata{}
	case DEEZER:
		return &DeezerArtistMetadata{}
	}

	return nil
}

// NewAlbumMetadataVariant constructs the empty variant struct for the
// given provider tag. Used by the store when rehydrating rows.
func NewAlbumMetadataVariant(provider ProviderType) AlbumMetadata {
	switch provider {
	case SPOTIFY:
		return &SpotifyAlbumMetadata{}
	case LASTFM:
		return &LastFmAlbumMetadata{}
	case APPLE_MUSIC:
		return &AppleMusicAlbumMetadata{}
	case DEEZER:
		return &DeezerAlbumMetadata{}
	}

	return nil
}
