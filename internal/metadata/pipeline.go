// The metadata enrichment pipeline fans a newly created artist or album out
// to an ordered list of third-party metadata providers, upserting at most
// one metadata record per (entity, provider) pair. Provider failures are
// isolated: a provider that errors is logged and skipped, never aborting
// the remaining providers or the owning ingestion call.
package metadata

import (
	"github.com/mjharwood/medley/internal/database"
	"github.com/mjharwood/medley/internal/media"
	"github.com/mjharwood/medley/pkg/logger"
)

var log = logger.Get("Enrich")

type (
	// Provider is a single third-party metadata source. Implementations
	// must not error for "no match" - they return an empty/default-valued
	// record instead, reserving errors for infrastructure failure.
	Provider interface {
		Provider() media.ProviderType
		GetArtistMetadata(artist *media.Artist) (media.ArtistMetadata, error)
		GetAlbumMetadata(album *media.Album, artistNameHint string) (media.AlbumMetadata, error)
	}

	artworkCacher interface {
		CacheArtistImage(artistName string, source string) (string, error)
		CacheAlbumImage(artistName string, albumName string, source string) (string, error)
	}

	recordStore interface {
		SaveArtistMetadata(db database.Queryable, record media.ArtistMetadata) error
		SaveAlbumMetadata(db database.Queryable, record media.AlbumMetadata) error
	}

	Pipeline struct {
		db        database.Queryable
		providers []Provider
		store     recordStore
		cacher    artworkCacher
	}
)

// New constructs an enrichment pipeline over the given providers. The
// provider order is significant: providers are queried in order, and the
// image fallback picks the first provider (in this order) that supplied
// an image URL.
func New(db database.Queryable, store recordStore, cacher artworkCacher, providers ...Provider) *Pipeline {
	return &Pipeline{
		db:        db,
		providers: providers,
		store:     store,
		cacher:    cacher,
	}
}

// EnrichArtist queries every configured provider for metadata about the
// artist, upserting one record per provider on to the artist (an existing
// record for the provider is updated in place, preserving its store ID).
// If the artist has no locally-available image once all providers have
// run, the first provider-supplied image URL is cached to local storage
// through the artwork cacher and the resulting path set on the artist;
// persisting that update is the caller's responsibility.
func (pipeline *Pipeline) EnrichArtist(artist *media.Artist) {
	for _, provider := range pipeline.providers {
		record, err := provider.GetArtistMetadata(artist)
		if err != nil {
			log.Warnf("Provider %s failed to supply metadata for %s: %v\n", provider.Provider(), artist, err)
			continue
		}
		if record == nil {
			continue
		}

		record.Header().OwnerID = artist.ID
		if existing := artist.ArtistMetadataByProvider(provider.Provider()); existing != nil {
			record.Header().ID = existing.Header().ID
		}

		if err := pipeline.store.SaveArtistMetadata(pipeline.db, record); err != nil {
			log.Errorf("Failed to save %s metadata for %s: %v\n", provider.Provider(), artist, err)
			continue
		}

		attachArtistRecord(artist, record)
	}

	if artist.ImagePath == "" {
		pipeline.cacheArtistImage(artist)
	}
}

// EnrichAlbum queries every configured provider for metadata about the
// album; see EnrichArtist for the upsert and image fallback semantics.
func (pipeline *Pipeline) EnrichAlbum(artist *media.Artist, album *media.Album) {
	for _, provider := range pipeline.providers {
		record, err := provider.GetAlbumMetadata(album, artist.Name)
		if err != nil {
			log.Warnf("Provider %s failed to supply metadata for %s: %v\n", provider.Provider(), album, err)
			continue
		}
		if record == nil {
			continue
		}

		record.Header().OwnerID = album.ID
		if existing := album.AlbumMetadataByProvider(provider.Provider()); existing != nil {
			record.Header().ID = existing.Header().ID
		}

		if err := pipeline.store.SaveAlbumMetadata(pipeline.db, record); err != nil {
			log.Errorf("Failed to save %s metadata for %s: %v\n", provider.Provider(), album, err)
			continue
		}

		attachAlbumRecord(album, record)
	}

	if album.ArtPath == "" {
		pipeline.cacheAlbumImage(artist, album)
	}
}

func (pipeline *Pipeline) cacheArtistImage(artist *media.Artist) {
	for _, provider := range pipeline.providers {
		record := artist.ArtistMetadataByProvider(provider.Provider())
		if record == nil || record.ImageURL() == "" {
			continue
		}

		local, err := pipeline.cacher.CacheArtistImage(artist.Name, record.ImageURL())
		if err != nil {
			log.Warnf("Failed to cache %s-supplied image for %s: %v\n", provider.Provider(), artist, err)
			continue
		}

		artist.ImagePath = local
		return
	}
}

func (pipeline *Pipeline) cacheAlbumImage(artist *media.Artist, album *media.Album) {
	for _, provider := range pipeline.providers {
		record := album.AlbumMetadataByProvider(provider.Provider())
		if record == nil || record.ImageURL() == "" {
			continue
		}

		local, err := pipeline.cacher.CacheAlbumImage(artist.Name, album.Name, record.ImageURL())
		if err != nil {
			log.Warnf("Failed to cache %s-supplied art for %s: %v\n", provider.Provider(), album, err)
			continue
		}

		album.ArtPath = local
		return
	}
}

// attachArtistRecord replaces the artists existing record for the same
// provider, or appends when none exists.
func attachArtistRecord(artist *media.Artist, record media.ArtistMetadata) {
	for i, existing := range artist.Metadata {
		if existing.Provider() == record.Provider() {
			artist.Metadata[i] = record
			return
		}
	}

	artist.Metadata = append(artist.Metadata, record)
}

func attachAlbumRecord(album *media.Album, record media.AlbumMetadata) {
	for i, existing := range album.Metadata {
		if existing.Provider() == record.Provider() {
			album.Metadata[i] = record
			return
		}
	}

	album.Metadata = append(album.Metadata, record)
}
