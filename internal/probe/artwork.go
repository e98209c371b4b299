package probe

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// ErrNoArtwork is returned by the cache methods when the source carries no
// usable image (for example an audio file with no embedded picture and no
// cover file beside it).
var ErrNoArtwork = errors.New("no artwork available from source")

// coverFilenames are the adjacent files checked (in order) when an audio
// file carries no embedded picture.
var coverFilenames = []string{"cover.jpg", "cover.png", "folder.jpg", "folder.png", "front.jpg"}

// CacheArtistImage stores the image found at 'source' (an http(s) URL or a
// local file path) under the artwork cache, named for the artist. Caching
// is idempotent: if the destination file already exists its path is
// returned without re-fetching the source.
func (parser *Parser) CacheArtistImage(artistName string, source string) (string, error) {
	dest := filepath.Join(parser.config.ArtworkCacheDir, "artists", sanitizeName(artistName)+".jpg")
	return parser.cacheImage(dest, source)
}

// CacheAlbumImage stores the image found at 'source' under the artwork
// cache, named for the artist/album pair. In addition to the URL and plain
// file sources CacheArtistImage supports, the source may be an audio file
// belonging to the album, in which case the embedded picture (or a cover
// file in the same directory) is used.
func (parser *Parser) CacheAlbumImage(artistName string, albumName string, source string) (string, error) {
	dest := filepath.Join(parser.config.ArtworkCacheDir, "albums",
		sanitizeName(artistName)+" - "+sanitizeName(albumName)+".jpg")
	return parser.cacheImage(dest, source)
}

func (parser *Parser) cacheImage(dest string, source string) (string, error) {
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), os.ModeDir|os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create artwork cache directory: %w", err)
	}

	var payload io.ReadCloser
	var err error
	switch {
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		payload, err = fetchRemoteImage(source)
	default:
		payload, err = openLocalImage(source)
	}
	if err != nil {
		return "", err
	}
	defer payload.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create artwork cache file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, payload); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to write artwork cache file: %w", err)
	}

	return dest, nil
}

func fetchRemoteImage(url string) (io.ReadCloser, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch artwork from '%s': %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("artwork fetch from '%s' returned HTTP %d", url, resp.StatusCode)
	}

	return resp.Body, nil
}

// openLocalImage resolves a local artwork source. Audio files are checked
// for an embedded picture first, then for a recognized cover file in the
// same directory; any other file is used as the image itself.
func openLocalImage(source string) (io.ReadCloser, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open artwork source '%s': %w", source, err)
	}

	tags, err := tag.ReadFrom(file)
	if err != nil {
		// Not a tagged audio file - treat the source as the image.
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
		return file, nil
	}

	if picture := tags.Picture(); picture != nil && len(picture.Data) > 0 {
		file.Close()
		return io.NopCloser(strings.NewReader(string(picture.Data))), nil
	}
	file.Close()

	for _, name := range coverFilenames {
		candidate := filepath.Join(filepath.Dir(source), name)
		if cover, err := os.Open(candidate); err == nil {
			return cover, nil
		}
	}

	return nil, ErrNoArtwork
}

// sanitizeName makes an entity name safe for use as a filename.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
