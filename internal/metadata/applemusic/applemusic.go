package applemusic

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/mjharwood/medley/internal/media"
)

const (
	itunesBaseUrl = "https://itunes.apple.com"

	itunesSearchArtistTemplate = "%s/search?term=%s&entity=musicArtist&limit=5"
	itunesSearchAlbumTemplate  = "%s/search?term=%s&entity=album&limit=5"
)

type (
	searchResult struct {
		ResultCount int          `json:"resultCount"`
		Results     []resultItem `json:"results"`
	}

	resultItem struct {
		ArtistId          int64  `json:"artistId"`
		ArtistName        string `json:"artistName"`
		ArtistLinkUrl     string `json:"artistLinkUrl"`
		PrimaryGenreName  string `json:"primaryGenreName"`
		CollectionId      int64  `json:"collectionId"`
		CollectionName    string `json:"collectionName"`
		CollectionViewUrl string `json:"collectionViewUrl"`
		ArtworkUrl100     string `json:"artworkUrl100"`
		Copyright         string `json:"copyright"`
		ReleaseDate       string `json:"releaseDate"`
	}

	// appleMusicClient queries the iTunes Search API, which serves the
	// Apple Music catalogue without requiring credentials.
	// See https://performance-partners.apple.com/search-api for
	// information on the iTunes Search API.
	appleMusicClient struct{}
)

func New() *appleMusicClient {
	return &appleMusicClient{}
}

func (client *appleMusicClient) Provider() media.ProviderType { return media.APPLE_MUSIC }

// GetArtistMetadata searches the catalogue for the artist by name,
// returning an empty record (and a nil error) when no close match exists.
func (client *appleMusicClient) GetArtistMetadata(artist *media.Artist) (media.ArtistMetadata, error) {
	path := fmt.Sprintf(itunesSearchArtistTemplate, itunesBaseUrl, url.QueryEscape(artist.Name))
	var search searchResult
	if err := httpGetJsonResponse(path, &search); err != nil {
		return nil, err
	}

	match := pickBestMatch(search.Results, artist.Name, func(item *resultItem) string { return item.ArtistName })
	if match == nil {
		return &media.AppleMusicArtistMetadata{}, nil
	}

	return &media.AppleMusicArtistMetadata{
		StoreID:    strconv.FormatInt(match.ArtistId, 10),
		URL:        match.ArtistLinkUrl,
		GenreNames: match.PrimaryGenreName,
	}, nil
}

// GetAlbumMetadata searches for the album, scoping the term with the
// artists name. The artwork URL is upgraded from the 100px rendition the
// API returns to the 600px one the store also serves.
func (client *appleMusicClient) GetAlbumMetadata(album *media.Album, artistNameHint string) (media.AlbumMetadata, error) {
	term := fmt.Sprintf("%s %s", artistNameHint, album.Name)
	path := fmt.Sprintf(itunesSearchAlbumTemplate, itunesBaseUrl, url.QueryEscape(term))
	var search searchResult
	if err := httpGetJsonResponse(path, &search); err != nil {
		return nil, err
	}

	match := pickBestMatch(search.Results, album.Name, func(item *resultItem) string { return item.CollectionName })
	if match == nil {
		return &media.AppleMusicAlbumMetadata{}, nil
	}

	return &media.AppleMusicAlbumMetadata{
		StoreID:     strconv.FormatInt(match.CollectionId, 10),
		URL:         match.CollectionViewUrl,
		Copyright:   match.Copyright,
		ReleaseDate: match.ReleaseDate,
		Image:       upscaleArtwork(match.ArtworkUrl100),
	}, nil
}

func pickBestMatch(items []resultItem, name string, nameOf func(*resultItem) string) *resultItem {
	if len(items) == 0 {
		return nil
	}

	metric := &metrics.JaroWinkler{CaseSensitive: false}
	sort.SliceStable(items, func(i, j int) bool {
		return strutil.Similarity(nameOf(&items[i]), name, metric) > strutil.Similarity(nameOf(&items[j]), name, metric)
	})

	if strutil.Similarity(nameOf(&items[0]), name, metric) < 0.7 {
		return nil
	}

	return &items[0]
}

func upscaleArtwork(artworkUrl string) string {
	return strings.Replace(artworkUrl, "100x100bb", "600x600bb", 1)
}

func httpGetJsonResponse(urlPath string, targetInterface interface{}) error {
	resp, err := http.Get(urlPath)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to perform GET(%s) to iTunes: %s", urlPath, err.Error())}
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &FailedRequestError{httpCode: resp.StatusCode, message: "non-OK response from iTunes"}
	}

	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to read response body: %s", err.Error())}
	}

	if err := json.Unmarshal(respBody, targetInterface); err != nil {
		return &UnknownRequestError{fmt.Sprintf("response JSON could not be unmarshalled: %s", err.Error())}
	}

	return nil
}

type (
	FailedRequestError struct {
		httpCode int
		message  string
	}
	UnknownRequestError struct{ reason string }
)

func (err *FailedRequestError) Error() string {
	return fmt.Sprintf("Request failure (HTTP %d): %s", err.httpCode, err.message)
}
func (err *UnknownRequestError) Error() string {
	return fmt.Sprintf("unknown error occurred while communicating with iTunes: %s", err.reason)
}
