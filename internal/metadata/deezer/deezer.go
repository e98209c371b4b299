package deezer

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/mjharwood/medley/internal/media"
)

const (
	deezerSearchArtistTemplate = "%s/search/artist?q=%s&limit=5"
	deezerSearchAlbumTemplate  = "%s/search/album?q=%s&limit=5"
)

// deezerBaseUrl is a var so tests can point the client at a local server.
var deezerBaseUrl = "https://api.deezer.com"

type (
	artistItem struct {
		Id         int64  `json:"id"`
		Name       string `json:"name"`
		Link       string `json:"link"`
		AlbumCount int    `json:"nb_album"`
		FanCount   int    `json:"nb_fan"`
		Picture    string `json:"picture_medium"`
	}

	albumItem struct {
		Id          int64  `json:"id"`
		Title       string `json:"title"`
		Link        string `json:"link"`
		ReleaseDate string `json:"release_date"`
		TrackCount  int    `json:"nb_tracks"`
		Cover       string `json:"cover_medium"`
		Artist      struct {
			Name string `json:"name"`
		} `json:"artist"`
	}

	artistSearchResult struct {
		Data []artistItem `json:"data"`
	}

	albumSearchResult struct {
		Data []albumItem `json:"data"`
	}

	// deezerClient queries the public Deezer API, which requires no
	// credentials for catalogue searches.
	// See https://developers.deezer.com/api for information on the
	// Deezer API.
	deezerClient struct{}
)

func New() *deezerClient {
	return &deezerClient{}
}

func (client *deezerClient) Provider() media.ProviderType { return media.DEEZER }

// GetArtistMetadata searches Deezer for the artist by name, returning an
// empty record (and a nil error) when no sufficiently-close match exists.
func (client *deezerClient) GetArtistMetadata(artist *media.Artist) (media.ArtistMetadata, error) {
	path := fmt.Sprintf(deezerSearchArtistTemplate, deezerBaseUrl, url.QueryEscape(artist.Name))
	var searchResult artistSearchResult
	if err := httpGetJsonResponse(path, &searchResult); err != nil {
		return nil, err
	}

	match := pickBestArtist(searchResult.Data, artist.Name)
	if match == nil {
		return &media.DeezerArtistMetadata{}, nil
	}

	return &media.DeezerArtistMetadata{
		DeezerID:   match.Id,
		Link:       match.Link,
		AlbumCount: match.AlbumCount,
		FanCount:   match.FanCount,
		Image:      match.Picture,
	}, nil
}

func (client *deezerClient) GetAlbumMetadata(album *media.Album, artistNameHint string) (media.AlbumMetadata, error) {
	query := fmt.Sprintf("%s %s", artistNameHint, album.Name)
	path := fmt.Sprintf(deezerSearchAlbumTemplate, deezerBaseUrl, url.QueryEscape(query))
	var searchResult albumSearchResult
	if err := httpGetJsonResponse(path, &searchResult); err != nil {
		return nil, err
	}

	match := pickBestAlbum(searchResult.Data, album.Name)
	if match == nil {
		return &media.DeezerAlbumMetadata{}, nil
	}

	return &media.DeezerAlbumMetadata{
		DeezerID:    match.Id,
		Link:        match.Link,
		ReleaseDate: match.ReleaseDate,
		TrackCount:  match.TrackCount,
		Image:       match.Cover,
	}, nil
}

func pickBestArtist(items []artistItem, name string) *artistItem {
	if len(items) == 0 {
		return nil
	}

	metric := &metrics.JaroWinkler{CaseSensitive: false}
	sort.SliceStable(items, func(i, j int) bool {
		return strutil.Similarity(items[i].Name, name, metric) > strutil.Similarity(items[j].Name, name, metric)
	})

	if strutil.Similarity(items[0].Name, name, metric) < 0.7 {
		return nil
	}

	return &items[0]
}

func pickBestAlbum(items []albumItem, name string) *albumItem {
	if len(items) == 0 {
		return nil
	}

	metric := &metrics.JaroWinkler{CaseSensitive: false}
	sort.SliceStable(items, func(i, j int) bool {
		return strutil.Similarity(items[i].Title, name, metric) > strutil.Similarity(items[j].Title, name, metric)
	})

	if strutil.Similarity(items[0].Title, name, metric) < 0.7 {
		return nil
	}

	return &items[0]
}

func httpGetJsonResponse(urlPath string, targetInterface interface{}) error {
	resp, err := http.Get(urlPath)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to perform GET(%s) to Deezer: %s", urlPath, err.Error())}
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &FailedRequestError{httpCode: resp.StatusCode, message: "non-OK response from Deezer"}
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
	return fmt.Sprintf("unknown error occurred while communicating with Deezer: %s", err.reason)
}
