package lastfm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mjharwood/medley/internal/media"
)

const (
	lastFmBaseUrl = "https://ws.audioscrobbler.com/2.0"

	lastFmArtistInfoTemplate = "%s/?method=artist.getinfo&artist=%s&api_key=%s&format=json&autocorrect=1"
	lastFmAlbumInfoTemplate  = "%s/?method=album.getinfo&artist=%s&album=%s&api_key=%s&format=json&autocorrect=1"

	// Last.fm error code for an unknown artist/album. Reported inside an
	// HTTP 200 response body.
	lastFmErrorNotFound = 6
)

type (
	Config struct {
		ApiKey string
	}

	lastFmImage struct {
		Url  string `json:"#text"`
		Size string `json:"size"`
	}

	artistInfoResponse struct {
		Error   int    `json:"error"`
		Message string `json:"message"`
		Artist  struct {
			Name  string        `json:"name"`
			Url   string        `json:"url"`
			Image []lastFmImage `json:"image"`
			Stats struct {
				Listeners string `json:"listeners"`
				PlayCount string `json:"playcount"`
			} `json:"stats"`
			Bio struct {
				Summary string `json:"summary"`
			} `json:"bio"`
		} `json:"artist"`
	}

	albumInfoResponse struct {
		Error   int    `json:"error"`
		Message string `json:"message"`
		Album   struct {
			Name      string        `json:"name"`
			Url       string        `json:"url"`
			Image     []lastFmImage `json:"image"`
			Listeners string        `json:"listeners"`
			PlayCount string        `json:"playcount"`
			Wiki      struct {
				Summary string `json:"summary"`
			} `json:"wiki"`
		} `json:"album"`
	}

	// lastFmClient queries the Last.fm API for artist and album info on
	// behalf of the metadata enrichment pipeline.
	// See https://www.last.fm/api for information on the Last.fm API.
	lastFmClient struct {
		config Config
	}
)

func New(config Config) *lastFmClient {
	return &lastFmClient{config}
}

func (client *lastFmClient) Provider() media.ProviderType { return media.LASTFM }

// GetArtistMetadata looks the artist up by name. Last.fm reports an
// unknown artist with an in-band error code rather than an HTTP failure;
// that case yields an empty record and a nil error.
func (client *lastFmClient) GetArtistMetadata(artist *media.Artist) (media.ArtistMetadata, error) {
	path := fmt.Sprintf(lastFmArtistInfoTemplate, lastFmBaseUrl, url.QueryEscape(artist.Name), client.config.ApiKey)
	var info artistInfoResponse
	if err := httpGetJsonResponse(path, &info); err != nil {
		return nil, err
	}

	if info.Error == lastFmErrorNotFound {
		return &media.LastFmArtistMetadata{}, nil
	} else if info.Error != 0 {
		return nil, &FailedRequestError{lastFmCode: info.Error, message: info.Message}
	}

	return &media.LastFmArtistMetadata{
		URL:       info.Artist.Url,
		Listeners: parseCount(info.Artist.Stats.Listeners),
		PlayCount: parseCount(info.Artist.Stats.PlayCount),
		Summary:   info.Artist.Bio.Summary,
		Image:     largestImage(info.Artist.Image),
	}, nil
}

func (client *lastFmClient) GetAlbumMetadata(album *media.Album, artistNameHint string) (media.AlbumMetadata, error) {
	path := fmt.Sprintf(lastFmAlbumInfoTemplate, lastFmBaseUrl, url.QueryEscape(artistNameHint), url.QueryEscape(album.Name), client.config.ApiKey)
	var info albumInfoResponse
	if err := httpGetJsonResponse(path, &info); err != nil {
		return nil, err
	}

	if info.Error == lastFmErrorNotFound {
		return &media.LastFmAlbumMetadata{}, nil
	} else if info.Error != 0 {
		return nil, &FailedRequestError{lastFmCode: info.Error, message: info.Message}
	}

	return &media.LastFmAlbumMetadata{
		URL:       info.Album.Url,
		Listeners: parseCount(info.Album.Listeners),
		PlayCount: parseCount(info.Album.PlayCount),
		Summary:   info.Album.Wiki.Summary,
		Image:     largestImage(info.Album.Image),
	}, nil
}

// largestImage prefers the extralarge rendition, falling back to the last
// entry (Last.fm orders images small to large).
func largestImage(images []lastFmImage) string {
	for _, image := range images {
		if image.Size == "extralarge" && image.Url != "" {
			return image.Url
		}
	}

	for i := len(images) - 1; i >= 0; i-- {
		if images[i].Url != "" {
			return images[i].Url
		}
	}

	return ""
}

// parseCount handles Last.fm returning numeric stats as strings.
func parseCount(raw string) int {
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}

	return count
}

func httpGetJsonResponse(urlPath string, targetInterface interface{}) error {
	resp, err := http.Get(urlPath)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to perform GET(%s) to Last.fm: %s", urlPath, err.Error())}
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &FailedRequestError{httpCode: resp.StatusCode, message: "non-OK response from Last.fm"}
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
		httpCode   int
		lastFmCode int
		message    string
	}
	UnknownRequestError struct{ reason string }
)

func (err *FailedRequestError) Error() string {
	return fmt.Sprintf("Request failure (HTTP %d, Last.fm %d): %s", err.httpCode, err.lastFmCode, err.message)
}
func (err *UnknownRequestError) Error() string {
	return fmt.Sprintf("unknown error occurred while communicating with Last.fm: %s", err.reason)
}
