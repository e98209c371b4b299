package spotify

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/mjharwood/medley/internal/media"
)

const (
	spotifyAccountsUrl = "https://accounts.spotify.com/api/token"
	spotifyBaseUrl     = "https://api.spotify.com/v1"

	spotifySearchArtistTemplate = "%s/search?q=%s&type=artist&limit=5"
	spotifySearchAlbumTemplate  = "%s/search?q=%s&type=album&limit=5"
)

type (
	Config struct {
		ClientID     string
		ClientSecret string
	}

	tokenResponse struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}

	artistItem struct {
		Id         string   `json:"id"`
		Name       string   `json:"name"`
		Popularity int      `json:"popularity"`
		Genres     []string `json:"genres"`
		Followers  struct {
			Total int `json:"total"`
		} `json:"followers"`
		Images []imageItem `json:"images"`
	}

	albumItem struct {
		Id          string      `json:"id"`
		Name        string      `json:"name"`
		ReleaseDate string      `json:"release_date"`
		TotalTracks int         `json:"total_tracks"`
		Label       string      `json:"label"`
		Images      []imageItem `json:"images"`
		Artists     []struct {
			Name string `json:"name"`
		} `json:"artists"`
	}

	imageItem struct {
		Url string `json:"url"`
	}

	artistSearchResult struct {
		Artists struct {
			Items []artistItem `json:"items"`
		} `json:"artists"`
	}

	albumSearchResult struct {
		Albums struct {
			Items []albumItem `json:"items"`
		} `json:"albums"`
	}

	// spotifyClient queries the Spotify Web API on behalf of the metadata
	// enrichment pipeline. Authentication uses the client-credentials
	// flow; the bearer token is cached and refreshed on expiry.
	// See https://developer.spotify.com/documentation/web-api for
	// information on the Spotify Web API.
	spotifyClient struct {
		config Config

		tokenMutex  sync.Mutex
		accessToken string
		tokenExpiry time.Time
	}
)

func New(config Config) *spotifyClient {
	return &spotifyClient{config: config}
}

func (client *spotifyClient) Provider() media.ProviderType { return media.SPOTIFY }

// GetArtistMetadata searches Spotify for the artist by name, returning an
// empty record (and a nil error) when no sufficiently-close match exists.
func (client *spotifyClient) GetArtistMetadata(artist *media.Artist) (media.ArtistMetadata, error) {
	path := fmt.Sprintf(spotifySearchArtistTemplate, spotifyBaseUrl, url.QueryEscape(artist.Name))
	var searchResult artistSearchResult
	if err := client.getJson(path, &searchResult); err != nil {
		return nil, err
	}

	match := pickBestArtist(searchResult.Artists.Items, artist.Name)
	if match == nil {
		return &media.SpotifyArtistMetadata{}, nil
	}

	return &media.SpotifyArtistMetadata{
		SpotifyID:  match.Id,
		Popularity: match.Popularity,
		Followers:  match.Followers.Total,
		Genres:     strings.Join(match.Genres, ", "),
		Image:      firstImage(match.Images),
	}, nil
}

// GetAlbumMetadata searches Spotify for the album, scoping the query with
// the owning artists name to disambiguate common album titles.
func (client *spotifyClient) GetAlbumMetadata(album *media.Album, artistNameHint string) (media.AlbumMetadata, error) {
	query := fmt.Sprintf("album:%s artist:%s", album.Name, artistNameHint)
	path := fmt.Sprintf(spotifySearchAlbumTemplate, spotifyBaseUrl, url.QueryEscape(query))
	var searchResult albumSearchResult
	if err := client.getJson(path, &searchResult); err != nil {
		return nil, err
	}

	match := pickBestAlbum(searchResult.Albums.Items, album.Name)
	if match == nil {
		return &media.SpotifyAlbumMetadata{}, nil
	}

	return &media.SpotifyAlbumMetadata{
		SpotifyID:   match.Id,
		ReleaseDate: match.ReleaseDate,
		TotalTracks: match.TotalTracks,
		Label:       match.Label,
		Image:       firstImage(match.Images),
	}, nil
}

// bearerToken returns a valid access token, requesting a fresh one from
// the Spotify accounts service when the cached token is absent or expired.
func (client *spotifyClient) bearerToken() (string, error) {
	client.tokenMutex.Lock()
	defer client.tokenMutex.Unlock()

	if client.accessToken != "" && time.Now().Before(client.tokenExpiry) {
		return client.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequest(http.MethodPost, spotifyAccountsUrl, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &UnknownRequestError{fmt.Sprintf("failed to construct token request: %s", err.Error())}
	}

	req.SetBasicAuth(client.config.ClientID, client.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", &UnknownRequestError{fmt.Sprintf("failed to perform token request: %s", err.Error())}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UnknownRequestError{fmt.Sprintf("failed to read token response body: %s", err.Error())}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &FailedRequestError{httpCode: resp.StatusCode, message: "token request rejected"}
	}

	var token tokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return "", &UnknownRequestError{fmt.Sprintf("token response could not be unmarshalled: %s", err.Error())}
	}

	// Renew a minute early to avoid racing the expiry.
	client.accessToken = token.AccessToken
	client.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn-60) * time.Second)
	return client.accessToken, nil
}

func (client *spotifyClient) getJson(urlPath string, targetInterface interface{}) error {
	token, err := client.bearerToken()
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodGet, urlPath, nil)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to construct GET(%s): %s", urlPath, err.Error())}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to perform GET(%s) to Spotify: %s", urlPath, err.Error())}
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var spotifyError spotifyError
		if err := json.Unmarshal(respBody, &spotifyError); err != nil {
			return &FailedRequestError{httpCode: resp.StatusCode, message: "non-OK response could not be unmarshalled"}
		}

		return &FailedRequestError{httpCode: resp.StatusCode, message: spotifyError.Error.Message}
	}

	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to read response body: %s", err.Error())}
	}

	if err := json.Unmarshal(respBody, targetInterface); err != nil {
		return &UnknownRequestError{fmt.Sprintf("response JSON could not be unmarshalled: %s", err.Error())}
	}

	return nil
}

// pickBestArtist orders the search results by name similarity to the
// query and returns the closest, or nil when nothing comes close.
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
		return strutil.Similarity(items[i].Name, name, metric) > strutil.Similarity(items[j].Name, name, metric)
	})

	if strutil.Similarity(items[0].Name, name, metric) < 0.7 {
		return nil
	}

	return &items[0]
}

func firstImage(images []imageItem) string {
	if len(images) == 0 {
		return ""
	}

	return images[0].Url
}

type (
	spotifyError struct {
		Error struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
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
	return fmt.Sprintf("unknown error occurred while communicating with Spotify: %s", err.reason)
}
