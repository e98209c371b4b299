package deezer

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mjharwood/medley/internal/media"
	"github.com/stretchr/testify/assert"
)

func withTestServer(t *testing.T, handler http.HandlerFunc) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	previous := deezerBaseUrl
	deezerBaseUrl = server.URL
	t.Cleanup(func() { deezerBaseUrl = previous })
}

func Test_GetArtistMetadata_ReturnsBestMatch(t *testing.T) {
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/artist", r.URL.Path)
		assert.Equal(t, "Daft Punk", r.URL.Query().Get("q"))

		w.Write([]byte(`{"data": [
			{"id": 10, "name": "Daft Punk Tribute Band", "link": "https://deezer/10", "nb_album": 1, "nb_fan": 4, "picture_medium": "https://img/10.jpg"},
			{"id": 27, "name": "Daft Punk", "link": "https://deezer/27", "nb_album": 8, "nb_fan": 5000000, "picture_medium": "https://img/27.jpg"}
		]}`))
	})

	record, err := New().GetArtistMetadata(&media.Artist{Name: "Daft Punk"})
	assert.NoError(t, err)

	deezerRecord, ok := record.(*media.DeezerArtistMetadata)
	assert.True(t, ok)
	assert.Equal(t, int64(27), deezerRecord.DeezerID)
	assert.Equal(t, "https://deezer/27", deezerRecord.Link)
	assert.Equal(t, 8, deezerRecord.AlbumCount)
	assert.Equal(t, 5000000, deezerRecord.FanCount)
	assert.Equal(t, "https://img/27.jpg", record.ImageURL())
}

func Test_GetArtistMetadata_NoCloseMatch(t *testing.T) {
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"id": 1, "name": "Completely Unrelated", "link": "https://deezer/1"}]}`))
	})

	record, err := New().GetArtistMetadata(&media.Artist{Name: "Daft Punk"})
	assert.NoError(t, err)
	assert.Equal(t, &media.DeezerArtistMetadata{}, record)
	assert.Empty(t, record.ImageURL())
}

func Test_GetAlbumMetadata_QueriesWithArtistHint(t *testing.T) {
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/album", r.URL.Path)
		assert.Equal(t, "Daft Punk Discovery", r.URL.Query().Get("q"))

		w.Write([]byte(`{"data": [
			{"id": 302, "title": "Discovery", "link": "https://deezer/302", "release_date": "2001-03-07", "nb_tracks": 14, "cover_medium": "https://img/302.jpg", "artist": {"name": "Daft Punk"}}
		]}`))
	})

	record, err := New().GetAlbumMetadata(&media.Album{Name: "Discovery"}, "Daft Punk")
	assert.NoError(t, err)

	deezerRecord, ok := record.(*media.DeezerAlbumMetadata)
	assert.True(t, ok)
	assert.Equal(t, int64(302), deezerRecord.DeezerID)
	assert.Equal(t, "2001-03-07", deezerRecord.ReleaseDate)
	assert.Equal(t, 14, deezerRecord.TrackCount)
	assert.Equal(t, "https://img/302.jpg", record.ImageURL())
}

func Test_GetArtistMetadata_NonOKResponse(t *testing.T) {
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	record, err := New().GetArtistMetadata(&media.Artist{Name: "Daft Punk"})
	assert.Nil(t, record)

	var failure *FailedRequestError
	assert.ErrorAs(t, err, &failure)
	assert.Equal(t, http.StatusInternalServerError, failure.httpCode)
}

func Test_GetArtistMetadata_MalformedResponse(t *testing.T) {
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	record, err := New().GetArtistMetadata(&media.Artist{Name: "Daft Punk"})
	assert.Nil(t, record)

	var unknown *UnknownRequestError
	assert.ErrorAs(t, err, &unknown)
}
