package realdebrid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdashore3/Ferrite/internal/config"
	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

const (
	hashA = "08ada5a7a6183aae1e09d831df6748d566095a10"
	hashB = "dd8255ecdc7ca55fb0bbf81323d87062db1f6d1c"
)

func newTestClient(t *testing.T, handler http.Handler) (*RealDebrid, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	rd := New(config.Provider{
		Name:     "realdebrid",
		Host:     srv.URL,
		AuthHost: srv.URL,
		ClientID: "client-id",
	}, zerolog.Nop())
	return rd, srv
}

func TestCheckAvailability(t *testing.T) {
	rd, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/torrents/instantAvailability/"))
		w.Write([]byte(`{
			"` + hashA + `": {"rd": [
				{"1": {"filename": "movie.mkv", "filesize": 100}},
				{"1": {"filename": "movie.mkv", "filesize": 100}, "2": {"filename": "sub.srt", "filesize": 10}}
			]},
			"` + hashB + `": {"rd": []}
		}`))
	}))

	records, err := rd.CheckAvailability(context.Background(), []types.Magnet{{Hash: hashA}, {Hash: hashB}})
	require.NoError(t, err)

	rec, ok := records[hashA]
	require.True(t, ok)
	// Variants are merged and deduped by file id.
	require.Len(t, rec.Files, 2)
	assert.Equal(t, "1", rec.Files[0].ID)
	assert.Equal(t, "movie.mkv", rec.Files[0].Name)
	assert.Equal(t, "2", rec.Files[1].ID)

	_, ok = records[hashB]
	assert.False(t, ok)
}

func TestCheckAvailabilityArrayWrappedResponse(t *testing.T) {
	rd, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"` + hashA + `": {"rd": [{"1": {"filename": "a.mkv", "filesize": 1}}]}}]`))
	}))

	records, err := rd.CheckAvailability(context.Background(), []types.Magnet{{Hash: hashA}})
	require.NoError(t, err)
	assert.Len(t, records[hashA].Files, 1)
}

func TestCheckAvailabilityAuthRejected(t *testing.T) {
	rd, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := rd.CheckAvailability(context.Background(), []types.Magnet{{Hash: hashA}})
	var authErr *types.AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestSubmitMagnet(t *testing.T) {
	rd, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/torrents/addMagnet", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostForm.Get("magnet"), hashA)
		w.Write([]byte(`{"id": "ABCDEF", "uri": "/torrents/info/ABCDEF"}`))
	}))

	id, err := rd.SubmitMagnet(context.Background(), types.Magnet{Hash: hashA, Link: "magnet:?xt=urn:btih:" + hashA})
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", id)
}

func TestGetTorrentMapsLinksToSelectedFiles(t *testing.T) {
	rd, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/torrents/info/ABCDEF", r.URL.Path)
		w.Write([]byte(`{
			"id": "ABCDEF",
			"hash": "` + strings.ToUpper(hashA) + `",
			"filename": "Movie",
			"status": "downloaded",
			"progress": 100,
			"files": [
				{"id": 1, "path": "/movie.mkv", "bytes": 100, "selected": 1},
				{"id": 2, "path": "/extras.mkv", "bytes": 50, "selected": 0},
				{"id": 3, "path": "/sub.srt", "bytes": 10, "selected": 1}
			],
			"links": ["https://rd/link1", "https://rd/link3"]
		}`))
	}))

	torrent, err := rd.GetTorrent(context.Background(), "ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, hashA, torrent.Hash)
	assert.Equal(t, "downloaded", torrent.Status)
	require.Len(t, torrent.Files, 3)
	// Links are distributed in selection order, skipping unselected files.
	assert.Equal(t, "https://rd/link1", torrent.Files[0].Link)
	assert.Empty(t, torrent.Files[1].Link)
	assert.Equal(t, "https://rd/link3", torrent.Files[2].Link)
}

func TestUnrestrict(t *testing.T) {
	rd, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/unrestrict/link", r.URL.Path)
		w.Write([]byte(`{"download": "https://cdn.real-debrid.com/d/file.mkv"}`))
	}))

	url, err := rd.Unrestrict(context.Background(), "https://rd/link1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.real-debrid.com/d/file.mkv", url)
}

func TestDeleteTorrent(t *testing.T) {
	var method, path string
	rd, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, rd.DeleteTorrent(context.Background(), "ABCDEF"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/torrents/delete/ABCDEF", path)
}

func TestBeginAuth(t *testing.T) {
	rd, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/device/code", r.URL.Path)
		assert.Equal(t, "client-id", r.URL.Query().Get("client_id"))
		w.Write([]byte(`{
			"device_code": "DEV123",
			"user_code": "USER123",
			"interval": 5,
			"expires_in": 600,
			"verification_url": "https://real-debrid.com/device"
		}`))
	}))

	prompt, err := rd.BeginAuth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://real-debrid.com/device", prompt.VerificationURL)
	assert.Equal(t, "USER123", prompt.UserCode)
	assert.Equal(t, "DEV123", prompt.PollCode)
}

func TestBeginAuthMalformedVerificationURL(t *testing.T) {
	rd, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"device_code": "DEV123", "user_code": "USER123", "verification_url": "not a url"}`))
	}))

	prompt, err := rd.BeginAuth(context.Background())
	assert.Nil(t, prompt)

	var authErr *types.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Reason, "malformed verification URL")
}

func TestCompleteAuth(t *testing.T) {
	rd, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/device/credentials":
			assert.Equal(t, "DEV123", r.URL.Query().Get("code"))
			w.Write([]byte(`{"client_id": "bound-id", "client_secret": "bound-secret"}`))
		case "/token":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "bound-id", r.PostForm.Get("client_id"))
			assert.Equal(t, deviceGrantType, r.PostForm.Get("grant_type"))
			w.Write([]byte(`{"access_token": "ACCESS", "refresh_token": "REFRESH", "expires_in": 3600}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	token, err := rd.CompleteAuth(context.Background(), "DEV123")
	require.NoError(t, err)
	assert.Equal(t, "ACCESS", token)
}

func TestCompleteAuthMissingCode(t *testing.T) {
	rd, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	_, err := rd.CompleteAuth(context.Background(), "")
	var authErr *types.AuthError
	assert.ErrorAs(t, err, &authErr)
}
