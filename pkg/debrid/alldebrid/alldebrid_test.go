package alldebrid

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

const hashA = "08ada5a7a6183aae1e09d831df6748d566095a10"

func newTestClient(t *testing.T, handler http.Handler) *AllDebrid {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.Provider{Name: "alldebrid", Host: srv.URL}, zerolog.Nop())
}

func TestCheckAvailability(t *testing.T) {
	ad := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/magnet/instant", r.URL.Path)
		assert.Equal(t, agent, r.URL.Query().Get("agent"))
		assert.Equal(t, hashA, r.URL.Query()["magnets[]"][0])
		w.Write([]byte(`{
			"status": "success",
			"data": {"magnets": [{
				"hash": "` + strings.ToUpper(hashA) + `",
				"instant": true,
				"files": [{"n": "movie.mkv", "s": 100}, {"n": "sub.srt", "s": 10}]
			}]}
		}`))
	}))

	records, err := ad.CheckAvailability(context.Background(), []types.Magnet{{Hash: hashA}})
	require.NoError(t, err)

	// Keys are normalized to lowercase even when the API shouts.
	rec, ok := records[hashA]
	require.True(t, ok)
	assert.Len(t, rec.Files, 2)
}

func TestCheckAvailabilityNotInstant(t *testing.T) {
	ad := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "success", "data": {"magnets": [{"hash": "` + hashA + `", "instant": false}]}}`))
	}))

	records, err := ad.CheckAvailability(context.Background(), []types.Magnet{{Hash: hashA}})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEnvelopeAuthError(t *testing.T) {
	ad := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// AllDebrid reports auth failures with HTTP 200.
		w.Write([]byte(`{"status": "error", "error": {"code": "AUTH_BAD_APIKEY", "message": "Invalid apikey"}}`))
	}))

	_, err := ad.CheckAvailability(context.Background(), []types.Magnet{{Hash: hashA}})
	var authErr *types.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestSubmitMagnet(t *testing.T) {
	ad := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/magnet/upload", r.URL.Path)
		w.Write([]byte(`{"status": "success", "data": {"magnets": [{"id": 123456, "hash": "` + hashA + `", "ready": true}]}}`))
	}))

	id, err := ad.SubmitMagnet(context.Background(), types.Magnet{Hash: hashA, Link: "magnet:?xt=urn:btih:" + hashA})
	require.NoError(t, err)
	assert.Equal(t, "123456", id)
}

func TestGetTorrentFlattensFileTree(t *testing.T) {
	ad := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/magnet/status", r.URL.Path)
		assert.Equal(t, "123456", r.URL.Query().Get("id"))
		w.Write([]byte(`{
			"status": "success",
			"data": {"magnets": {
				"id": 123456,
				"filename": "Season 1",
				"hash": "` + hashA + `",
				"status": "Ready",
				"statusCode": 4,
				"size": 300,
				"downloaded": 300,
				"files": [
					{"n": "Season 1", "e": [
						{"n": "e01.mkv", "s": 150, "l": "https://ad/e01"},
						{"n": "e02.mkv", "s": 150, "l": "https://ad/e02"}
					]}
				]
			}}
		}`))
	}))

	torrent, err := ad.GetTorrent(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, "downloaded", torrent.Status)
	require.Len(t, torrent.Files, 2)
	assert.Equal(t, "0", torrent.Files[0].ID)
	assert.Equal(t, "Season 1/e01.mkv", torrent.Files[0].Name)
	assert.Equal(t, []string{"https://ad/e01", "https://ad/e02"}, torrent.Links)
}

func TestGetTorrentDownloading(t *testing.T) {
	ad := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "success", "data": {"magnets": {"id": 123456, "statusCode": 1, "size": 200, "downloaded": 50}}}`))
	}))

	torrent, err := ad.GetTorrent(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, "downloading", torrent.Status)
	assert.InDelta(t, 25.0, torrent.Progress, 0.01)
	assert.Empty(t, torrent.Links)
}

func TestUnrestrict(t *testing.T) {
	ad := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/link/unlock", r.URL.Path)
		assert.Equal(t, "https://ad/e01", r.URL.Query().Get("link"))
		w.Write([]byte(`{"status": "success", "data": {"link": "https://cdn.alldebrid.com/e01.mkv"}}`))
	}))

	url, err := ad.Unrestrict(context.Background(), "https://ad/e01")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.alldebrid.com/e01.mkv", url)
}

func TestBeginAuth(t *testing.T) {
	ad := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pin/get", r.URL.Path)
		w.Write([]byte(`{
			"status": "success",
			"data": {
				"pin": "ABCD",
				"check": "check-token",
				"user_url": "https://alldebrid.com/pin/?pin=ABCD",
				"expires_in": 600
			}
		}`))
	}))

	prompt, err := ad.BeginAuth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABCD", prompt.UserCode)
	assert.Equal(t, "check-token", prompt.PollCode)
	assert.Equal(t, "https://alldebrid.com/pin/?pin=ABCD", prompt.VerificationURL)
}

func TestBeginAuthMalformedUserURL(t *testing.T) {
	ad := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "success", "data": {"pin": "ABCD", "check": "check-token", "user_url": "garbage"}}`))
	}))

	_, err := ad.BeginAuth(context.Background())
	var authErr *types.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Reason, "malformed verification URL")
}

func TestCompleteAuth(t *testing.T) {
	ad := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pin/get":
			w.Write([]byte(`{"status": "success", "data": {"pin": "ABCD", "check": "check-token", "user_url": "https://alldebrid.com/pin/"}}`))
		case "/pin/check":
			assert.Equal(t, "ABCD", r.URL.Query().Get("pin"))
			assert.Equal(t, "check-token", r.URL.Query().Get("check"))
			w.Write([]byte(`{"status": "success", "data": {"activated": true, "apikey": "APIKEY123"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	prompt, err := ad.BeginAuth(context.Background())
	require.NoError(t, err)

	token, err := ad.CompleteAuth(context.Background(), prompt.PollCode)
	require.NoError(t, err)
	assert.Equal(t, "APIKEY123", token)
}

func TestCompleteAuthPinExpired(t *testing.T) {
	ad := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pin/get":
			w.Write([]byte(`{"status": "success", "data": {"pin": "ABCD", "check": "check-token", "user_url": "https://alldebrid.com/pin/"}}`))
		case "/pin/check":
			w.Write([]byte(`{"status": "error", "error": {"code": "PIN_EXPIRED", "message": "The pin is expired"}}`))
		}
	}))

	_, err := ad.BeginAuth(context.Background())
	require.NoError(t, err)

	_, err = ad.CompleteAuth(context.Background(), "check-token")
	var authErr *types.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Reason, "expired")
}

func TestCompleteAuthWithoutPin(t *testing.T) {
	ad := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	_, err := ad.CompleteAuth(context.Background(), "check-token")
	var authErr *types.AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestRequiresManualRevocation(t *testing.T) {
	ad := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	assert.True(t, ad.RequiresManualRevocation())
}
