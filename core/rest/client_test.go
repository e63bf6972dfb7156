package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

var rickInfo = TrackInfo{
	Identifier: "dQw4w9WgXcQ",
	IsSeekable: true,
	Author:     "RickAstleyVEVO",
	Length:     212000,
	Title:      "Rick Astley - Never Gonna Give You Up",
	URI:        "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
}

type fakeNode struct {
	*httptest.Server
	decodeCalls atomic.Int32
	lastBatch   atomic.Value
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	f := &fakeNode{}
	mux := http.NewServeMux()
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "pw" {
				w.Header().Set("X-Reason", "bad password")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("GET /loadtracks", auth(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("identifier") != "ytsearch:rick" {
			_ = json.NewEncoder(w).Encode(LoadResult{LoadType: LoadTypeNoMatches, Tracks: []Track{}})
			return
		}
		_ = json.NewEncoder(w).Encode(LoadResult{
			LoadType: LoadTypeSearchResult,
			Tracks:   []Track{{Track: "enc-rick", Info: rickInfo}},
		})
	}))
	mux.HandleFunc("GET /decodetrack", auth(func(w http.ResponseWriter, r *http.Request) {
		f.decodeCalls.Add(1)
		info := rickInfo
		info.Identifier = r.URL.Query().Get("track")
		_ = json.NewEncoder(w).Encode(info)
	}))
	mux.HandleFunc("POST /decodetracks", auth(func(w http.ResponseWriter, r *http.Request) {
		f.decodeCalls.Add(1)
		var in []string
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.lastBatch.Store(in)
		out := make([]Track, 0, len(in))
		for _, tr := range in {
			info := rickInfo
			info.Identifier = tr
			out = append(out, Track{Track: tr, Info: info})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newTestClient(t *testing.T, srv *fakeNode, password string) *Client {
	t.Helper()
	c, err := New(Options{URL: srv.URL, Password: password})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Options{})
	require.ErrorIs(t, err, ErrURLRequired)
}

func TestClient_Load(t *testing.T) {
	srv := newFakeNode(t)
	c := newTestClient(t, srv, "pw")

	res, err := c.Load(t.Context(), "ytsearch:rick")
	require.NoError(t, err)
	require.Equal(t, LoadTypeSearchResult, res.LoadType)
	require.Len(t, res.Tracks, 1)
	require.Equal(t, rickInfo, res.Tracks[0].Info)

	res, err = c.Load(t.Context(), "nothing")
	require.NoError(t, err)
	require.Equal(t, LoadTypeNoMatches, res.LoadType)
	require.Empty(t, res.Tracks)
}

func TestClient_HTTPError(t *testing.T) {
	srv := newFakeNode(t)
	c := newTestClient(t, srv, "wrong")

	_, err := c.Load(t.Context(), "ytsearch:rick")
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	require.Equal(t, http.StatusUnauthorized, herr.StatusCode)
	require.Equal(t, http.MethodGet, herr.Method)
	require.Contains(t, herr.Path, "/loadtracks")
	require.Equal(t, "bad password", herr.Header.Get("X-Reason"))
	require.Equal(t, "Unauthorized", herr.StatusMessage())
}

func TestClient_DecodeTrackCached(t *testing.T) {
	srv := newFakeNode(t)
	c := newTestClient(t, srv, "pw")

	info, err := c.DecodeTrack(t.Context(), "enc-1")
	require.NoError(t, err)
	require.Equal(t, "enc-1", info.Identifier)

	_, err = c.DecodeTrack(t.Context(), "enc-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, srv.decodeCalls.Load())
}

func TestClient_LoadFillsCache(t *testing.T) {
	srv := newFakeNode(t)
	c := newTestClient(t, srv, "pw")

	_, err := c.Load(t.Context(), "ytsearch:rick")
	require.NoError(t, err)

	info, err := c.DecodeTrack(t.Context(), "enc-rick")
	require.NoError(t, err)
	require.Equal(t, rickInfo, *info)
	require.Zero(t, srv.decodeCalls.Load())
}

func TestClient_DecodeTracks(t *testing.T) {
	srv := newFakeNode(t)
	c := newTestClient(t, srv, "pw")

	_, err := c.DecodeTrack(t.Context(), "b")
	require.NoError(t, err)

	tracks, err := c.DecodeTracks(t.Context(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	for i, want := range []string{"a", "b", "c"} {
		require.Equal(t, want, tracks[i].Track)
		require.Equal(t, want, tracks[i].Info.Identifier)
	}
	require.Equal(t, []string{"a", "c"}, srv.lastBatch.Load())
	require.EqualValues(t, 2, srv.decodeCalls.Load())
}

func TestClient_CacheDisabled(t *testing.T) {
	srv := newFakeNode(t)
	c, err := New(Options{URL: srv.URL, Password: "pw", CacheSize: -1})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.DecodeTrack(t.Context(), "enc-1")
		require.NoError(t, err)
	}
	require.EqualValues(t, 2, srv.decodeCalls.Load())
}
