package rest

import "github.com/codewandler/lava-go/core/protocol"

type LoadType string

const (
	LoadTypeTrackLoaded    LoadType = "TRACK_LOADED"
	LoadTypePlaylistLoaded LoadType = "PLAYLIST_LOADED"
	LoadTypeSearchResult   LoadType = "SEARCH_RESULT"
	LoadTypeNoMatches      LoadType = "NO_MATCHES"
	LoadTypeLoadFailed     LoadType = "LOAD_FAILED"
)

// LoadResult is the answer to /loadtracks. PlaylistInfo is only filled for
// LoadTypePlaylistLoaded, Exception only for LoadTypeLoadFailed.
type LoadResult struct {
	LoadType     LoadType            `json:"loadType"`
	PlaylistInfo PlaylistInfo        `json:"playlistInfo"`
	Tracks       []Track             `json:"tracks"`
	Exception    *protocol.Exception `json:"exception,omitempty"`
}

type PlaylistInfo struct {
	Name          string `json:"name,omitempty"`
	SelectedTrack int    `json:"selectedTrack,omitempty"`
}

// Track pairs the encoded track, as passed to Play, with its metadata.
type Track struct {
	Track string    `json:"track"`
	Info  TrackInfo `json:"info"`
}

type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
}
