// Package rest is the HTTP client for a node's track endpoints: loading
// tracks by identifier and decoding encoded tracks back into metadata.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 1024

type Options struct {
	Log *slog.Logger
	// URL is the node's HTTP base, e.g. http://localhost:2333.
	URL        string
	Password   string
	HTTPClient *http.Client
	// CacheSize bounds the decoded track cache. Negative disables it.
	CacheSize int
}

type Client struct {
	log      *slog.Logger
	base     *url.URL
	password string
	hc       *http.Client
	cache    *lru.Cache[string, TrackInfo]
}

func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, ErrURLRequired
	}
	base, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("rest: parse url: %w", err)
	}

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	c := &Client{
		log:      log.With(slog.String("rest", base.Host)),
		base:     base,
		password: opts.Password,
		hc:       hc,
	}

	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		if c.cache, err = lru.New[string, TrackInfo](size); err != nil {
			return nil, fmt.Errorf("rest: create cache: %w", err)
		}
	}
	return c, nil
}

// Load resolves identifier (a URL or a search like "ytsearch:query").
func (c *Client) Load(ctx context.Context, identifier string) (*LoadResult, error) {
	var res LoadResult
	q := url.Values{"identifier": {identifier}}
	if err := c.do(ctx, http.MethodGet, "/loadtracks", q, nil, &res); err != nil {
		return nil, err
	}
	for _, t := range res.Tracks {
		c.remember(t)
	}
	return &res, nil
}

// DecodeTrack returns the metadata of one encoded track.
func (c *Client) DecodeTrack(ctx context.Context, track string) (*TrackInfo, error) {
	if info, ok := c.cached(track); ok {
		return &info, nil
	}

	var info TrackInfo
	q := url.Values{"track": {track}}
	if err := c.do(ctx, http.MethodGet, "/decodetrack", q, nil, &info); err != nil {
		return nil, err
	}
	c.remember(Track{Track: track, Info: info})
	return &info, nil
}

// DecodeTracks decodes a batch. Only tracks missing from the cache are sent
// to the node; the result keeps the order of tracks.
func (c *Client) DecodeTracks(ctx context.Context, tracks []string) ([]Track, error) {
	out := make([]Track, len(tracks))
	var missing []string
	for i, t := range tracks {
		if info, ok := c.cached(t); ok {
			out[i] = Track{Track: t, Info: info}
			continue
		}
		missing = append(missing, t)
	}
	if len(missing) == 0 {
		return out, nil
	}

	body, err := json.Marshal(missing)
	if err != nil {
		return nil, fmt.Errorf("rest: encode tracks: %w", err)
	}
	var decoded []Track
	if err := c.do(ctx, http.MethodPost, "/decodetracks", nil, body, &decoded); err != nil {
		return nil, err
	}

	byTrack := make(map[string]TrackInfo, len(decoded))
	for _, t := range decoded {
		byTrack[t.Track] = t.Info
		c.remember(t)
	}
	for i, t := range tracks {
		if out[i].Track != "" {
			continue
		}
		info, ok := byTrack[t]
		if !ok {
			return nil, fmt.Errorf("rest: track %q missing from decode response", t)
		}
		out[i] = Track{Track: t, Info: info}
	}
	return out, nil
}

func (c *Client) cached(track string) (TrackInfo, bool) {
	if c.cache == nil {
		return TrackInfo{}, false
	}
	return c.cache.Get(track)
}

func (c *Client) remember(t Track) {
	if c.cache == nil || t.Track == "" {
		return
	}
	c.cache.Add(t.Track, t.Info)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = query.Encode()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return fmt.Errorf("rest: create request: %w", err)
	}
	req.Header.Set("Authorization", c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		herr := &HTTPError{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Path:       u.String(),
			Method:     method,
		}
		c.log.Debug("request failed", slog.Any("error", herr))
		return herr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("rest: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("rest: decode %s: %w", path, err)
	}
	return nil
}
