// Package lastfm provides the Last.fm lookups that seed autoplay.
package lastfm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://ws.audioscrobbler.com/2.0/"
	maxLimit       = 100
)

// Client is a Last.fm API client. Tag lookups are cached for the life of the client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	cacheMu        sync.RWMutex
	trackTagCache  map[string][]Tag
	tagTracksCache map[string][]TopTrack
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey string
}

// SimilarTrack is a track Last.fm considers similar to a seed.
type SimilarTrack struct {
	Name   string
	Artist string
}

// Tag is a Last.fm tag with its weight on a track.
type Tag struct {
	Name  string
	Count int
}

// TopTrack is a popular track for a tag.
type TopTrack struct {
	Name   string
	Artist string
}

type artistRef struct {
	Name string `json:"name"`
}

type trackRef struct {
	Name   string    `json:"name"`
	Artist artistRef `json:"artist"`
}

type similarResponse struct {
	SimilarTracks struct {
		Track []trackRef `json:"track"`
	} `json:"similartracks"`
}

type topTagsResponse struct {
	TopTags struct {
		Tag []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"tag"`
	} `json:"toptags"`
}

type topTracksResponse struct {
	Tracks struct {
		Track []trackRef `json:"track"`
	} `json:"tracks"`
}

// APIError is an error document returned by Last.fm.
type APIError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return "last.fm API error " + strconv.Itoa(e.Code) + ": " + e.Message
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	return &Client{
		apiKey:         cfg.APIKey,
		baseURL:        defaultBaseURL,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		trackTagCache:  make(map[string][]Tag),
		tagTracksCache: make(map[string][]TopTrack),
	}, nil
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return min(limit, maxLimit)
}

// call issues one API method and decodes the answer into out.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	params.Set("method", method)
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
		return errors.WithStack(&apiErr)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Newf("last.fm %s failed with status %d", method, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "failed to parse %s response", method)
	}
	return nil
}

// GetSimilarTracks returns tracks similar to trackName by artistName.
// Reference: https://www.last.fm/api/show/track.getSimilar
func (c *Client) GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]SimilarTrack, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}

	params := url.Values{}
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("limit", strconv.Itoa(clampLimit(limit, 20)))
	params.Set("autocorrect", "1")

	var response similarResponse
	if err := c.call(ctx, "track.getSimilar", params, &response); err != nil {
		return nil, err
	}

	similar := make([]SimilarTrack, 0, len(response.SimilarTracks.Track))
	for _, t := range response.SimilarTracks.Track {
		similar = append(similar, SimilarTrack{Name: t.Name, Artist: t.Artist.Name})
	}
	return similar, nil
}

// GetTopTags returns up to limit tags of a track, strongest first.
// Reference: https://www.last.fm/api/show/track.getTopTags
func (c *Client) GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]Tag, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}
	limit = clampLimit(limit, 10)

	key := strings.ToLower(artistName) + "\x00" + strings.ToLower(trackName)
	c.cacheMu.RLock()
	cached, ok := c.trackTagCache[key]
	c.cacheMu.RUnlock()
	if ok {
		zlog.Debug().Msgf("lastfm: cached tags: artist=%s track=%s", artistName, trackName)
		return cached[:min(limit, len(cached))], nil
	}

	params := url.Values{}
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("autocorrect", "1")

	var response topTagsResponse
	if err := c.call(ctx, "track.getTopTags", params, &response); err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(response.TopTags.Tag))
	for _, t := range response.TopTags.Tag {
		tags = append(tags, Tag{Name: t.Name, Count: t.Count})
	}

	c.cacheMu.Lock()
	c.trackTagCache[key] = tags
	c.cacheMu.Unlock()
	return tags[:min(limit, len(tags))], nil
}

// GetTopTracks returns the most popular tracks for a tag.
// Reference: https://www.last.fm/api/show/tag.getTopTracks
func (c *Client) GetTopTracks(ctx context.Context, tagName string, limit int) ([]TopTrack, error) {
	if tagName == "" {
		return nil, errors.New("tag name is required")
	}
	limit = clampLimit(limit, 20)

	key := strings.ToLower(tagName) + "\x00" + strconv.Itoa(limit)
	c.cacheMu.RLock()
	cached, ok := c.tagTracksCache[key]
	c.cacheMu.RUnlock()
	if ok {
		zlog.Debug().Msgf("lastfm: cached top tracks: tag=%s", tagName)
		return cached, nil
	}

	params := url.Values{}
	params.Set("tag", tagName)
	params.Set("limit", strconv.Itoa(limit))

	var response topTracksResponse
	if err := c.call(ctx, "tag.getTopTracks", params, &response); err != nil {
		return nil, err
	}

	tracks := make([]TopTrack, 0, len(response.Tracks.Track))
	for _, t := range response.Tracks.Track {
		tracks = append(tracks, TopTrack{Name: t.Name, Artist: t.Artist.Name})
	}

	c.cacheMu.Lock()
	c.tagTracksCache[key] = tracks
	c.cacheMu.Unlock()
	return tracks, nil
}
