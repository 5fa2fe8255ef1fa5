// Package lavalink provides the REST client and push-event socket of an audio execution node.
package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
)

var (
	ErrNoSession = errors.New("node session is not established")
	ErrNotFound  = errors.New("node resource not found")
)

// Config represents node connection configuration.
type Config struct {
	Host     string
	Port     int
	Password string
	Secure   bool
}

// Client is a REST client for one execution node.
type Client struct {
	baseURL    string
	password   string
	httpClient *http.Client
}

// APIError is the error document returned by a node.
type APIError struct {
	Timestamp int64  `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
}

// New creates a new node REST client.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("node host is required")
	}
	scheme := "http"
	if cfg.Secure {
		scheme = "https"
	}
	return &Client{
		baseURL:    fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port),
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// BaseURL returns the node base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a request and decodes a JSON answer into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode >= 300 {
		var apiErr APIError
		_ = json.Unmarshal(data, &apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		err := errors.Newf("node %s %s failed with status %d: %s", method, path, resp.StatusCode, msg)
		if resp.StatusCode == http.StatusNotFound {
			return errors.Mark(err, ErrNotFound)
		}
		return err
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func playerPath(sessionID, guildID string) string {
	return "/v4/sessions/" + url.PathEscape(sessionID) + "/players/" + url.PathEscape(guildID)
}

// UpdatePlayer patches the player of guildID.
func (c *Client) UpdatePlayer(ctx context.Context, sessionID, guildID string, update *PlayerUpdate, noReplace bool) error {
	if sessionID == "" {
		return ErrNoSession
	}
	query := url.Values{}
	query.Set("noReplace", strconv.FormatBool(noReplace))
	zlog.Debug().Msgf("lavalink: update player: guild=%s", guildID)
	return c.do(ctx, http.MethodPatch, playerPath(sessionID, guildID), query, update, nil)
}

// DestroyPlayer deletes the player of guildID.
func (c *Client) DestroyPlayer(ctx context.Context, sessionID, guildID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	return c.do(ctx, http.MethodDelete, playerPath(sessionID, guildID), nil, nil, nil)
}

// LoadTracks resolves an identifier such as "dzsearch:query" or a URL.
func (c *Client) LoadTracks(ctx context.Context, identifier string) (*track.LoadResult, error) {
	query := url.Values{}
	query.Set("identifier", identifier)
	var result track.LoadResult
	if err := c.do(ctx, http.MethodGet, "/v4/loadtracks", query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Info fetches the node information document.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.do(ctx, http.MethodGet, "/v4/info", nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// UpdateSession configures resuming for the node session.
func (c *Client) UpdateSession(ctx context.Context, sessionID string, resuming bool, timeoutSec int) error {
	if sessionID == "" {
		return ErrNoSession
	}
	body := map[string]any{"resuming": resuming, "timeout": timeoutSec}
	return c.do(ctx, http.MethodPatch, "/v4/sessions/"+url.PathEscape(sessionID), nil, body, nil)
}

// Lyrics fetches lyrics for an encoded track. A missing document yields nil, nil.
func (c *Client) Lyrics(ctx context.Context, encoded string, skipTrackSource bool) (*Lyrics, error) {
	query := url.Values{}
	query.Set("track", encoded)
	query.Set("skipTrackSource", strconv.FormatBool(skipTrackSource))
	var lyrics Lyrics
	if err := c.do(ctx, http.MethodGet, "/v4/lyrics", query, nil, &lyrics); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lyrics, nil
}

func sponsorBlockPath(sessionID, guildID string) string {
	return playerPath(sessionID, guildID) + "/sponsorblock/categories"
}

// SponsorBlock returns the sponsorblock categories of a player.
func (c *Client) SponsorBlock(ctx context.Context, sessionID, guildID string) ([]string, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	var categories []string
	if err := c.do(ctx, http.MethodGet, sponsorBlockPath(sessionID, guildID), nil, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// SetSponsorBlock replaces the sponsorblock categories of a player.
func (c *Client) SetSponsorBlock(ctx context.Context, sessionID, guildID string, categories []string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	return c.do(ctx, http.MethodPut, sponsorBlockPath(sessionID, guildID), nil, categories, nil)
}

// DeleteSponsorBlock removes the sponsorblock categories of a player.
func (c *Client) DeleteSponsorBlock(ctx context.Context, sessionID, guildID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	return c.do(ctx, http.MethodDelete, sponsorBlockPath(sessionID, guildID), nil, nil, nil)
}
