// Package catalog provides a client for an HTTP catalog metadata proxy.
//
// The proxy answers four GET endpoints: /search?q=, /resolve?url=&limit=,
// /artist-top-tracks?id= and /recommendations?url=&limit=. List endpoints return
// {"items": [...]}; /resolve returns one collection document.
package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/metadata"
)

// Config represents catalog proxy configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a catalog proxy client. It implements the resolver catalog.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type itemsResponse struct {
	Items []metadata.Item `json:"items"`
}

// New creates a catalog proxy client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "invalid catalog base url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "catalog %s failed", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Newf("catalog %s failed with status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "failed to parse catalog %s response", path)
	}
	zlog.Debug().Msgf("catalog: %s answered: bytes=%d", path, len(body))
	return nil
}

func (c *Client) items(ctx context.Context, path string, params url.Values) ([]metadata.Item, error) {
	var resp itemsResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return []metadata.Item{}, nil
	}
	return resp.Items, nil
}

func withLimit(params url.Values, limit int) url.Values {
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	return params
}

// Search returns the tracks matching query.
func (c *Client) Search(ctx context.Context, query string) ([]metadata.Item, error) {
	return c.items(ctx, "/search", url.Values{"q": {query}})
}

// Resolve describes the catalog entry behind ref.
func (c *Client) Resolve(ctx context.Context, ref string, limit int) (*metadata.Collection, error) {
	var col metadata.Collection
	if err := c.get(ctx, "/resolve", withLimit(url.Values{"url": {ref}}, limit), &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// ArtistTopTracks returns the top tracks of an artist.
func (c *Client) ArtistTopTracks(ctx context.Context, id string) ([]metadata.Item, error) {
	return c.items(ctx, "/artist-top-tracks", url.Values{"id": {id}})
}

// Recommendations returns tracks recommended for the track behind ref.
func (c *Client) Recommendations(ctx context.Context, ref string, limit int) ([]metadata.Item, error) {
	return c.items(ctx, "/recommendations", withLimit(url.Values{"url": {ref}}, limit))
}
