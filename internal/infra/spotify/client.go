// Package spotify provides a catalog metadata provider backed by the Spotify Web API.
package spotify

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/metadata"
)

const (
	defaultMarket = "US"
	searchLimit   = 10
	pageLimit     = 100
)

var ErrInvalidReference = errors.New("invalid spotify reference")

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// Client is a Spotify catalog client. It implements the resolver catalog.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// New creates a Spotify client authenticated with the client credentials flow.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return newClient(spotify.New(creds.Client(ctx)), cfg.Market), nil
}

func newClient(client *spotify.Client, market string) *Client {
	if market == "" {
		market = defaultMarket
	}
	return &Client{
		client:     client,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Search returns the tracks matching query.
func (c *Client) Search(ctx context.Context, query string) ([]metadata.Item, error) {
	if query == "" {
		return nil, errors.New("search query is required")
	}

	var result *spotify.SearchResult
	err := c.retry(func() error {
		r, err := c.client.Search(ctx, query, spotify.SearchTypeTrack,
			spotify.Limit(searchLimit),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search")
	}
	if result.Tracks == nil {
		return []metadata.Item{}, nil
	}

	items := make([]metadata.Item, 0, len(result.Tracks.Tracks))
	for i := range result.Tracks.Tracks {
		items = append(items, fullTrackItem(&result.Tracks.Tracks[i]))
	}
	return items, nil
}

// Resolve describes the track, album, playlist or artist behind a Spotify link.
// limit caps collections; zero or less keeps every track.
func (c *Client) Resolve(ctx context.Context, ref string, limit int) (*metadata.Collection, error) {
	kind, id, err := parseReference(ref)
	if err != nil {
		return nil, err
	}

	switch kind {
	case metadata.KindTrack:
		var t *spotify.FullTrack
		err := c.retry(func() error {
			got, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
			if err != nil {
				return err
			}
			t = got
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get track")
		}
		return &metadata.Collection{Kind: kind, Item: fullTrackItem(t)}, nil

	case metadata.KindAlbum:
		var album *spotify.FullAlbum
		err := c.retry(func() error {
			got, err := c.client.GetAlbum(ctx, spotify.ID(id), spotify.Market(c.market))
			if err != nil {
				return err
			}
			album = got
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get album")
		}
		items := make([]metadata.Item, 0, len(album.Tracks.Tracks))
		for i := range album.Tracks.Tracks {
			items = append(items, simpleTrackItem(&album.Tracks.Tracks[i]))
		}
		return &metadata.Collection{Kind: kind, Name: album.Name, Tracks: truncate(items, limit)}, nil

	case metadata.KindPlaylist:
		return c.resolvePlaylist(ctx, id, limit)

	case metadata.KindArtist:
		items, err := c.ArtistTopTracks(ctx, id)
		if err != nil {
			return nil, err
		}
		return &metadata.Collection{Kind: kind, Tracks: truncate(items, limit)}, nil
	}
	return nil, errors.Wrapf(ErrInvalidReference, "unsupported kind %q", kind)
}

func (c *Client) resolvePlaylist(ctx context.Context, id string, limit int) (*metadata.Collection, error) {
	var playlist *spotify.FullPlaylist
	err := c.retry(func() error {
		got, err := c.client.GetPlaylist(ctx, spotify.ID(id), spotify.Fields("name"))
		if err != nil {
			return err
		}
		playlist = got
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist")
	}

	var items []metadata.Item
	offset := 0
	for limit <= 0 || len(items) < limit {
		var page *spotify.PlaylistItemPage
		err := c.retry(func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(id),
				spotify.Limit(pageLimit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			// Episodes carry no track.
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				items = append(items, fullTrackItem(item.Track.Track))
			}
		}
		if len(page.Items) < pageLimit {
			break
		}
		offset += pageLimit
	}
	return &metadata.Collection{Kind: metadata.KindPlaylist, Name: playlist.Name, Tracks: truncate(items, limit)}, nil
}

// ArtistTopTracks returns the top tracks of an artist in the configured market.
func (c *Client) ArtistTopTracks(ctx context.Context, id string) ([]metadata.Item, error) {
	if kind, parsed, err := parseReference(id); err == nil && kind == metadata.KindArtist {
		id = parsed
	}
	var tracks []spotify.FullTrack
	err := c.retry(func() error {
		got, err := c.client.GetArtistsTopTracks(ctx, spotify.ID(id), c.market)
		if err != nil {
			return err
		}
		tracks = got
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get artist top tracks")
	}

	items := make([]metadata.Item, 0, len(tracks))
	for i := range tracks {
		items = append(items, fullTrackItem(&tracks[i]))
	}
	return items, nil
}

// Recommendations returns tracks recommended for the track behind ref.
func (c *Client) Recommendations(ctx context.Context, ref string, limit int) ([]metadata.Item, error) {
	kind, id, err := parseReference(ref)
	if err != nil {
		return nil, err
	}
	if kind != metadata.KindTrack {
		return nil, errors.Wrapf(ErrInvalidReference, "recommendations need a track, got %s", kind)
	}
	if limit <= 0 {
		limit = searchLimit
	}

	var recs *spotify.Recommendations
	err = c.retry(func() error {
		got, err := c.client.GetRecommendations(ctx,
			spotify.Seeds{Tracks: []spotify.ID{spotify.ID(id)}}, nil,
			spotify.Limit(limit),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		recs = got
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get recommendations")
	}

	items := make([]metadata.Item, 0, len(recs.Tracks))
	for i := range recs.Tracks {
		items = append(items, simpleTrackItem(&recs.Tracks[i]))
	}
	return items, nil
}

func simpleTrackItem(t *spotify.SimpleTrack) metadata.Item {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}
	uri := t.ExternalURLs["spotify"]
	if uri == "" && t.ID != "" {
		uri = TrackURL(string(t.ID))
	}
	return metadata.Item{Title: t.Name, Artists: artists, URI: uri}
}

func fullTrackItem(t *spotify.FullTrack) metadata.Item {
	item := simpleTrackItem(&t.SimpleTrack)
	item.ISRC = t.ExternalIDs["isrc"]
	return item
}

func truncate(items []metadata.Item, limit int) []metadata.Item {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// TrackURL returns the Spotify URL for a track.
func TrackURL(trackID string) string {
	return "https://open.spotify.com/track/" + trackID
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

var kinds = map[string]metadata.Kind{
	"track":    metadata.KindTrack,
	"album":    metadata.KindAlbum,
	"playlist": metadata.KindPlaylist,
	"artist":   metadata.KindArtist,
}

// parseReference extracts the kind and id from a Spotify URI (spotify:track:ID) or an
// open.spotify.com URL, with or without an intl-xx path segment.
func parseReference(input string) (metadata.Kind, string, error) {
	input = strings.TrimSpace(input)

	if rest, ok := strings.CutPrefix(input, "spotify:"); ok {
		kind, id, found := strings.Cut(rest, ":")
		if k, known := kinds[kind]; found && known && id != "" {
			return k, id, nil
		}
		return "", "", errors.Wrapf(ErrInvalidReference, "%q", input)
	}

	u, err := url.Parse(input)
	if err != nil || u.Host != "open.spotify.com" {
		return "", "", errors.Wrapf(ErrInvalidReference, "%q", input)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) > 0 && strings.HasPrefix(segments[0], "intl-") {
		segments = segments[1:]
	}
	if len(segments) >= 2 {
		if k, known := kinds[segments[0]]; known && segments[1] != "" {
			return k, segments[1], nil
		}
	}
	return "", "", errors.Wrapf(ErrInvalidReference, "%q", input)
}
