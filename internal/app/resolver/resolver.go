// Package resolver turns catalog references into tracks playable by an execution node.
//
// Each catalog item is first looked up by ISRC. On a miss the node is searched with a
// fixed list of provider prefixes and the first provider returning a track wins. Items
// that match nowhere are skipped. Any remote failure degrades the whole call to an
// empty result.
package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/metadata"
	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
)

const (
	isrcPrefix = "dzisrc:"

	// DefaultPlaylistName names collections the catalog did not name.
	DefaultPlaylistName = "Spotify Playlist"
)

// searchPrefixes are tried in order for items without an ISRC hit.
var searchPrefixes = []string{"dzsearch:", "amsearch:", "jssearch:", "scsearch:"}

// LoadType classifies a resolver result.
type LoadType string

const (
	LoadTypeEmpty    LoadType = "EMPTY"
	LoadTypeTrack    LoadType = "TRACK"
	LoadTypeSearch   LoadType = "SEARCH"
	LoadTypePlaylist LoadType = "PLAYLIST"
)

// Playlist describes a resolved collection.
type Playlist struct {
	Name      string
	Requester *track.Requester
	Tracks    []*track.Track
	Duration  int64 // milliseconds
}

// Result is the answer of every resolver operation.
type Result struct {
	LoadType LoadType
	Tracks   []*track.Track
	Playlist *Playlist
}

// Empty returns an empty result.
func Empty() *Result {
	return &Result{LoadType: LoadTypeEmpty, Tracks: []*track.Track{}}
}

// Catalog is the catalog metadata provider.
type Catalog interface {
	Search(ctx context.Context, query string) ([]metadata.Item, error)
	Resolve(ctx context.Context, url string, limit int) (*metadata.Collection, error)
	ArtistTopTracks(ctx context.Context, id string) ([]metadata.Item, error)
	Recommendations(ctx context.Context, url string, limit int) ([]metadata.Item, error)
}

// Backend searches the execution nodes.
type Backend interface {
	LoadTracks(ctx context.Context, identifier string) (*track.LoadResult, error)
}

// Config represents resolver configuration.
type Config struct {
	// Limit caps collections and recommendations. Zero lets the catalog decide.
	Limit int
	// RequestsPerSecond throttles node searches. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	// Projection strips resolved tracks down to a partial field set.
	Projection track.Projection
}

// Resolver resolves catalog references.
type Resolver struct {
	catalog    Catalog
	backend    Backend
	similar    SimilarSource
	limiter    *rate.Limiter
	limit      int
	projection track.Projection
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithSimilarSource enables Similar.
func WithSimilarSource(src SimilarSource) Option {
	return func(r *Resolver) { r.similar = src }
}

// New creates a resolver.
func New(catalog Catalog, backend Backend, cfg Config, opts ...Option) (*Resolver, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if backend == nil {
		return nil, errors.New("backend is required")
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}

	r := &Resolver{
		catalog:    catalog,
		backend:    backend,
		limiter:    limiter,
		limit:      max(cfg.Limit, 0),
		projection: cfg.Projection,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Search runs a free-text catalog search.
func (r *Resolver) Search(ctx context.Context, query string, requester *track.Requester) *Result {
	if query == "" {
		return Empty()
	}
	items, err := r.catalog.Search(ctx, query)
	if err != nil {
		zlog.Debug().Err(err).Msgf("resolver: search failed: query=%s", query)
		return Empty()
	}
	return r.resolveList(ctx, "search", items, requester)
}

// TopTracksForArtist resolves the top tracks of a catalog artist.
func (r *Resolver) TopTracksForArtist(ctx context.Context, artistID string, requester *track.Requester) *Result {
	if artistID == "" {
		return Empty()
	}
	items, err := r.catalog.ArtistTopTracks(ctx, artistID)
	if err != nil {
		zlog.Debug().Err(err).Msgf("resolver: artist top tracks failed: id=%s", artistID)
		return Empty()
	}
	return r.resolveList(ctx, "artist top tracks", items, requester)
}

// Recommendations resolves catalog recommendations seeded by a track link.
func (r *Resolver) Recommendations(ctx context.Context, url string, limit int, requester *track.Requester) *Result {
	if url == "" {
		return Empty()
	}
	items, err := r.catalog.Recommendations(ctx, url, r.limitOr(limit))
	if err != nil {
		zlog.Debug().Err(err).Msgf("resolver: recommendations failed: url=%s", url)
		return Empty()
	}
	return r.resolveList(ctx, "recommendations", items, requester)
}

// Resolve resolves a catalog link. A track link yields TRACK, a collection PLAYLIST.
func (r *Resolver) Resolve(ctx context.Context, url string, limit int, requester *track.Requester) *Result {
	if url == "" {
		return Empty()
	}
	col, err := r.catalog.Resolve(ctx, url, r.limitOr(limit))
	if err != nil {
		zlog.Debug().Err(err).Msgf("resolver: resolve failed: url=%s", url)
		return Empty()
	}
	if col == nil {
		return Empty()
	}

	if col.IsTrack() {
		t, err := r.resolveItem(ctx, col.Item, requester)
		if err != nil {
			zlog.Debug().Err(err).Msgf("resolver: resolve failed: url=%s", url)
			return Empty()
		}
		if t != nil {
			return &Result{LoadType: LoadTypeTrack, Tracks: []*track.Track{t}}
		}
	}

	if col.Tracks == nil {
		return Empty()
	}

	tracks, err := r.resolveItems(ctx, col.Tracks, requester)
	if err != nil {
		zlog.Debug().Err(err).Msgf("resolver: resolve failed: url=%s", url)
		return Empty()
	}

	name := col.Name
	if name == "" {
		name = DefaultPlaylistName
	}
	var duration int64
	for _, t := range tracks {
		duration += t.Duration
	}
	return &Result{
		LoadType: LoadTypePlaylist,
		Tracks:   tracks,
		Playlist: &Playlist{
			Name:      name,
			Requester: requester,
			Tracks:    tracks,
			Duration:  duration,
		},
	}
}

func (r *Resolver) limitOr(limit int) int {
	if limit > 0 {
		return limit
	}
	return r.limit
}

func (r *Resolver) resolveList(ctx context.Context, op string, items []metadata.Item, requester *track.Requester) *Result {
	if len(items) == 0 {
		return Empty()
	}
	tracks, err := r.resolveItems(ctx, items, requester)
	if err != nil {
		zlog.Debug().Err(err).Msgf("resolver: %s failed", op)
		return Empty()
	}
	if len(tracks) == 0 {
		return Empty()
	}
	return &Result{LoadType: LoadTypeSearch, Tracks: tracks}
}

// resolveItems resolves items in order and drops the ones nothing matched.
func (r *Resolver) resolveItems(ctx context.Context, items []metadata.Item, requester *track.Requester) ([]*track.Track, error) {
	tracks := make([]*track.Track, 0, len(items))
	for _, item := range items {
		t, err := r.resolveItem(ctx, item, requester)
		if err != nil {
			return nil, err
		}
		if t == nil {
			zlog.Debug().Msgf("resolver: no playable match: title=%s artists=%v", item.Title, item.Artists)
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// resolveItem returns nil, nil when no provider matched the item.
func (r *Resolver) resolveItem(ctx context.Context, item metadata.Item, requester *track.Requester) (*track.Track, error) {
	if item.ISRC != "" {
		t, err := r.searchBackend(ctx, isrcPrefix+item.ISRC, requester)
		if err != nil || t != nil {
			return t, err
		}
	}
	query := item.Query()
	if query == "" {
		return nil, nil
	}
	for _, prefix := range searchPrefixes {
		t, err := r.searchBackend(ctx, prefix+query, requester)
		if err != nil || t != nil {
			return t, err
		}
	}
	return nil, nil
}

// searchBackend returns the first track the node finds for identifier.
func (r *Resolver) searchBackend(ctx context.Context, identifier string, requester *track.Requester) (*track.Track, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "search throttled")
	}
	res, err := r.backend.LoadTracks(ctx, identifier)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to search %q", identifier)
	}
	if res == nil {
		return nil, nil
	}

	switch res.LoadType {
	case track.LoadTypeTrack, track.LoadTypeSearch, track.LoadTypePlaylist:
	default:
		return nil, nil
	}
	raws, err := res.Tracks()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read result of %q", identifier)
	}
	if len(raws) == 0 {
		return nil, nil
	}

	t, err := track.Build(&raws[0], requester)
	if err != nil {
		zlog.Debug().Err(err).Msgf("resolver: unusable node track: identifier=%s", identifier)
		return nil, nil
	}
	return r.projection.Apply(t), nil
}
