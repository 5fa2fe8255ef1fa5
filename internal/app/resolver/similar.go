package resolver

import (
	"context"
	"math/rand/v2"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/metadata"
	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/lastfm"
)

// SimilarSource provides seeds for similar-track lookups.
type SimilarSource interface {
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.SimilarTrack, error)
	GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.Tag, error)
	GetTopTracks(ctx context.Context, tagName string, limit int) ([]lastfm.TopTrack, error)
}

// tagFallbackLimit is the number of tag top tracks fetched when no similar track is known.
const tagFallbackLimit = 20

// Similar resolves tracks similar to title by artist. When the source knows no similar
// track, the top tracks of the seed's strongest tag are used instead. Candidates are
// shuffled so repeated calls vary.
func (r *Resolver) Similar(ctx context.Context, title, artist string, limit int, requester *track.Requester) *Result {
	if r.similar == nil || title == "" || artist == "" {
		return Empty()
	}
	limit = r.limitOr(limit)
	if limit <= 0 {
		limit = 10
	}

	items, err := r.similarItems(ctx, title, artist, limit)
	if err != nil {
		zlog.Debug().Err(err).Msgf("resolver: similar failed: title=%s artist=%s", title, artist)
		return Empty()
	}
	rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	if len(items) > limit {
		items = items[:limit]
	}
	return r.resolveList(ctx, "similar", items, requester)
}

func (r *Resolver) similarItems(ctx context.Context, title, artist string, limit int) ([]metadata.Item, error) {
	similar, err := r.similar.GetSimilarTracks(ctx, title, artist, limit*2)
	if err != nil {
		return nil, err
	}
	items := make([]metadata.Item, 0, len(similar))
	for _, s := range similar {
		items = append(items, metadata.Item{Title: s.Name, Artists: []string{s.Artist}})
	}
	if len(items) > 0 {
		return dedupe(items, title, artist), nil
	}

	tags, err := r.similar.GetTopTags(ctx, title, artist, 1)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, nil
	}
	top, err := r.similar.GetTopTracks(ctx, tags[0].Name, tagFallbackLimit)
	if err != nil {
		return nil, err
	}
	for _, t := range top {
		items = append(items, metadata.Item{Title: t.Name, Artists: []string{t.Artist}})
	}
	return dedupe(items, title, artist), nil
}

// dedupe drops repeated items and the seed itself.
func dedupe(items []metadata.Item, title, artist string) []metadata.Item {
	key := func(t, a string) string { return strings.ToLower(t) + "\x00" + strings.ToLower(a) }
	seen := map[string]bool{key(title, artist): true}
	out := make([]metadata.Item, 0, len(items))
	for _, it := range items {
		k := key(it.Title, strings.Join(it.Artists, ", "))
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}
