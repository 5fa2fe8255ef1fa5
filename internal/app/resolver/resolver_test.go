package resolver

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/metadata"
	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/lastfm"
)

type fakeCatalog struct {
	items      []metadata.Item
	collection *metadata.Collection
	err        error
	calls      int
	lastLimit  int
}

func (f *fakeCatalog) Search(context.Context, string) ([]metadata.Item, error) {
	f.calls++
	return f.items, f.err
}

func (f *fakeCatalog) Resolve(_ context.Context, _ string, limit int) (*metadata.Collection, error) {
	f.calls++
	f.lastLimit = limit
	return f.collection, f.err
}

func (f *fakeCatalog) ArtistTopTracks(context.Context, string) ([]metadata.Item, error) {
	f.calls++
	return f.items, f.err
}

func (f *fakeCatalog) Recommendations(_ context.Context, _ string, limit int) ([]metadata.Item, error) {
	f.calls++
	f.lastLimit = limit
	return f.items, f.err
}

type fakeBackend struct {
	mu      sync.Mutex
	results map[string]*track.LoadResult
	err     error
	queries []string
}

func (f *fakeBackend) LoadTracks(_ context.Context, identifier string) (*track.LoadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, identifier)
	if f.err != nil {
		return nil, f.err
	}
	if res, ok := f.results[identifier]; ok {
		return res, nil
	}
	return &track.LoadResult{LoadType: track.LoadTypeEmpty}, nil
}

func hit(t *testing.T, encoded string, duration int64) *track.LoadResult {
	t.Helper()
	data, err := json.Marshal([]track.Raw{{
		Encoded: encoded,
		Info: track.RawInfo{
			Identifier: encoded,
			Title:      "title " + encoded,
			Author:     "author",
			Length:     duration,
			SourceName: "deezer",
		},
	}})
	require.NoError(t, err)
	return &track.LoadResult{LoadType: track.LoadTypeSearch, Data: data}
}

func newResolver(t *testing.T, c Catalog, b Backend, opts ...Option) *Resolver {
	t.Helper()
	r, err := New(c, b, Config{}, opts...)
	require.NoError(t, err)
	return r
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(nil, &fakeBackend{}, Config{})
	assert.Error(t, err)
	_, err = New(&fakeCatalog{}, nil, Config{})
	assert.Error(t, err)
}

func TestEmptyInputDoesNotCallCollaborators(t *testing.T) {
	cat := &fakeCatalog{}
	back := &fakeBackend{}
	r := newResolver(t, cat, back)
	ctx := context.Background()

	for name, res := range map[string]*Result{
		"search":          r.Search(ctx, "", nil),
		"resolve":         r.Resolve(ctx, "", 0, nil),
		"top tracks":      r.TopTracksForArtist(ctx, "", nil),
		"recommendations": r.Recommendations(ctx, "", 0, nil),
		"similar":         r.Similar(ctx, "", "", 0, nil),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, LoadTypeEmpty, res.LoadType)
			assert.Empty(t, res.Tracks)
			assert.Nil(t, res.Playlist)
		})
	}
	assert.Zero(t, cat.calls)
	assert.Empty(t, back.queries)
}

func TestSearch_FallbackOrder(t *testing.T) {
	cat := &fakeCatalog{items: []metadata.Item{{Title: "Song", Artists: []string{"A", "B"}}}}
	back := &fakeBackend{results: map[string]*track.LoadResult{
		"jssearch:Song A, B": hit(t, "js", 1000),
		"scsearch:Song A, B": hit(t, "sc", 1000),
	}}
	r := newResolver(t, cat, back)

	res := r.Search(context.Background(), "song", nil)

	assert.Equal(t, LoadTypeSearch, res.LoadType)
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, "js", res.Tracks[0].Encoded)
	assert.Equal(t, []string{"dzsearch:Song A, B", "amsearch:Song A, B", "jssearch:Song A, B"}, back.queries)
}

func TestSearch_ISRCShortCircuit(t *testing.T) {
	cat := &fakeCatalog{items: []metadata.Item{{Title: "Song", Artists: []string{"A"}, ISRC: "USRC1"}}}
	back := &fakeBackend{results: map[string]*track.LoadResult{
		"dzisrc:USRC1":    hit(t, "isrc", 1000),
		"dzsearch:Song A": hit(t, "dz", 1000),
	}}
	r := newResolver(t, cat, back)

	res := r.Search(context.Background(), "song", nil)

	require.Len(t, res.Tracks, 1)
	assert.Equal(t, "isrc", res.Tracks[0].Encoded)
	assert.Equal(t, []string{"dzisrc:USRC1"}, back.queries)
}

func TestSearch_ISRCMissFallsBack(t *testing.T) {
	cat := &fakeCatalog{items: []metadata.Item{{Title: "Song", Artists: []string{"A"}, ISRC: "USRC1"}}}
	back := &fakeBackend{results: map[string]*track.LoadResult{
		"dzsearch:Song A": hit(t, "dz", 1000),
	}}
	r := newResolver(t, cat, back)

	res := r.Search(context.Background(), "song", nil)

	require.Len(t, res.Tracks, 1)
	assert.Equal(t, "dz", res.Tracks[0].Encoded)
	assert.Equal(t, []string{"dzisrc:USRC1", "dzsearch:Song A"}, back.queries)
}

func TestSearch_UnmatchedItemsAreSkipped(t *testing.T) {
	cat := &fakeCatalog{items: []metadata.Item{
		{Title: "Missing", Artists: []string{"X"}},
		{Title: "Song", Artists: []string{"A"}},
	}}
	back := &fakeBackend{results: map[string]*track.LoadResult{
		"dzsearch:Song A": hit(t, "dz", 1000),
	}}
	r := newResolver(t, cat, back)
	requester := &track.Requester{ID: "u1", Type: track.RequesterTypeUser}

	res := r.Search(context.Background(), "q", requester)

	assert.Equal(t, LoadTypeSearch, res.LoadType)
	require.Len(t, res.Tracks, 1)
	assert.Same(t, requester, res.Tracks[0].Requester)
}

func TestSearch_NothingMatchedIsEmpty(t *testing.T) {
	cat := &fakeCatalog{items: []metadata.Item{{Title: "Missing", Artists: []string{"X"}}}}
	r := newResolver(t, cat, &fakeBackend{})

	res := r.Search(context.Background(), "q", nil)
	assert.Equal(t, LoadTypeEmpty, res.LoadType)
	assert.Empty(t, res.Tracks)
}

func TestRemoteFailuresDegradeToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		catalog *fakeCatalog
		backend *fakeBackend
	}{
		{
			name:    "catalog down",
			catalog: &fakeCatalog{err: errors.New("unreachable")},
			backend: &fakeBackend{},
		},
		{
			name: "backend down",
			catalog: &fakeCatalog{items: []metadata.Item{
				{Title: "Song", Artists: []string{"A"}},
			}},
			backend: &fakeBackend{err: errors.New("node down")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(t, tt.catalog, tt.backend)
			for _, res := range []*Result{
				r.Search(context.Background(), "q", nil),
				r.TopTracksForArtist(context.Background(), "artist", nil),
				r.Recommendations(context.Background(), "https://open.spotify.com/track/1", 0, nil),
			} {
				assert.Equal(t, LoadTypeEmpty, res.LoadType)
				assert.Empty(t, res.Tracks)
				assert.Nil(t, res.Playlist)
			}
		})
	}
}

func TestResolve_SingleTrack(t *testing.T) {
	cat := &fakeCatalog{collection: &metadata.Collection{
		Kind: metadata.KindTrack,
		Item: metadata.Item{Title: "Song", Artists: []string{"A"}, ISRC: "USRC1"},
	}}
	back := &fakeBackend{results: map[string]*track.LoadResult{
		"amsearch:Song A": hit(t, "am", 1000),
	}}
	r := newResolver(t, cat, back)

	res := r.Resolve(context.Background(), "https://open.spotify.com/track/1", 0, nil)

	assert.Equal(t, LoadTypeTrack, res.LoadType)
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, "am", res.Tracks[0].Encoded)
	assert.Nil(t, res.Playlist)
}

func TestResolve_Playlist(t *testing.T) {
	tests := []struct {
		name     string
		colName  string
		wantName string
	}{
		{name: "named", colName: "Road Trip", wantName: "Road Trip"},
		{name: "unnamed", colName: "", wantName: DefaultPlaylistName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := &fakeCatalog{collection: &metadata.Collection{
				Kind: metadata.KindPlaylist,
				Name: tt.colName,
				Tracks: []metadata.Item{
					{Title: "One", Artists: []string{"A"}},
					{Title: "Lost", Artists: []string{"A"}},
					{Title: "Two", Artists: []string{"A"}, ISRC: "I2"},
				},
			}}
			back := &fakeBackend{results: map[string]*track.LoadResult{
				"dzsearch:One A": hit(t, "one", 1000),
				"dzisrc:I2":      hit(t, "two", 2500),
			}}
			r := newResolver(t, cat, back)

			res := r.Resolve(context.Background(), "https://open.spotify.com/playlist/1", 5, nil)

			assert.Equal(t, LoadTypePlaylist, res.LoadType)
			require.Len(t, res.Tracks, 2)
			require.NotNil(t, res.Playlist)
			assert.Equal(t, tt.wantName, res.Playlist.Name)
			assert.Equal(t, int64(3500), res.Playlist.Duration)
			assert.Equal(t, 5, cat.lastLimit)
		})
	}
}

func TestResolve_DefaultLimit(t *testing.T) {
	cat := &fakeCatalog{}
	r, err := New(cat, &fakeBackend{}, Config{Limit: 25})
	require.NoError(t, err)

	res := r.Resolve(context.Background(), "https://open.spotify.com/album/1", 0, nil)
	assert.Equal(t, LoadTypeEmpty, res.LoadType)
	assert.Equal(t, 25, cat.lastLimit)
}

func TestTopTracksAndRecommendations(t *testing.T) {
	cat := &fakeCatalog{items: []metadata.Item{{Title: "Song", Artists: []string{"A"}}}}
	back := &fakeBackend{results: map[string]*track.LoadResult{
		"dzsearch:Song A": hit(t, "dz", 1000),
	}}
	r := newResolver(t, cat, back)
	ctx := context.Background()

	assert.Equal(t, LoadTypeSearch, r.TopTracksForArtist(ctx, "artist", nil).LoadType)
	assert.Equal(t, LoadTypeSearch, r.Recommendations(ctx, "https://open.spotify.com/track/1", 0, nil).LoadType)
}

func TestProjectionIsApplied(t *testing.T) {
	proj, err := track.NewProjection([]string{track.FieldTitle})
	require.NoError(t, err)

	cat := &fakeCatalog{items: []metadata.Item{{Title: "Song", Artists: []string{"A"}}}}
	back := &fakeBackend{results: map[string]*track.LoadResult{
		"dzsearch:Song A": hit(t, "dz", 1000),
	}}
	r, err := New(cat, back, Config{Projection: proj})
	require.NoError(t, err)

	res := r.Search(context.Background(), "q", nil)
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, "dz", res.Tracks[0].Encoded)
	assert.Equal(t, "title dz", res.Tracks[0].Title)
	assert.Empty(t, res.Tracks[0].Author)
	assert.True(t, res.Tracks[0].IsPartial())
}

type fakeSimilar struct {
	similar []lastfm.SimilarTrack
	tags    []lastfm.Tag
	top     []lastfm.TopTrack
	tagArg  string
}

func (f *fakeSimilar) GetSimilarTracks(context.Context, string, string, int) ([]lastfm.SimilarTrack, error) {
	return f.similar, nil
}

func (f *fakeSimilar) GetTopTags(context.Context, string, string, int) ([]lastfm.Tag, error) {
	return f.tags, nil
}

func (f *fakeSimilar) GetTopTracks(_ context.Context, tag string, _ int) ([]lastfm.TopTrack, error) {
	f.tagArg = tag
	return f.top, nil
}

func TestSimilar(t *testing.T) {
	src := &fakeSimilar{similar: []lastfm.SimilarTrack{
		{Name: "Seed", Artist: "A"},
		{Name: "Other", Artist: "B"},
		{Name: "Other", Artist: "B"},
	}}
	back := &fakeBackend{results: map[string]*track.LoadResult{
		"dzsearch:Other B": hit(t, "other", 1000),
		"dzsearch:Seed A":  hit(t, "seed", 1000),
	}}
	r := newResolver(t, &fakeCatalog{}, back, WithSimilarSource(src))

	res := r.Similar(context.Background(), "Seed", "A", 5, nil)

	assert.Equal(t, LoadTypeSearch, res.LoadType)
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, "other", res.Tracks[0].Encoded)
}

func TestSimilar_TagFallback(t *testing.T) {
	src := &fakeSimilar{
		tags: []lastfm.Tag{{Name: "shoegaze", Count: 100}},
		top:  []lastfm.TopTrack{{Name: "Tagged", Artist: "C"}},
	}
	back := &fakeBackend{results: map[string]*track.LoadResult{
		"dzsearch:Tagged C": hit(t, "tagged", 1000),
	}}
	r := newResolver(t, &fakeCatalog{}, back, WithSimilarSource(src))

	res := r.Similar(context.Background(), "Seed", "A", 5, nil)

	assert.Equal(t, "shoegaze", src.tagArg)
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, "tagged", res.Tracks[0].Encoded)
}

func TestSimilar_WithoutSource(t *testing.T) {
	r := newResolver(t, &fakeCatalog{}, &fakeBackend{})
	assert.Equal(t, LoadTypeEmpty, r.Similar(context.Background(), "Seed", "A", 5, nil).LoadType)
}
