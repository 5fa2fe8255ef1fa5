package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"
	return client
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestGetSimilarTracks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "track.getSimilar", q.Get("method"))
		assert.Equal(t, "Daft Punk", q.Get("artist"))
		assert.Equal(t, "One More Time", q.Get("track"))
		assert.Equal(t, "20", q.Get("limit"))
		assert.Equal(t, "json", q.Get("format"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"similartracks":{"track":[
			{"name":"Digital Love","artist":{"name":"Daft Punk"}},
			{"name":"Music Sounds Better with You","artist":{"name":"Stardust"}}
		]}}`)
	})

	tracks, err := client.GetSimilarTracks(context.Background(), "One More Time", "Daft Punk", 20)
	require.NoError(t, err)
	assert.Equal(t, []SimilarTrack{
		{Name: "Digital Love", Artist: "Daft Punk"},
		{Name: "Music Sounds Better with You", Artist: "Stardust"},
	}, tracks)
}

func TestGetSimilarTracks_Errors(t *testing.T) {
	tests := []struct {
		name    string
		track   string
		artist  string
		body    string
		status  int
		wantAPI bool
	}{
		{name: "missing artist", track: "t"},
		{name: "api error", track: "t", artist: "a", body: `{"error":6,"message":"Track not found"}`, status: http.StatusOK, wantAPI: true},
		{name: "server error", track: "t", artist: "a", body: `oops`, status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := client.GetSimilarTracks(context.Background(), tt.track, tt.artist, 5)
			require.Error(t, err)
			var apiErr *APIError
			assert.Equal(t, tt.wantAPI, errors.As(err, &apiErr))
		})
	}
}

func TestGetTopTags(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "track.getTopTags", r.URL.Query().Get("method"))
		assert.Equal(t, "test_artist", r.URL.Query().Get("artist"))
		assert.Equal(t, "test_track", r.URL.Query().Get("track"))
		assert.Equal(t, "test_key", r.URL.Query().Get("api_key"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"toptags": {
				"tag": [
					{"name": "rock", "count": 100, "url": "http://last.fm/tag/rock"},
					{"name": "alternative", "count": 80, "url": "http://last.fm/tag/alternative"}
				]
			}
		}`)
	})

	ctx := context.Background()
	tags, err := client.GetTopTags(ctx, "test_track", "test_artist", 5)
	require.NoError(t, err)
	assert.Equal(t, []Tag{{Name: "rock", Count: 100}, {Name: "alternative", Count: 80}}, tags)

	top, err := client.GetTopTags(ctx, "Test_Track", "TEST_ARTIST", 1)
	require.NoError(t, err)
	assert.Equal(t, []Tag{{Name: "rock", Count: 100}}, top)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetTopTracks(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "tag.getTopTracks", r.URL.Query().Get("method"))
		assert.Equal(t, "rock", r.URL.Query().Get("tag"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"tracks": {
				"track": [
					{"name": "Track 1", "mbid": "mbid1", "artist": {"name": "Artist 1", "mbid": "ambid1"}, "listeners": "1000"},
					{"name": "Track 2", "mbid": "mbid2", "artist": {"name": "Artist 2", "mbid": "ambid2"}, "listeners": "500"}
				]
			}
		}`)
	})

	ctx := context.Background()
	tracks, err := client.GetTopTracks(ctx, "rock", 5)
	require.NoError(t, err)
	assert.Len(t, tracks, 2)
	assert.Equal(t, "Track 1", tracks[0].Name)
	assert.Equal(t, "Artist 1", tracks[0].Artist)

	cached, err := client.GetTopTracks(ctx, "rock", 5)
	require.NoError(t, err)
	assert.Equal(t, tracks, cached)
	assert.Equal(t, int32(1), calls.Load())
}
