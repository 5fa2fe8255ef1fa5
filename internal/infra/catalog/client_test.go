package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/metadata"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL + "/api/"})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	c, err := New(Config{BaseURL: "http://catalog.local/api/"})
	require.NoError(t, err)
	assert.Equal(t, "http://catalog.local/api", c.baseURL)
}

func TestClient_ListEndpoints(t *testing.T) {
	tests := []struct {
		name      string
		call      func(c *Client) ([]metadata.Item, error)
		wantPath  string
		wantQuery map[string]string
	}{
		{
			name:      "search",
			call:      func(c *Client) ([]metadata.Item, error) { return c.Search(context.Background(), "daft punk") },
			wantPath:  "/api/search",
			wantQuery: map[string]string{"q": "daft punk"},
		},
		{
			name:      "artist top tracks",
			call:      func(c *Client) ([]metadata.Item, error) { return c.ArtistTopTracks(context.Background(), "art1") },
			wantPath:  "/api/artist-top-tracks",
			wantQuery: map[string]string{"id": "art1"},
		},
		{
			name: "recommendations",
			call: func(c *Client) ([]metadata.Item, error) {
				return c.Recommendations(context.Background(), "https://open.spotify.com/track/t1", 5)
			},
			wantPath:  "/api/recommendations",
			wantQuery: map[string]string{"url": "https://open.spotify.com/track/t1", "limit": "5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantPath, r.URL.Path)
				for k, v := range tt.wantQuery {
					assert.Equal(t, v, r.URL.Query().Get(k))
				}
				fmt.Fprint(w, `{"items":[{"title":"One More Time","artists":["Daft Punk"],"isrc":"GBDUW0000053"}]}`)
			})

			items, err := tt.call(c)
			require.NoError(t, err)
			assert.Equal(t, []metadata.Item{{Title: "One More Time", Artists: []string{"Daft Punk"}, ISRC: "GBDUW0000053"}}, items)
		})
	}
}

func TestClient_Resolve(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/resolve", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"type":"playlist","name":"Mix","tracks":[
			{"title":"A","artists":["X"]},
			{"title":"B","artists":["Y","Z"],"isrc":"I2"}
		]}`)
	})

	col, err := c.Resolve(context.Background(), "https://open.spotify.com/playlist/p1", 0)
	require.NoError(t, err)
	assert.Equal(t, metadata.KindPlaylist, col.Kind)
	assert.Equal(t, "Mix", col.Name)
	assert.False(t, col.IsTrack())
	require.Len(t, col.Tracks, 2)
	assert.Equal(t, "I2", col.Tracks[1].ISRC)
}

func TestClient_ResolveTrack(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type":"track","title":"A","artists":["X"],"isrc":"I1"}`)
	})

	col, err := c.Resolve(context.Background(), "https://open.spotify.com/track/t1", 0)
	require.NoError(t, err)
	assert.True(t, col.IsTrack())
	assert.Equal(t, "I1", col.ISRC)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "status", status: http.StatusInternalServerError, body: `{}`},
		{name: "bad json", status: http.StatusOK, body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := c.Search(context.Background(), "q")
			assert.Error(t, err)
		})
	}
}
