package spotify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/metadata"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind metadata.Kind
		wantID   string
		wantErr  bool
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
			wantKind: metadata.KindPlaylist,
			wantID:   "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "track URL",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			wantKind: metadata.KindTrack,
			wantID:   "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "URL with query params",
			input:    "https://open.spotify.com/album/abc123?si=xyz&utm_source=copy",
			wantKind: metadata.KindAlbum,
			wantID:   "abc123",
		},
		{
			name:     "intl URL",
			input:    "https://open.spotify.com/intl-ja/artist/art1/",
			wantKind: metadata.KindArtist,
			wantID:   "art1",
		},
		{
			name:     "HTTP URL (not HTTPS)",
			input:    "http://open.spotify.com/playlist/testID",
			wantKind: metadata.KindPlaylist,
			wantID:   "testID",
		},
		{name: "Empty string", input: "", wantErr: true},
		{name: "Plain ID", input: "37i9dQZF1DXcBWIGoYBM5M", wantErr: true},
		{name: "unknown kind", input: "spotify:show:abc", wantErr: true},
		{name: "other host", input: "https://example.com/track/abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, id, err := parseReference(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidReference))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := newClient(spotify.New(server.Client(), spotify.WithBaseURL(server.URL+"/")), "")
	c.retryDelay = 0
	return c
}

func TestClient_Search(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "never gonna", r.URL.Query().Get("q"))
		assert.Equal(t, "US", r.URL.Query().Get("market"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracks":{"items":[{
			"id":"t1","name":"Never Gonna Give You Up",
			"artists":[{"name":"Rick Astley"}],
			"external_ids":{"isrc":"GBARL9300135"},
			"external_urls":{"spotify":"https://open.spotify.com/track/t1"}
		}]}}`))
	})

	items, err := c.Search(context.Background(), "never gonna")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, metadata.Item{
		Title:   "Never Gonna Give You Up",
		Artists: []string{"Rick Astley"},
		ISRC:    "GBARL9300135",
		URI:     "https://open.spotify.com/track/t1",
	}, items[0])
}

func TestClient_SearchRequiresQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s", r.URL)
	})
	_, err := c.Search(context.Background(), "")
	assert.Error(t, err)
}

func TestClient_RecommendationsNeedTrack(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s", r.URL)
	})
	_, err := c.Recommendations(context.Background(), "spotify:album:abc", 5)
	assert.True(t, errors.Is(err, ErrInvalidReference))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "rate limit error with 429",
			err:      errors.New("Error 429: rate limit exceeded"),
			expected: true,
		},
		{
			name:     "rate limit text",
			err:      errors.New("rate limit exceeded"),
			expected: true,
		},
		{
			name:     "server error 500",
			err:      errors.New("Error 500: internal server error"),
			expected: true,
		},
		{
			name:     "server error 502",
			err:      errors.New("502 Bad Gateway"),
			expected: true,
		},
		{
			name:     "server error 503",
			err:      errors.New("503 Service Unavailable"),
			expected: true,
		},
		{
			name:     "server error 504",
			err:      errors.New("504 Gateway Timeout"),
			expected: true,
		},
		{
			name:     "client error 400",
			err:      errors.New("400 Bad Request"),
			expected: false,
		},
		{
			name:     "not found error",
			err:      errors.New("404 not found"),
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRetryable(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}
