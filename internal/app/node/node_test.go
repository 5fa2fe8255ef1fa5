package node

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/lavalink"
)

type fakeRPC struct {
	info       *lavalink.Info
	sessionArg string
	resuming   bool
	timeout    int
}

func (f *fakeRPC) UpdatePlayer(_ context.Context, sid, _ string, _ *lavalink.PlayerUpdate, _ bool) error {
	f.sessionArg = sid
	return nil
}

func (f *fakeRPC) DestroyPlayer(context.Context, string, string) error { return nil }

func (f *fakeRPC) LoadTracks(context.Context, string) (*track.LoadResult, error) {
	return &track.LoadResult{LoadType: track.LoadTypeEmpty}, nil
}

func (f *fakeRPC) Info(context.Context) (*lavalink.Info, error) {
	if f.info == nil {
		return nil, errors.New("offline")
	}
	return f.info, nil
}

func (f *fakeRPC) Lyrics(context.Context, string, bool) (*lavalink.Lyrics, error) { return nil, nil }

func (f *fakeRPC) SponsorBlock(context.Context, string, string) ([]string, error) { return nil, nil }

func (f *fakeRPC) SetSponsorBlock(context.Context, string, string, []string) error { return nil }

func (f *fakeRPC) DeleteSponsorBlock(context.Context, string, string) error { return nil }

func (f *fakeRPC) UpdateSession(_ context.Context, sid string, resuming bool, timeout int) error {
	f.sessionArg, f.resuming, f.timeout = sid, resuming, timeout
	return nil
}

func newNode(t *testing.T, id string, priority int) *Node {
	t.Helper()
	opts := Options{Identifier: id, Host: "localhost", Priority: priority}
	require.NoError(t, opts.Normalize())
	return New(opts, &fakeRPC{})
}

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
		check   func(t *testing.T, o Options)
	}{
		{
			name: "defaults",
			opts: Options{Host: "lavalink"},
			check: func(t *testing.T, o Options) {
				assert.Equal(t, "lavalink", o.Identifier)
				assert.Equal(t, 2333, o.Port)
				assert.Equal(t, "youshallnotpass", o.Password)
				assert.Equal(t, 60*time.Second, o.SessionTimeout)
				assert.Equal(t, 5, o.MaxRetryAttempts)
				assert.Equal(t, 5*time.Second, o.RetryDelay)
			},
		},
		{
			name: "explicit identifier kept",
			opts: Options{Identifier: "main", Host: "10.0.0.1", Port: 443, Secure: true},
			check: func(t *testing.T, o Options) {
				assert.Equal(t, "main", o.Identifier)
				assert.Equal(t, 443, o.Port)
			},
		},
		{name: "missing host", opts: Options{}, wantErr: true},
		{name: "port too large", opts: Options{Host: "h", Port: 70000}, wantErr: true},
		{name: "negative priority", opts: Options{Host: "h", Priority: -1}, wantErr: true},
		{name: "negative retries", opts: Options{Host: "h", MaxRetryAttempts: -2}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.opts
			err := o.Normalize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, o)
		})
	}
}

func TestNode_Usable(t *testing.T) {
	n := newNode(t, "a", 0)
	assert.False(t, n.Usable())

	n.SetReady("sess")
	assert.True(t, n.Usable())
	assert.Equal(t, "sess", n.SessionID())

	n.SetDisconnected()
	assert.False(t, n.Usable())
	assert.Equal(t, "sess", n.SessionID(), "session id survives for resuming")
}

func TestNode_UpdatePlayerRequiresSession(t *testing.T) {
	rpc := &fakeRPC{}
	opts := Options{Host: "h"}
	require.NoError(t, opts.Normalize())
	n := New(opts, rpc)

	err := n.UpdatePlayer(context.Background(), "42", &lavalink.PlayerUpdate{}, false)
	assert.ErrorIs(t, err, ErrNotConnected)

	n.SetReady("sess")
	require.NoError(t, n.UpdatePlayer(context.Background(), "42", &lavalink.PlayerUpdate{}, false))
	assert.Equal(t, "sess", rpc.sessionArg)
}

func TestNode_Penalty(t *testing.T) {
	n := newNode(t, "a", 0)
	assert.Equal(t, 0.0, n.Penalty())

	n.SetStats(lavalink.Stats{PlayingPlayers: 4})
	assert.Equal(t, 4.0, n.Penalty())

	idle := n.Penalty()
	n.SetStats(lavalink.Stats{PlayingPlayers: 4, CPU: lavalink.CPU{SystemLoad: 0.5}})
	assert.Greater(t, n.Penalty(), idle)

	loaded := n.Penalty()
	n.SetStats(lavalink.Stats{
		PlayingPlayers: 4,
		CPU:            lavalink.CPU{SystemLoad: 0.5},
		FrameStats:     &lavalink.FrameStats{Nulled: 300, Deficit: 300},
	})
	assert.Greater(t, n.Penalty(), loaded)
}

func TestNode_HasPlugin(t *testing.T) {
	rpc := &fakeRPC{info: &lavalink.Info{Plugins: []lavalink.Plugin{{Name: "lavalyrics-plugin"}}}}
	opts := Options{Host: "h"}
	require.NoError(t, opts.Normalize())
	n := New(opts, rpc)

	assert.False(t, n.HasPlugin("lavalyrics-plugin"))
	require.NoError(t, n.RefreshInfo(context.Background()))
	assert.True(t, n.HasPlugin("lavalyrics-plugin"))
	assert.False(t, n.HasPlugin("sponsorblock-plugin"))
}

func TestNode_EnableResume(t *testing.T) {
	rpc := &fakeRPC{}
	opts := Options{Host: "h", Resume: true, SessionTimeout: 90 * time.Second}
	require.NoError(t, opts.Normalize())
	n := New(opts, rpc)
	n.SetReady("sess")

	require.NoError(t, n.EnableResume(context.Background()))
	assert.Equal(t, "sess", rpc.sessionArg)
	assert.True(t, rpc.resuming)
	assert.Equal(t, 90, rpc.timeout)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := newNode(t, "a", 0)
	require.NoError(t, r.Add(a))
	assert.ErrorIs(t, r.Add(newNode(t, "a", 0)), ErrDuplicateNode)

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	assert.Empty(t, r.All())
}

func TestRegistry_Best(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, r *Registry)
		want    string
		wantErr error
	}{
		{
			name:    "empty",
			setup:   func(t *testing.T, r *Registry) {},
			wantErr: ErrNoUsableNode,
		},
		{
			name: "skips unusable",
			setup: func(t *testing.T, r *Registry) {
				down := newNode(t, "down", 10)
				up := newNode(t, "up", 0)
				up.SetReady("s")
				require.NoError(t, r.Add(down))
				require.NoError(t, r.Add(up))
			},
			want: "up",
		},
		{
			name: "highest priority wins",
			setup: func(t *testing.T, r *Registry) {
				low := newNode(t, "low", 1)
				high := newNode(t, "high", 5)
				low.SetReady("s")
				high.SetReady("s")
				high.SetStats(lavalink.Stats{PlayingPlayers: 100})
				require.NoError(t, r.Add(low))
				require.NoError(t, r.Add(high))
			},
			want: "high",
		},
		{
			name: "tie goes to least loaded",
			setup: func(t *testing.T, r *Registry) {
				busy := newNode(t, "busy", 1)
				idle := newNode(t, "idle", 1)
				busy.SetReady("s")
				idle.SetReady("s")
				busy.SetStats(lavalink.Stats{PlayingPlayers: 10})
				idle.SetStats(lavalink.Stats{PlayingPlayers: 1})
				require.NoError(t, r.Add(busy))
				require.NoError(t, r.Add(idle))
			},
			want: "idle",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			tt.setup(t, r)
			n, err := r.Best()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.ID())
		})
	}
}
