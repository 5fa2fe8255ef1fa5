// Package node provides execution node state, load scoring and selection.
package node

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/lavalink"
)

var ErrNotConnected = errors.New("node is not connected")

// RPC is the request/response surface of an execution node.
type RPC interface {
	UpdatePlayer(ctx context.Context, sessionID, guildID string, update *lavalink.PlayerUpdate, noReplace bool) error
	DestroyPlayer(ctx context.Context, sessionID, guildID string) error
	LoadTracks(ctx context.Context, identifier string) (*track.LoadResult, error)
	Info(ctx context.Context) (*lavalink.Info, error)
	Lyrics(ctx context.Context, encoded string, skipTrackSource bool) (*lavalink.Lyrics, error)
	SponsorBlock(ctx context.Context, sessionID, guildID string) ([]string, error)
	SetSponsorBlock(ctx context.Context, sessionID, guildID string, categories []string) error
	DeleteSponsorBlock(ctx context.Context, sessionID, guildID string) error
	UpdateSession(ctx context.Context, sessionID string, resuming bool, timeoutSec int) error
}

// Conn is the push connection of a node.
type Conn interface {
	Connect(ctx context.Context) error
	Close() error
}

// Node is the runtime view of one execution node.
type Node struct {
	opts Options
	rpc  RPC

	mu        sync.RWMutex
	conn      Conn
	connected bool
	sessionID string
	stats     lavalink.Stats
	info      *lavalink.Info
}

// New creates a node. opts must already be normalized.
func New(opts Options, rpc RPC) *Node {
	return &Node{opts: opts, rpc: rpc}
}

// ID returns the node identifier.
func (n *Node) ID() string {
	return n.opts.Identifier
}

// Options returns the node options.
func (n *Node) Options() Options {
	return n.opts
}

// SetConn attaches the push connection.
func (n *Node) SetConn(c Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.conn = c
}

// Connect opens the push connection.
func (n *Node) Connect(ctx context.Context) error {
	n.mu.RLock()
	c := n.conn
	n.mu.RUnlock()
	if c == nil {
		return errors.Newf("node %s has no connection", n.ID())
	}
	return c.Connect(ctx)
}

// Close closes the push connection and marks the node unusable.
func (n *Node) Close() error {
	n.mu.Lock()
	c := n.conn
	n.connected = false
	n.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}

// SetReady records the session announced by the node.
func (n *Node) SetReady(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connected = true
	n.sessionID = sessionID
	zlog.Info().Msgf("node: ready: id=%s session=%s", n.opts.Identifier, sessionID)
}

// SetDisconnected marks the node unusable. The session id is kept for resuming.
func (n *Node) SetDisconnected() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connected = false
}

// SessionID returns the current node session id.
func (n *Node) SessionID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sessionID
}

// Usable reports whether players can be placed on the node.
func (n *Node) Usable() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.connected && n.sessionID != ""
}

// SetStats stores a load report.
func (n *Node) SetStats(s lavalink.Stats) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stats = s
}

// Stats returns the last load report.
func (n *Node) Stats() lavalink.Stats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stats
}

// Penalty scores the node load. Lower is better.
func (n *Node) Penalty() float64 {
	s := n.Stats()
	penalty := float64(s.PlayingPlayers)
	penalty += math.Round(math.Pow(1.05, 100*s.CPU.SystemLoad)*10 - 10)
	if fs := s.FrameStats; fs != nil {
		penalty += math.Pow(1.03, 500*(float64(fs.Deficit)/3000))*600 - 600
		penalty += (math.Pow(1.03, 500*(float64(fs.Nulled)/3000))*300 - 300) * 2
	}
	return penalty
}

// RefreshInfo fetches and stores the node information document.
func (n *Node) RefreshInfo(ctx context.Context) error {
	info, err := n.rpc.Info(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch info of node %s", n.ID())
	}
	n.mu.Lock()
	n.info = info
	n.mu.Unlock()
	return nil
}

// HasPlugin reports whether the node announced the named plugin.
func (n *Node) HasPlugin(name string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.info == nil {
		return false
	}
	return slices.ContainsFunc(n.info.Plugins, func(p lavalink.Plugin) bool { return p.Name == name })
}

// EnableResume configures session resuming when the node options ask for it.
func (n *Node) EnableResume(ctx context.Context) error {
	if !n.opts.Resume {
		return nil
	}
	timeout := int(n.opts.SessionTimeout / time.Second)
	if err := n.rpc.UpdateSession(ctx, n.SessionID(), true, timeout); err != nil {
		return errors.Wrapf(err, "failed to enable resuming on node %s", n.ID())
	}
	return nil
}

func (n *Node) session() (string, error) {
	sid := n.SessionID()
	if sid == "" {
		return "", errors.Wrapf(ErrNotConnected, "node %s", n.ID())
	}
	return sid, nil
}

// UpdatePlayer sends a player update for guildID.
func (n *Node) UpdatePlayer(ctx context.Context, guildID string, update *lavalink.PlayerUpdate, noReplace bool) error {
	sid, err := n.session()
	if err != nil {
		return err
	}
	return n.rpc.UpdatePlayer(ctx, sid, guildID, update, noReplace)
}

// DestroyPlayer removes the remote player of guildID.
func (n *Node) DestroyPlayer(ctx context.Context, guildID string) error {
	sid, err := n.session()
	if err != nil {
		return err
	}
	return n.rpc.DestroyPlayer(ctx, sid, guildID)
}

// LoadTracks resolves an identifier on the node.
func (n *Node) LoadTracks(ctx context.Context, identifier string) (*track.LoadResult, error) {
	return n.rpc.LoadTracks(ctx, identifier)
}

// Lyrics fetches lyrics for an encoded track.
func (n *Node) Lyrics(ctx context.Context, encoded string, skipTrackSource bool) (*lavalink.Lyrics, error) {
	return n.rpc.Lyrics(ctx, encoded, skipTrackSource)
}

// SponsorBlock returns the sponsorblock categories of guildID.
func (n *Node) SponsorBlock(ctx context.Context, guildID string) ([]string, error) {
	sid, err := n.session()
	if err != nil {
		return nil, err
	}
	return n.rpc.SponsorBlock(ctx, sid, guildID)
}

// SetSponsorBlock replaces the sponsorblock categories of guildID.
func (n *Node) SetSponsorBlock(ctx context.Context, guildID string, categories []string) error {
	sid, err := n.session()
	if err != nil {
		return err
	}
	return n.rpc.SetSponsorBlock(ctx, sid, guildID, categories)
}

// DeleteSponsorBlock removes the sponsorblock categories of guildID.
func (n *Node) DeleteSponsorBlock(ctx context.Context, guildID string) error {
	sid, err := n.session()
	if err != nil {
		return err
	}
	return n.rpc.DeleteSponsorBlock(ctx, sid, guildID)
}
