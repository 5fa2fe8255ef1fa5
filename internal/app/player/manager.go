// Package player provides the per-guild playback session and the registry that owns it.
//
// A Player serializes every command with its own mutex. Remote calls to the execution
// node are issued while the mutex is held so commands on one guild apply in the order
// they were received. State updates queued during a command are published in order
// once the mutex is released.
package player

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"

	"github.com/ItzRandom23/magmastream-custom/internal/app/node"
	"github.com/ItzRandom23/magmastream-custom/internal/app/resolver"
	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
)

// Gateway sends voice state updates to the chat platform.
type Gateway interface {
	SendVoiceState(ctx context.Context, update VoiceStateUpdate) error
}

// VoiceStateUpdate joins (ChannelID set) or leaves (ChannelID nil) a voice channel.
type VoiceStateUpdate struct {
	GuildID   string
	ChannelID *string
	SelfMute  bool
	SelfDeaf  bool
}

// Searcher is the part of the resolver a player uses.
type Searcher interface {
	Search(ctx context.Context, query string, requester *track.Requester) *resolver.Result
	Recommendations(ctx context.Context, url string, limit int, requester *track.Requester) *resolver.Result
	Similar(ctx context.Context, title, artist string, limit int, requester *track.Requester) *resolver.Result
}

// Config represents player manager configuration.
type Config struct {
	DefaultVolume         int           `yaml:"default_volume" default:"100" validate:"min=0,max=1000"`
	AutoplayTries         int           `yaml:"autoplay_tries" default:"3" validate:"min=1"`
	DynamicRepeatInterval time.Duration `yaml:"dynamic_repeat_interval" default:"3s" validate:"gt=0"`
	RequestTimeout        time.Duration `yaml:"request_timeout" default:"10s" validate:"gt=0"`
	// SelfMute and SelfDeafen apply to every player in addition to its own options.
	SelfMute   bool `yaml:"self_mute"`
	SelfDeafen bool `yaml:"self_deafen"`
}

// Manager is the registry of live players, one per guild.
type Manager struct {
	cfg       Config
	nodes     *node.Registry
	gateway   Gateway
	searcher  Searcher
	publisher Publisher

	mu      sync.RWMutex
	players map[string]*Player
}

// NewManager creates a player manager. publisher may be nil.
func NewManager(cfg Config, nodes *node.Registry, gateway Gateway, searcher Searcher, publisher Publisher) (*Manager, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set player defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid player configuration")
	}
	if nodes == nil {
		return nil, errors.New("node registry is required")
	}
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Manager{
		cfg:       cfg,
		nodes:     nodes,
		gateway:   gateway,
		searcher:  searcher,
		publisher: publisher,
		players:   make(map[string]*Player),
	}, nil
}

// Options describes a player to create.
type Options struct {
	GuildID        string `validate:"required"`
	VoiceChannelID string
	TextChannelID  string
	// Node is the preferred node identifier. Unknown or empty picks the best usable node.
	Node       string
	Volume     *int `validate:"omitempty,min=0,max=1000"`
	SelfMute   bool
	SelfDeafen bool
}

// Create returns the player of opts.GuildID, creating it when none exists.
func (m *Manager) Create(opts Options) (*Player, error) {
	if err := validator.New().Struct(opts); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid player options"), ErrConfiguration)
	}

	m.mu.Lock()
	if p, ok := m.players[opts.GuildID]; ok {
		m.mu.Unlock()
		return p, nil
	}

	var n *node.Node
	if opts.Node != "" {
		if found, err := m.nodes.Get(opts.Node); err == nil {
			n = found
		} else {
			zlog.Warn().Msgf("player: requested node unknown, using best: guild=%s node=%s", opts.GuildID, opts.Node)
		}
	}
	if n == nil {
		best, err := m.nodes.Best()
		if err != nil {
			m.mu.Unlock()
			return nil, errors.Mark(errors.Wrap(err, "failed to create player"), ErrConfiguration)
		}
		n = best
	}

	volume := m.cfg.DefaultVolume
	if opts.Volume != nil {
		volume = *opts.Volume
	}
	opts.SelfMute = opts.SelfMute || m.cfg.SelfMute
	opts.SelfDeafen = opts.SelfDeafen || m.cfg.SelfDeafen
	p := newPlayer(m, opts, n, volume)
	m.players[opts.GuildID] = p
	m.mu.Unlock()

	zlog.Info().Msgf("player: created: guild=%s node=%s", opts.GuildID, n.ID())
	p.mu.Lock()
	p.emitLocked(ChangeCreate, p.snapshotLocked(), nil)
	p.unlock()
	return p, nil
}

// Get returns the player of guildID.
func (m *Manager) Get(guildID string) (*Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[guildID]
	return p, ok
}

// All returns every live player.
func (m *Manager) All() []*Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Player, 0, len(m.players))
	for _, p := range m.players {
		result = append(result, p)
	}
	return result
}

// Count returns the number of live players.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

// PlayersOn returns the players currently backed by nodeID.
func (m *Manager) PlayersOn(nodeID string) []*Player {
	var result []*Player
	for _, p := range m.All() {
		if n := p.Node(); n != nil && n.ID() == nodeID {
			result = append(result, p)
		}
	}
	return result
}

// Destroy destroys the player of guildID. It reports whether a player was removed.
func (m *Manager) Destroy(ctx context.Context, guildID string) bool {
	p, ok := m.Get(guildID)
	if !ok {
		return false
	}
	return p.Destroy(ctx, true)
}

// Shutdown destroys every player.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, p := range m.All() {
		p.Destroy(ctx, true)
	}
}

// remove drops p from the registry if it is still the registered instance.
func (m *Manager) remove(p *Player) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.players[p.guildID]; !ok || cur != p {
		return false
	}
	delete(m.players, p.guildID)
	return true
}

func (m *Manager) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
}
