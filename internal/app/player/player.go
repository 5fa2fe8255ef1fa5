package player

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ItzRandom23/magmastream-custom/internal/app/filters"
	"github.com/ItzRandom23/magmastream-custom/internal/app/node"
	"github.com/ItzRandom23/magmastream-custom/internal/app/resolver"
	"github.com/ItzRandom23/magmastream-custom/internal/domain/effect"
	"github.com/ItzRandom23/magmastream-custom/internal/domain/queue"
	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/lavalink"
)

const (
	minVolume = 0
	maxVolume = 1000
)

// Player is the playback session of one guild.
type Player struct {
	manager *Manager
	guildID string
	nodeRef atomic.Pointer[node.Node]

	// emitMu orders publishing across commands.
	emitMu  sync.Mutex
	mu      sync.Mutex
	pending []*StateUpdate

	state          State
	voiceChannelID string
	textChannelID  string
	selfMute       bool
	selfDeafen     bool
	voice          lavalink.Voice
	connected      bool
	ping           int64

	position int64
	volume   int
	playing  bool
	paused   bool

	trackRepeat     bool
	queueRepeat     bool
	dynamicRepeat   bool
	dynamicInterval time.Duration
	stopDynamic     context.CancelFunc

	autoplay      bool
	autoplayTries int
	botUser       *track.Requester

	nowPlayingMessage string
	data              map[string]any

	queue     *queue.Queue
	filters   *filters.Filters
	destroyed bool
}

func newPlayer(m *Manager, opts Options, n *node.Node, volume int) *Player {
	p := &Player{
		manager:        m,
		guildID:        opts.GuildID,
		state:          StateDisconnected,
		voiceChannelID: opts.VoiceChannelID,
		textChannelID:  opts.TextChannelID,
		selfMute:       opts.SelfMute,
		selfDeafen:     opts.SelfDeafen,
		volume:         volume,
		data:           make(map[string]any),
		queue:          queue.New(),
	}
	p.nodeRef.Store(n)
	p.filters = filters.New(p)
	return p
}

// unlock releases p.mu and publishes the updates queued while it was held.
func (p *Player) unlock() {
	pending := p.pending
	p.pending = nil
	p.emitMu.Lock()
	p.mu.Unlock()
	defer p.emitMu.Unlock()
	for _, u := range pending {
		p.manager.publisher.Publish(u)
	}
}

func (p *Player) snapshotLocked() Snapshot {
	s := Snapshot{
		State:          p.state,
		VoiceChannelID: p.voiceChannelID,
		TextChannelID:  p.textChannelID,
		Volume:         p.volume,
		Position:       p.position,
		Playing:        p.playing,
		Paused:         p.paused,
		Repeat:         p.repeatModeLocked(),
		Autoplay:       p.autoplay,
		Current:        p.queue.Current(),
		QueueSize:      p.queue.Size(),
	}
	if n := p.nodeRef.Load(); n != nil {
		s.Node = n.ID()
	}
	return s
}

func (p *Player) emitLocked(typ ChangeType, before Snapshot, details any) {
	p.pending = append(p.pending, &StateUpdate{
		GuildID: p.guildID,
		Type:    typ,
		Before:  before,
		After:   p.snapshotLocked(),
		Details: details,
		Time:    time.Now(),
	})
}

// GuildID returns the guild the player belongs to.
func (p *Player) GuildID() string {
	return p.guildID
}

// Node returns the node backing the player.
func (p *Player) Node() *node.Node {
	return p.nodeRef.Load()
}

// Filters returns the filter pipeline. It is released once the player is destroyed.
func (p *Player) Filters() *filters.Filters {
	return p.filters
}

// Snapshot returns the current externally visible state.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// State returns the connection state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Position returns the last known playback position in milliseconds.
func (p *Player) Position() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Volume returns the player volume.
func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Playing reports whether a track is playing.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Paused reports whether playback is paused.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// VoiceChannelID returns the bound voice channel, or "".
func (p *Player) VoiceChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiceChannelID
}

// TextChannelID returns the bound text channel, or "".
func (p *Player) TextChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.textChannelID
}

// Ping returns the last voice gateway ping reported by the node.
func (p *Player) Ping() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ping
}

// Current returns the current track, or nil.
func (p *Player) Current() *track.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Current()
}

// Tracks returns the pending tracks in play order.
func (p *Player) Tracks() []*track.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Tracks()
}

// Previous returns the play history, most recent last.
func (p *Player) Previous() []*track.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Previous()
}

// QueueSize returns the pending track count.
func (p *Player) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Size()
}

// TotalSize returns the pending track count plus the current track.
func (p *Player) TotalSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.TotalSize()
}

// Set stores a value in the custom data bag.
func (p *Player) Set(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[key] = value
}

// Get reads a value from the custom data bag.
func (p *Player) Get(key string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.data[key]
	return v, ok
}

// SetNowPlayingMessage records the chat message announcing the current track.
func (p *Player) SetNowPlayingMessage(messageID string) error {
	if messageID == "" {
		return configErrorf("now playing message is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nowPlayingMessage = messageID
	return nil
}

// NowPlayingMessage returns the recorded now playing message id.
func (p *Player) NowPlayingMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nowPlayingMessage
}

// SendFilters applies a filter set on the node. It does not take the player lock.
func (p *Player) SendFilters(ctx context.Context, set effect.Set) error {
	n := p.nodeRef.Load()
	if n == nil {
		return ErrNotConnected
	}
	return n.UpdatePlayer(ctx, p.guildID, &lavalink.PlayerUpdate{Filters: &set}, false)
}

func (p *Player) sendLocked(ctx context.Context, update *lavalink.PlayerUpdate, noReplace bool) error {
	if p.destroyed {
		return ErrDestroyed
	}
	n := p.nodeRef.Load()
	if n == nil {
		return ErrNotConnected
	}
	return n.UpdatePlayer(ctx, p.guildID, update, noReplace)
}

// Search resolves a free-text query through the catalog.
func (p *Player) Search(ctx context.Context, query string, requester *track.Requester) *resolver.Result {
	if p.manager.searcher == nil {
		return resolver.Empty()
	}
	return p.manager.searcher.Search(ctx, query, requester)
}

// Connect joins the bound voice channel.
func (p *Player) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.unlock()
	return p.connectLocked(ctx)
}

func (p *Player) connectLocked(ctx context.Context) error {
	if p.voiceChannelID == "" {
		return ErrNoVoiceChannel
	}
	before := p.snapshotLocked()
	p.state = StateConnecting

	channelID := p.voiceChannelID
	err := p.manager.gateway.SendVoiceState(ctx, VoiceStateUpdate{
		GuildID:   p.guildID,
		ChannelID: &channelID,
		SelfMute:  p.selfMute,
		SelfDeaf:  p.selfDeafen,
	})
	if err != nil {
		zlog.Warn().Err(err).Msgf("player: voice join not sent: guild=%s channel=%s", p.guildID, channelID)
	}

	p.state = StateConnected
	p.emitLocked(ChangeConnection, before, &ConnectionDetails{Action: "connect"})
	return nil
}

// Disconnect pauses playback and leaves the voice channel.
func (p *Player) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.unlock()
	return p.disconnectLocked(ctx)
}

func (p *Player) disconnectLocked(ctx context.Context) error {
	if p.voiceChannelID == "" {
		return ErrNotConnected
	}
	before := p.snapshotLocked()
	p.state = StateDisconnecting

	if err := p.pauseLocked(ctx, true); err != nil {
		zlog.Debug().Err(err).Msgf("player: pause before disconnect failed: guild=%s", p.guildID)
	}
	err := p.manager.gateway.SendVoiceState(ctx, VoiceStateUpdate{
		GuildID:  p.guildID,
		SelfMute: false,
		SelfDeaf: false,
	})
	if err != nil {
		zlog.Warn().Err(err).Msgf("player: voice leave not sent: guild=%s", p.guildID)
	}

	p.voiceChannelID = ""
	p.state = StateDisconnected
	p.emitLocked(ChangeConnection, before, &ConnectionDetails{Action: "disconnect"})
	return nil
}

// Destroy tears the player down and removes it from the registry. disconnect first
// leaves the voice channel. Cleanup failures are logged and never returned. The result
// reports whether this call removed the player.
func (p *Player) Destroy(ctx context.Context, disconnect bool) bool {
	p.mu.Lock()
	defer p.unlock()

	if p.destroyed {
		return p.manager.remove(p)
	}
	before := p.snapshotLocked()
	p.state = StateDestroying

	if disconnect && p.voiceChannelID != "" {
		if err := p.disconnectLocked(ctx); err != nil {
			zlog.Debug().Err(err).Msgf("player: disconnect during destroy failed: guild=%s", p.guildID)
		}
	}
	p.stopDynamicLocked()
	p.dynamicRepeat = false
	p.autoplay = false

	if n := p.nodeRef.Load(); n != nil {
		if err := n.DestroyPlayer(ctx, p.guildID); err != nil {
			zlog.Debug().Err(err).Msgf("player: remote destroy failed: guild=%s node=%s", p.guildID, n.ID())
		}
	}

	p.queue.Reset()
	p.filters.Release()
	p.playing = false
	p.state = StateDestroying
	p.destroyed = true
	p.emitLocked(ChangeDestroy, before, nil)

	removed := p.manager.remove(p)
	zlog.Info().Msgf("player: destroyed: guild=%s removed=%t", p.guildID, removed)
	return removed
}

// SetVoiceChannel binds a voice channel and joins it.
func (p *Player) SetVoiceChannel(ctx context.Context, channelID string) error {
	if channelID == "" {
		return configErrorf("voice channel id is required")
	}
	p.mu.Lock()
	defer p.unlock()

	before := p.snapshotLocked()
	prev := p.voiceChannelID
	p.voiceChannelID = channelID
	if err := p.connectLocked(ctx); err != nil {
		return err
	}
	p.emitLocked(ChangeChannel, before, &ChannelDetails{Kind: "voice", Previous: prev, Current: channelID})
	return nil
}

// SetTextChannel binds the text channel used for announcements.
func (p *Player) SetTextChannel(channelID string) error {
	if channelID == "" {
		return configErrorf("text channel id is required")
	}
	p.mu.Lock()
	defer p.unlock()

	before := p.snapshotLocked()
	prev := p.textChannelID
	p.textChannelID = channelID
	p.emitLocked(ChangeChannel, before, &ChannelDetails{Kind: "text", Previous: prev, Current: channelID})
	return nil
}

// Add appends valid tracks to the queue.
func (p *Player) Add(tracks ...*track.Track) error {
	if len(tracks) == 0 || !track.ValidateAll(tracks) {
		return configErrorf("tracks must be valid tracks")
	}
	p.mu.Lock()
	defer p.unlock()

	before := p.snapshotLocked()
	p.queue.Add(tracks...)
	p.emitLocked(ChangeQueue, before, &QueueDetails{Action: QueueAdd, Tracks: tracks})
	return nil
}

// Remove removes the pending tracks in [start, end).
func (p *Player) Remove(start, end int) ([]*track.Track, error) {
	p.mu.Lock()
	defer p.unlock()

	before := p.snapshotLocked()
	removed, err := p.queue.Remove(start, end)
	if err != nil {
		return nil, errors.Mark(err, ErrRange)
	}
	p.emitLocked(ChangeQueue, before, &QueueDetails{Action: QueueRemove, Tracks: removed})
	return removed, nil
}

// ClearQueue removes every pending track.
func (p *Player) ClearQueue() []*track.Track {
	p.mu.Lock()
	defer p.unlock()

	before := p.snapshotLocked()
	removed := p.queue.Clear()
	p.emitLocked(ChangeQueue, before, &QueueDetails{Action: QueueClear, Tracks: removed})
	return removed
}

// Shuffle shuffles the pending tracks.
func (p *Player) Shuffle() {
	p.mu.Lock()
	defer p.unlock()

	before := p.snapshotLocked()
	p.queue.Shuffle()
	p.emitLocked(ChangeQueue, before, &QueueDetails{Action: QueueShuffle})
}

// PlayOptions adjust a play command.
type PlayOptions struct {
	StartTime int64 // milliseconds
	EndTime   int64 // milliseconds, zero plays to the end
	NoReplace bool
}

// Play starts t, or the current track when t is nil. With no current track the
// first queued track becomes current.
func (p *Player) Play(ctx context.Context, t *track.Track, opts PlayOptions) error {
	if t != nil && !track.Validate(t) {
		return configErrorf("track must be a valid track")
	}
	p.mu.Lock()
	defer p.unlock()
	return p.playLocked(ctx, t, opts)
}

// playLocked sends t, falling back to the current track and then the queue front.
// The queue is only changed once the node accepted the track.
func (p *Player) playLocked(ctx context.Context, t *track.Track, opts PlayOptions) error {
	current, fromQueue := t, false
	if current == nil {
		current = p.queue.Current()
	}
	if current == nil {
		current = p.queue.Front()
		if current == nil {
			return ErrNoCurrentTrack
		}
		fromQueue = true
	}

	if opts.StartTime < 0 || (current.Duration > 0 && opts.StartTime > current.Duration) {
		return rangeErrorf("start time must be between 0 and %d", current.Duration)
	}
	if opts.EndTime < 0 || (current.Duration > 0 && opts.EndTime > current.Duration) {
		return rangeErrorf("end time must be between 0 and %d", current.Duration)
	}
	if opts.EndTime > 0 && opts.EndTime <= opts.StartTime {
		return rangeErrorf("end time must be after start time")
	}

	update := &lavalink.PlayerUpdate{EncodedTrack: lavalink.Play(current.Encoded)}
	if opts.StartTime > 0 {
		update.Position = lavalink.Ptr(opts.StartTime)
	}
	if opts.EndTime > 0 {
		update.EndTime = lavalink.Ptr(opts.EndTime)
	}
	if err := p.sendLocked(ctx, update, opts.NoReplace); err != nil {
		return errors.Wrap(err, "failed to play track")
	}

	if fromQueue {
		p.queue.Shift()
	}
	p.queue.SetCurrent(current)
	p.playing = true
	p.paused = false
	p.position = opts.StartTime
	return nil
}

// Restart plays the current track from the beginning. Without a current track the
// queue is started if it has tracks.
func (p *Player) Restart(ctx context.Context) error {
	p.mu.Lock()
	defer p.unlock()

	current := p.queue.Current()
	if current == nil {
		if p.queue.Size() > 0 {
			return p.playLocked(ctx, nil, PlayOptions{})
		}
		return nil
	}
	update := &lavalink.PlayerUpdate{
		Position:     lavalink.Ptr(int64(0)),
		EncodedTrack: lavalink.Play(current.Encoded),
	}
	if err := p.sendLocked(ctx, update, false); err != nil {
		return errors.Wrap(err, "failed to restart track")
	}
	p.playing = true
	p.paused = false
	p.position = 0
	return nil
}

// Stop stops the current track. An amount above one also drops amount-1 tracks from
// the front of the queue.
func (p *Player) Stop(ctx context.Context, amount int) error {
	p.mu.Lock()
	defer p.unlock()
	return p.stopLocked(ctx, amount)
}

func (p *Player) stopLocked(ctx context.Context, amount int) error {
	if amount > 1 && amount > p.queue.Size() {
		return rangeErrorf("cannot skip more than the queue length (%d)", p.queue.Size())
	}
	if err := p.sendLocked(ctx, &lavalink.PlayerUpdate{EncodedTrack: lavalink.Stop()}, false); err != nil {
		return errors.Wrap(err, "failed to stop track")
	}

	before := p.snapshotLocked()
	p.position = 0
	if amount > 1 {
		removed, err := p.queue.Remove(0, amount-1)
		if err != nil {
			return errors.Mark(err, ErrRange)
		}
		p.emitLocked(ChangeQueue, before, &QueueDetails{Action: QueueRemove, Tracks: removed})
	}
	return nil
}

// Pause pauses or resumes playback. It does nothing when already in that state or
// when nothing is queued.
func (p *Player) Pause(ctx context.Context, pause bool) error {
	p.mu.Lock()
	defer p.unlock()
	return p.pauseLocked(ctx, pause)
}

func (p *Player) pauseLocked(ctx context.Context, pause bool) error {
	if p.paused == pause || p.queue.TotalSize() == 0 {
		return nil
	}
	if err := p.sendLocked(ctx, &lavalink.PlayerUpdate{Paused: lavalink.Ptr(pause)}, false); err != nil {
		return errors.Wrap(err, "failed to pause player")
	}
	before := p.snapshotLocked()
	p.playing = !pause
	p.paused = pause
	p.emitLocked(ChangePause, before, &PauseDetails{Paused: pause})
	return nil
}

// Seek moves the current track to position, clamped to [0, duration].
func (p *Player) Seek(ctx context.Context, position int64) error {
	p.mu.Lock()
	defer p.unlock()

	current := p.queue.Current()
	if current == nil {
		return ErrNoCurrentTrack
	}
	position = max(0, min(position, current.Duration))

	if err := p.sendLocked(ctx, &lavalink.PlayerUpdate{Position: lavalink.Ptr(position)}, false); err != nil {
		return errors.Wrap(err, "failed to seek")
	}
	before := p.snapshotLocked()
	p.position = position
	p.emitLocked(ChangeTrack, before, &TrackDetails{Action: TrackTimeUpdate, Track: current, Position: position})
	return nil
}

// PlayPrevious plays the most recent history entry. The current track goes back to the
// front of the queue unless it is already there.
func (p *Player) PlayPrevious(ctx context.Context) error {
	p.mu.Lock()
	defer p.unlock()

	last, ok := p.queue.PopPrevious()
	if !ok {
		return ErrNoHistory
	}
	before := p.snapshotLocked()
	if current := p.queue.Current(); current != nil {
		front := p.queue.Front()
		if front == nil || front.Identifier != current.Identifier {
			p.queue.AddFront(current)
		}
	}
	p.queue.SetCurrent(last)
	if err := p.playLocked(ctx, nil, PlayOptions{}); err != nil {
		return err
	}
	p.emitLocked(ChangeTrack, before, &TrackDetails{Action: TrackPrevious, Track: last})
	return nil
}

// SetVolume sets the player volume in [0, 1000].
func (p *Player) SetVolume(ctx context.Context, volume int) error {
	if volume < minVolume || volume > maxVolume {
		return rangeErrorf("volume must be between %d and %d", minVolume, maxVolume)
	}
	p.mu.Lock()
	defer p.unlock()

	if err := p.sendLocked(ctx, &lavalink.PlayerUpdate{Volume: lavalink.Ptr(volume)}, false); err != nil {
		return errors.Wrap(err, "failed to set volume")
	}
	before := p.snapshotLocked()
	prev := p.volume
	p.volume = volume
	p.emitLocked(ChangeVolume, before, &VolumeDetails{Previous: prev, Current: volume})
	return nil
}

// SetAutoplay enables autoplay on behalf of botUser, or disables it. tries at or below
// zero uses the configured default.
func (p *Player) SetAutoplay(enabled bool, botUser *track.Requester, tries int) error {
	if enabled && botUser == nil {
		return configErrorf("a bot user is required to enable autoplay")
	}
	p.mu.Lock()
	defer p.unlock()

	before := p.snapshotLocked()
	if enabled {
		if tries <= 0 {
			tries = p.manager.cfg.AutoplayTries
		}
		p.autoplay = true
		p.autoplayTries = tries
		p.botUser = botUser
	} else {
		p.autoplay = false
		p.autoplayTries = 0
		p.botUser = nil
	}
	p.emitLocked(ChangeAutoplay, before, &AutoplayDetails{Enabled: enabled, Tries: p.autoplayTries})
	return nil
}

// Autoplay reports whether autoplay is enabled and with how many tries.
func (p *Player) Autoplay() (bool, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoplay, p.autoplayTries
}

// exported copies the state carried over by SwitchGuild.
type exported struct {
	node              *node.Node
	selfMute          bool
	selfDeafen        bool
	volume            int
	position          int64
	paused            bool
	current           *track.Track
	tracks            []*track.Track
	previous          []*track.Track
	filters           filters.State
	autoplay          bool
	autoplayTries     int
	botUser           *track.Requester
	nowPlayingMessage string
	trackRepeat       bool
	queueRepeat       bool
	dynamicRepeat     bool
	dynamicInterval   time.Duration
	data              map[string]any
}

func (p *Player) export() exported {
	p.mu.Lock()
	defer p.mu.Unlock()
	return exported{
		node:              p.nodeRef.Load(),
		selfMute:          p.selfMute,
		selfDeafen:        p.selfDeafen,
		volume:            p.volume,
		position:          p.position,
		paused:            p.paused,
		current:           p.queue.Current(),
		tracks:            p.queue.Tracks(),
		previous:          p.queue.Previous(),
		filters:           p.filters.State(),
		autoplay:          p.autoplay,
		autoplayTries:     p.autoplayTries,
		botUser:           p.botUser,
		nowPlayingMessage: p.nowPlayingMessage,
		trackRepeat:       p.trackRepeat,
		queueRepeat:       p.queueRepeat,
		dynamicRepeat:     p.dynamicRepeat,
		dynamicInterval:   p.dynamicInterval,
		data:              maps.Clone(p.data),
	}
}
