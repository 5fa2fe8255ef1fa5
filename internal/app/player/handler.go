package player

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/ItzRandom23/magmastream-custom/internal/app/node"
	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
	"github.com/ItzRandom23/magmastream-custom/internal/infra/lavalink"
)

// autoplayCandidates is the number of recommendations requested per autoplay try.
const autoplayCandidates = 10

type nodeHandler struct {
	m *Manager
	n *node.Node
}

// NodeHandler returns the socket handler that feeds node events into the players
// backed by n.
func (m *Manager) NodeHandler(n *node.Node) lavalink.Handler {
	return &nodeHandler{m: m, n: n}
}

func (h *nodeHandler) OnReady(ready lavalink.Ready) {
	h.n.SetReady(ready.SessionID)
	zlog.Info().Msgf("player: node ready: node=%s session=%s resumed=%t", h.n.ID(), ready.SessionID, ready.Resumed)

	ctx, cancel := h.m.requestContext()
	defer cancel()
	if err := h.n.RefreshInfo(ctx); err != nil {
		zlog.Warn().Err(err).Msgf("player: node info unavailable: node=%s", h.n.ID())
	}
	if h.n.Options().Resume {
		if err := h.n.EnableResume(ctx); err != nil {
			zlog.Warn().Err(err).Msgf("player: session resume not enabled: node=%s", h.n.ID())
		}
	}
}

func (h *nodeHandler) OnStats(stats lavalink.Stats) {
	h.n.SetStats(stats)
}

func (h *nodeHandler) OnPlayerUpdate(update lavalink.PlayerUpdateEvent) {
	p, ok := h.m.Get(update.GuildID)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nodeRef.Load() != h.n {
		return
	}
	p.position = update.State.Position
	p.connected = update.State.Connected
	p.ping = update.State.Ping
}

func (h *nodeHandler) OnEvent(ev lavalink.Event) {
	p, ok := h.m.Get(ev.GuildID)
	if !ok {
		zlog.Debug().Msgf("player: event for unknown player: node=%s guild=%s type=%s", h.n.ID(), ev.GuildID, ev.Type)
		return
	}
	if p.Node() != h.n {
		zlog.Debug().Msgf("player: event from stale node ignored: node=%s guild=%s type=%s", h.n.ID(), ev.GuildID, ev.Type)
		return
	}
	ctx, cancel := h.m.requestContext()
	defer cancel()

	switch ev.Type {
	case lavalink.EventTrackStart:
		p.handleTrackStart()
	case lavalink.EventTrackEnd:
		p.handleTrackEnd(ctx, &ev)
	case lavalink.EventTrackStuck:
		p.handleTrackFailure(ctx, TrackStuck, "")
	case lavalink.EventTrackException:
		reason := ""
		if ev.Exception != nil {
			reason = ev.Exception.Message
		}
		p.handleTrackFailure(ctx, TrackException, reason)
	case lavalink.EventWebSocketClosed:
		zlog.Warn().Msgf("player: voice socket closed: guild=%s code=%d remote=%t reason=%s", ev.GuildID, ev.Code, ev.ByRemote, ev.Reason)
	case lavalink.EventSegmentsLoaded, lavalink.EventSegmentSkipped, lavalink.EventChapterStarted, lavalink.EventChaptersLoaded:
		zlog.Debug().Msgf("player: sponsorblock event: guild=%s type=%s", ev.GuildID, ev.Type)
	default:
		zlog.Debug().Msgf("player: unhandled event: guild=%s type=%s", ev.GuildID, ev.Type)
	}
}

// OnDisconnect moves the players of a lost node to the best remaining node.
func (h *nodeHandler) OnDisconnect(err error) {
	h.n.SetDisconnected()
	zlog.Warn().Err(err).Msgf("player: node disconnected: node=%s", h.n.ID())

	for _, p := range h.m.PlayersOn(h.n.ID()) {
		ctx, cancel := h.m.requestContext()
		if err := p.AutoMoveNode(ctx); err != nil {
			zlog.Error().Err(err).Msgf("player: failover failed: guild=%s node=%s", p.guildID, h.n.ID())
		}
		cancel()
	}
}

func (p *Player) handleTrackStart() {
	p.mu.Lock()
	defer p.unlock()

	before := p.snapshotLocked()
	p.playing = true
	p.paused = false
	p.emitLocked(ChangeTrack, before, &TrackDetails{Action: TrackStart, Track: p.queue.Current()})
}

// handleTrackEnd advances the queue according to the repeat mode, falling back to
// autoplay when nothing is left.
func (p *Player) handleTrackEnd(ctx context.Context, ev *lavalink.Event) {
	p.mu.Lock()
	defer p.unlock()

	if p.destroyed {
		return
	}
	before := p.snapshotLocked()
	current := p.queue.Current()
	p.emitLocked(ChangeTrack, before, &TrackDetails{Action: TrackEnd, Track: current, Reason: ev.Reason})

	if !ev.MayStartNext() {
		if ev.Reason == lavalink.EndReasonCleanup {
			p.playing = false
		}
		return
	}

	switch {
	case current != nil && p.trackRepeat && ev.Reason == lavalink.EndReasonFinished:
		p.queue.AddFront(current)
	case current != nil && (p.queueRepeat || p.dynamicRepeat):
		p.queue.PushPrevious(current)
		p.queue.Add(current)
	default:
		p.queue.PushPrevious(current)
	}
	p.advanceLocked(ctx, current)
}

func (p *Player) handleTrackFailure(ctx context.Context, action, reason string) {
	p.mu.Lock()
	defer p.unlock()

	if p.destroyed {
		return
	}
	before := p.snapshotLocked()
	p.emitLocked(ChangeTrack, before, &TrackDetails{Action: action, Track: p.queue.Current(), Reason: reason})
	if err := p.stopLocked(ctx, 0); err != nil {
		zlog.Warn().Err(err).Msgf("player: stop after %s failed: guild=%s", action, p.guildID)
	}
}

// advanceLocked plays the next queued track. With an empty queue it tries autoplay
// and otherwise reports the end of the queue.
func (p *Player) advanceLocked(ctx context.Context, last *track.Track) {
	before := p.snapshotLocked()
	next := p.queue.Shift()
	p.queue.SetCurrent(next)
	p.position = 0

	if next == nil && p.autoplay && last != nil {
		next = p.autoplayLocked(ctx, last)
		p.queue.SetCurrent(next)
	}
	if next == nil {
		p.playing = false
		p.emitLocked(ChangeQueueEnd, before, &QueueEndDetails{Last: last})
		zlog.Debug().Msgf("player: queue ended: guild=%s", p.guildID)
		return
	}
	if err := p.playLocked(ctx, nil, PlayOptions{}); err != nil {
		zlog.Error().Err(err).Msgf("player: next track failed: guild=%s track=%s", p.guildID, next.Identifier)
	}
}

// autoplayLocked picks a track related to last that is not last itself.
func (p *Player) autoplayLocked(ctx context.Context, last *track.Track) *track.Track {
	searcher := p.manager.searcher
	if searcher == nil {
		return nil
	}
	requester := &track.Requester{Type: track.RequesterTypeAutoplay}
	if p.botUser != nil {
		requester.ID = p.botUser.ID
		requester.Name = p.botUser.Name
	}

	for try := range p.autoplayTries {
		for _, t := range p.recommendLocked(ctx, last, requester) {
			if t.Identifier != last.Identifier && (t.URI == "" || t.URI != last.URI) {
				zlog.Debug().Msgf("player: autoplay picked: guild=%s track=%s try=%d", p.guildID, t.Identifier, try+1)
				return t
			}
		}
	}
	zlog.Info().Msgf("player: autoplay found nothing: guild=%s seed=%s", p.guildID, last.Identifier)
	return nil
}

func (p *Player) recommendLocked(ctx context.Context, last *track.Track, requester *track.Requester) []*track.Track {
	searcher := p.manager.searcher
	if last.SourceName == "spotify" && last.URI != "" {
		if res := searcher.Recommendations(ctx, last.URI, autoplayCandidates, requester); len(res.Tracks) > 0 {
			return res.Tracks
		}
	}
	if res := searcher.Similar(ctx, last.Title, last.Author, autoplayCandidates, requester); len(res.Tracks) > 0 {
		return res.Tracks
	}
	if last.Author == "" {
		return nil
	}
	return searcher.Search(ctx, last.Author, requester).Tracks
}

// VoiceState is the bot's own voice state as reported by the chat platform.
// An empty ChannelID means the bot left voice.
type VoiceState struct {
	GuildID   string
	ChannelID string
	SessionID string
}

// VoiceServer is the voice server assignment reported by the chat platform.
type VoiceServer struct {
	GuildID  string
	Token    string
	Endpoint string
}

// HandleVoiceState records the voice session of a guild and forwards complete
// credentials to the node.
func (m *Manager) HandleVoiceState(ctx context.Context, vs VoiceState) {
	p, ok := m.Get(vs.GuildID)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.unlock()

	before := p.snapshotLocked()
	if vs.ChannelID == "" {
		p.voice = lavalink.Voice{}
		if p.voiceChannelID != "" {
			p.voiceChannelID = ""
			p.state = StateDisconnected
			p.emitLocked(ChangeConnection, before, &ConnectionDetails{Action: "disconnect"})
		}
		return
	}
	if vs.ChannelID != p.voiceChannelID {
		prev := p.voiceChannelID
		p.voiceChannelID = vs.ChannelID
		p.emitLocked(ChangeChannel, before, &ChannelDetails{Kind: "voice", Previous: prev, Current: vs.ChannelID})
	}
	p.voice.SessionID = vs.SessionID
	p.sendVoiceLocked(ctx)
}

// HandleVoiceServer records the voice server of a guild and forwards complete
// credentials to the node.
func (m *Manager) HandleVoiceServer(ctx context.Context, vs VoiceServer) {
	p, ok := m.Get(vs.GuildID)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.unlock()

	p.voice.Token = vs.Token
	p.voice.Endpoint = vs.Endpoint
	p.sendVoiceLocked(ctx)
}

func (p *Player) sendVoiceLocked(ctx context.Context) {
	if !p.voice.Complete() {
		return
	}
	voice := p.voice
	if err := p.sendLocked(ctx, &lavalink.PlayerUpdate{Voice: &voice}, false); err != nil {
		zlog.Warn().Err(err).Msgf("player: voice update failed: guild=%s", p.guildID)
		return
	}
	zlog.Debug().Msgf("player: voice update sent: guild=%s", p.guildID)
}
