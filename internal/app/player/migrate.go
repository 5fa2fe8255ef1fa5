package player

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"

	"github.com/ItzRandom23/magmastream-custom/internal/infra/lavalink"
)

// MoveNode moves the player to the node identified by id, carrying over the current
// track, position and voice credentials. Filters are re-sent because the node keeps
// them per player. A failed resume leaves the player on the new node.
func (p *Player) MoveNode(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.unlock()

	if p.destroyed {
		return ErrDestroyed
	}
	target, err := p.manager.nodes.Get(id)
	if err != nil {
		return errors.Wrapf(err, "failed to move player to node %s", id)
	}
	prev := p.nodeRef.Load()
	if prev == target {
		return nil
	}

	position := p.position
	current := p.queue.Current()
	voice := p.voice

	if prev != nil {
		if err := prev.DestroyPlayer(ctx, p.guildID); err != nil {
			zlog.Debug().Err(err).Msgf("player: remote destroy on old node failed: guild=%s node=%s", p.guildID, prev.ID())
		}
	}

	before := p.snapshotLocked()
	p.nodeRef.Store(target)

	update := &lavalink.PlayerUpdate{
		Paused:   lavalink.Ptr(p.paused),
		Volume:   lavalink.Ptr(p.volume),
		Position: lavalink.Ptr(position),
	}
	if current != nil {
		update.EncodedTrack = lavalink.Play(current.Encoded)
	}
	if voice.Complete() {
		update.Voice = &voice
	}
	if err := target.UpdatePlayer(ctx, p.guildID, update, false); err != nil {
		return errors.Wrapf(err, "failed to move player to node %s", id)
	}
	if err := p.filters.Update(ctx); err != nil {
		return errors.Wrapf(err, "failed to move player to node %s", id)
	}

	details := &NodeDetails{Current: target.ID()}
	if prev != nil {
		details.Previous = prev.ID()
	}
	p.emitLocked(ChangeNode, before, details)
	zlog.Info().Msgf("player: moved: guild=%s from=%s to=%s", p.guildID, details.Previous, details.Current)
	return nil
}

// AutoMoveNode moves the player to the best usable node.
func (p *Player) AutoMoveNode(ctx context.Context) error {
	best, err := p.manager.nodes.Best()
	if err != nil {
		return errors.Wrap(err, "failed to move player")
	}
	return p.MoveNode(ctx, best.ID())
}

// SwitchGuild clones the player into a new player bound to opts. When a player already
// exists for opts.GuildID it is returned unchanged unless force is set, in which case it
// is destroyed first. The clone is populated step by step; a failure part way leaves a
// partially populated target.
func (p *Player) SwitchGuild(ctx context.Context, opts Options, force bool) (*Player, error) {
	if err := validator.New().Struct(opts); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid player options"), ErrConfiguration)
	}
	if opts.VoiceChannelID == "" {
		return nil, ErrNoVoiceChannel
	}
	if opts.TextChannelID == "" {
		return nil, configErrorf("text channel id is required")
	}
	if opts.GuildID == p.guildID {
		return nil, configErrorf("player already belongs to guild %s", opts.GuildID)
	}

	m := p.manager
	if existing, ok := m.Get(opts.GuildID); ok {
		if !force {
			return existing, nil
		}
		existing.Destroy(ctx, true)
	}

	st := p.export()
	if opts.Node == "" && st.node != nil {
		opts.Node = st.node.ID()
	}
	if opts.Volume == nil {
		opts.Volume = &st.volume
	}
	opts.SelfMute = opts.SelfMute || st.selfMute
	opts.SelfDeafen = opts.SelfDeafen || st.selfDeafen

	clone, err := m.Create(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create target player")
	}
	if err := clone.Connect(ctx); err != nil {
		return clone, errors.Wrap(err, "failed to connect target player")
	}

	clone.mu.Lock()
	before := clone.snapshotLocked()
	update := &lavalink.PlayerUpdate{
		Paused:   lavalink.Ptr(st.paused),
		Volume:   lavalink.Ptr(st.volume),
		Position: lavalink.Ptr(st.position),
	}
	if st.current != nil {
		update.EncodedTrack = lavalink.Play(st.current.Encoded)
	}
	if err := clone.sendLocked(ctx, update, false); err != nil {
		clone.unlock()
		return clone, errors.Wrap(err, "failed to resume target player")
	}

	clone.queue.SetCurrent(st.current)
	clone.queue.SetPrevious(st.previous)
	clone.queue.Add(st.tracks...)
	clone.filters.Restore(st.filters)
	clone.autoplay = st.autoplay
	clone.autoplayTries = st.autoplayTries
	clone.botUser = st.botUser
	clone.nowPlayingMessage = st.nowPlayingMessage
	clone.data = st.data
	clone.position = st.position
	clone.paused = st.paused
	clone.playing = st.current != nil && !st.paused
	switch {
	case st.trackRepeat:
		clone.trackRepeat = true
	case st.queueRepeat:
		clone.queueRepeat = true
	case st.dynamicRepeat:
		clone.dynamicRepeat = true
		clone.dynamicInterval = st.dynamicInterval
		clone.startDynamicLocked(st.dynamicInterval)
	}
	clone.emitLocked(ChangeQueue, before, &QueueDetails{Action: QueueAdd, Tracks: st.tracks})
	clone.unlock()

	if err := clone.filters.Update(ctx); err != nil {
		return clone, errors.Wrap(err, "failed to restore filters on target player")
	}
	zlog.Info().Msgf("player: switched guild: from=%s to=%s tracks=%d", p.guildID, opts.GuildID, len(st.tracks))
	return clone, nil
}
