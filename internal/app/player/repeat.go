package player

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"
)

func (p *Player) repeatModeLocked() RepeatMode {
	switch {
	case p.trackRepeat:
		return RepeatTrack
	case p.queueRepeat:
		return RepeatQueue
	case p.dynamicRepeat:
		return RepeatDynamic
	default:
		return RepeatNone
	}
}

// RepeatMode returns the active repeat mode.
func (p *Player) RepeatMode() RepeatMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.repeatModeLocked()
}

// SetTrackRepeat repeats the current track. Enabling it turns the other modes off.
func (p *Player) SetTrackRepeat(enabled bool) {
	p.mu.Lock()
	defer p.unlock()
	p.setRepeatLocked(RepeatTrack, enabled, 0)
}

// SetQueueRepeat repeats the whole queue. Enabling it turns the other modes off.
func (p *Player) SetQueueRepeat(enabled bool) {
	p.mu.Lock()
	defer p.unlock()
	p.setRepeatLocked(RepeatQueue, enabled, 0)
}

// SetDynamicRepeat repeats the queue and reshuffles it every interval. Enabling it
// needs more than one queued track. interval at or below zero uses the configured
// default.
func (p *Player) SetDynamicRepeat(enabled bool, interval time.Duration) error {
	p.mu.Lock()
	defer p.unlock()

	if enabled && p.queue.Size() <= 1 {
		return preconditionErrorf("dynamic repeat needs more than one queued track")
	}
	if interval <= 0 {
		interval = p.manager.cfg.DynamicRepeatInterval
	}
	p.setRepeatLocked(RepeatDynamic, enabled, interval)
	return nil
}

// setRepeatLocked applies one mode. Any change leaves at most one mode on and
// stops the reshuffle task unless dynamic repeat stays enabled.
func (p *Player) setRepeatLocked(mode RepeatMode, enabled bool, interval time.Duration) {
	before := p.snapshotLocked()

	p.stopDynamicLocked()
	p.trackRepeat, p.queueRepeat, p.dynamicRepeat = false, false, false
	p.dynamicInterval = 0
	if enabled {
		switch mode {
		case RepeatTrack:
			p.trackRepeat = true
		case RepeatQueue:
			p.queueRepeat = true
		case RepeatDynamic:
			p.dynamicRepeat = true
			p.dynamicInterval = interval
			p.startDynamicLocked(interval)
		}
	}
	p.emitLocked(ChangeRepeat, before, &RepeatDetails{Mode: mode, Enabled: enabled, Interval: interval})
}

func (p *Player) startDynamicLocked(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	p.stopDynamic = cancel
	go p.reshuffle(ctx, interval)
	zlog.Debug().Msgf("player: dynamic repeat started: guild=%s interval=%s", p.guildID, interval)
}

// stopDynamicLocked cancels the reshuffle task. Calling it again is a no-op.
func (p *Player) stopDynamicLocked() {
	if p.stopDynamic == nil {
		return
	}
	p.stopDynamic()
	p.stopDynamic = nil
	zlog.Debug().Msgf("player: dynamic repeat stopped: guild=%s", p.guildID)
}

func (p *Player) reshuffle(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			if ctx.Err() != nil || !p.dynamicRepeat {
				p.mu.Unlock()
				return
			}
			before := p.snapshotLocked()
			p.queue.Shuffle()
			p.emitLocked(ChangeQueue, before, &QueueDetails{Action: QueueShuffle})
			p.unlock()
		}
	}
}
