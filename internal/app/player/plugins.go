package player

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/ItzRandom23/magmastream-custom/internal/infra/lavalink"
)

// Node plugins used by the player.
const (
	lyricsPlugin       = "lavalyrics-plugin"
	sponsorBlockPlugin = "sponsorblock-plugin"
)

// DefaultSponsorBlockCategories are the segments skipped when none are given.
var DefaultSponsorBlockCategories = []string{"sponsor", "selfpromo"}

func (p *Player) requirePluginLocked(name string) error {
	n := p.nodeRef.Load()
	if n == nil {
		return ErrNotConnected
	}
	if !n.HasPlugin(name) {
		return preconditionErrorf("node %s has no %s", n.ID(), name)
	}
	return nil
}

// CurrentLyrics returns the lyrics of the current track. A track without lyrics
// yields an empty document.
func (p *Player) CurrentLyrics(ctx context.Context, skipTrackSource bool) (*lavalink.Lyrics, error) {
	p.mu.Lock()
	defer p.unlock()

	if err := p.requirePluginLocked(lyricsPlugin); err != nil {
		return nil, err
	}
	current := p.queue.Current()
	if current == nil {
		return nil, ErrNoCurrentTrack
	}
	lyrics, err := p.nodeRef.Load().Lyrics(ctx, current.Encoded, skipTrackSource)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get lyrics")
	}
	if lyrics == nil {
		return lavalink.EmptyLyrics(), nil
	}
	return lyrics, nil
}

// SponsorBlock returns the segment categories skipped for this player.
func (p *Player) SponsorBlock(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.unlock()

	if err := p.requirePluginLocked(sponsorBlockPlugin); err != nil {
		return nil, err
	}
	categories, err := p.nodeRef.Load().SponsorBlock(ctx, p.guildID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sponsorblock categories")
	}
	return categories, nil
}

// SetSponsorBlock sets the segment categories to skip. No categories selects
// DefaultSponsorBlockCategories.
func (p *Player) SetSponsorBlock(ctx context.Context, categories ...string) error {
	if len(categories) == 0 {
		categories = DefaultSponsorBlockCategories
	}
	p.mu.Lock()
	defer p.unlock()

	if err := p.requirePluginLocked(sponsorBlockPlugin); err != nil {
		return err
	}
	if err := p.nodeRef.Load().SetSponsorBlock(ctx, p.guildID, categories); err != nil {
		return errors.Wrap(err, "failed to set sponsorblock categories")
	}
	return nil
}

// ClearSponsorBlock stops skipping segments.
func (p *Player) ClearSponsorBlock(ctx context.Context) error {
	p.mu.Lock()
	defer p.unlock()

	if err := p.requirePluginLocked(sponsorBlockPlugin); err != nil {
		return err
	}
	if err := p.nodeRef.Load().DeleteSponsorBlock(ctx, p.guildID); err != nil {
		return errors.Wrap(err, "failed to clear sponsorblock categories")
	}
	return nil
}
