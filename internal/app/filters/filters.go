// Package filters provides the per-session audio filter pipeline.
//
// Filters keeps one value per slot and a status map of named presets. Every mutation
// serializes the whole slot set into one update sent to the session's node, unless
// the caller defers it with WithoutUpdate and calls Update once at the end.
package filters

import (
	"context"
	"maps"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/effect"
)

const (
	// DefaultVolume is the filter volume multiplier of a fresh pipeline.
	DefaultVolume = 1.0

	// Player volumes used by the earrape toggle.
	earrapeVolume = 200
	normalVolume  = 100
)

var (
	ErrUnknownFilter = errors.New("unknown filter")
	ErrReleased      = errors.New("filters have been released")
)

// Target is the session a pipeline sends its updates through.
type Target interface {
	SendFilters(ctx context.Context, set effect.Set) error
	SetVolume(ctx context.Context, volume int) error
}

// Option customizes a single mutation.
type Option func(*options)

type options struct {
	deferUpdate bool
}

// WithoutUpdate applies the change locally only. Call Update to send it.
func WithoutUpdate() Option {
	return func(o *options) { o.deferUpdate = true }
}

// State is a detached copy of a pipeline's values.
type State struct {
	Set            effect.Set
	Status         map[Name]bool
	BassBoostLevel int
}

// Filters is the filter pipeline of one session.
type Filters struct {
	mu             sync.Mutex
	target         Target
	slots          slots
	status         map[Name]bool
	bassBoostLevel int
	released       bool
}

// New creates a pipeline with every slot at its default.
func New(target Target) *Filters {
	return &Filters{
		target: target,
		slots:  defaultSlots(),
		status: freshStatus(),
	}
}

func freshStatus() map[Name]bool {
	st := make(map[Name]bool, len(names))
	for _, n := range names {
		st[n] = false
	}
	return st
}

// change is a set of slot assignments and status flips applied as one unit.
type change struct {
	slots     []Slot
	status    map[Name]bool
	bassBoost *int
}

// apply commits c locally and sends the full set. A failed send restores the
// previous slots and flags so the status map never outruns what the node holds.
func (f *Filters) apply(ctx context.Context, c change, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.released {
		return ErrReleased
	}

	prevSlots := make([]Slot, 0, len(c.slots))
	for _, s := range c.slots {
		prevSlots = append(prevSlots, f.slots.get(s.Kind()))
	}
	prevStatus := make(map[Name]bool, len(c.status))
	for n := range c.status {
		prevStatus[n] = f.status[n]
	}
	prevLevel := f.bassBoostLevel

	for _, s := range c.slots {
		f.slots.assign(s)
	}
	maps.Copy(f.status, c.status)
	if c.bassBoost != nil {
		f.bassBoostLevel = *c.bassBoost
	}

	if o.deferUpdate {
		return nil
	}
	if err := f.target.SendFilters(ctx, f.slots.set()); err != nil {
		for _, s := range prevSlots {
			f.slots.assign(s)
		}
		maps.Copy(f.status, prevStatus)
		f.bassBoostLevel = prevLevel
		return errors.Wrap(err, "failed to update filters")
	}
	return nil
}

// Update sends every slot to the node.
func (f *Filters) Update(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return ErrReleased
	}
	if err := f.target.SendFilters(ctx, f.slots.set()); err != nil {
		return errors.Wrap(err, "failed to update filters")
	}
	return nil
}

// Set assigns one slot without touching any status flag.
func (f *Filters) Set(ctx context.Context, s Slot, opts ...Option) error {
	if s == nil {
		return errors.Wrap(ErrUnknownFilter, "nil slot")
	}
	return f.apply(ctx, change{slots: []Slot{s}}, opts...)
}

// SetEqualizer replaces the equalizer bands. nil clears them.
func (f *Filters) SetEqualizer(ctx context.Context, bands []effect.Band, opts ...Option) error {
	return f.apply(ctx, change{slots: []Slot{EqualizerSlot{Bands: bands}}}, opts...)
}

// SetKaraoke sets or clears (nil) the karaoke slot.
func (f *Filters) SetKaraoke(ctx context.Context, v *effect.Karaoke, opts ...Option) error {
	return f.apply(ctx, change{
		slots:  []Slot{KaraokeSlot{Value: v}},
		status: map[Name]bool{SetKaraoke: v != nil},
	}, opts...)
}

// SetTimescale sets or clears (nil) the timescale slot.
func (f *Filters) SetTimescale(ctx context.Context, v *effect.Timescale, opts ...Option) error {
	return f.apply(ctx, change{
		slots:  []Slot{TimescaleSlot{Value: v}},
		status: map[Name]bool{SetTimescale: v != nil},
	}, opts...)
}

// SetVibrato sets or clears (nil) the vibrato slot.
func (f *Filters) SetVibrato(ctx context.Context, v *effect.Vibrato, opts ...Option) error {
	return f.apply(ctx, change{
		slots:  []Slot{VibratoSlot{Value: v}},
		status: map[Name]bool{Vibrato: v != nil},
	}, opts...)
}

// SetRotation sets or clears (nil) the rotation slot.
func (f *Filters) SetRotation(ctx context.Context, v *effect.Rotation, opts ...Option) error {
	return f.apply(ctx, change{
		slots:  []Slot{RotationSlot{Value: v}},
		status: map[Name]bool{SetRotation: v != nil},
	}, opts...)
}

// SetDistortion sets or clears (nil) the distortion slot.
func (f *Filters) SetDistortion(ctx context.Context, v *effect.Distortion, opts ...Option) error {
	return f.apply(ctx, change{
		slots:  []Slot{DistortionSlot{Value: v}},
		status: map[Name]bool{SetDistortion: v != nil},
	}, opts...)
}

// SetReverb sets or clears (nil) the reverb plugin slot.
func (f *Filters) SetReverb(ctx context.Context, v *effect.Reverb, opts ...Option) error {
	return f.apply(ctx, change{slots: []Slot{ReverbSlot{Value: v}}}, opts...)
}

// SetVolume sets the filter volume multiplier.
func (f *Filters) SetVolume(ctx context.Context, v float64, opts ...Option) error {
	return f.apply(ctx, change{slots: []Slot{VolumeSlot{Value: v}}}, opts...)
}

// BassBoost applies the bass boost curve scaled by stage/3. stage is clamped to [-3, 3].
func (f *Filters) BassBoost(ctx context.Context, stage int, opts ...Option) error {
	stage = max(-3, min(3, stage))
	level := float64(stage) / 3
	return f.apply(ctx, change{
		slots:     []Slot{EqualizerSlot{Bands: effect.ScaleBands(bassBoostBands, level)}},
		status:    map[Name]bool{BassBoost: stage != 0},
		bassBoost: &stage,
	}, opts...)
}

// Demon applies or clears the equalizer, pitch and reverb bundle as one unit.
func (f *Filters) Demon(ctx context.Context, on bool, opts ...Option) error {
	s := demonOff
	if on {
		s = demonOn
	}
	return f.apply(ctx, change{slots: s, status: map[Name]bool{Demon: on}}, opts...)
}

// Earrape raises the player volume to 200, or restores 100.
func (f *Filters) Earrape(ctx context.Context, on bool) error {
	vol := normalVolume
	if on {
		vol = earrapeVolume
	}
	if err := f.target.SetVolume(ctx, vol); err != nil {
		return errors.Wrap(err, "failed to set earrape volume")
	}
	f.mu.Lock()
	f.status[Earrape] = on
	f.mu.Unlock()
	return nil
}

// Toggle enables or disables a named preset.
func (f *Filters) Toggle(ctx context.Context, name Name, on bool, opts ...Option) error {
	switch name {
	case Demon:
		return f.Demon(ctx, on, opts...)
	case Earrape:
		return f.Earrape(ctx, on)
	case BassBoost:
		stage := 0
		if on {
			stage = 3
		}
		return f.BassBoost(ctx, stage, opts...)
	}

	p, ok := presets[name]
	if !ok {
		return errors.Wrapf(ErrUnknownFilter, "%q", name)
	}
	slot := p.on
	if !on {
		slot = cleared(p.on.Kind())
	}
	status := map[Name]bool{name: on}
	for _, n := range p.also {
		status[n] = on
	}
	zlog.Debug().Msgf("filters: toggle preset: name=%s on=%t", name, on)
	return f.apply(ctx, change{slots: []Slot{slot}, status: status}, opts...)
}

// Clear resets every slot except the volume multiplier and every status flag.
func (f *Filters) Clear(ctx context.Context, opts ...Option) error {
	c := change{status: freshStatus(), bassBoost: new(int)}
	for _, k := range kinds {
		if k == KindVolume {
			continue
		}
		c.slots = append(c.slots, cleared(k))
	}
	return f.apply(ctx, c, opts...)
}

// Status reports whether the named filter is marked active.
func (f *Filters) Status(name Name) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[name]
}

// BassBoostLevel returns the last bass boost stage.
func (f *Filters) BassBoostLevel() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bassBoostLevel
}

// Payload returns the set that the next update would send.
func (f *Filters) Payload() effect.Set {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots.set()
}

// Slot returns the current value of slot k.
func (f *Filters) Slot(k Kind) Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots.get(k)
}

// State returns a detached copy of the pipeline.
func (f *Filters) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{
		Set:            f.slots.set(),
		Status:         maps.Clone(f.status),
		BassBoostLevel: f.bassBoostLevel,
	}
}

// Restore replaces the pipeline values with st without sending anything.
func (f *Filters) Restore(st State) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.slots = defaultSlots()
	f.slots.assign(EqualizerSlot{Bands: st.Set.Equalizer})
	f.slots.assign(KaraokeSlot{Value: st.Set.Karaoke})
	f.slots.assign(TimescaleSlot{Value: st.Set.Timescale})
	f.slots.assign(VibratoSlot{Value: st.Set.Vibrato})
	f.slots.assign(RotationSlot{Value: st.Set.Rotation})
	f.slots.assign(DistortionSlot{Value: st.Set.Distortion})
	if r, ok := st.Set.PluginFilters["reverb"].(*effect.Reverb); ok {
		f.slots.assign(ReverbSlot{Value: r})
	}
	if st.Set.Volume != nil {
		f.slots.volume = *st.Set.Volume
	}
	f.status = freshStatus()
	maps.Copy(f.status, st.Status)
	f.bassBoostLevel = st.BassBoostLevel
}

// Release drops every value. Later mutations fail with ErrReleased.
func (f *Filters) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots = defaultSlots()
	f.status = freshStatus()
	f.bassBoostLevel = 0
	f.released = true
}
