package filters

import (
	"github.com/ItzRandom23/magmastream-custom/internal/domain/effect"
)

// Kind identifies a filter slot.
type Kind int

const (
	KindEqualizer Kind = iota
	KindKaraoke
	KindTimescale
	KindVibrato
	KindRotation
	KindDistortion
	KindReverb
	KindVolume
)

var kinds = []Kind{
	KindEqualizer, KindKaraoke, KindTimescale, KindVibrato,
	KindRotation, KindDistortion, KindReverb, KindVolume,
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindEqualizer:
		return "equalizer"
	case KindKaraoke:
		return "karaoke"
	case KindTimescale:
		return "timescale"
	case KindVibrato:
		return "vibrato"
	case KindRotation:
		return "rotation"
	case KindDistortion:
		return "distortion"
	case KindReverb:
		return "reverb"
	case KindVolume:
		return "volume"
	default:
		return "unknown"
	}
}

// Slot is one assignment to a filter slot. A nil payload clears the slot.
type Slot interface {
	Kind() Kind
}

type (
	EqualizerSlot  struct{ Bands []effect.Band }
	KaraokeSlot    struct{ Value *effect.Karaoke }
	TimescaleSlot  struct{ Value *effect.Timescale }
	VibratoSlot    struct{ Value *effect.Vibrato }
	RotationSlot   struct{ Value *effect.Rotation }
	DistortionSlot struct{ Value *effect.Distortion }
	ReverbSlot     struct{ Value *effect.Reverb }
	VolumeSlot     struct{ Value float64 }
)

func (EqualizerSlot) Kind() Kind  { return KindEqualizer }
func (KaraokeSlot) Kind() Kind    { return KindKaraoke }
func (TimescaleSlot) Kind() Kind  { return KindTimescale }
func (VibratoSlot) Kind() Kind    { return KindVibrato }
func (RotationSlot) Kind() Kind   { return KindRotation }
func (DistortionSlot) Kind() Kind { return KindDistortion }
func (ReverbSlot) Kind() Kind     { return KindReverb }
func (VolumeSlot) Kind() Kind     { return KindVolume }

// cleared returns the slot value that resets k.
func cleared(k Kind) Slot {
	switch k {
	case KindEqualizer:
		return EqualizerSlot{Bands: []effect.Band{}}
	case KindKaraoke:
		return KaraokeSlot{}
	case KindTimescale:
		return TimescaleSlot{}
	case KindVibrato:
		return VibratoSlot{}
	case KindRotation:
		return RotationSlot{}
	case KindDistortion:
		return DistortionSlot{}
	case KindReverb:
		return ReverbSlot{}
	case KindVolume:
		return VolumeSlot{Value: DefaultVolume}
	default:
		return nil
	}
}

func copyOf[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// slots holds the current value of every filter slot.
type slots struct {
	equalizer  []effect.Band
	karaoke    *effect.Karaoke
	timescale  *effect.Timescale
	vibrato    *effect.Vibrato
	rotation   *effect.Rotation
	distortion *effect.Distortion
	reverb     *effect.Reverb
	volume     float64
}

func defaultSlots() slots {
	return slots{equalizer: []effect.Band{}, volume: DefaultVolume}
}

// assign stores a copy of s's payload.
func (st *slots) assign(s Slot) {
	switch v := s.(type) {
	case EqualizerSlot:
		st.equalizer = effect.CloneBands(v.Bands)
	case KaraokeSlot:
		st.karaoke = copyOf(v.Value)
	case TimescaleSlot:
		st.timescale = copyOf(v.Value)
	case VibratoSlot:
		st.vibrato = copyOf(v.Value)
	case RotationSlot:
		st.rotation = copyOf(v.Value)
	case DistortionSlot:
		st.distortion = copyOf(v.Value)
	case ReverbSlot:
		st.reverb = copyOf(v.Value)
	case VolumeSlot:
		st.volume = v.Value
	}
}

// get returns the current value of k as a slot.
func (st *slots) get(k Kind) Slot {
	switch k {
	case KindEqualizer:
		return EqualizerSlot{Bands: effect.CloneBands(st.equalizer)}
	case KindKaraoke:
		return KaraokeSlot{Value: copyOf(st.karaoke)}
	case KindTimescale:
		return TimescaleSlot{Value: copyOf(st.timescale)}
	case KindVibrato:
		return VibratoSlot{Value: copyOf(st.vibrato)}
	case KindRotation:
		return RotationSlot{Value: copyOf(st.rotation)}
	case KindDistortion:
		return DistortionSlot{Value: copyOf(st.distortion)}
	case KindReverb:
		return ReverbSlot{Value: copyOf(st.reverb)}
	case KindVolume:
		return VolumeSlot{Value: st.volume}
	default:
		return nil
	}
}

// set serializes every slot into a node filter set.
func (st *slots) set() effect.Set {
	out := effect.Set{PluginFilters: map[string]any{}}
	for _, k := range kinds {
		switch k {
		case KindEqualizer:
			out.Equalizer = effect.CloneBands(st.equalizer)
		case KindKaraoke:
			out.Karaoke = copyOf(st.karaoke)
		case KindTimescale:
			out.Timescale = copyOf(st.timescale)
		case KindVibrato:
			out.Vibrato = copyOf(st.vibrato)
		case KindRotation:
			out.Rotation = copyOf(st.rotation)
		case KindDistortion:
			out.Distortion = copyOf(st.distortion)
		case KindReverb:
			if st.reverb != nil {
				out.PluginFilters["reverb"] = copyOf(st.reverb)
			}
		case KindVolume:
			v := st.volume
			out.Volume = &v
		}
	}
	return out
}
