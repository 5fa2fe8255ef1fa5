package filters

import (
	"github.com/ItzRandom23/magmastream-custom/internal/domain/effect"
)

// Name is a status key for a named filter or preset.
type Name string

const (
	BassBoost     Name = "bassboost"
	Distort       Name = "distort"
	SetDistortion Name = "setDistortion"
	EightD        Name = "eightD"
	SetKaraoke    Name = "setKaraoke"
	Nightcore     Name = "nightcore"
	Slowmo        Name = "slowmo"
	Soft          Name = "soft"
	TrebleBass    Name = "trebleBass"
	SetTimescale  Name = "setTimescale"
	TV            Name = "tv"
	Vibrato       Name = "vibrato"
	Vaporwave     Name = "vaporwave"
	Pop           Name = "pop"
	Party         Name = "party"
	Earrape       Name = "earrape"
	Electronic    Name = "electronic"
	Radio         Name = "radio"
	SetRotation   Name = "setRotation"
	Tremolo       Name = "tremolo"
	China         Name = "china"
	Chipmunk      Name = "chipmunk"
	Darthvader    Name = "darthvader"
	Daycore       Name = "daycore"
	Doubletime    Name = "doubletime"
	Demon         Name = "demon"
)

var names = []Name{
	BassBoost, Distort, SetDistortion, EightD, SetKaraoke, Nightcore, Slowmo, Soft,
	TrebleBass, SetTimescale, TV, Vibrato, Vaporwave, Pop, Party, Earrape, Electronic,
	Radio, SetRotation, Tremolo, China, Chipmunk, Darthvader, Daycore, Doubletime, Demon,
}

// Names returns every status key in declaration order.
func Names() []Name {
	out := make([]Name, len(names))
	copy(out, names)
	return out
}

func bands(gains ...float64) []effect.Band {
	out := make([]effect.Band, len(gains))
	for i, g := range gains {
		out[i] = effect.Band{Band: i, Gain: g}
	}
	return out
}

var (
	bassBoostBands = bands(0.2, 0.15, 0.1, 0.05, 0.0, -0.05, -0.1, -0.1, -0.1, -0.1, -0.1, -0.1, -0.1, -0.1, -0.1)
	softBands      = bands(0, 0, 0, 0, 0, 0, 0, 0, -0.25, -0.25, -0.25, -0.25, -0.25, -0.25)
	tvBands        = bands(0, 0, 0, 0, 0, 0, 0, 0.65, 0.65, 0.65, 0.65, 0.65, 0.65, 0.65)
	trebleBands    = bands(0.6, 0.67, 0.67, 0, -0.5, 0.15, -0.45, 0.23, 0.35, 0.45, 0.55, 0.6, 0.55, 0)
	vaporwaveBands = bands(0, 0, 0, 0, 0, 0, 0, 0, 0.15, 0.15, 0.15, 0.15, 0.15, 0.15)
	popBands       = bands(0.5, 1.5, 2, 1.5)
	electronBands  = bands(1.0, 2.0, 3.0, 2.5)
	radioBands     = bands(3.0, 3.0, 1.0, 0.5)
	demonBands     = []effect.Band{{Band: 1, Gain: -0.6}, {Band: 3, Gain: -0.6}, {Band: 5, Gain: -0.6}}
)

// preset is a fixed value applied through a single slot.
type preset struct {
	on Slot
	// also lists extra status keys flipped with the preset.
	also []Name
}

var presets = map[Name]preset{
	Chipmunk:   {on: TimescaleSlot{Value: &effect.Timescale{Speed: 1.5, Pitch: 1.5, Rate: 1.5}}},
	China:      {on: TimescaleSlot{Value: &effect.Timescale{Speed: 1.0, Pitch: 0.5, Rate: 1.0}}},
	Nightcore:  {on: TimescaleSlot{Value: &effect.Timescale{Speed: 1.1, Pitch: 1.125, Rate: 1.05}}},
	Slowmo:     {on: TimescaleSlot{Value: &effect.Timescale{Speed: 0.7, Pitch: 1.0, Rate: 0.8}}},
	Darthvader: {on: TimescaleSlot{Value: &effect.Timescale{Speed: 1.0, Pitch: 0.5, Rate: 1.0}}},
	Daycore:    {on: TimescaleSlot{Value: &effect.Timescale{Speed: 0.7, Pitch: 0.8, Rate: 0.8}}},
	Doubletime: {on: TimescaleSlot{Value: &effect.Timescale{Speed: 2.0, Pitch: 1.0, Rate: 2.0}}},
	EightD:     {on: RotationSlot{Value: &effect.Rotation{RotationHz: 0.2}}},
	Tremolo:    {on: VibratoSlot{Value: &effect.Vibrato{Frequency: 5, Depth: 0.5}}},
	Soft:       {on: EqualizerSlot{Bands: softBands}},
	TV:         {on: EqualizerSlot{Bands: tvBands}},
	TrebleBass: {on: EqualizerSlot{Bands: trebleBands}},
	Vaporwave:  {on: EqualizerSlot{Bands: vaporwaveBands}},
	Pop:        {on: EqualizerSlot{Bands: popBands}},
	Party:      {on: EqualizerSlot{Bands: popBands}},
	Electronic: {on: EqualizerSlot{Bands: electronBands}},
	Radio:      {on: EqualizerSlot{Bands: radioBands}},
	Distort: {
		on: DistortionSlot{Value: &effect.Distortion{
			SinScale: 0.2, CosScale: 0.2, TanScale: 0.2, Scale: 1.2,
		}},
		also: []Name{SetDistortion},
	},
}

// demon applies three slots together.
var (
	demonOn = []Slot{
		EqualizerSlot{Bands: demonBands},
		TimescaleSlot{Value: &effect.Timescale{Pitch: 0.8}},
		ReverbSlot{Value: &effect.Reverb{Wet: 0.7, Dry: 0.3, RoomSize: 0.8, Damping: 0.5}},
	}
	demonOff = []Slot{cleared(KindEqualizer), cleared(KindTimescale), cleared(KindReverb)}
)
