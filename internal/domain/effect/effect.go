// Package effect provides the typed audio filter payloads sent to an execution node.
package effect

import "slices"

// Band is one equalizer band. Band ranges 0..14.
type Band struct {
	Band int     `json:"band"`
	Gain float64 `json:"gain"`
}

// Karaoke removes a frequency band, typically vocals.
type Karaoke struct {
	Level       float64 `json:"level,omitempty"`
	MonoLevel   float64 `json:"monoLevel,omitempty"`
	FilterBand  float64 `json:"filterBand,omitempty"`
	FilterWidth float64 `json:"filterWidth,omitempty"`
}

// Timescale changes speed, pitch and rate. Unset fields are left to the node.
type Timescale struct {
	Speed float64 `json:"speed,omitempty"`
	Pitch float64 `json:"pitch,omitempty"`
	Rate  float64 `json:"rate,omitempty"`
}

// Vibrato oscillates the pitch.
type Vibrato struct {
	Frequency float64 `json:"frequency,omitempty"`
	Depth     float64 `json:"depth,omitempty"`
}

// Rotation pans the audio around the stereo field.
type Rotation struct {
	RotationHz float64 `json:"rotationHz"`
}

// Distortion applies sine, cosine and tangent distortion.
type Distortion struct {
	SinOffset float64 `json:"sinOffset"`
	SinScale  float64 `json:"sinScale"`
	CosOffset float64 `json:"cosOffset"`
	CosScale  float64 `json:"cosScale"`
	TanOffset float64 `json:"tanOffset"`
	TanScale  float64 `json:"tanScale"`
	Offset    float64 `json:"offset"`
	Scale     float64 `json:"scale"`
}

// Reverb is a plugin filter applied by nodes that ship a reverb plugin.
type Reverb struct {
	Wet      float64 `json:"wet"`
	Dry      float64 `json:"dry"`
	RoomSize float64 `json:"roomSize"`
	Damping  float64 `json:"damping"`
}

// Set is the full filter state as sent in one update. Nil slots are sent as null
// so the node clears them.
type Set struct {
	Volume        *float64       `json:"volume,omitempty"`
	Equalizer     []Band         `json:"equalizer"`
	Karaoke       *Karaoke       `json:"karaoke"`
	Timescale     *Timescale     `json:"timescale"`
	Vibrato       *Vibrato       `json:"vibrato"`
	Rotation      *Rotation      `json:"rotation"`
	Distortion    *Distortion    `json:"distortion"`
	PluginFilters map[string]any `json:"pluginFilters"`
}

// ScaleBands returns a copy of bands with every gain multiplied by factor.
func ScaleBands(bands []Band, factor float64) []Band {
	out := make([]Band, len(bands))
	for i, b := range bands {
		out[i] = Band{Band: b.Band, Gain: b.Gain * factor}
	}
	return out
}

// CloneBands returns a copy of bands that is never nil.
func CloneBands(bands []Band) []Band {
	if bands == nil {
		return []Band{}
	}
	return slices.Clone(bands)
}
