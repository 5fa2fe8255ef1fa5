// Package track provides the Track domain entity and its construction from node payloads.
package track

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	ErrInvalidTrack   = errors.New("invalid track data")
	ErrUnknownPartial = errors.New("unknown partial track field")
)

// RequesterType represents the type of requester.
type RequesterType string

const (
	RequesterTypeUser     RequesterType = "USER"
	RequesterTypeAutoplay RequesterType = "AUTOPLAY"
	RequesterTypeSystem   RequesterType = "SYSTEM"
)

// Requester represents the user (or bot) who requested the track.
type Requester struct {
	ID   string        `json:"id"`
	Name string        `json:"name"`
	Type RequesterType `json:"type"`
}

// Track represents a playable track resolved by an execution node.
// Encoded is the node-opaque handle sent back on play.
type Track struct {
	Encoded    string         `json:"track"`
	Title      string         `json:"title"`
	Identifier string         `json:"identifier"`
	Author     string         `json:"author"`
	Duration   int64          `json:"duration"` // milliseconds
	ISRC       string         `json:"isrc"`
	IsSeekable bool           `json:"isSeekable"`
	IsStream   bool           `json:"isStream"`
	URI        string         `json:"uri"`
	ArtworkURL string         `json:"artworkUrl"`
	SourceName string         `json:"sourceName"`
	Requester  *Requester     `json:"requester,omitempty"`
	PluginInfo map[string]any `json:"pluginInfo,omitempty"`
	CustomData map[string]any `json:"customData,omitempty"`

	// stripped holds fields removed by a partial projection.
	stripped map[string]struct{}
}

// Length returns the track duration as a time.Duration.
func (t *Track) Length() time.Duration {
	return time.Duration(t.Duration) * time.Millisecond
}

// IsPartial reports whether the track was built with some fields removed.
func (t *Track) IsPartial() bool {
	return len(t.stripped) > 0
}

// Has reports whether the named field survived partial projection.
func (t *Track) Has(field string) bool {
	_, gone := t.stripped[field]
	return !gone
}

// Clone returns a copy that does not share its maps with t.
func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}
	c := *t
	c.PluginInfo = maps.Clone(t.PluginInfo)
	c.CustomData = maps.Clone(t.CustomData)
	c.stripped = maps.Clone(t.stripped)
	if t.Requester != nil {
		r := *t.Requester
		c.Requester = &r
	}
	return &c
}

var thumbnailSizes = []string{"0", "1", "2", "3", "default", "mqdefault", "hqdefault", "maxresdefault"}

// Thumbnail returns a YouTube thumbnail URL for the given size.
// Unknown sizes fall back to "default"; non-YouTube tracks return "".
func (t *Track) Thumbnail(size string) string {
	if !strings.Contains(t.URI, "youtube") {
		return ""
	}
	if !slices.Contains(thumbnailSizes, size) {
		size = "default"
	}
	return "https://img.youtube.com/vi/" + t.Identifier + "/" + size + ".jpg"
}

// Validate reports whether t carries the fields a node needs to play it.
// The check is structural: encoded handle set, and title, identifier, isrc and uri
// not removed by a partial projection.
func Validate(t *Track) bool {
	if t == nil || t.Encoded == "" {
		return false
	}
	for _, f := range []string{FieldTitle, FieldIdentifier, FieldISRC, FieldURI} {
		if !t.Has(f) {
			return false
		}
	}
	return true
}

// ValidateAll reports whether every track in ts is valid.
func ValidateAll(ts []*Track) bool {
	for _, t := range ts {
		if !Validate(t) {
			return false
		}
	}
	return true
}

var sourceNames = map[string]string{
	"applemusic": "AppleMusic",
	"bandcamp":   "Bandcamp",
	"deezer":     "Deezer",
	"jiosaavn":   "Jiosaavn",
	"soundcloud": "SoundCloud",
	"spotify":    "Spotify",
	"tidal":      "Tidal",
	"youtube":    "YouTube",
	"vkmusic":    "VKMusic",
}

// NormalizeSourceName maps a node source name to its display form.
// Unknown names are returned unchanged.
func NormalizeSourceName(name string) string {
	if n, ok := sourceNames[strings.ToLower(name)]; ok {
		return n
	}
	return name
}

// Build converts a raw node track into a Track owned by requester.
func Build(raw *Raw, requester *Requester) (*Track, error) {
	if raw == nil {
		return nil, errors.Wrap(ErrInvalidTrack, "data must be present")
	}
	if raw.Encoded == "" {
		return nil, errors.Wrap(ErrInvalidTrack, "missing encoded track")
	}

	info := raw.Info
	t := &Track{
		Encoded:    raw.Encoded,
		Title:      info.Title,
		Identifier: info.Identifier,
		Author:     info.Author,
		Duration:   info.Length,
		IsSeekable: info.IsSeekable,
		IsStream:   info.IsStream,
		SourceName: NormalizeSourceName(info.SourceName),
		Requester:  requester,
		PluginInfo: raw.PluginInfo,
		CustomData: map[string]any{},
	}
	if info.ISRC != nil {
		t.ISRC = *info.ISRC
	}
	if info.URI != nil {
		t.URI = *info.URI
	}
	if info.ArtworkURL != nil {
		t.ArtworkURL = *info.ArtworkURL
	}
	return t, nil
}
