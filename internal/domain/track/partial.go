package track

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// Field names accepted by a partial projection.
const (
	FieldTrack      = "track"
	FieldTitle      = "title"
	FieldIdentifier = "identifier"
	FieldAuthor     = "author"
	FieldDuration   = "duration"
	FieldISRC       = "isrc"
	FieldIsSeekable = "isSeekable"
	FieldIsStream   = "isStream"
	FieldURI        = "uri"
	FieldArtworkURL = "artworkUrl"
	FieldSourceName = "sourceName"
	FieldRequester  = "requester"
	FieldPluginInfo = "pluginInfo"
	FieldCustomData = "customData"
)

var allFields = []string{
	FieldTrack, FieldTitle, FieldIdentifier, FieldAuthor, FieldDuration, FieldISRC,
	FieldIsSeekable, FieldIsStream, FieldURI, FieldArtworkURL, FieldSourceName,
	FieldRequester, FieldPluginInfo, FieldCustomData,
}

// Projection keeps a declared subset of track fields. The encoded handle is always kept.
// The zero value keeps everything.
type Projection struct {
	keep map[string]struct{}
}

// NewProjection builds a projection keeping fields plus the encoded handle.
func NewProjection(fields []string) (Projection, error) {
	if len(fields) == 0 {
		return Projection{}, nil
	}
	keep := map[string]struct{}{FieldTrack: {}}
	for _, f := range fields {
		if !slices.Contains(allFields, f) {
			return Projection{}, errors.Wrapf(ErrUnknownPartial, "%q", f)
		}
		keep[f] = struct{}{}
	}
	return Projection{keep: keep}, nil
}

// Fields returns the kept field names; nil means all fields.
func (p Projection) Fields() []string {
	if p.keep == nil {
		return nil
	}
	out := make([]string, 0, len(p.keep))
	for _, f := range allFields {
		if _, ok := p.keep[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Apply strips every field not kept by p. t is modified in place and returned.
func (p Projection) Apply(t *Track) *Track {
	if t == nil || p.keep == nil {
		return t
	}
	for _, f := range allFields {
		if _, ok := p.keep[f]; ok {
			continue
		}
		clearField(t, f)
		if t.stripped == nil {
			t.stripped = make(map[string]struct{})
		}
		t.stripped[f] = struct{}{}
	}
	return t
}

func clearField(t *Track, f string) {
	switch f {
	case FieldTitle:
		t.Title = ""
	case FieldIdentifier:
		t.Identifier = ""
	case FieldAuthor:
		t.Author = ""
	case FieldDuration:
		t.Duration = 0
	case FieldISRC:
		t.ISRC = ""
	case FieldIsSeekable:
		t.IsSeekable = false
	case FieldIsStream:
		t.IsStream = false
	case FieldURI:
		t.URI = ""
	case FieldArtworkURL:
		t.ArtworkURL = ""
	case FieldSourceName:
		t.SourceName = ""
	case FieldRequester:
		t.Requester = nil
	case FieldPluginInfo:
		t.PluginInfo = nil
	case FieldCustomData:
		t.CustomData = nil
	}
}
