package track

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Raw is a track as returned by an execution node.
type Raw struct {
	Encoded    string         `json:"encoded"`
	Info       RawInfo        `json:"info"`
	PluginInfo map[string]any `json:"pluginInfo"`
	UserData   map[string]any `json:"userData,omitempty"`
}

// RawInfo is the info block of a node track.
type RawInfo struct {
	Identifier string  `json:"identifier"`
	IsSeekable bool    `json:"isSeekable"`
	Author     string  `json:"author"`
	Length     int64   `json:"length"`
	IsStream   bool    `json:"isStream"`
	Position   int64   `json:"position"`
	Title      string  `json:"title"`
	URI        *string `json:"uri"`
	ArtworkURL *string `json:"artworkUrl"`
	ISRC       *string `json:"isrc"`
	SourceName string  `json:"sourceName"`
}

// LoadType classifies a load or resolve result.
type LoadType string

const (
	LoadTypeTrack    LoadType = "track"
	LoadTypePlaylist LoadType = "playlist"
	LoadTypeSearch   LoadType = "search"
	LoadTypeEmpty    LoadType = "empty"
	LoadTypeError    LoadType = "error"
)

// PlaylistInfo is the playlist header of a node playlist load.
type PlaylistInfo struct {
	Name          string `json:"name"`
	SelectedTrack int    `json:"selectedTrack"`
}

// Exception is the error block of a failed node load.
type Exception struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

// LoadResult is the node answer to a load request. Data depends on LoadType.
type LoadResult struct {
	LoadType LoadType        `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

// Tracks decodes the tracks carried by the result, whatever its load type.
func (r *LoadResult) Tracks() ([]Raw, error) {
	switch r.LoadType {
	case LoadTypeTrack:
		var t Raw
		if err := json.Unmarshal(r.Data, &t); err != nil {
			return nil, errors.Wrap(err, "failed to decode track result")
		}
		return []Raw{t}, nil
	case LoadTypeSearch:
		var ts []Raw
		if err := json.Unmarshal(r.Data, &ts); err != nil {
			return nil, errors.Wrap(err, "failed to decode search result")
		}
		return ts, nil
	case LoadTypePlaylist:
		var p struct {
			Info   PlaylistInfo `json:"info"`
			Tracks []Raw        `json:"tracks"`
		}
		if err := json.Unmarshal(r.Data, &p); err != nil {
			return nil, errors.Wrap(err, "failed to decode playlist result")
		}
		return p.Tracks, nil
	case LoadTypeError:
		var ex Exception
		if err := json.Unmarshal(r.Data, &ex); err != nil {
			return nil, errors.Wrap(err, "failed to decode load exception")
		}
		return nil, errors.Newf("load failed: %s (%s)", ex.Message, ex.Severity)
	default:
		return nil, nil
	}
}
