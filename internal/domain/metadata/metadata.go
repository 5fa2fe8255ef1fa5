// Package metadata provides catalog entries that are resolved into playable tracks.
package metadata

import "strings"

// Item is one catalog track description.
type Item struct {
	Title   string   `json:"title"`
	Artists []string `json:"artists"`
	ISRC    string   `json:"isrc,omitempty"`
	URI     string   `json:"uri,omitempty"`
}

// Query returns the free-text search string for the item.
func (i Item) Query() string {
	return strings.TrimSpace(i.Title + " " + strings.Join(i.Artists, ", "))
}

// Kind classifies a resolved catalog reference.
type Kind string

const (
	KindTrack    Kind = "track"
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
	KindArtist   Kind = "artist"
)

// Collection is the answer to a resolve request. A single-track reference fills the
// embedded Item, collections fill Tracks.
type Collection struct {
	Kind Kind   `json:"type"`
	Name string `json:"name,omitempty"`
	Item
	Tracks []Item `json:"tracks,omitempty"`
}

// IsTrack reports whether the collection describes one track.
func (c *Collection) IsTrack() bool {
	return c.Kind == KindTrack && c.Title != ""
}
