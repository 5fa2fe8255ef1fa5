package lavalink

import (
	"encoding/json"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/effect"
	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
)

// Voice carries the chat-platform voice credentials a node needs to connect.
type Voice struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

// Complete reports whether all three credentials are known.
func (v Voice) Complete() bool {
	return v.Token != "" && v.Endpoint != "" && v.SessionID != ""
}

// EncodedTrack is a nullable encoded track handle. A non-nil value with Clear set
// sends null, which stops playback.
type EncodedTrack struct {
	Encoded string
	Clear   bool
}

// MarshalJSON encodes null or the handle.
func (e EncodedTrack) MarshalJSON() ([]byte, error) {
	if e.Clear || e.Encoded == "" {
		return []byte("null"), nil
	}
	return json.Marshal(e.Encoded)
}

// PlayerUpdate is the body of an update-player call. Only non-nil fields are sent.
type PlayerUpdate struct {
	EncodedTrack *EncodedTrack `json:"encodedTrack,omitempty"`
	Position     *int64        `json:"position,omitempty"`
	EndTime      *int64        `json:"endTime,omitempty"`
	Volume       *int          `json:"volume,omitempty"`
	Paused       *bool         `json:"paused,omitempty"`
	Filters      *effect.Set   `json:"filters,omitempty"`
	Voice        *Voice        `json:"voice,omitempty"`
}

// Play returns an encoded-track field that starts encoded.
func Play(encoded string) *EncodedTrack {
	return &EncodedTrack{Encoded: encoded}
}

// Stop returns an encoded-track field that clears playback.
func Stop() *EncodedTrack {
	return &EncodedTrack{Clear: true}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// PlayerState is the state block of a player update event.
type PlayerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int64 `json:"ping"`
}

// Stats is the node load report.
type Stats struct {
	Players        int         `json:"players"`
	PlayingPlayers int         `json:"playingPlayers"`
	Uptime         int64       `json:"uptime"`
	Memory         Memory      `json:"memory"`
	CPU            CPU         `json:"cpu"`
	FrameStats     *FrameStats `json:"frameStats"`
}

// Memory is the memory block of Stats.
type Memory struct {
	Free       int64 `json:"free"`
	Used       int64 `json:"used"`
	Allocated  int64 `json:"allocated"`
	Reservable int64 `json:"reservable"`
}

// CPU is the cpu block of Stats.
type CPU struct {
	Cores        int     `json:"cores"`
	SystemLoad   float64 `json:"systemLoad"`
	LavalinkLoad float64 `json:"lavalinkLoad"`
}

// FrameStats is the frame block of Stats; absent for idle nodes.
type FrameStats struct {
	Sent    int `json:"sent"`
	Nulled  int `json:"nulled"`
	Deficit int `json:"deficit"`
}

// Plugin is a plugin installed on a node.
type Plugin struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Info is the node information document.
type Info struct {
	Version struct {
		Semver string `json:"semver"`
		Major  int    `json:"major"`
		Minor  int    `json:"minor"`
		Patch  int    `json:"patch"`
	} `json:"version"`
	SourceManagers []string `json:"sourceManagers"`
	Filters        []string `json:"filters"`
	Plugins        []Plugin `json:"plugins"`
}

// LyricsLine is one timed lyrics line.
type LyricsLine struct {
	Timestamp int64          `json:"timestamp"`
	Duration  *int64         `json:"duration"`
	Line      string         `json:"line"`
	Plugin    map[string]any `json:"plugin"`
}

// Lyrics is the lyrics document of a track.
type Lyrics struct {
	SourceName string         `json:"sourceName"`
	Provider   string         `json:"provider"`
	Text       string         `json:"text"`
	Lines      []LyricsLine   `json:"lines"`
	Plugin     map[string]any `json:"plugin"`
}

// EmptyLyrics returns a lyrics value with no content.
func EmptyLyrics() *Lyrics {
	return &Lyrics{Lines: []LyricsLine{}, Plugin: map[string]any{}}
}

// Event types carried by "event" messages.
const (
	EventTrackStart      = "TrackStartEvent"
	EventTrackEnd        = "TrackEndEvent"
	EventTrackException  = "TrackExceptionEvent"
	EventTrackStuck      = "TrackStuckEvent"
	EventWebSocketClosed = "WebSocketClosedEvent"
	EventSegmentsLoaded  = "SegmentsLoaded"
	EventSegmentSkipped  = "SegmentSkipped"
	EventChapterStarted  = "ChapterStarted"
	EventChaptersLoaded  = "ChaptersLoaded"
)

// Track end reasons.
const (
	EndReasonFinished   = "finished"
	EndReasonLoadFailed = "loadFailed"
	EndReasonStopped    = "stopped"
	EndReasonReplaced   = "replaced"
	EndReasonCleanup    = "cleanup"
)

// Ready is the payload of the ready op.
type Ready struct {
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId"`
}

// PlayerUpdateEvent is the payload of the playerUpdate op.
type PlayerUpdateEvent struct {
	GuildID string      `json:"guildId"`
	State   PlayerState `json:"state"`
}

// TrackException is the exception block of a track exception event.
type TrackException struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

// Event is the payload of the event op. Fields are set according to Type.
type Event struct {
	Type        string          `json:"type"`
	GuildID     string          `json:"guildId"`
	Track       *track.Raw      `json:"track"`
	Reason      string          `json:"reason"`
	Exception   *TrackException `json:"exception"`
	ThresholdMs int64           `json:"thresholdMs"`
	Code        int             `json:"code"`
	ByRemote    bool            `json:"byRemote"`
}

// MayStartNext reports whether a track end lets the queue advance.
func (e *Event) MayStartNext() bool {
	switch e.Reason {
	case EndReasonFinished, EndReasonLoadFailed, EndReasonStopped:
		return true
	default:
		return false
	}
}
