package player

import (
	"time"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
)

// ChangeType tags a state update.
type ChangeType string

const (
	ChangeCreate     ChangeType = "playerCreate"
	ChangeDestroy    ChangeType = "playerDestroy"
	ChangeConnection ChangeType = "connectionChange"
	ChangeChannel    ChangeType = "channelChange"
	ChangeVolume     ChangeType = "volumeChange"
	ChangeRepeat     ChangeType = "repeatChange"
	ChangeAutoplay   ChangeType = "autoplayChange"
	ChangePause      ChangeType = "pauseChange"
	ChangeQueue      ChangeType = "queueChange"
	ChangeTrack      ChangeType = "trackChange"
	ChangeQueueEnd   ChangeType = "queueEnd"
	ChangeNode       ChangeType = "nodeChange"
)

// Snapshot is the externally visible state of a player at one instant.
type Snapshot struct {
	State          State
	Node           string
	VoiceChannelID string
	TextChannelID  string
	Volume         int
	Position       int64
	Playing        bool
	Paused         bool
	Repeat         RepeatMode
	Autoplay       bool
	Current        *track.Track
	QueueSize      int
}

// StateUpdate is one change notification. Details holds the *Details value matching Type.
type StateUpdate struct {
	SequenceNo uint64
	GuildID    string
	Type       ChangeType
	Before     Snapshot
	After      Snapshot
	Details    any
	Time       time.Time
}

// Publisher receives the state updates of every player.
type Publisher interface {
	Publish(update *StateUpdate)
}

// ConnectionDetails describes a ChangeConnection update.
type ConnectionDetails struct {
	Action string // connect, disconnect
}

// ChannelDetails describes a ChangeChannel update.
type ChannelDetails struct {
	Kind     string // voice, text
	Previous string
	Current  string
}

// VolumeDetails describes a ChangeVolume update.
type VolumeDetails struct {
	Previous int
	Current  int
}

// RepeatDetails describes a ChangeRepeat update.
type RepeatDetails struct {
	Mode     RepeatMode
	Enabled  bool
	Interval time.Duration
}

// AutoplayDetails describes a ChangeAutoplay update.
type AutoplayDetails struct {
	Enabled bool
	Tries   int
}

// PauseDetails describes a ChangePause update.
type PauseDetails struct {
	Paused bool
}

// QueueDetails describes a ChangeQueue update.
type QueueDetails struct {
	Action string // add, remove, clear, shuffle
	Tracks []*track.Track
}

// TrackDetails describes a ChangeTrack update.
type TrackDetails struct {
	Action   string // start, end, timeUpdate, previous, stuck, exception
	Track    *track.Track
	Position int64
	Reason   string
}

// NodeDetails describes a ChangeNode update.
type NodeDetails struct {
	Previous string
	Current  string
}

// QueueEndDetails describes a ChangeQueueEnd update.
type QueueEndDetails struct {
	Last *track.Track
}

// Track change actions.
const (
	TrackStart      = "start"
	TrackEnd        = "end"
	TrackTimeUpdate = "timeUpdate"
	TrackPrevious   = "previous"
	TrackStuck      = "stuck"
	TrackException  = "exception"
)

// Queue change actions.
const (
	QueueAdd     = "add"
	QueueRemove  = "remove"
	QueueClear   = "clear"
	QueueShuffle = "shuffle"
)

type nopPublisher struct{}

func (nopPublisher) Publish(*StateUpdate) {}
