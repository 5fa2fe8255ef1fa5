package player

// State is the connection lifecycle state of a player.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateDestroying
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	case StateDestroying:
		return "DESTROYING"
	default:
		return "UNKNOWN"
	}
}

// RepeatMode names the active repeat mode.
type RepeatMode string

const (
	RepeatNone    RepeatMode = ""
	RepeatTrack   RepeatMode = "track"
	RepeatQueue   RepeatMode = "queue"
	RepeatDynamic RepeatMode = "dynamic"
)
