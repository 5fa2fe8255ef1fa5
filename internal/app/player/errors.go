package player

import (
	"github.com/cockroachdb/errors"
)

// Error categories. Test with errors.Is.
var (
	ErrConfiguration = errors.New("invalid player configuration")
	ErrPrecondition  = errors.New("player precondition failed")
	ErrRange         = errors.New("value out of range")
)

var (
	ErrNoVoiceChannel = errors.Mark(errors.New("no voice channel has been set"), ErrConfiguration)
	ErrNoCurrentTrack = errors.Mark(errors.New("no current track"), ErrPrecondition)
	ErrNoHistory      = errors.Mark(errors.New("no previous track"), ErrPrecondition)
	ErrNotConnected   = errors.Mark(errors.New("player is not connected"), ErrPrecondition)
	ErrDestroyed      = errors.Mark(errors.New("player has been destroyed"), ErrPrecondition)
)

func configErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
}

func preconditionErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrPrecondition)
}

func rangeErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrRange)
}
