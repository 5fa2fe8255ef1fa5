// Package queue provides the per-session track queue with play history.
package queue

import (
	"math/rand/v2"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
)

var (
	ErrOutOfRange   = errors.New("queue index out of range")
	ErrInvalidRange = errors.New("invalid queue range")
)

// Queue holds the pending tracks, the current track and the previous stack.
// It is not safe for concurrent use; the owning session serializes access.
type Queue struct {
	tracks   []*track.Track
	current  *track.Track
	previous []*track.Track
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		tracks:   make([]*track.Track, 0),
		previous: make([]*track.Track, 0),
	}
}

// Current returns the current track, or nil.
func (q *Queue) Current() *track.Track {
	return q.current
}

// SetCurrent replaces the current track.
func (q *Queue) SetCurrent(t *track.Track) {
	q.current = t
}

// Tracks returns a copy of the pending tracks in play order.
func (q *Queue) Tracks() []*track.Track {
	return slices.Clone(q.tracks)
}

// Front returns the next pending track without removing it.
func (q *Queue) Front() *track.Track {
	if len(q.tracks) == 0 {
		return nil
	}
	return q.tracks[0]
}

// Add appends tracks to the end of the queue.
func (q *Queue) Add(tracks ...*track.Track) {
	for _, t := range tracks {
		if t != nil {
			q.tracks = append(q.tracks, t)
		}
	}
}

// AddFront inserts tracks at the front, keeping their relative order.
func (q *Queue) AddFront(tracks ...*track.Track) {
	q.tracks = slices.Insert(q.tracks, 0, tracks...)
}

// Remove removes and returns the pending tracks in [start, end).
func (q *Queue) Remove(start, end int) ([]*track.Track, error) {
	if start < 0 || end > len(q.tracks) {
		return nil, errors.Wrapf(ErrOutOfRange, "start=%d end=%d size=%d", start, end, len(q.tracks))
	}
	if start > end {
		return nil, errors.Wrapf(ErrInvalidRange, "start=%d end=%d", start, end)
	}
	removed := slices.Clone(q.tracks[start:end])
	q.tracks = slices.Delete(q.tracks, start, end)
	return removed, nil
}

// RemoveAt removes and returns the pending track at index.
func (q *Queue) RemoveAt(index int) (*track.Track, error) {
	removed, err := q.Remove(index, index+1)
	if err != nil {
		return nil, err
	}
	return removed[0], nil
}

// Shift removes and returns the first pending track, or nil if empty.
func (q *Queue) Shift() *track.Track {
	if len(q.tracks) == 0 {
		return nil
	}
	t := q.tracks[0]
	q.tracks = slices.Delete(q.tracks, 0, 1)
	return t
}

// Clear removes all pending tracks. Current and previous are untouched.
func (q *Queue) Clear() []*track.Track {
	removed := q.tracks
	q.tracks = make([]*track.Track, 0)
	return removed
}

// Shuffle randomizes the pending tracks in place.
func (q *Queue) Shuffle() {
	rand.Shuffle(len(q.tracks), func(i, j int) {
		q.tracks[i], q.tracks[j] = q.tracks[j], q.tracks[i]
	})
}

// Size returns the number of pending tracks.
func (q *Queue) Size() int {
	return len(q.tracks)
}

// TotalSize returns the pending count plus one if a current track is set.
func (q *Queue) TotalSize() int {
	if q.current != nil {
		return len(q.tracks) + 1
	}
	return len(q.tracks)
}

// Duration returns the summed duration of current and pending tracks in milliseconds.
func (q *Queue) Duration() int64 {
	var total int64
	if q.current != nil {
		total = q.current.Duration
	}
	for _, t := range q.tracks {
		total += t.Duration
	}
	return total
}

// PushPrevious pushes t onto the history stack.
func (q *Queue) PushPrevious(t *track.Track) {
	if t != nil {
		q.previous = append(q.previous, t)
	}
}

// PopPrevious pops the most recent history entry.
func (q *Queue) PopPrevious() (*track.Track, bool) {
	n := len(q.previous)
	if n == 0 {
		return nil, false
	}
	t := q.previous[n-1]
	q.previous = q.previous[:n-1]
	return t, true
}

// Previous returns a copy of the history stack, most recent last.
func (q *Queue) Previous() []*track.Track {
	return slices.Clone(q.previous)
}

// SetPrevious replaces the history stack.
func (q *Queue) SetPrevious(ts []*track.Track) {
	q.previous = slices.Clone(ts)
	if q.previous == nil {
		q.previous = make([]*track.Track, 0)
	}
}

// Reset clears pending tracks, the current track and history.
func (q *Queue) Reset() {
	q.tracks = make([]*track.Track, 0)
	q.current = nil
	q.previous = make([]*track.Track, 0)
}
