// Package notification fans player state updates out to subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/ItzRandom23/magmastream-custom/internal/app/player"
)

// sendTimeout bounds a single subscriber send.
const sendTimeout = 500 * time.Millisecond

// Stream receives state updates for one subscriber.
type Stream interface {
	Send(*player.StateUpdate) error
}

type subscription struct {
	id     string
	stream Stream
}

// Manager manages subscriptions and broadcasts state updates. It implements
// player.Publisher.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a subscriber and returns its subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

func (m *Manager) nextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Publish stamps update with the next sequence number and broadcasts it.
func (m *Manager) Publish(update *player.StateUpdate) {
	update.SequenceNo = m.nextSequenceNo()
	m.Broadcast(update)
}

// Broadcast sends update to every subscriber in parallel and returns once each send
// finished or timed out. Subscribers whose send fails are dropped.
func (m *Manager) Broadcast(update *player.StateUpdate) {
	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(update)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Warn().Err(err).Msgf("notification: send failed, unsubscribing: id=%s", s.id)
					m.Unsubscribe(s.id)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send timed out: id=%s seq=%d", s.id, update.SequenceNo)
			}
		}(sub)
	}
	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
