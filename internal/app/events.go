package app

import (
	"sync"
	"time"

	"github.com/newthinker/papertrader/internal/simulation"
)

// EventType names a session change.
type EventType string

const (
	EventCreated   EventType = "session.created"
	EventTraded    EventType = "session.traded"
	EventPaused    EventType = "session.paused"
	EventResumed   EventType = "session.resumed"
	EventCompleted EventType = "session.completed"
	EventAbandoned EventType = "session.abandoned"
	EventDeleted   EventType = "session.deleted"

	// EventSnapshot is sent to a new stream subscriber and never published.
	EventSnapshot EventType = "session.snapshot"
)

// Terminal reports whether no further events follow for the session.
func (t EventType) Terminal() bool {
	return t == EventCompleted || t == EventAbandoned || t == EventDeleted
}

// Event is published after a session change has been saved.
type Event struct {
	Type      EventType           `json:"type"`
	SessionID string              `json:"session_id"`
	Session   *simulation.Session `json:"session,omitempty"`
	Trade     *simulation.Trade   `json:"trade,omitempty"`
	Time      time.Time           `json:"time"`
}

const subscriberBuffer = 16

// Broker fans session events out to subscribers of that session.
// Publishing never blocks: a subscriber whose buffer is full misses the
// event.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers for events of one session. The cancel function
// unregisters and closes the channel.
func (b *Broker) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan Event]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[sessionID], ch)
			if len(b.subs[sessionID]) == 0 {
				delete(b.subs, sessionID)
			}
			close(ch)
		})
	}
}

// Publish delivers ev to the session's subscribers and reports how many
// received it.
func (b *Broker) Publish(ev Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for ch := range b.subs[ev.SessionID] {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}
