package console

import (
	"sync"
	"time"

	"ragconsole/internal/metrics"
)

const (
	EventSession = "session"
	EventCatalog = "catalog"
	EventQuery   = "query"
	EventView    = "view"
	EventNotice  = "notice"
)

// Event tells subscribers which part of the state changed. Subscribers read
// the state itself through Console.State.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Broadcaster fans events out to websocket subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetWSConnectionsActive(n)
	return ch
}

func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetWSConnectionsActive(n)
}

// Publish never blocks: slow consumers miss events.
func (b *Broadcaster) Publish(eventType string) {
	ev := Event{Type: eventType, Timestamp: time.Now().Unix()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
