// Package notice holds the single transient operator notification.
package notice

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"ragconsole/internal/metrics"
)

const DefaultTTL = 2 * time.Second

type Notification struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type EventType string

const (
	EventPosted  EventType = "posted"
	EventCleared EventType = "cleared"
)

type Event struct {
	Type         EventType     `json:"type"`
	Notification *Notification `json:"notification,omitempty"`
}

// Center keeps zero or one live notification. A newer Post supersedes the
// current one and restarts the countdown; expiry and Dismiss race safely,
// whichever runs first wins and the other does nothing.
type Center struct {
	mu          sync.Mutex
	ttl         time.Duration
	current     *Notification
	generation  uint64
	timer       *time.Timer
	subscribers map[chan Event]struct{}
}

func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{
		ttl:         ttl,
		subscribers: make(map[chan Event]struct{}),
	}
}

func (c *Center) Post(text string) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.generation++
	gen := c.generation
	c.current = &n
	c.timer = time.AfterFunc(c.ttl, func() { c.expire(gen) })

	c.publish(Event{Type: EventPosted, Notification: &n})
	metrics.RecordNotice()
	return n
}

// Dismiss clears the live notification. It reports false when there was none.
func (c *Center) Dismiss() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clear()
}

func (c *Center) Current() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Notification{}, false
	}
	return *c.current, true
}

func (c *Center) TTL() time.Duration {
	return c.ttl
}

// Subscribe returns a channel of posted/cleared events. The caller must call
// Unsubscribe when done.
func (c *Center) Subscribe() chan Event {
	ch := make(chan Event, 16)
	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()
	return ch
}

func (c *Center) Unsubscribe(ch chan Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscribers[ch]; ok {
		delete(c.subscribers, ch)
		close(ch)
	}
}

func (c *Center) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.clear()
}

// clear must be called with mu held.
func (c *Center) clear() bool {
	if c.current == nil {
		return false
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
	c.current = nil
	c.publish(Event{Type: EventCleared})
	return true
}

// publish must be called with mu held. Slow subscribers miss events.
func (c *Center) publish(ev Event) {
	for ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
