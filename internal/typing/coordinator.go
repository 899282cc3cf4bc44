package typing

import (
	"sync"
	"time"
)

// DefaultIdle is how long after the last typing event the stopped
// signal fires.
const DefaultIdle = 3 * time.Second

type pair struct {
	from, to string
}

// SendFunc pushes a typing indicator to the recipient's live handle.
// It reports false when the recipient is unreachable.
type SendFunc func(from, to string, isTyping bool) bool

// Coordinator debounces per-(sender,recipient) typing signals. Each
// Notify re-arms the pair's expiry timer; on expiry a single stopped
// signal is emitted and the entry self-destructs. Nothing is ever
// queued for offline recipients.
type Coordinator struct {
	mu     sync.Mutex
	timers map[pair]*time.Timer
	idle   time.Duration
	send   SendFunc
}

func NewCoordinator(idle time.Duration, send SendFunc) *Coordinator {
	if idle <= 0 {
		idle = DefaultIdle
	}
	return &Coordinator{
		timers: make(map[pair]*time.Timer),
		idle:   idle,
		send:   send,
	}
}

// Notify relays a typing signal from sender to recipient and (re)arms
// the idle timer. A no-op when the recipient is offline.
func (c *Coordinator) Notify(from, to string) {
	if !c.send(from, to, true) {
		return
	}
	key := pair{from: from, to: to}

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[key]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(c.idle, func() { c.expire(key, t) })
	c.timers[key] = t
}

// expire only acts if it is still the armed timer for the pair; a
// stale fire that lost the race to a re-arm does nothing.
func (c *Coordinator) expire(key pair, t *time.Timer) {
	c.mu.Lock()
	current, ok := c.timers[key]
	if ok && current == t {
		delete(c.timers, key)
	}
	c.mu.Unlock()
	if !ok || current != t {
		return
	}
	// The recipient may have disconnected since the timer was armed;
	// the push simply finds no handle then.
	c.send(key.from, key.to, false)
}

// CancelSender drops every pending timer the user originated, without
// emitting stopped signals. Called when the sender disconnects.
func (c *Coordinator) CancelSender(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, t := range c.timers {
		if key.from == userID {
			t.Stop()
			delete(c.timers, key)
		}
	}
}

// Pending reports whether a stop timer is armed for the pair.
func (c *Coordinator) Pending(from, to string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.timers[pair{from: from, to: to}]
	return ok
}
