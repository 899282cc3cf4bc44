package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signal struct {
	from, to string
	isTyping bool
}

type recorder struct {
	mu      sync.Mutex
	signals []signal
	offline map[string]bool
}

func newRecorder() *recorder {
	return &recorder{offline: make(map[string]bool)}
}

func (r *recorder) send(from, to string, isTyping bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline[to] {
		return false
	}
	r.signals = append(r.signals, signal{from: from, to: to, isTyping: isTyping})
	return true
}

func (r *recorder) all() []signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]signal(nil), r.signals...)
}

func (r *recorder) setOffline(user string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline[user] = true
}

func TestNotifyEmitsStartThenStop(t *testing.T) {
	rec := newRecorder()
	c := NewCoordinator(20*time.Millisecond, rec.send)

	c.Notify("alice", "bob")
	assert.True(t, c.Pending("alice", "bob"))

	time.Sleep(100 * time.Millisecond)

	got := rec.all()
	require.Len(t, got, 2)
	assert.Equal(t, signal{"alice", "bob", true}, got[0])
	assert.Equal(t, signal{"alice", "bob", false}, got[1])
	assert.False(t, c.Pending("alice", "bob"))
}

func TestNotifyReArmsSuppressesOldTimer(t *testing.T) {
	rec := newRecorder()
	c := NewCoordinator(50*time.Millisecond, rec.send)

	c.Notify("alice", "bob")
	time.Sleep(20 * time.Millisecond)
	c.Notify("alice", "bob")
	time.Sleep(20 * time.Millisecond)

	// First timer would have fired by now; the re-arm cancelled it.
	var stops int
	for _, s := range rec.all() {
		if !s.isTyping {
			stops++
		}
	}
	assert.Zero(t, stops)

	time.Sleep(100 * time.Millisecond)
	stops = 0
	for _, s := range rec.all() {
		if !s.isTyping {
			stops++
		}
	}
	assert.Equal(t, 1, stops)
}

func TestNotifyOfflineRecipientNeverQueues(t *testing.T) {
	rec := newRecorder()
	rec.setOffline("bob")
	c := NewCoordinator(20*time.Millisecond, rec.send)

	c.Notify("alice", "bob")
	assert.False(t, c.Pending("alice", "bob"))

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.all())
}

func TestRecipientDisconnectBeforeFire(t *testing.T) {
	rec := newRecorder()
	c := NewCoordinator(20*time.Millisecond, rec.send)

	c.Notify("alice", "bob")
	rec.setOffline("bob")

	time.Sleep(60 * time.Millisecond)

	// The fire attempt finds no reachable handle, emits nothing, and
	// still cleans up the timer entry.
	got := rec.all()
	require.Len(t, got, 1)
	assert.True(t, got[0].isTyping)
	assert.False(t, c.Pending("alice", "bob"))
}

func TestCancelSender(t *testing.T) {
	rec := newRecorder()
	c := NewCoordinator(20*time.Millisecond, rec.send)

	c.Notify("alice", "bob")
	c.Notify("alice", "carol")
	c.Notify("dave", "bob")
	c.CancelSender("alice")

	assert.False(t, c.Pending("alice", "bob"))
	assert.False(t, c.Pending("alice", "carol"))
	assert.True(t, c.Pending("dave", "bob"))

	time.Sleep(60 * time.Millisecond)

	var stops []signal
	for _, s := range rec.all() {
		if !s.isTyping {
			stops = append(stops, s)
		}
	}
	require.Len(t, stops, 1)
	assert.Equal(t, "dave", stops[0].from)
}
