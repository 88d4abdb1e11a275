package livesync

import (
	"context"
	"sync"
	"time"

	"shopdesk/pkg/logger"
)

const (
	DefaultTypingIdle    = 2 * time.Second
	DefaultTypingRefresh = 1 * time.Second
	DefaultTypingTTL     = 3 * time.Second
)

// SignalID is the document id of the typing signal for a user in a conversation.
func SignalID(conversationID, userID string) string {
	return conversationID + "_" + userID
}

type typingState struct {
	lastWrite time.Time
	timer     Timer
	epoch     uint64
}

// TypingTracker runs the idle/typing state machine for the local user of every conversation it is told
// about. Entering typing writes a signal document, leaving it deletes the signal.
type TypingTracker struct {
	backend    Backend
	clock      Clock
	collection string
	idle       time.Duration
	refresh    time.Duration

	mu     sync.Mutex
	states map[string]*typingState
	epoch  uint64
}

func NewTypingTracker(backend Backend, clock Clock, collection string, idle, refresh time.Duration) *TypingTracker {
	if clock == nil {
		clock = SystemClock()
	}
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	if refresh <= 0 {
		refresh = DefaultTypingRefresh
	}
	return &TypingTracker{
		backend:    backend,
		clock:      clock,
		collection: collection,
		idle:       idle,
		refresh:    refresh,
		states:     make(map[string]*typingState),
	}
}

// Keystroke records input from userID in conversationID. The first keystroke after idle writes the signal;
// further keystrokes only push the idle deadline back, plus a timestamp refresh once the last write is older
// than the refresh interval.
func (t *TypingTracker) Keystroke(ctx context.Context, conversationID, userID string) error {
	id := SignalID(conversationID, userID)
	now := t.clock.Now()

	t.mu.Lock()
	t.epoch++
	epoch := t.epoch
	st, typing := t.states[id]
	write := !typing || now.Sub(st.lastWrite) > t.refresh
	if !typing {
		st = &typingState{}
		t.states[id] = st
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	st.epoch = epoch
	if write {
		st.lastWrite = now
	}
	st.timer = t.clock.AfterFunc(t.idle, func() { t.expire(id, epoch) })
	t.mu.Unlock()

	if !write {
		return nil
	}
	return t.backend.Set(ctx, t.collection, id, map[string]interface{}{
		"conversationId": conversationID,
		"userId":         userID,
		"timestamp":      ServerTimestamp,
	})
}

// Sent returns the pair to idle immediately, as happens when the message is sent.
func (t *TypingTracker) Sent(ctx context.Context, conversationID, userID string) {
	id := SignalID(conversationID, userID)
	t.mu.Lock()
	st, typing := t.states[id]
	if typing {
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(t.states, id)
	}
	t.mu.Unlock()
	if typing {
		t.clear(ctx, id)
	}
}

// IsTyping reports the local state, not what other sessions see.
func (t *TypingTracker) IsTyping(conversationID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.states[SignalID(conversationID, userID)]
	return ok
}

// StopAll returns every pair to idle. Called on session teardown.
func (t *TypingTracker) StopAll(ctx context.Context) {
	t.mu.Lock()
	ids := make([]string, 0, len(t.states))
	for id, st := range t.states {
		if st.timer != nil {
			st.timer.Stop()
		}
		ids = append(ids, id)
	}
	t.states = make(map[string]*typingState)
	t.mu.Unlock()

	for _, id := range ids {
		t.clear(ctx, id)
	}
}

func (t *TypingTracker) expire(id string, epoch uint64) {
	t.mu.Lock()
	st, ok := t.states[id]
	if !ok || st.epoch != epoch {
		t.mu.Unlock()
		return
	}
	delete(t.states, id)
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	t.clear(ctx, id)
}

// clear is best-effort: consumers already ignore stale signals.
func (t *TypingTracker) clear(ctx context.Context, id string) {
	if err := t.backend.Delete(ctx, t.collection, id); err != nil && !IsNotFound(err) {
		logger.Warn("livesync: could not clear typing signal %s: %v", id, err)
	}
}

// ActiveTyping keeps the signals whose timestamp is less than ttl before now. Signals without a resolved
// timestamp are inactive.
func ActiveTyping(signals []Document, now time.Time, ttl time.Duration) []Document {
	var out []Document
	for _, s := range signals {
		ts := s.Time("timestamp")
		if ts.IsZero() {
			continue
		}
		if now.Sub(ts) < ttl {
			out = append(out, s)
		}
	}
	return out
}
