package livesync

import (
	"context"
	"sync"

	"shopdesk/pkg/logger"
)

// Loop serializes callbacks onto a single goroutine. Every live view of one session shares a loop, so
// projection-store writes for that session never race each other.
type Loop interface {
	Post(fn func())
}

// EventLoop is a buffered single-goroutine Loop. Post never blocks: once the buffer is full, callbacks
// wait in an overflow list, so a callback may post to its own loop without deadlocking it.
type EventLoop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once

	mu       sync.Mutex
	overflow []func()
}

func NewEventLoop(buffer int) *EventLoop {
	if buffer <= 0 {
		buffer = 256
	}
	return &EventLoop{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Run processes posted callbacks until ctx is done or Stop is called.
func (l *EventLoop) Run(ctx context.Context) {
	for {
		select {
		case fn := <-l.queue:
			l.invoke(fn)
			l.refill()
		case <-l.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (l *EventLoop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("livesync: loop callback panicked: %v", r)
		}
	}()
	fn()
}

// Post enqueues fn. Posts after Stop are dropped.
func (l *EventLoop) Post(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.overflow) == 0 {
		select {
		case l.queue <- fn:
			return
		default:
		}
	}
	if len(l.overflow) == 0 {
		logger.Warn("livesync: loop buffer of %d is full, queueing in overflow", cap(l.queue))
	}
	l.overflow = append(l.overflow, fn)
}

// refill moves overflowed callbacks into the freed buffer, oldest first.
func (l *EventLoop) refill() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.overflow) > 0 {
		select {
		case l.queue <- l.overflow[0]:
			l.overflow[0] = nil
			l.overflow = l.overflow[1:]
		default:
			return
		}
	}
}

func (l *EventLoop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// InlineLoop runs callbacks on the posting goroutine. Used by tests and by single-threaded callers.
type InlineLoop struct{}

func (InlineLoop) Post(fn func()) {
	fn()
}
