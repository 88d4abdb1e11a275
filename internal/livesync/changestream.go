package livesync

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shopdesk/pkg/logger"
)

type fallbackStage int

const (
	stageFull fallbackStage = iota
	stageClientOrder
	stageClientFilter
)

func (s fallbackStage) String() string {
	switch s {
	case stageClientOrder:
		return "client_order"
	case stageClientFilter:
		return "client_filter"
	}
	return "full"
}

// Subscription is a live handle on a query. The snapshot callback always receives the full current
// result set, shaped (filtered, ordered, capped) as the query asks even when the backend could not do it.
type Subscription struct {
	ctx        context.Context
	backend    Backend
	loop       Loop
	query      Query
	onSnapshot func([]Document)
	onError    func(error)

	mu         sync.Mutex
	cancel     CancelFunc
	stage      fallbackStage
	generation atomic.Int64
	closed     atomic.Bool
}

// Watch subscribes to q. Callbacks are posted onto loop; after Unsubscribe returns no new callback starts.
func Watch(ctx context.Context, backend Backend, loop Loop, q Query, onSnapshot func([]Document), onError func(error)) (*Subscription, error) {
	if loop == nil {
		loop = InlineLoop{}
	}
	s := &Subscription{
		ctx:        ctx,
		backend:    backend,
		loop:       loop,
		query:      q,
		onSnapshot: onSnapshot,
		onError:    onError,
	}
	activeSubscriptions.WithLabelValues(q.Collection).Inc()
	if err := s.start(stageFull); err != nil {
		s.closed.Store(true)
		activeSubscriptions.WithLabelValues(q.Collection).Dec()
		return nil, err
	}
	return s, nil
}

func (s *Subscription) Query() Query {
	return s.query
}

// Degraded reports whether ordering or filtering currently happens client-side.
func (s *Subscription) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage != stageFull
}

func (s *Subscription) backendQuery(stage fallbackStage) Query {
	q := s.query
	switch stage {
	case stageClientOrder:
		q.OrderBy = nil
		q.Limit = 0
	case stageClientFilter:
		q.Filters = nil
		q.OrderBy = nil
		q.Limit = 0
	}
	return q
}

func (s *Subscription) start(stage fallbackStage) error {
	gen := s.generation.Add(1)
	cancel, err := s.backend.Subscribe(s.ctx, s.backendQuery(stage),
		func(docs []Document) {
			s.loop.Post(func() { s.deliver(gen, stage, docs) })
		},
		func(err error) {
			s.loop.Post(func() { s.fail(gen, stage, err) })
		},
	)
	if err != nil {
		if IsIndexRequired(err) && stage < stageClientFilter {
			s.recordFallback(stage + 1)
			return s.start(stage + 1)
		}
		return err
	}

	s.mu.Lock()
	if s.closed.Load() || gen != s.generation.Load() {
		// closed meanwhile, or an inline error already moved on to the next stage
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.cancel = cancel
	s.stage = stage
	s.mu.Unlock()
	return nil
}

func (s *Subscription) deliver(gen int64, stage fallbackStage, docs []Document) {
	if s.closed.Load() || gen != s.generation.Load() {
		return
	}
	result := docs
	if stage != stageFull {
		result = s.query.Evaluate(docs)
	}
	if s.onSnapshot != nil {
		s.onSnapshot(result)
	}
}

func (s *Subscription) fail(gen int64, stage fallbackStage, err error) {
	if s.closed.Load() || gen != s.generation.Load() {
		return
	}
	if IsIndexRequired(err) && stage < stageClientFilter {
		s.mu.Lock()
		previous := s.cancel
		s.cancel = nil
		s.mu.Unlock()
		if previous != nil {
			previous()
		}
		s.recordFallback(stage + 1)
		if startErr := s.start(stage + 1); startErr != nil {
			s.report(startErr)
		}
		return
	}
	s.report(err)
}

func (s *Subscription) recordFallback(next fallbackStage) {
	_, span := tracer.Start(s.ctx, "livesync.QueryFallback", trace.WithAttributes(
		attribute.String("collection", s.query.Collection),
		attribute.String("stage", next.String()),
	))
	defer span.End()

	queryFallbacks.WithLabelValues(s.query.Collection, next.String()).Inc()
	logger.Warn("livesync: query on %s refused by backend, falling back to %s (key=%s)", s.query.Collection, next, s.query.Key())
}

func (s *Subscription) report(err error) {
	kind := "other"
	switch {
	case IsPermissionDenied(err):
		kind = "permission"
	case IsIndexRequired(err):
		kind = "index"
	}
	subscriptionErrors.WithLabelValues(s.query.Collection, kind).Inc()
	logger.Error("livesync: subscription on %s failed (%s): %v", s.query.Collection, kind, err)
	if s.onError != nil {
		s.onError(err)
	}
}

// Unsubscribe stops callbacks and releases the backend listener. Safe to call repeatedly and from inside
// a callback.
func (s *Subscription) Unsubscribe() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	activeSubscriptions.WithLabelValues(s.query.Collection).Dec()
}
