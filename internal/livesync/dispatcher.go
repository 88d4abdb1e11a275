package livesync

import (
	"context"
	"errors"
	"sync"
	"time"

	"shopdesk/pkg/logger"
)

// Alert is what a Sink shows the user.
type Alert struct {
	ID     string                 `json:"id"`
	UserID string                 `json:"user_id"`
	Kind   string                 `json:"kind"`
	Title  string                 `json:"title"`
	Body   string                 `json:"body"`
	Tag    string                 `json:"tag"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

type Sink interface {
	Notify(ctx context.Context, alert Alert) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, alert Alert) error

func (f SinkFunc) Notify(ctx context.Context, alert Alert) error {
	return f(ctx, alert)
}

// Deduper collapses alerts sharing a tag across sessions. FirstSeen reports whether tag is new.
type Deduper interface {
	FirstSeen(ctx context.Context, tag string) (bool, error)
}

type DispatcherConfig struct {
	// Self is the local user; documents they authored never alert.
	Self string
	// AuthorField names the author of a document. Documents without the field are never self-authored.
	AuthorField string
	// Revision, when set, makes a document new again each time it returns a value not seen before.
	// Documents with an empty revision never alert. The default alert tag is then "<id>@<revision>".
	Revision func(Document) string
	Render   func(Document) Alert
	Sink     Sink
	Deduper  Deduper
}

// Dispatcher turns new documents in successive snapshots into alerts. It belongs to one subscription:
// the first snapshot only primes the seen set, so a reconnect never replays history.
type Dispatcher struct {
	cfg DispatcherConfig

	mu     sync.Mutex
	primed bool
	seen   map[string]struct{}
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Render == nil {
		cfg.Render = defaultRender
	}
	return &Dispatcher{cfg: cfg, seen: make(map[string]struct{})}
}

// Observe compares the replaced snapshot with the current one and fires the sink once per newly appeared
// document authored by someone else. It returns the number of alerts fired.
func (d *Dispatcher) Observe(ctx context.Context, previous, current []Document) int {
	d.mu.Lock()
	if !d.primed {
		for _, doc := range current {
			if key := d.key(doc); key != "" {
				d.seen[key] = struct{}{}
			}
		}
		d.primed = true
		d.mu.Unlock()
		notificationsDispatched.WithLabelValues("primed").Add(float64(len(current)))
		return 0
	}

	before := make(map[string]struct{}, len(previous))
	for _, doc := range previous {
		before[d.key(doc)] = struct{}{}
	}
	var fresh []Document
	var keys []string
	for _, doc := range current {
		key := d.key(doc)
		if key == "" {
			continue
		}
		if _, ok := before[key]; ok {
			continue
		}
		if _, ok := d.seen[key]; ok {
			continue
		}
		d.seen[key] = struct{}{}
		fresh = append(fresh, doc)
		keys = append(keys, key)
	}
	d.mu.Unlock()

	fired := 0
	for i, doc := range fresh {
		if d.cfg.AuthorField != "" && d.cfg.Self != "" && doc.String(d.cfg.AuthorField) == d.cfg.Self {
			notificationsDispatched.WithLabelValues("self").Inc()
			continue
		}
		alert := d.cfg.Render(doc)
		if alert.Tag == "" {
			alert.Tag = keys[i]
		}
		if !d.firstSeen(ctx, dedupeKey(alert)) {
			notificationsDispatched.WithLabelValues("deduplicated").Inc()
			continue
		}
		if d.cfg.Sink == nil {
			continue
		}
		if err := d.cfg.Sink.Notify(ctx, alert); err != nil {
			notificationsDispatched.WithLabelValues("failed").Inc()
			logger.Warn("livesync: notify %s failed: %v", alert.Tag, err)
			continue
		}
		notificationsDispatched.WithLabelValues("fired").Inc()
		fired++
	}
	return fired
}

func (d *Dispatcher) key(doc Document) string {
	if d.cfg.Revision == nil {
		return doc.ID
	}
	rev := d.cfg.Revision(doc)
	if rev == "" {
		return ""
	}
	return doc.ID + "@" + rev
}

func (d *Dispatcher) firstSeen(ctx context.Context, tag string) bool {
	if d.cfg.Deduper == nil {
		return true
	}
	ok, err := d.cfg.Deduper.FirstSeen(ctx, tag)
	if err != nil {
		// an unreachable deduper must not swallow alerts
		logger.Warn("livesync: dedupe check for %s failed: %v", tag, err)
		return true
	}
	return ok
}

// dedupeKey scopes the tag to the recipient, so two users alerted about one document do not collapse.
func dedupeKey(alert Alert) string {
	if alert.UserID == "" {
		return alert.Tag
	}
	return alert.UserID + ":" + alert.Tag
}

func defaultRender(doc Document) Alert {
	return Alert{
		ID:     doc.ID,
		UserID: doc.String("userId"),
		Kind:   doc.String("type"),
		Title:  doc.String("title"),
		Body:   doc.String("message"),
		Data:   doc.Map("data"),
	}
}

// MemoryDeduper remembers tags for ttl inside one process.
type MemoryDeduper struct {
	clock Clock
	ttl   time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryDeduper(clock Clock, ttl time.Duration) *MemoryDeduper {
	if clock == nil {
		clock = SystemClock()
	}
	return &MemoryDeduper{clock: clock, ttl: ttl, seen: make(map[string]time.Time)}
}

func (m *MemoryDeduper) FirstSeen(_ context.Context, tag string) (bool, error) {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if at, ok := m.seen[tag]; ok && (m.ttl <= 0 || now.Sub(at) < m.ttl) {
		return false, nil
	}
	m.seen[tag] = now
	return true, nil
}

// FanoutSink delivers to every sink; failures are logged and joined, never short-circuit the rest.
type FanoutSink []Sink

func (f FanoutSink) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, alert); err != nil {
			logger.Warn("livesync: sink failed for %s: %v", alert.Tag, err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(f) && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// GatedSink asks for permission once and silently drops every alert when it is refused.
type GatedSink struct {
	sink    Sink
	request func(ctx context.Context) (bool, error)

	once    sync.Once
	allowed bool
}

func NewGatedSink(sink Sink, request func(ctx context.Context) (bool, error)) *GatedSink {
	return &GatedSink{sink: sink, request: request}
}

func (g *GatedSink) Notify(ctx context.Context, alert Alert) error {
	g.once.Do(func() {
		if g.request == nil {
			g.allowed = true
			return
		}
		ok, err := g.request(ctx)
		if err != nil {
			logger.Warn("livesync: notification permission check failed: %v", err)
		}
		g.allowed = ok && err == nil
	})
	if !g.allowed {
		return nil
	}
	return g.sink.Notify(ctx, alert)
}
