package livesync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shopdesk/pkg/logger"
)

const (
	StatusField   = "status"
	StatusSending = "sending"

	provisionalPrefix = "local-"
)

// PendingWrite is a document to create while a provisional copy is shown under Key.
type PendingWrite struct {
	Key        string
	Collection string
	Fields     map[string]interface{}
}

// Acknowledger is told about every server-accepted write. SimulatedTransport is the only implementation.
type Acknowledger interface {
	Acknowledge(collection, id string)
}

// WriteQueue issues writes with a provisional entry shown immediately and rolled back on failure.
type WriteQueue struct {
	backend Backend
	store   *Store
	clock   Clock
	acks    Acknowledger
}

func NewWriteQueue(backend Backend, store *Store, clock Clock, acks Acknowledger) *WriteQueue {
	if clock == nil {
		clock = SystemClock()
	}
	return &WriteQueue{backend: backend, store: store, clock: clock, acks: acks}
}

// Send inserts a provisional document, creates the authoritative one and returns its id. On failure the
// provisional entry is gone before Send returns.
func (q *WriteQueue) Send(ctx context.Context, w PendingWrite) (string, error) {
	ctx, span := tracer.Start(ctx, "livesync.OptimisticSend", trace.WithAttributes(
		attribute.String("collection", w.Collection),
	))
	defer span.End()

	fields := make(map[string]interface{}, len(w.Fields)+1)
	for k, v := range w.Fields {
		fields[k] = v
	}
	if _, ok := fields[StatusField]; !ok {
		fields[StatusField] = StatusSending
	}

	localID := provisionalPrefix + uuid.New().String()
	if w.Key != "" && q.store != nil {
		q.store.InsertProvisional(w.Key, Document{ID: localID, Data: q.localCopy(fields)})
	}

	id, err := q.backend.Add(ctx, w.Collection, fields)
	if err != nil {
		if w.Key != "" && q.store != nil {
			q.store.RemoveProvisional(w.Key, localID)
		}
		optimisticWrites.WithLabelValues(w.Collection, "rolled_back").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "write rejected")
		logger.Error("livesync: write to %s failed, provisional %s rolled back: %v", w.Collection, localID, err)
		return "", fmt.Errorf("send to %s: %w", w.Collection, err)
	}

	optimisticWrites.WithLabelValues(w.Collection, "accepted").Inc()
	span.SetAttributes(attribute.String("document.id", id))
	if q.acks != nil {
		q.acks.Acknowledge(w.Collection, id)
	}
	return id, nil
}

// localCopy resolves server timestamps to local time so the provisional entry sorts where it will land.
func (q *WriteQueue) localCopy(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	now := q.clock.Now()
	for k, v := range fields {
		if v == ServerTimestamp {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}

// IsProvisionalID reports whether id was minted locally for a provisional entry.
func IsProvisionalID(id string) bool {
	return len(id) > len(provisionalPrefix) && id[:len(provisionalPrefix)] == provisionalPrefix
}
