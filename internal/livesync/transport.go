package livesync

import (
	"context"
	"time"

	"shopdesk/pkg/logger"
)

// TransportStep moves an accepted write to Status once After has elapsed since acceptance.
type TransportStep struct {
	After  time.Duration
	Status string
}

// DefaultTransportSteps mimic network delivery for a document store that has no delivery receipts.
var DefaultTransportSteps = []TransportStep{
	{After: 500 * time.Millisecond, Status: "sent"},
	{After: 1000 * time.Millisecond, Status: "delivered"},
}

// SimulatedTransport is a non-production stand-in for delivery receipts. Each step re-reads the document
// and only writes when the new status ranks above the stored one, so a recipient's read is never undone.
type SimulatedTransport struct {
	backend  Backend
	clock    Clock
	steps    []TransportStep
	advances func(from, to string) bool
	timeout  time.Duration
}

func NewSimulatedTransport(backend Backend, clock Clock, steps []TransportStep, advances func(from, to string) bool) *SimulatedTransport {
	if clock == nil {
		clock = SystemClock()
	}
	if len(steps) == 0 {
		steps = DefaultTransportSteps
	}
	return &SimulatedTransport{
		backend:  backend,
		clock:    clock,
		steps:    steps,
		advances: advances,
		timeout:  10 * time.Second,
	}
}

func (t *SimulatedTransport) Acknowledge(collection, id string) {
	for _, step := range t.steps {
		step := step
		t.clock.AfterFunc(step.After, func() {
			t.advance(collection, id, step.Status)
		})
	}
}

func (t *SimulatedTransport) advance(collection, id, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	doc, err := t.backend.Get(ctx, collection, id)
	if err != nil {
		if !IsNotFound(err) {
			logger.Warn("livesync: transport could not read %s/%s: %v", collection, id, err)
		}
		return
	}
	current := doc.String(StatusField)
	if t.advances != nil && !t.advances(current, status) {
		logger.Debug("livesync: transport skips %s/%s %s -> %s", collection, id, current, status)
		return
	}
	if err := t.backend.Update(ctx, collection, id, map[string]interface{}{StatusField: status}); err != nil {
		logger.Warn("livesync: transport could not mark %s/%s %s: %v", collection, id, status, err)
	}
}
