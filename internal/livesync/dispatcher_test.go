package livesync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk/internal/livesync"
	"shopdesk/internal/livesync/livesynctest"
)

type recordingSink struct {
	alerts []livesync.Alert
	err    error
}

func (r *recordingSink) Notify(_ context.Context, alert livesync.Alert) error {
	r.alerts = append(r.alerts, alert)
	return r.err
}

func msg(id, sender string) livesync.Document {
	return doc(id, map[string]interface{}{"senderId": sender, "content": "hi " + id})
}

func TestColdStartFiresNothing(t *testing.T) {
	sink := &recordingSink{}
	d := livesync.NewDispatcher(livesync.DispatcherConfig{Self: "me", AuthorField: "senderId", Sink: sink})

	history := []livesync.Document{msg("1", "ana"), msg("2", "ben")}
	assert.Equal(t, 0, d.Observe(context.Background(), nil, history))
	assert.Empty(t, sink.alerts)
}

func TestNewDocumentsFireOnce(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	d := livesync.NewDispatcher(livesync.DispatcherConfig{Self: "me", AuthorField: "senderId", Sink: sink})

	first := []livesync.Document{msg("1", "ana")}
	second := []livesync.Document{msg("1", "ana"), msg("2", "ben"), msg("3", "me")}
	d.Observe(ctx, nil, first)

	assert.Equal(t, 1, d.Observe(ctx, first, second))
	require.Len(t, sink.alerts, 1)
	assert.Equal(t, "2", sink.alerts[0].ID)

	// a document that drops out of a capped window and comes back is not new
	third := []livesync.Document{msg("1", "ana"), msg("3", "me")}
	d.Observe(ctx, second, third)
	assert.Equal(t, 0, d.Observe(ctx, third, second))
	assert.Len(t, sink.alerts, 1)
}

func TestRevisionMakesUpdatedDocumentsNew(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	d := livesync.NewDispatcher(livesync.DispatcherConfig{
		Self:        "me",
		AuthorField: "lastMessageSenderId",
		Revision:    func(doc livesync.Document) string { return doc.String("lastMessageAt") },
		Sink:        sink,
	})
	conv := func(at, sender string) livesync.Document {
		return doc("c1", map[string]interface{}{"lastMessageAt": at, "lastMessageSenderId": sender})
	}

	empty := []livesync.Document{conv("", "")}
	d.Observe(ctx, nil, empty)

	first := []livesync.Document{conv("100", "ana")}
	assert.Equal(t, 1, d.Observe(ctx, empty, first))
	require.Len(t, sink.alerts, 1)
	assert.Equal(t, "c1@100", sink.alerts[0].Tag)

	// an unrelated field change keeps the revision
	assert.Equal(t, 0, d.Observe(ctx, first, []livesync.Document{conv("100", "ana")}))

	mine := []livesync.Document{conv("200", "me")}
	assert.Equal(t, 0, d.Observe(ctx, first, mine))
	assert.Equal(t, 1, d.Observe(ctx, mine, []livesync.Document{conv("300", "ana")}))
	assert.Len(t, sink.alerts, 2)
}

func TestDeduperSuppressesAcrossDispatchers(t *testing.T) {
	ctx := context.Background()
	clock := livesynctest.NewClock(epoch)
	dedupe := livesync.NewMemoryDeduper(clock, time.Minute)
	sink := &recordingSink{}

	tabA := livesync.NewDispatcher(livesync.DispatcherConfig{Sink: sink, Deduper: dedupe})
	tabB := livesync.NewDispatcher(livesync.DispatcherConfig{Sink: sink, Deduper: dedupe})
	tabA.Observe(ctx, nil, nil)
	tabB.Observe(ctx, nil, nil)

	fresh := []livesync.Document{doc("n1", map[string]interface{}{"title": "Order ready"})}
	assert.Equal(t, 1, tabA.Observe(ctx, nil, fresh))
	assert.Equal(t, 0, tabB.Observe(ctx, nil, fresh))
	require.Len(t, sink.alerts, 1)
	assert.Equal(t, "Order ready", sink.alerts[0].Title)
}

func TestMemoryDeduperExpires(t *testing.T) {
	ctx := context.Background()
	clock := livesynctest.NewClock(epoch)
	dedupe := livesync.NewMemoryDeduper(clock, time.Minute)

	ok, _ := dedupe.FirstSeen(ctx, "n1")
	assert.True(t, ok)
	ok, _ = dedupe.FirstSeen(ctx, "n1")
	assert.False(t, ok)

	clock.Advance(time.Minute)
	ok, _ = dedupe.FirstSeen(ctx, "n1")
	assert.True(t, ok)
}

func TestGatedSinkAsksOnce(t *testing.T) {
	ctx := context.Background()
	asked := 0
	inner := &recordingSink{}
	denied := livesync.NewGatedSink(inner, func(context.Context) (bool, error) {
		asked++
		return false, nil
	})

	require.NoError(t, denied.Notify(ctx, livesync.Alert{ID: "1"}))
	require.NoError(t, denied.Notify(ctx, livesync.Alert{ID: "2"}))
	assert.Equal(t, 1, asked)
	assert.Empty(t, inner.alerts)

	allowed := livesync.NewGatedSink(inner, func(context.Context) (bool, error) { return true, nil })
	require.NoError(t, allowed.Notify(ctx, livesync.Alert{ID: "3"}))
	assert.Len(t, inner.alerts, 1)
}

func TestFanoutSinkKeepsGoingAfterFailure(t *testing.T) {
	ctx := context.Background()
	broken := &recordingSink{err: errors.New("token expired")}
	healthy := &recordingSink{}

	err := livesync.FanoutSink{broken, healthy}.Notify(ctx, livesync.Alert{ID: "1"})
	assert.NoError(t, err)
	assert.Len(t, broken.alerts, 1)
	assert.Len(t, healthy.alerts, 1)

	err = livesync.FanoutSink{broken}.Notify(ctx, livesync.Alert{ID: "2"})
	assert.Error(t, err)
}

func TestDispatcherSurvivesSinkFailure(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{err: errors.New("offline")}
	d := livesync.NewDispatcher(livesync.DispatcherConfig{Sink: sink})
	d.Observe(ctx, nil, nil)

	assert.Equal(t, 0, d.Observe(ctx, nil, []livesync.Document{msg("1", "ana")}))
	assert.Len(t, sink.alerts, 1)
	assert.Equal(t, 0, d.Observe(ctx, nil, []livesync.Document{msg("1", "ana")}))
	assert.Len(t, sink.alerts, 1)
}
