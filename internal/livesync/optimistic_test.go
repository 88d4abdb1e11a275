package livesync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk/internal/infrastructure/memdb"
	"shopdesk/internal/livesync"
	"shopdesk/internal/livesync/livesynctest"
)

var statusRank = map[string]int{"sending": 0, "sent": 1, "delivered": 2, "read": 3}

func advances(from, to string) bool {
	return statusRank[to] > statusRank[from]
}

type sendFixture struct {
	clock *livesynctest.Clock
	db    *memdb.Store
	store *livesync.Store
	queue *livesync.WriteQueue
	sub   *livesync.Subscription
	key   string
}

func newSendFixture(t *testing.T) *sendFixture {
	t.Helper()
	clock := livesynctest.NewClock(epoch)
	db := memdb.New(clock)
	store := livesync.NewStore()

	q := livesync.Query{Collection: "messages"}.
		Where("conversationId", livesync.OpEqual, "c1").
		Ordered("createdAt", livesync.Asc)
	key := q.Key()
	store.SetOrder(key, livesync.ByTime("createdAt", livesync.Asc))
	sub, err := livesync.Watch(context.Background(), db, livesync.InlineLoop{}, q,
		func(docs []livesync.Document) { store.Apply(key, docs) }, nil)
	require.NoError(t, err)
	t.Cleanup(sub.Unsubscribe)

	transport := livesync.NewSimulatedTransport(db, clock, nil, advances)
	return &sendFixture{
		clock: clock,
		db:    db,
		store: store,
		queue: livesync.NewWriteQueue(db, store, clock, transport),
		sub:   sub,
		key:   key,
	}
}

func (f *sendFixture) send(t *testing.T, content string) (string, error) {
	t.Helper()
	return f.queue.Send(context.Background(), livesync.PendingWrite{
		Key:        f.key,
		Collection: "messages",
		Fields: map[string]interface{}{
			"conversationId": "c1",
			"senderId":       "u1",
			"content":        content,
			"createdAt":      livesync.ServerTimestamp,
		},
	})
}

func TestSendWalksStatusesOnTheClock(t *testing.T) {
	f := newSendFixture(t)

	id, err := f.send(t, "hello")
	require.NoError(t, err)

	view := f.store.View(f.key)
	require.Len(t, view, 1)
	assert.Equal(t, id, view[0].ID)
	assert.Equal(t, "sending", view[0].String("status"))
	assert.False(t, view[0].Provisional)

	f.clock.Advance(499 * time.Millisecond)
	assert.Equal(t, "sending", f.store.View(f.key)[0].String("status"))

	f.clock.Advance(1 * time.Millisecond)
	assert.Equal(t, "sent", f.store.View(f.key)[0].String("status"))

	f.clock.Advance(500 * time.Millisecond)
	assert.Equal(t, "delivered", f.store.View(f.key)[0].String("status"))
	assert.Equal(t, 0, f.clock.Pending())
}

func TestTransportNeverUndoesRead(t *testing.T) {
	f := newSendFixture(t)

	id, err := f.send(t, "hello")
	require.NoError(t, err)

	f.clock.Advance(200 * time.Millisecond)
	require.NoError(t, f.db.Update(context.Background(), "messages", id, map[string]interface{}{"status": "read"}))

	f.clock.Advance(time.Second)
	got, err := f.db.Get(context.Background(), "messages", id)
	require.NoError(t, err)
	assert.Equal(t, "read", got.String("status"))
}

func TestFailedSendLeavesNoGhost(t *testing.T) {
	f := newSendFixture(t)
	rejected := errors.New("quota exceeded")

	var during []livesync.Document
	f.db.FailWrite = func(op, collection, id string) error {
		during = f.store.View(f.key)
		return rejected
	}

	_, err := f.send(t, "lost")
	require.ErrorIs(t, err, rejected)

	require.Len(t, during, 1)
	assert.True(t, during[0].Provisional)
	assert.True(t, livesync.IsProvisionalID(during[0].ID))
	assert.Equal(t, "lost", during[0].String("content"))

	assert.Empty(t, f.store.View(f.key))
	assert.Equal(t, 0, f.clock.Pending())
}

func TestTransportIgnoresDeletedMessages(t *testing.T) {
	f := newSendFixture(t)

	id, err := f.send(t, "oops")
	require.NoError(t, err)
	require.NoError(t, f.db.Delete(context.Background(), "messages", id))

	f.clock.Advance(time.Second)
	_, err = f.db.Get(context.Background(), "messages", id)
	assert.True(t, livesync.IsNotFound(err))
}
