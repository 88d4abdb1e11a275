package livesync_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"shopdesk/internal/livesync"
)

func doc(id string, fields map[string]interface{}) livesync.Document {
	return livesync.Document{ID: id, Data: fields}
}

func ids(docs []livesync.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestStoreEqualsLatestSnapshot(t *testing.T) {
	store := livesync.NewStore()
	key := "messages|c1"

	first := []livesync.Document{doc("a", nil), doc("b", nil)}
	second := []livesync.Document{doc("b", nil), doc("c", nil)}

	assert.Nil(t, store.Apply(key, first))
	previous := store.Apply(key, second)

	assert.Equal(t, []string{"a", "b"}, ids(previous))
	assert.Equal(t, []string{"b", "c"}, ids(store.View(key)))

	second[0].ID = "mutated"
	assert.Equal(t, []string{"b", "c"}, ids(store.View(key)))
}

func TestStoreViewSortsAtReadTime(t *testing.T) {
	store := livesync.NewStore()
	key := "conversations|u1"
	store.SetOrder(key, livesync.ByTime("lastMessageAt", livesync.Desc))

	store.Apply(key, []livesync.Document{
		doc("old", map[string]interface{}{"lastMessageAt": epoch}),
		doc("never", map[string]interface{}{}),
		doc("new", map[string]interface{}{"lastMessageAt": epoch.Add(time.Hour)}),
		doc("garbled", map[string]interface{}{"lastMessageAt": "not a time"}),
	})

	assert.Equal(t, []string{"new", "old", "garbled", "never"}, ids(store.View(key)))
}

func TestStoreAscendingPutsMissingTimestampsFirst(t *testing.T) {
	store := livesync.NewStore()
	key := "messages|c1"
	store.SetOrder(key, livesync.ByTime("createdAt", livesync.Asc))

	store.Apply(key, []livesync.Document{
		doc("b", map[string]interface{}{"createdAt": epoch.Add(time.Second)}),
		doc("a", map[string]interface{}{"createdAt": epoch}),
		doc("pending", map[string]interface{}{"createdAt": nil}),
	})

	assert.Equal(t, []string{"pending", "a", "b"}, ids(store.View(key)))
}

func TestSnapshotClearsProvisionalEntries(t *testing.T) {
	store := livesync.NewStore()
	key := "messages|c1"
	store.SetOrder(key, livesync.ByTime("createdAt", livesync.Asc))
	store.Apply(key, []livesync.Document{doc("a", map[string]interface{}{"createdAt": epoch})})

	store.InsertProvisional(key, doc("local-1", map[string]interface{}{"createdAt": epoch.Add(time.Second)}))
	view := store.View(key)
	assert.Equal(t, []string{"a", "local-1"}, ids(view))
	assert.True(t, view[1].Provisional)

	store.Apply(key, []livesync.Document{
		doc("a", map[string]interface{}{"createdAt": epoch}),
		doc("server-1", map[string]interface{}{"createdAt": epoch.Add(time.Second)}),
	})
	assert.Equal(t, []string{"a", "server-1"}, ids(store.View(key)))
	assert.False(t, store.RemoveProvisional(key, "local-1"))
}

func TestStoreDrop(t *testing.T) {
	store := livesync.NewStore()
	store.Apply("k", []livesync.Document{doc("a", nil)})
	assert.True(t, store.Has("k"))

	store.Drop("k")
	assert.False(t, store.Has("k"))
	assert.Empty(t, store.View("k"))
	assert.Empty(t, store.Keys())
}

func TestProvisionalHookFiresOnInsertAndRemove(t *testing.T) {
	s := livesync.NewStore()
	var keys []string
	s.OnProvisional(func(key string) { keys = append(keys, key) })

	s.InsertProvisional("k", livesync.Document{ID: "local-1"})
	s.Apply("other", nil)
	assert.True(t, s.RemoveProvisional("k", "local-1"))
	assert.False(t, s.RemoveProvisional("k", "local-1"))

	assert.Equal(t, []string{"k", "k"}, keys)
}
