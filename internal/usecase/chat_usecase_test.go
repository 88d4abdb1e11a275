package usecase

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/internal/infrastructure/storage"
	"shopdesk/internal/livesync"
	"shopdesk/pkg/errors"
)

func watchMessages(t *testing.T, f *fixture, conversationID string) (*livesync.Store, string) {
	t.Helper()
	local := livesync.NewStore()
	q := repository.MessagesOf(conversationID)
	key := q.Key()
	local.SetOrder(key, livesync.ByTime("createdAt", livesync.Asc))
	sub, err := livesync.Watch(f.ctx, f.db, livesync.InlineLoop{}, q,
		func(docs []livesync.Document) { local.Apply(key, docs) },
		func(err error) { t.Errorf("message view failed: %v", err) },
	)
	require.NoError(t, err)
	t.Cleanup(sub.Unsubscribe)
	return local, key
}

func TestCreateDirectIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)
	ben := f.user(t, "ben", "t1", entity.RoleTechnician)
	f.user(t, "zoe", "t2", entity.RoleSeller)

	conv, created, err := f.chat.CreateDirect(f.ctx, ana, ben.ID)
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, f.chat.Archive(f.ctx, ben.ID, conv.ID, true))
	again, created, err := f.chat.CreateDirect(f.ctx, ben, ana.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.ID, again.ID)
	assert.False(t, again.Archived)

	_, _, err = f.chat.CreateDirect(f.ctx, ana, ana.ID)
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	_, _, err = f.chat.CreateDirect(f.ctx, ana, "zoe")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestSendMessageShowsProvisionalThenWalksStatus(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)
	ben := f.user(t, "ben", "t1", entity.RoleTechnician)
	conv, _, err := f.chat.CreateDirect(f.ctx, ana, ben.ID)
	require.NoError(t, err)
	local, key := watchMessages(t, f, conv.ID)

	var duringWrite []livesync.Document
	f.db.FailWrite = func(op, collection, id string) error {
		if op == "add" && collection == repository.Messages {
			duringWrite = local.View(key)
		}
		return nil
	}
	msg, err := f.chat.SendMessage(f.ctx, ana, SendMessageInput{ConversationID: conv.ID, Content: "  hello "}, local)
	require.NoError(t, err)
	f.db.FailWrite = nil

	require.Len(t, duringWrite, 1)
	assert.True(t, duringWrite[0].Provisional)
	assert.Equal(t, "sending", duringWrite[0].String("status"))
	assert.Equal(t, "hello", duringWrite[0].String("content"))

	view := local.View(key)
	require.Len(t, view, 1)
	assert.Equal(t, msg.ID, view[0].ID)
	assert.False(t, view[0].Provisional)
	assert.Equal(t, "sending", view[0].String("status"))

	f.clock.Advance(500 * time.Millisecond)
	assert.Equal(t, "sent", local.View(key)[0].String("status"))

	f.clock.Advance(500 * time.Millisecond)
	assert.Equal(t, "delivered", local.View(key)[0].String("status"))
	assert.Zero(t, f.clock.Pending())

	stored, err := f.chat.Conversation(f.ctx, ben.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.LastMessage)
	assert.Equal(t, ana.ID, stored.LastMessageSenderID)
}

func TestRejectedSendRollsBackProvisional(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)
	ben := f.user(t, "ben", "t1", entity.RoleSeller)
	conv, _, err := f.chat.CreateDirect(f.ctx, ana, ben.ID)
	require.NoError(t, err)
	local, key := watchMessages(t, f, conv.ID)

	f.db.FailWrite = func(op, collection, id string) error {
		if collection == repository.Messages {
			return fmt.Errorf("rules: %w", livesync.ErrPermissionDenied)
		}
		return nil
	}
	_, err = f.chat.SendMessage(f.ctx, ana, SendMessageInput{ConversationID: conv.ID, Content: "hi"}, local)
	assert.True(t, errors.Is(err, errors.CodeForbidden))
	assert.Empty(t, local.View(key))
	assert.Empty(t, f.db.All(repository.Messages))
	assert.Zero(t, f.clock.Pending())
}

func TestReadIsNeverDowngradedByDelivery(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)
	ben := f.user(t, "ben", "t1", entity.RoleSeller)
	conv, _, err := f.chat.CreateDirect(f.ctx, ana, ben.ID)
	require.NoError(t, err)

	msg, err := f.chat.SendMessage(f.ctx, ana, SendMessageInput{ConversationID: conv.ID, Content: "ping"}, nil)
	require.NoError(t, err)
	f.clock.Advance(500 * time.Millisecond)

	marked, err := f.chat.MarkRead(f.ctx, ben.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	f.clock.Advance(time.Second)
	stored, err := f.chat.messageRepo.GetByID(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRead, stored.Status)
	assert.Equal(t, []string{ben.ID}, stored.ReadBy)

	marked, err = f.chat.MarkRead(f.ctx, ana.ID, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, marked)
}

func TestLongConversationKeepsNewestPage(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)
	ben := f.user(t, "ben", "t1", entity.RoleSeller)
	conv, _, err := f.chat.CreateDirect(f.ctx, ana, ben.ID)
	require.NoError(t, err)

	for i := 0; i < repository.MessagePage; i++ {
		_, err := f.db.Add(f.ctx, repository.Messages, map[string]interface{}{
			"conversationId": conv.ID,
			"tenantId":       "t1",
			"senderId":       ana.ID,
			"content":        fmt.Sprintf("old %d", i),
			"status":         string(entity.StatusDelivered),
			"createdAt":      epoch.Add(-time.Duration(repository.MessagePage-i) * time.Second),
		})
		require.NoError(t, err)
	}
	f.clock.Advance(time.Second)
	local, key := watchMessages(t, f, conv.ID)
	require.Len(t, local.View(key), repository.MessagePage)

	msg, err := f.chat.SendMessage(f.ctx, ana, SendMessageInput{ConversationID: conv.ID, Content: "hello"}, local)
	require.NoError(t, err)

	view := local.View(key)
	require.Len(t, view, repository.MessagePage)
	for _, doc := range view {
		assert.False(t, doc.Provisional)
	}
	assert.Equal(t, msg.ID, view[len(view)-1].ID)
	assert.Equal(t, "old 1", view[0].String("content"))

	listed, err := f.chat.ListMessages(f.ctx, ben.ID, conv.ID)
	require.NoError(t, err)
	require.Len(t, listed, repository.MessagePage)
	assert.Equal(t, msg.ID, listed[len(listed)-1].ID)

	marked, err := f.chat.MarkRead(f.ctx, ben.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.MessagePage+1, marked)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)
	ben := f.user(t, "ben", "t1", entity.RoleSeller)
	carl := f.user(t, "carl", "t1", entity.RoleSeller)
	first, _, err := f.chat.CreateDirect(f.ctx, ana, ben.ID)
	require.NoError(t, err)
	second, _, err := f.chat.CreateDirect(f.ctx, ana, carl.ID)
	require.NoError(t, err)
	other, err := f.chat.SendMessage(f.ctx, ana, SendMessageInput{ConversationID: second.ID, Content: "x"}, nil)
	require.NoError(t, err)

	cases := []struct {
		name  string
		user  *entity.User
		input SendMessageInput
		code  string
	}{
		{"empty", ana, SendMessageInput{ConversationID: first.ID, Content: "   "}, errors.CodeBadRequest},
		{"system type", ana, SendMessageInput{ConversationID: first.ID, Content: "x", Type: entity.MessageSystem}, errors.CodeBadRequest},
		{"outsider", carl, SendMessageInput{ConversationID: first.ID, Content: "x"}, errors.CodeNotFound},
		{"foreign reply", ana, SendMessageInput{ConversationID: first.ID, Content: "x", ReplyTo: other.ID}, errors.CodeBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.chat.SendMessage(f.ctx, tc.user, tc.input, nil)
			assert.True(t, errors.Is(err, tc.code), "got %v", err)
		})
	}
}

func TestReactKeepsOneEmojiPerUser(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)
	ben := f.user(t, "ben", "t1", entity.RoleSeller)
	conv, _, err := f.chat.CreateDirect(f.ctx, ana, ben.ID)
	require.NoError(t, err)
	msg, err := f.chat.SendMessage(f.ctx, ana, SendMessageInput{ConversationID: conv.ID, Content: "deal"}, nil)
	require.NoError(t, err)

	_, err = f.chat.React(f.ctx, ben.ID, msg.ID, "👍")
	require.NoError(t, err)
	reactions, err := f.chat.React(f.ctx, ben.ID, msg.ID, "❤️")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"❤️": {ben.ID}}, reactions)

	stored, err := f.chat.messageRepo.GetByID(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, reactions, stored.Reactions)
}

func TestPendingMessagesCannotBeReferenced(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)
	ben := f.user(t, "ben", "t1", entity.RoleSeller)
	conv, _, err := f.chat.CreateDirect(f.ctx, ana, ben.ID)
	require.NoError(t, err)
	local, key := watchMessages(t, f, conv.ID)

	var pendingID string
	f.db.FailWrite = func(op, collection, id string) error {
		if op == "add" && collection == repository.Messages {
			pendingID = local.View(key)[0].ID
		}
		return nil
	}
	_, err = f.chat.SendMessage(f.ctx, ana, SendMessageInput{ConversationID: conv.ID, Content: "on my way"}, local)
	require.NoError(t, err)
	f.db.FailWrite = nil
	require.NotEmpty(t, pendingID)

	_, err = f.chat.React(f.ctx, ben.ID, pendingID, "👍")
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
	_, err = f.chat.SendMessage(f.ctx, ben, SendMessageInput{ConversationID: conv.ID, Content: "ok", ReplyTo: pendingID}, nil)
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}

func TestGroupLifecycle(t *testing.T) {
	f := newFixture(t)
	mgr := f.user(t, "mia", "t1", entity.RoleManager)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)
	ben := f.user(t, "ben", "t1", entity.RoleTechnician)

	_, err := f.chat.CreateGroup(f.ctx, ana, CreateGroupInput{Name: "floor", Participants: []string{ben.ID}})
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	group, err := f.chat.CreateGroup(f.ctx, mgr, CreateGroupInput{Name: " Floor ", Participants: []string{ana.ID, ben.ID, ana.ID}})
	require.NoError(t, err)
	assert.Equal(t, "Floor", group.Name)
	assert.Equal(t, []string{mgr.ID, ana.ID, ben.ID}, group.Participants)
	assert.Equal(t, []string{mgr.ID}, group.Admins)

	assert.True(t, errors.Is(f.chat.Delete(f.ctx, ana, group.ID), errors.CodeForbidden))
	require.NoError(t, f.chat.Delete(f.ctx, mgr, group.ID))

	list, err := f.chat.ListConversations(f.ctx, ana.ID, true)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Contains(t, f.auditActions(), AuditConversationDeleted)
}

func TestSendFileUploadsThenSends(t *testing.T) {
	f := newFixture(t)
	blobs := storage.NewMemoryBlobStore("https://cdn.shop.test")
	f.chat.blobs = blobs
	f.chat.maxUpload = 1024
	ana := f.user(t, "ana", "t1", entity.RoleSeller)
	ben := f.user(t, "ben", "t1", entity.RoleSeller)
	conv, _, err := f.chat.CreateDirect(f.ctx, ana, ben.ID)
	require.NoError(t, err)

	msg, err := f.chat.SendFile(f.ctx, ana, conv.ID, "the receipt", Attachment{
		Name:        "receipt.png",
		ContentType: "image/png",
		Data:        []byte{0x89, 'P', 'N', 'G'},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.MessageImage, msg.Type)
	require.NotNil(t, msg.File)
	assert.True(t, strings.HasPrefix(msg.File.Path, "chat/"+conv.ID+"/"))
	assert.Equal(t, blobs.PublicURL(msg.File.Path), msg.File.URL)

	obj, ok := blobs.Get(msg.File.Path)
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)

	_, err = f.chat.SendFile(f.ctx, ana, conv.ID, "", Attachment{Name: "big.bin", Data: make([]byte, 2048)}, nil)
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}
