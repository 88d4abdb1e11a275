package usecase

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/internal/infrastructure/firebase"
	"shopdesk/internal/livesync"
	"shopdesk/pkg/errors"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) since(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events[n:]...)
}

func (r *recorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == kind {
			n++
		}
	}
	return n
}

func (r *recorder) last(t *testing.T, kind string) Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == kind {
			return r.events[i]
		}
	}
	require.FailNow(t, "no event of type "+kind)
	return Event{}
}

func newLive(f *fixture, auth *AuthUseCase) *LiveUseCase {
	return NewLiveUseCase(LiveConfig{
		Backend:  f.db,
		Users:    f.users,
		Chat:     f.chat,
		Presence: f.presence,
		Auth:     auth,
		Policy:   f.policy,
		Deduper:  livesync.NewMemoryDeduper(f.clock, time.Minute),
	})
}

func TestLiveSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	auth := NewAuthUseCase(f.users, firebase.NewLocalAuthClient())
	mia := f.user(t, "mia", "t1", entity.RoleManager)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)
	ben := f.user(t, "ben", "t1", entity.RoleSeller)

	out := &recorder{}
	session, err := newLive(f, auth).Start(f.ctx, ana, out, livesync.InlineLoop{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.count(EventReady))
	assert.Zero(t, out.count(EventAudit))
	online := out.last(t, EventOnlineUsers).Data.([]entity.PublicProfile)
	require.Len(t, online, 1)
	assert.Equal(t, ana.ID, online[0].ID)

	conv, _, err := f.chat.CreateDirect(f.ctx, ben, ana.ID)
	require.NoError(t, err)
	assert.Len(t, out.last(t, EventConversations).Data.([]*entity.Conversation), 1)

	require.NoError(t, session.OpenConversation(f.ctx, conv.ID))
	_, err = f.chat.SendMessage(f.ctx, ben, SendMessageInput{ConversationID: conv.ID, Content: "hi ana"}, nil)
	require.NoError(t, err)
	messages := out.last(t, EventMessages).Data.([]MessageView)
	require.Len(t, messages, 1)
	assert.Equal(t, "hi ana", messages[0].Content)

	benTyping := f.presence.NewTypingTracker()
	require.NoError(t, benTyping.Keystroke(f.ctx, conv.ID, ben.ID))
	typing := out.last(t, EventTyping).Data.([]entity.TypingSignal)
	require.Len(t, typing, 1)
	assert.Equal(t, ben.ID, typing[0].UserID)

	f.clock.Advance(livesync.DefaultTypingIdle)
	assert.Empty(t, out.last(t, EventTyping).Data.([]entity.TypingSignal))

	mark := out.len()
	_, err = session.SendMessage(f.ctx, SendMessageInput{ConversationID: conv.ID, Content: "hello ben"})
	require.NoError(t, err)
	sawPending := false
	for _, e := range out.since(mark) {
		if e.Type != EventMessages {
			continue
		}
		for _, m := range e.Data.([]MessageView) {
			if m.Pending && m.Content == "hello ben" {
				sawPending = true
			}
		}
	}
	assert.True(t, sawPending, "the local copy is shown before the backend confirms")
	messages = out.last(t, EventMessages).Data.([]MessageView)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello ben", messages[1].Content)
	assert.False(t, messages[1].Pending)

	_, err = f.notifications.Send(f.ctx, mia, ana.ID, NotificationInput{Type: entity.NotificationReminder, Title: "Stock count", Message: "Today 6pm"})
	require.NoError(t, err)
	assert.Equal(t, "Stock count", out.last(t, EventToast).Data.(livesync.Alert).Title)
	assert.Equal(t, 1, out.last(t, EventNotifications).Data.(NotificationFeed).Unread)

	assert.True(t, errors.Is(session.Keystroke(f.ctx, "elsewhere"), errors.CodeBadRequest))
	require.NoError(t, session.Keystroke(f.ctx, conv.ID))
	require.Len(t, f.db.All(repository.Typing), 1)
	f.clock.Advance(time.Second)

	require.NoError(t, auth.Logout(f.ctx, ana.ID))
	assert.Equal(t, EventSignedOut, out.since(out.len() - 1)[0].Type)
	select {
	case <-session.Done():
	default:
		t.Fatal("session is still mounted after sign out")
	}
	assert.Zero(t, f.db.Listeners())
	assert.Empty(t, session.Keys())
	assert.Empty(t, f.db.All(repository.Typing))
	assert.Zero(t, f.clock.Pending())
	stored, err := f.users.GetByID(f.ctx, ana.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOnline)

	quiet := out.len()
	_, err = f.chat.SendMessage(f.ctx, ben, SendMessageInput{ConversationID: conv.ID, Content: "still there?"}, nil)
	require.NoError(t, err)
	_, err = f.notifications.Send(f.ctx, mia, ana.ID, NotificationInput{Type: entity.NotificationReminder, Title: "Again"})
	require.NoError(t, err)
	assert.Equal(t, quiet, out.len())
}

func TestChatMessageAlertsOtherParticipantsOnce(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)
	ben := f.user(t, "ben", "t1", entity.RoleSeller)
	conv, _, err := f.chat.CreateDirect(f.ctx, ana, ben.ID)
	require.NoError(t, err)
	_, err = f.chat.SendMessage(f.ctx, ben, SendMessageInput{ConversationID: conv.ID, Content: "before anyone looked"}, nil)
	require.NoError(t, err)
	f.clock.Advance(time.Second)

	live := newLive(f, nil)
	anaOut, anaTab, benOut := &recorder{}, &recorder{}, &recorder{}
	for _, out := range []*recorder{anaOut, anaTab} {
		session, err := live.Start(f.ctx, ana, out, livesync.InlineLoop{})
		require.NoError(t, err)
		defer session.Close()
	}
	benSession, err := live.Start(f.ctx, ben, benOut, livesync.InlineLoop{})
	require.NoError(t, err)
	defer benSession.Close()
	assert.Zero(t, anaOut.count(EventToast)+anaTab.count(EventToast), "history is not replayed")

	_, err = benSession.SendMessage(f.ctx, SendMessageInput{ConversationID: conv.ID, Content: "are you in?"})
	require.NoError(t, err)

	assert.Equal(t, 1, anaOut.count(EventToast)+anaTab.count(EventToast))
	assert.Zero(t, benOut.count(EventToast))
	toasts := anaOut
	if anaTab.count(EventToast) == 1 {
		toasts = anaTab
	}
	alert := toasts.last(t, EventToast).Data.(livesync.Alert)
	assert.Equal(t, AlertChatMessage, alert.Kind)
	assert.Equal(t, "ben", alert.Title)
	assert.Equal(t, "are you in?", alert.Body)
	assert.Equal(t, fmt.Sprintf("%s@%d", conv.ID, f.clock.Now().UnixMilli()), alert.Tag)

	require.NoError(t, f.chat.Archive(f.ctx, ana.ID, conv.ID, true))
	assert.Equal(t, 1, anaOut.count(EventToast)+anaTab.count(EventToast))

	f.clock.Advance(time.Second)
	_, err = f.chat.SendMessage(f.ctx, ana, SendMessageInput{ConversationID: conv.ID, Content: "yes"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, benOut.count(EventToast))
	assert.Equal(t, 1, anaOut.count(EventToast)+anaTab.count(EventToast))
}

func TestLiveSessionDeniedConversationIsClosed(t *testing.T) {
	f := newFixture(t)
	mia := f.user(t, "mia", "t1", entity.RoleManager)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)

	out := &recorder{}
	session, err := newLive(f, nil).Start(f.ctx, mia, out, livesync.InlineLoop{})
	require.NoError(t, err)
	defer session.Close()
	assert.Equal(t, 1, out.count(EventAudit))
	mounted := f.db.Listeners()

	conv, _, err := f.chat.CreateDirect(f.ctx, mia, ana.ID)
	require.NoError(t, err)
	require.NoError(t, session.OpenConversation(f.ctx, conv.ID))
	assert.Equal(t, mounted+2, f.db.Listeners())

	f.db.Fail(repository.Messages, livesync.ErrPermissionDenied)
	denied := out.last(t, EventAccessDenied)
	assert.Equal(t, conv.ID, denied.ConversationID)
	assert.Equal(t, mounted, f.db.Listeners())
	assert.True(t, errors.Is(session.Keystroke(f.ctx, conv.ID), errors.CodeBadRequest))

	assert.True(t, errors.Is(session.OpenConversation(f.ctx, "missing"), errors.CodeNotFound))
}
