package usecase

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shopdesk/internal/domain/access"
	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/internal/infrastructure/ratelimit"
	"shopdesk/internal/livesync"
	"shopdesk/pkg/errors"
	"shopdesk/pkg/logger"
)

// Events pushed to a connected dashboard.
const (
	EventReady         = "ready"
	EventConversations = "conversations"
	EventMessages      = "messages"
	EventTyping        = "typing"
	EventNotifications = "notifications"
	EventToast         = "toast"
	EventOnlineUsers   = "online_users"
	EventAudit         = "audit"
	EventAccessDenied  = "access_denied"
	EventError         = "error"
	EventSignedOut     = "signed_out"
)

// AlertChatMessage is the kind of alert raised for a chat message from someone else.
const AlertChatMessage = "chat_message"

type Event struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Data           interface{} `json:"data,omitempty"`
}

// Outbox receives the events of one session. Emit must not block for long; it runs on the session loop.
type Outbox interface {
	Emit(event Event)
}

// MessageView is a message as the dashboard renders it. Pending messages are local copies still waiting
// for the backend.
type MessageView struct {
	*entity.Message
	Pending bool `json:"pending"`
}

type NotificationFeed struct {
	Items  []*entity.Notification `json:"items"`
	Unread int                    `json:"unread"`
}

type LiveConfig struct {
	Backend  livesync.Backend
	Users    repository.UserRepository
	Chat     *ChatUseCase
	Presence *PresenceUseCase
	Auth     *AuthUseCase
	Policy   *access.Policy
	// PushSinks reach the user outside the dashboard. They fire only once the user registered a device.
	PushSinks        []livesync.Sink
	Deduper          livesync.Deduper
	NotificationPage int
	TypingTick       time.Duration
}

// LiveUseCase mounts live sessions: one per connected dashboard tab.
type LiveUseCase struct {
	cfg LiveConfig
}

func NewLiveUseCase(cfg LiveConfig) *LiveUseCase {
	if cfg.TypingTick <= 0 {
		cfg.TypingTick = time.Second
	}
	return &LiveUseCase{cfg: cfg}
}

type liveView struct {
	name           string
	conversationID string
	sub            *livesync.Subscription
	render         func()
}

type viewSpec struct {
	name           string
	conversationID string
	query          livesync.Query
	order          livesync.LessFunc
	observe        func(previous, current []livesync.Document)
	render         func(key string)
	denied         func()
}

// LiveSession owns every subscription of one connected user. All snapshot callbacks run on its loop.
type LiveSession struct {
	id         string
	live       *LiveUseCase
	user       *entity.User
	out        Outbox
	loop       livesync.Loop
	clock      livesync.Clock
	store      *livesync.Store
	typing     *livesync.TypingTracker
	alerts     *livesync.Dispatcher
	chatAlerts *livesync.Dispatcher

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	views      map[string]*liveView
	open       map[string]bool
	lastTyping map[string]string
	tick       livesync.Timer
	stopAuth   func()
	closed     bool
}

var errSessionClosed = errors.Unavailable("Live session is closed", nil)

// Start marks the user online and subscribes to their conversations, notifications, the tenant's online
// users and, for roles with audit.view, the audit feed.
func (uc *LiveUseCase) Start(ctx context.Context, user *entity.User, out Outbox, loop livesync.Loop) (*LiveSession, error) {
	if err := authorize(uc.cfg.Policy, user, access.ChatUse); err != nil {
		return nil, err
	}
	if loop == nil {
		loop = livesync.InlineLoop{}
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	s := &LiveSession{
		id:         uuid.New().String(),
		live:       uc,
		user:       user,
		out:        out,
		loop:       loop,
		clock:      uc.cfg.Presence.Clock(),
		store:      livesync.NewStore(),
		typing:     uc.cfg.Presence.NewTypingTracker(),
		ctx:        sessionCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
		views:      make(map[string]*liveView),
		open:       make(map[string]bool),
		lastTyping: make(map[string]string),
	}
	sink := s.sink()
	s.alerts = livesync.NewDispatcher(livesync.DispatcherConfig{
		Self:        user.ID,
		AuthorField: "createdBy",
		Sink:        sink,
		Deduper:     uc.cfg.Deduper,
	})
	s.chatAlerts = livesync.NewDispatcher(livesync.DispatcherConfig{
		Self:        user.ID,
		AuthorField: "lastMessageSenderId",
		Revision:    lastMessageRevision,
		Render:      s.chatAlert,
		Sink:        sink,
		Deduper:     uc.cfg.Deduper,
	})
	s.store.OnProvisional(func(key string) {
		s.loop.Post(func() { s.rerender(key) })
	})

	uc.cfg.Presence.SetOnline(sessionCtx, user.ID)
	out.Emit(Event{Type: EventReady, Data: map[string]interface{}{
		"user":         user,
		"capabilities": uc.cfg.Policy.Capabilities(user.Role).List(),
	}})

	specs := []viewSpec{
		{
			name:  EventConversations,
			query: repository.ConversationsOf(user.ID),
			order: livesync.ByTime("lastMessageAt", livesync.Desc),
			observe: func(previous, current []livesync.Document) {
				s.chatAlerts.Observe(s.ctx, previous, current)
			},
			render: s.renderConversations,
		},
		{
			name:  EventNotifications,
			query: repository.NotificationsOf(user.ID, uc.cfg.NotificationPage),
			order: livesync.ByTime("createdAt", livesync.Desc),
			observe: func(previous, current []livesync.Document) {
				s.alerts.Observe(s.ctx, previous, current)
			},
			render: s.renderNotifications,
		},
		{
			name:   EventOnlineUsers,
			query:  repository.OnlineUsers(user.TenantID),
			order:  livesync.ByField("displayName", livesync.Asc),
			render: s.renderOnlineUsers,
		},
	}
	if uc.cfg.Policy.Can(user.Role, access.AuditView) {
		specs = append(specs, viewSpec{
			name:   EventAudit,
			query:  repository.AuditFeed(user.TenantID, 0),
			order:  livesync.ByTime("createdAt", livesync.Desc),
			render: s.renderAudit,
		})
	}
	for _, vs := range specs {
		if err := s.watch(vs); err != nil {
			s.Close()
			return nil, writeError("Failed to open live view "+vs.name, err)
		}
	}

	if uc.cfg.Auth != nil {
		stop := uc.cfg.Auth.OnAuthStateChange(user.ID, func(u *entity.User) {
			if u != nil {
				return
			}
			s.loop.Post(func() {
				s.out.Emit(Event{Type: EventSignedOut})
				s.Close()
			})
		})
		s.mu.Lock()
		s.stopAuth = stop
		s.mu.Unlock()
	}
	s.scheduleTick()

	logger.Session(s.id, user.ID, "Live: mounted with %d views", len(specs))
	return s, nil
}

func (s *LiveSession) User() *entity.User {
	return s.user
}

// Done is closed once the session is torn down.
func (s *LiveSession) Done() <-chan struct{} {
	return s.done
}

// Keys lists the projection keys currently cached by the session.
func (s *LiveSession) Keys() []string {
	return s.store.Keys()
}

func (s *LiveSession) watch(vs viewSpec) error {
	key := vs.query.Key()
	if vs.order != nil {
		s.store.SetOrder(key, vs.order)
	}
	v := &liveView{name: vs.name, conversationID: vs.conversationID, render: func() { vs.render(key) }}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errSessionClosed
	}
	s.views[key] = v
	s.mu.Unlock()

	sub, err := livesync.Watch(s.ctx, s.live.cfg.Backend, s.loop, vs.query,
		func(docs []livesync.Document) {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			previous := s.store.Apply(key, docs)
			s.mu.Unlock()
			if vs.observe != nil {
				vs.observe(previous, docs)
			}
			vs.render(key)
		},
		func(err error) { s.viewFailed(key, vs, err) },
	)
	if err != nil {
		s.mu.Lock()
		delete(s.views, key)
		s.mu.Unlock()
		s.store.Drop(key)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		sub.Unsubscribe()
		return errSessionClosed
	}
	v.sub = sub
	return nil
}

func (s *LiveSession) viewFailed(key string, vs viewSpec, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	v := s.views[key]
	delete(s.views, key)
	s.mu.Unlock()
	if v != nil && v.sub != nil {
		v.sub.Unsubscribe()
	}
	s.store.Drop(key)

	if livesync.IsPermissionDenied(err) {
		s.out.Emit(Event{
			Type:           EventAccessDenied,
			ConversationID: vs.conversationID,
			Data:           map[string]string{"view": vs.name},
		})
		if vs.denied != nil {
			vs.denied()
		}
		return
	}
	s.out.Emit(Event{
		Type:           EventError,
		ConversationID: vs.conversationID,
		Data:           map[string]string{"view": vs.name, "message": "Live view is unavailable"},
	})
}

func (s *LiveSession) rerender(key string) {
	s.mu.Lock()
	v, ok := s.views[key]
	closed := s.closed
	s.mu.Unlock()
	if ok && !closed {
		v.render()
	}
}

func (s *LiveSession) renderConversations(key string) {
	docs := s.store.View(key)
	out := make([]*entity.Conversation, 0, len(docs))
	for _, doc := range docs {
		c := entity.ConversationFromDocument(doc)
		if c.Deleted {
			continue
		}
		out = append(out, c)
	}
	s.out.Emit(Event{Type: EventConversations, Data: out})
}

func (s *LiveSession) renderNotifications(key string) {
	feed := NotificationFeed{Items: []*entity.Notification{}}
	for _, doc := range s.store.View(key) {
		n := entity.NotificationFromDocument(doc)
		if !n.Read {
			feed.Unread++
		}
		feed.Items = append(feed.Items, n)
	}
	s.out.Emit(Event{Type: EventNotifications, Data: feed})
}

func (s *LiveSession) renderOnlineUsers(key string) {
	docs := s.store.View(key)
	out := make([]entity.PublicProfile, 0, len(docs))
	for _, doc := range docs {
		out = append(out, entity.UserFromDocument(doc).Public())
	}
	s.out.Emit(Event{Type: EventOnlineUsers, Data: out})
}

func (s *LiveSession) renderAudit(key string) {
	docs := s.store.View(key)
	out := make([]*entity.AuditEntry, 0, len(docs))
	for _, doc := range docs {
		out = append(out, entity.AuditEntryFromDocument(doc))
	}
	s.out.Emit(Event{Type: EventAudit, Data: out})
}

func (s *LiveSession) renderMessages(conversationID string) func(key string) {
	return func(key string) {
		docs := s.store.View(key)
		out := make([]MessageView, 0, len(docs))
		for _, doc := range docs {
			out = append(out, MessageView{Message: entity.MessageFromDocument(doc), Pending: doc.Provisional})
		}
		s.out.Emit(Event{Type: EventMessages, ConversationID: conversationID, Data: out})
	}
}

// emitTyping sends who is typing in the conversation when it changed since the last emit.
func (s *LiveSession) emitTyping(conversationID string) {
	key := repository.TypingIn(conversationID).Key()
	active := s.live.cfg.Presence.ActiveTyping(s.store.View(key), s.user.ID)
	ids := make([]string, 0, len(active))
	for _, signal := range active {
		ids = append(ids, signal.UserID)
	}
	sort.Strings(ids)
	signature := strings.Join(ids, ",")

	s.mu.Lock()
	last, seen := s.lastTyping[conversationID]
	if !s.open[conversationID] || (seen && last == signature) {
		s.mu.Unlock()
		return
	}
	s.lastTyping[conversationID] = signature
	s.mu.Unlock()

	if active == nil {
		active = []entity.TypingSignal{}
	}
	s.out.Emit(Event{Type: EventTyping, ConversationID: conversationID, Data: active})
}

// scheduleTick re-evaluates typing indicators every tick, since signals age out without any write.
func (s *LiveSession) scheduleTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.tick = s.clock.AfterFunc(s.live.cfg.TypingTick, func() {
		s.loop.Post(s.onTick)
	})
}

func (s *LiveSession) onTick() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	open := make([]string, 0, len(s.open))
	for id := range s.open {
		open = append(open, id)
	}
	s.mu.Unlock()

	for _, id := range open {
		s.emitTyping(id)
	}
	s.scheduleTick()
}

// lastMessageRevision changes whenever a message lands in the conversation.
func lastMessageRevision(doc livesync.Document) string {
	at := doc.Time("lastMessageAt")
	if at.IsZero() || doc.Bool("deleted") {
		return ""
	}
	return strconv.FormatInt(at.UnixMilli(), 10)
}

func (s *LiveSession) chatAlert(doc livesync.Document) livesync.Alert {
	conv := entity.ConversationFromDocument(doc)
	title := conv.Name
	if !conv.IsGroup {
		title = s.displayName(conv.Other(s.user.ID))
	}
	return livesync.Alert{
		ID:     conv.ID,
		UserID: s.user.ID,
		Kind:   AlertChatMessage,
		Title:  title,
		Body:   conv.LastMessage,
		Data: map[string]interface{}{
			"conversationId": conv.ID,
			"senderId":       conv.LastMessageSenderID,
		},
	}
}

func (s *LiveSession) displayName(userID string) string {
	if s.live.cfg.Users == nil || userID == "" {
		return userID
	}
	u, err := s.live.cfg.Users.GetByID(s.ctx, userID)
	if err != nil || u.DisplayName == "" {
		return userID
	}
	return u.DisplayName
}

func (s *LiveSession) sink() livesync.Sink {
	toast := livesync.SinkFunc(func(_ context.Context, alert livesync.Alert) error {
		s.out.Emit(Event{Type: EventToast, Data: alert})
		return nil
	})
	if len(s.live.cfg.PushSinks) == 0 {
		return toast
	}
	push := livesync.NewGatedSink(livesync.FanoutSink(s.live.cfg.PushSinks), s.pushPermitted)
	return livesync.FanoutSink{toast, push}
}

// pushPermitted treats a registered device as the user's consent to push alerts.
func (s *LiveSession) pushPermitted(ctx context.Context) (bool, error) {
	if s.live.cfg.Users == nil {
		return false, nil
	}
	u, err := s.live.cfg.Users.GetByID(ctx, s.user.ID)
	if err != nil {
		return false, err
	}
	return len(u.FCMTokens) > 0 || len(u.PushSubscriptions) > 0, nil
}

func (s *LiveSession) isOpen(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open[conversationID]
}

// OpenConversation subscribes to the conversation's messages and typing signals.
func (s *LiveSession) OpenConversation(ctx context.Context, conversationID string) error {
	if _, err := s.live.cfg.Chat.Conversation(ctx, s.user.ID, conversationID); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errSessionClosed
	}
	if s.open[conversationID] {
		s.mu.Unlock()
		return nil
	}
	s.open[conversationID] = true
	s.mu.Unlock()

	closeOnDenial := func() { s.CloseConversation(detached(s.ctx), conversationID) }
	specs := []viewSpec{
		{
			name:           EventMessages,
			conversationID: conversationID,
			query:          repository.MessagesOf(conversationID),
			order:          livesync.ByTime("createdAt", livesync.Asc),
			render:         s.renderMessages(conversationID),
			denied:         closeOnDenial,
		},
		{
			name:           EventTyping,
			conversationID: conversationID,
			query:          repository.TypingIn(conversationID),
			render:         func(string) { s.emitTyping(conversationID) },
			denied:         closeOnDenial,
		},
	}
	for _, vs := range specs {
		if err := s.watch(vs); err != nil {
			s.CloseConversation(ctx, conversationID)
			return writeError("Failed to open conversation", err)
		}
	}
	return nil
}

// CloseConversation drops the conversation's views and clears the user's typing signal in it.
func (s *LiveSession) CloseConversation(ctx context.Context, conversationID string) {
	keys := []string{repository.MessagesOf(conversationID).Key(), repository.TypingIn(conversationID).Key()}

	s.mu.Lock()
	if !s.open[conversationID] {
		s.mu.Unlock()
		return
	}
	delete(s.open, conversationID)
	delete(s.lastTyping, conversationID)
	var subs []*livesync.Subscription
	for _, key := range keys {
		if v, ok := s.views[key]; ok {
			if v.sub != nil {
				subs = append(subs, v.sub)
			}
			delete(s.views, key)
		}
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	for _, key := range keys {
		s.store.Drop(key)
	}
	s.typing.Sent(ctx, conversationID, s.user.ID)
}

// SendMessage ends the typing state and sends. While the conversation is open the message shows as
// pending until the backend confirms it.
func (s *LiveSession) SendMessage(ctx context.Context, input SendMessageInput) (*entity.Message, error) {
	s.typing.Sent(ctx, input.ConversationID, s.user.ID)
	var local *livesync.Store
	if s.isOpen(input.ConversationID) {
		local = s.store
	}
	return s.live.cfg.Chat.SendMessage(ctx, s.user, input, local)
}

func (s *LiveSession) Keystroke(ctx context.Context, conversationID string) error {
	if !s.isOpen(conversationID) {
		return errors.BadRequest("Open the conversation before typing in it", nil)
	}
	if err := s.live.cfg.Chat.allow(s.user.ID, ratelimit.ActionTyping); err != nil {
		return err
	}
	if err := s.typing.Keystroke(ctx, conversationID, s.user.ID); err != nil {
		return writeError("Failed to publish typing state", err)
	}
	return nil
}

func (s *LiveSession) MarkRead(ctx context.Context, conversationID string) (int, error) {
	return s.live.cfg.Chat.MarkRead(ctx, s.user.ID, conversationID)
}

func (s *LiveSession) React(ctx context.Context, messageID, emoji string) (map[string][]string, error) {
	return s.live.cfg.Chat.React(ctx, s.user.ID, messageID, emoji)
}

// Close tears the session down: every subscription is released, cached views are dropped, the user's
// typing signals are cleared and the user is marked offline. Safe to call more than once and from a
// snapshot callback.
func (s *LiveSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	views := s.views
	s.views = make(map[string]*liveView)
	s.open = make(map[string]bool)
	tick := s.tick
	stopAuth := s.stopAuth
	s.mu.Unlock()

	if tick != nil {
		tick.Stop()
	}
	if stopAuth != nil {
		stopAuth()
	}
	for key, v := range views {
		if v.sub != nil {
			v.sub.Unsubscribe()
		}
		s.store.Drop(key)
	}

	ctx := detached(s.ctx)
	s.typing.StopAll(ctx)
	s.live.cfg.Presence.SetOffline(ctx, s.user.ID)
	s.cancel()
	close(s.done)
	logger.Session(s.id, s.user.ID, "Live: closed")
}
