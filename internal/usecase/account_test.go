package usecase

import (
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

func TestRegisterLoginLogout(t *testing.T) {
	f := newFixture(t)
	auth := NewAuthUseCase(f.users, firebase.NewLocalAuthClient())

	reg, err := auth.Register(f.ctx, RegisterInput{Email: "Ada@Shop.test", Password: "secret123", DisplayName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, reg.User.Role)
	assert.NotEmpty(t, reg.User.TenantID)
	assert.NotEmpty(t, reg.Token)

	_, err = auth.Login(f.ctx, "ada@shop.test", "wrong")
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))

	login, err := auth.Login(f.ctx, " ada@shop.test ", "secret123")
	require.NoError(t, err)
	me, err := auth.Authenticate(f.ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, me.ID)

	var signals []*entity.User
	calls := 0
	cancel := auth.OnAuthStateChange(me.ID, func(u *entity.User) {
		calls++
		signals = append(signals, u)
	})
	require.NoError(t, auth.Logout(f.ctx, me.ID))
	assert.Equal(t, []*entity.User{nil}, signals)

	_, err = auth.Authenticate(f.ctx, login.Token)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))

	cancel()
	cancel()
	require.NoError(t, auth.Logout(f.ctx, me.ID))
	assert.Equal(t, 1, calls)
}

func TestRegisterRemovesAuthAccountWhenProfileFails(t *testing.T) {
	f := newFixture(t)
	auth := NewAuthUseCase(f.users, firebase.NewLocalAuthClient())

	f.db.FailWrite = func(op, collection, id string) error {
		if collection == repository.Users {
			return livesync.ErrPermissionDenied
		}
		return nil
	}
	_, err := auth.Register(f.ctx, RegisterInput{Email: "ada@shop.test", Password: "secret123", DisplayName: "Ada"})
	assert.True(t, errors.Is(err, errors.CodeInternal))

	f.db.FailWrite = nil
	_, err = auth.Register(f.ctx, RegisterInput{Email: "ada@shop.test", Password: "secret123", DisplayName: "Ada"})
	assert.NoError(t, err)
}

func TestStaffManagement(t *testing.T) {
	f := newFixture(t)
	users := NewUserUseCase(f.users, firebase.NewLocalAuthClient(), f.policy, f.audit)
	ada := f.user(t, "ada", "t1", entity.RoleAdmin)
	mia := f.user(t, "mia", "t1", entity.RoleManager)
	f.user(t, "zoe", "t2", entity.RoleSeller)

	_, err := users.CreateUser(f.ctx, mia, CreateUserInput{Email: "x@shop.test", Password: "secret123", Role: entity.RoleSeller})
	assert.True(t, errors.Is(err, errors.CodeForbidden))
	_, err = users.CreateUser(f.ctx, ada, CreateUserInput{Email: "x@shop.test", Password: "secret123", Role: "owner"})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	ana, err := users.CreateUser(f.ctx, ada, CreateUserInput{
		Email:             "ana@shop.test",
		Password:          "secret123",
		DisplayName:       "Ana",
		Role:              entity.RoleSeller,
		CommissionPercent: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, ada.TenantID, ana.TenantID)

	_, err = users.SetRole(f.ctx, ada, ada.ID, entity.RoleSeller)
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
	_, err = users.SetRole(f.ctx, ada, "zoe", entity.RoleManager)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
	promoted, err := users.SetRole(f.ctx, ada, ana.ID, entity.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleManager, promoted.Role)

	_, err = users.SetCommission(f.ctx, ada, ana.ID, 150)
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
	_, err = users.SetCommission(f.ctx, mia, ana.ID, 10)
	assert.True(t, errors.Is(err, errors.CodeForbidden))
	updated, err := users.SetCommission(f.ctx, ada, ana.ID, 12.5)
	require.NoError(t, err)
	assert.Equal(t, 12.5, updated.CommissionPercent)

	colleagues, err := users.ListTenantUsers(f.ctx, ada)
	require.NoError(t, err)
	assert.Len(t, colleagues, 3)

	assert.Subset(t, f.auditActions(), []string{AuditUserCreated, AuditRoleChanged, AuditCommissionChanged})
}

func TestPushRegistrationsAreDeduplicated(t *testing.T) {
	f := newFixture(t)
	users := NewUserUseCase(f.users, firebase.NewLocalAuthClient(), f.policy, f.audit)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)

	require.NoError(t, users.RegisterDevice(f.ctx, ana.ID, "fcm-1"))
	require.NoError(t, users.RegisterDevice(f.ctx, ana.ID, "fcm-1"))
	assert.True(t, errors.Is(users.RegisterDevice(f.ctx, ana.ID, " "), errors.CodeBadRequest))

	sub := entity.PushSubscription{Endpoint: "https://push.test/1", P256dh: "key", Auth: "auth"}
	require.NoError(t, users.RegisterPushSubscription(f.ctx, ana.ID, sub))
	sub.Auth = "rotated"
	require.NoError(t, users.RegisterPushSubscription(f.ctx, ana.ID, sub))

	stored, err := users.GetUserProfile(f.ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"fcm-1"}, stored.FCMTokens)
	assert.Equal(t, []entity.PushSubscription{sub}, stored.PushSubscriptions)
}

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	mia := f.user(t, "mia", "t1", entity.RoleManager)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)
	ben := f.user(t, "ben", "t1", entity.RoleSeller)

	input := NotificationInput{Type: entity.NotificationReminder, Title: "Inventory", Message: "Count the shelf"}
	_, err := f.notifications.Send(f.ctx, ben, ana.ID, input)
	assert.True(t, errors.Is(err, errors.CodeForbidden))
	_, err = f.notifications.Send(f.ctx, mia, ana.ID, NotificationInput{Type: "gossip"})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	first, err := f.notifications.Send(f.ctx, mia, ana.ID, input)
	require.NoError(t, err)
	_, err = f.notifications.Send(f.ctx, mia, ana.ID, input)
	require.NoError(t, err)

	unread, err := f.notifications.UnreadCount(f.ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	assert.True(t, errors.Is(f.notifications.MarkRead(f.ctx, ben.ID, first), errors.CodeNotFound))
	require.NoError(t, f.notifications.MarkRead(f.ctx, ana.ID, first))
	require.NoError(t, f.notifications.MarkRead(f.ctx, ana.ID, first))

	marked, err := f.notifications.MarkAllRead(f.ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	unread, err = f.notifications.UnreadCount(f.ctx, ana.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestPresenceAndTyping(t *testing.T) {
	f := newFixture(t)
	ana := f.user(t, "ana", "t1", entity.RoleSeller)
	ben := f.user(t, "ben", "t1", entity.RoleSeller)

	require.NoError(t, f.presence.SetOnline(f.ctx, ana.ID))
	online, err := f.presence.OnlineUsers(f.ctx, "t1")
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, ana.ID, online[0].ID)

	require.NoError(t, f.presence.SetOffline(f.ctx, ana.ID))
	online, err = f.presence.OnlineUsers(f.ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, online)

	tracker := f.presence.NewTypingTracker()
	require.NoError(t, tracker.Keystroke(f.ctx, "c1", ben.ID))
	signals := f.db.All(repository.Typing)
	require.Len(t, signals, 1)

	typing := f.presence.ActiveTyping(signals, ana.ID)
	require.Len(t, typing, 1)
	assert.Equal(t, ben.ID, typing[0].UserID)
	assert.Empty(t, f.presence.ActiveTyping(signals, ben.ID))

	f.clock.Advance(livesync.DefaultTypingIdle)
	assert.Empty(t, f.db.All(repository.Typing))
	assert.Len(t, f.presence.ActiveTyping(signals, ana.ID), 1, "a copy inside the ttl still counts")
	f.clock.Advance(time.Second)
	assert.Empty(t, f.presence.ActiveTyping(signals, ana.ID))
}
