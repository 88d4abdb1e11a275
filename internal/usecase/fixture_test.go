package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	docrepo "shopdesk/internal/adapter/repository"
	"shopdesk/internal/domain/access"
	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/internal/infrastructure/memdb"
	"shopdesk/internal/livesync"
	"shopdesk/internal/livesync/livesynctest"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx    context.Context
	clock  *livesynctest.Clock
	db     *memdb.Store
	policy *access.Policy

	users         repository.UserRepository
	audit         *AuditUseCase
	notifications *NotificationUseCase
	presence      *PresenceUseCase
	products      *ProductUseCase
	sales         *SaleUseCase
	orders        *ServiceOrderUseCase
	chat          *ChatUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := livesynctest.NewClock(epoch)
	db := memdb.New(clock)
	policy := access.NewPolicy()
	users := docrepo.NewUserRepository(db)

	f := &fixture{
		ctx:    context.Background(),
		clock:  clock,
		db:     db,
		policy: policy,
		users:  users,
	}
	f.audit = NewAuditUseCase(docrepo.NewAuditRepository(db), policy)
	f.notifications = NewNotificationUseCase(docrepo.NewNotificationRepository(db), users, policy)
	f.presence = NewPresenceUseCase(users, db, clock, PresenceConfig{})
	f.products = NewProductUseCase(docrepo.NewProductRepository(db), policy, f.notifications, f.audit)
	f.sales = NewSaleUseCase(docrepo.NewSaleRepository(db), users, f.products, policy, f.notifications, f.audit)
	f.orders = NewServiceOrderUseCase(docrepo.NewServiceOrderRepository(db), users, clock, policy, f.notifications, f.audit)
	f.chat = NewChatUseCase(ChatDeps{
		Backend:       db,
		Conversations: docrepo.NewConversationRepository(db),
		Messages:      docrepo.NewMessageRepository(db),
		Users:         users,
		Transport:     livesync.NewSimulatedTransport(db, clock, nil, entity.Advances),
		Clock:         clock,
		Policy:        policy,
		Audit:         f.audit,
	})
	return f
}

func (f *fixture) user(t *testing.T, id, tenant string, role entity.Role) *entity.User {
	t.Helper()
	u := &entity.User{
		ID:          id,
		TenantID:    tenant,
		Email:       id + "@shop.test",
		DisplayName: id,
		Role:        role,
		Active:      true,
	}
	require.NoError(t, f.users.Create(f.ctx, u))
	return u
}

func (f *fixture) notificationsOf(userID string) []livesync.Document {
	var out []livesync.Document
	for _, d := range f.db.All(repository.Notifications) {
		if d.String("userId") == userID {
			out = append(out, d)
		}
	}
	return out
}

func (f *fixture) auditActions() []string {
	var out []string
	for _, d := range f.db.All(repository.AuditLogs) {
		out = append(out, d.String("action"))
	}
	return out
}
