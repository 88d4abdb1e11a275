package usecase

import (
	"context"

	"shopdesk/internal/domain/access"
	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/pkg/errors"
	"shopdesk/pkg/logger"
)

type NotificationUseCase struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	policy           *access.Policy
}

func NewNotificationUseCase(notificationRepo repository.NotificationRepository, userRepo repository.UserRepository, policy *access.Policy) *NotificationUseCase {
	return &NotificationUseCase{notificationRepo: notificationRepo, userRepo: userRepo, policy: policy}
}

type NotificationInput struct {
	Type    entity.NotificationType
	Title   string
	Message string
	Data    map[string]interface{}
}

// Notify creates a notification for one user. Live sessions of that user pick it up through their
// notification subscription.
func (uc *NotificationUseCase) Notify(ctx context.Context, tenantID, createdBy, userID string, input NotificationInput) (string, error) {
	if !input.Type.Valid() {
		return "", errors.BadRequest("Unknown notification type "+string(input.Type), nil)
	}
	n := &entity.Notification{
		TenantID:  tenantID,
		UserID:    userID,
		Type:      input.Type,
		Title:     input.Title,
		Message:   input.Message,
		Data:      input.Data,
		CreatedBy: createdBy,
	}
	id, err := uc.notificationRepo.Create(ctx, n)
	if err != nil {
		return "", writeError("Failed to create notification", err)
	}
	return id, nil
}

// NotifyRoles notifies every active user of the tenant holding one of roles, except the creator.
// Individual failures are logged and skipped.
func (uc *NotificationUseCase) NotifyRoles(ctx context.Context, tenantID, createdBy string, roles []entity.Role, input NotificationInput) int {
	sent := 0
	for _, role := range roles {
		users, err := uc.userRepo.ListByRole(ctx, tenantID, role)
		if err != nil {
			logger.Error("Notifications: failed to list %s users of %s: %v", role, tenantID, err)
			continue
		}
		for _, u := range users {
			if u.ID == createdBy || !u.Active {
				continue
			}
			if _, err := uc.Notify(ctx, tenantID, createdBy, u.ID, input); err != nil {
				logger.Error("Notifications: failed to notify %s: %v", u.ID, err)
				continue
			}
			sent++
		}
	}
	return sent
}

// Send is the manual notification of the dashboard, restricted to notification.send.
func (uc *NotificationUseCase) Send(ctx context.Context, actor *entity.User, userID string, input NotificationInput) (string, error) {
	if err := authorize(uc.policy, actor, access.NotificationSend); err != nil {
		return "", err
	}
	target, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := sameTenant(actor, target.TenantID, "User"); err != nil {
		return "", err
	}
	return uc.Notify(ctx, actor.TenantID, actor.ID, userID, input)
}

func (uc *NotificationUseCase) List(ctx context.Context, userID string) ([]*entity.Notification, error) {
	list, err := uc.notificationRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Internal("Failed to load notifications", err)
	}
	return list, nil
}

func (uc *NotificationUseCase) UnreadCount(ctx context.Context, userID string) (int, error) {
	list, err := uc.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	return unread, nil
}

func (uc *NotificationUseCase) MarkRead(ctx context.Context, userID, id string) error {
	n, err := uc.notificationRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return errors.NotFound("Notification", nil)
	}
	if n.Read {
		return nil
	}
	return uc.notificationRepo.MarkRead(ctx, id)
}

// MarkAllRead returns how many notifications were flipped.
func (uc *NotificationUseCase) MarkAllRead(ctx context.Context, userID string) (int, error) {
	list, err := uc.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, n := range list {
		if n.Read {
			continue
		}
		if err := uc.notificationRepo.MarkRead(ctx, n.ID); err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}
