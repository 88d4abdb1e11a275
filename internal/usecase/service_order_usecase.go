package usecase

import (
	"context"
	"fmt"
	"strings"

	"shopdesk/internal/domain/access"
	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/internal/livesync"
	"shopdesk/pkg/errors"
	"shopdesk/pkg/logger"
)

type ServiceOrderUseCase struct {
	orderRepo     repository.ServiceOrderRepository
	userRepo      repository.UserRepository
	clock         livesync.Clock
	policy        *access.Policy
	notifications *NotificationUseCase
	audit         *AuditUseCase
}

func NewServiceOrderUseCase(orderRepo repository.ServiceOrderRepository, userRepo repository.UserRepository, clock livesync.Clock, policy *access.Policy, notifications *NotificationUseCase, audit *AuditUseCase) *ServiceOrderUseCase {
	if clock == nil {
		clock = livesync.SystemClock()
	}
	return &ServiceOrderUseCase{
		orderRepo:     orderRepo,
		userRepo:      userRepo,
		clock:         clock,
		policy:        policy,
		notifications: notifications,
		audit:         audit,
	}
}

type CreateServiceOrderInput struct {
	ClientName    string
	ClientPhone   string
	Device        string
	Problem       string
	Notes         string
	EstimatedCost float64
	AssignedTo    string
}

func (uc *ServiceOrderUseCase) Create(ctx context.Context, actor *entity.User, input CreateServiceOrderInput) (*entity.ServiceOrder, error) {
	if err := authorize(uc.policy, actor, access.ServiceCreate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.ClientName) == "" || strings.TrimSpace(input.Device) == "" {
		return nil, errors.BadRequest("Client name and device are required", nil)
	}
	if input.EstimatedCost < 0 {
		return nil, errors.BadRequest("Estimated cost cannot be negative", nil)
	}
	if input.AssignedTo != "" {
		if err := uc.checkAssignee(ctx, actor, input.AssignedTo); err != nil {
			return nil, err
		}
	}

	order := &entity.ServiceOrder{
		TenantID:      actor.TenantID,
		Number:        uc.clock.Now().UTC().Format("SO-20060102-150405"),
		ClientName:    input.ClientName,
		ClientPhone:   input.ClientPhone,
		Device:        input.Device,
		Problem:       input.Problem,
		Notes:         input.Notes,
		EstimatedCost: input.EstimatedCost,
		Status:        entity.ServiceReceived,
		AssignedTo:    input.AssignedTo,
		CreatedBy:     actor.ID,
	}
	id, err := uc.orderRepo.Create(ctx, order)
	if err != nil {
		return nil, err
	}
	order.ID = id

	uc.audit.Record(ctx, actor, AuditServiceCreated, "serviceOrder", id, map[string]interface{}{"number": order.Number})
	if order.AssignedTo != "" && order.AssignedTo != actor.ID {
		uc.notify(ctx, actor, order.AssignedTo, "Service order assigned",
			fmt.Sprintf("%s: %s (%s)", order.Number, order.Device, order.ClientName), order)
	}
	return order, nil
}

func (uc *ServiceOrderUseCase) checkAssignee(ctx context.Context, actor *entity.User, userID string) error {
	assignee, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := sameTenant(actor, assignee.TenantID, "User"); err != nil {
		return err
	}
	if !uc.policy.Can(assignee.Role, access.ServiceUpdate) {
		return errors.BadRequest(assignee.DisplayName+" cannot work on service orders", nil)
	}
	return nil
}

// Advance moves the order one step forward or cancels it, and tells the other party.
func (uc *ServiceOrderUseCase) Advance(ctx context.Context, actor *entity.User, id string, to entity.ServiceStatus) (*entity.ServiceOrder, error) {
	if err := authorize(uc.policy, actor, access.ServiceUpdate); err != nil {
		return nil, err
	}
	order, err := uc.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransition(to) {
		return nil, errors.Conflict(fmt.Sprintf("Cannot move service order from %s to %s", order.Status, to))
	}
	from := order.Status
	order.Status = to
	update := map[string]interface{}{"status": string(to)}
	if order.AssignedTo == "" && to == entity.ServiceInProgress {
		order.AssignedTo = actor.ID
		update["assignedTo"] = actor.ID
	}
	if err := uc.orderRepo.Update(ctx, id, update); err != nil {
		return nil, err
	}

	uc.audit.Record(ctx, actor, AuditServiceStatus, "serviceOrder", id, map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	})
	message := fmt.Sprintf("%s (%s) is now %s", order.Number, order.Device, strings.ReplaceAll(string(to), "_", " "))
	for _, userID := range []string{order.CreatedBy, order.AssignedTo} {
		if userID != "" && userID != actor.ID {
			uc.notify(ctx, actor, userID, "Service order updated", message, order)
		}
	}
	return order, nil
}

func (uc *ServiceOrderUseCase) Get(ctx context.Context, actor *entity.User, id string) (*entity.ServiceOrder, error) {
	order, err := uc.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sameTenant(actor, order.TenantID, "Service order"); err != nil {
		return nil, err
	}
	if !uc.canSee(actor, order) {
		return nil, errors.NotFound("Service order", nil)
	}
	return order, nil
}

func (uc *ServiceOrderUseCase) List(ctx context.Context, actor *entity.User, status entity.ServiceStatus) ([]*entity.ServiceOrder, error) {
	orders, err := uc.orderRepo.List(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.ServiceOrder, 0, len(orders))
	for _, o := range orders {
		if status != "" && o.Status != status {
			continue
		}
		if uc.canSee(actor, o) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (uc *ServiceOrderUseCase) canSee(actor *entity.User, order *entity.ServiceOrder) bool {
	return uc.policy.Can(actor.Role, access.ServiceViewAll) || order.CreatedBy == actor.ID || order.AssignedTo == actor.ID
}

func (uc *ServiceOrderUseCase) notify(ctx context.Context, actor *entity.User, userID, title, message string, order *entity.ServiceOrder) {
	if uc.notifications == nil {
		return
	}
	if _, err := uc.notifications.Notify(ctx, order.TenantID, actor.ID, userID, NotificationInput{
		Type:    entity.NotificationService,
		Title:   title,
		Message: message,
		Data:    map[string]interface{}{"serviceOrderId": order.ID},
	}); err != nil {
		logger.Error("Service orders: failed to notify %s about %s: %v", userID, order.ID, err)
	}
}
