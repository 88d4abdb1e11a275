package usecase

import (
	"context"

	"shopdesk/internal/domain/access"
	"shopdesk/internal/domain/entity"
	"shopdesk/internal/livesync"
	"shopdesk/pkg/errors"
)

func authorize(policy *access.Policy, actor *entity.User, action access.Action) error {
	if actor == nil {
		return errors.Unauthorized("Authentication required", nil)
	}
	if !policy.Can(actor.Role, action) {
		return errors.Forbidden("Role "+string(actor.Role)+" may not "+string(action), nil)
	}
	return nil
}

func sameTenant(actor *entity.User, tenantID, resource string) error {
	if actor.TenantID != tenantID {
		return errors.NotFound(resource, nil)
	}
	return nil
}

// writeError maps a livesync write failure to an AppError.
func writeError(message string, err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	if livesync.IsPermissionDenied(err) {
		return errors.Forbidden(message, err)
	}
	if livesync.IsNotFound(err) {
		return errors.NotFound(message, err)
	}
	return errors.Internal(message, err)
}

func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
