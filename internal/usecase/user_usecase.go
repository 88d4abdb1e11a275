package usecase

import (
	"context"
	"strings"

	"shopdesk/internal/domain/access"
	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/internal/livesync"
	"shopdesk/pkg/errors"
	"shopdesk/pkg/logger"
)

type UserUseCase struct {
	userRepo repository.UserRepository
	auth     AuthProvider
	policy   *access.Policy
	audit    *AuditUseCase
}

func NewUserUseCase(userRepo repository.UserRepository, auth AuthProvider, policy *access.Policy, audit *AuditUseCase) *UserUseCase {
	return &UserUseCase{userRepo: userRepo, auth: auth, policy: policy, audit: audit}
}

func (uc *UserUseCase) GetUserProfile(ctx context.Context, userID string) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.NotFound("User", err)
	}
	return user, nil
}

// Capabilities lists what the user's role allows, for clients that build menus from it.
func (uc *UserUseCase) Capabilities(user *entity.User) []string {
	return uc.policy.Capabilities(user.Role).List()
}

type UpdateProfileInput struct {
	DisplayName string
	AvatarURL   string
}

func (uc *UserUseCase) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*entity.User, error) {
	user, err := uc.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if name := strings.TrimSpace(input.DisplayName); name != "" {
		user.DisplayName = name
		fields["displayName"] = name
	}
	if input.AvatarURL != "" {
		user.AvatarURL = input.AvatarURL
		fields["avatarURL"] = input.AvatarURL
	}
	if len(fields) == 0 {
		return user, nil
	}
	if err := uc.userRepo.Update(ctx, userID, fields); err != nil {
		return nil, errors.Internal("Failed to update user profile", err)
	}
	return user, nil
}

// ListTenantUsers returns the public profiles of the actor's colleagues.
func (uc *UserUseCase) ListTenantUsers(ctx context.Context, actor *entity.User) ([]entity.PublicProfile, error) {
	users, err := uc.userRepo.ListByTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	out := make([]entity.PublicProfile, 0, len(users))
	for _, u := range users {
		if u.Active {
			out = append(out, u.Public())
		}
	}
	return out, nil
}

type CreateUserInput struct {
	Email             string
	Password          string
	DisplayName       string
	Role              entity.Role
	CommissionPercent float64
}

// CreateUser adds a staff member to the actor's tenant.
func (uc *UserUseCase) CreateUser(ctx context.Context, actor *entity.User, input CreateUserInput) (*entity.User, error) {
	if err := authorize(uc.policy, actor, access.UserManage); err != nil {
		return nil, err
	}
	if !input.Role.Valid() {
		return nil, errors.BadRequest("Unknown role "+string(input.Role), nil)
	}
	if err := validCommission(input.CommissionPercent); err != nil {
		return nil, err
	}

	identity, err := uc.auth.CreateUser(ctx, input.Email, input.Password, input.DisplayName)
	if err != nil {
		return nil, errors.BadRequest("Failed to create user in authentication provider", err)
	}
	user := &entity.User{
		ID:                identity.ID,
		TenantID:          actor.TenantID,
		Email:             identity.Email,
		DisplayName:       input.DisplayName,
		Role:              input.Role,
		CommissionPercent: input.CommissionPercent,
		Active:            true,
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		if delErr := uc.auth.DeleteUser(detached(ctx), identity.ID); delErr != nil {
			logger.Error("Users: orphaned auth account %s: %v", identity.ID, delErr)
		}
		return nil, errors.Internal("Failed to create user record", err)
	}
	uc.audit.Record(ctx, actor, AuditUserCreated, "user", user.ID, map[string]interface{}{"role": string(user.Role)})
	return user, nil
}

func (uc *UserUseCase) SetRole(ctx context.Context, actor *entity.User, userID string, role entity.Role) (*entity.User, error) {
	if err := authorize(uc.policy, actor, access.UserManage); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, errors.BadRequest("Unknown role "+string(role), nil)
	}
	if userID == actor.ID && role != actor.Role {
		return nil, errors.BadRequest("You cannot change your own role", nil)
	}
	user, err := uc.tenantUser(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	from := user.Role
	if err := uc.userRepo.Update(ctx, userID, map[string]interface{}{"role": string(role)}); err != nil {
		return nil, err
	}
	user.Role = role
	uc.audit.Record(ctx, actor, AuditRoleChanged, "user", userID, map[string]interface{}{
		"from": string(from),
		"to":   string(role),
	})
	return user, nil
}

// SetCommission sets the percent of each sale total the user earns, 0 to 100.
func (uc *UserUseCase) SetCommission(ctx context.Context, actor *entity.User, userID string, percent float64) (*entity.User, error) {
	if err := authorize(uc.policy, actor, access.CommissionManage); err != nil {
		return nil, err
	}
	if err := validCommission(percent); err != nil {
		return nil, err
	}
	user, err := uc.tenantUser(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	from := user.CommissionPercent
	if err := uc.userRepo.Update(ctx, userID, map[string]interface{}{"commissionPercent": percent}); err != nil {
		return nil, err
	}
	user.CommissionPercent = percent
	uc.audit.Record(ctx, actor, AuditCommissionChanged, "user", userID, map[string]interface{}{
		"from": from,
		"to":   percent,
	})
	return user, nil
}

func validCommission(percent float64) error {
	if percent < 0 || percent > 100 {
		return errors.BadRequest("Commission must be between 0 and 100", nil)
	}
	return nil
}

func (uc *UserUseCase) tenantUser(ctx context.Context, actor *entity.User, userID string) (*entity.User, error) {
	user, err := uc.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sameTenant(actor, user.TenantID, "User"); err != nil {
		return nil, err
	}
	return user, nil
}

// RegisterDevice stores an FCM registration token for push alerts.
func (uc *UserUseCase) RegisterDevice(ctx context.Context, userID, token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.BadRequest("Device token is required", nil)
	}
	return uc.userRepo.Update(ctx, userID, map[string]interface{}{
		"fcmTokens": livesync.ArrayUnion(token),
	})
}

// RegisterPushSubscription stores a browser Web Push endpoint, replacing an older one with the same endpoint.
func (uc *UserUseCase) RegisterPushSubscription(ctx context.Context, userID string, sub entity.PushSubscription) error {
	if sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
		return errors.BadRequest("Incomplete push subscription", nil)
	}
	user, err := uc.GetUserProfile(ctx, userID)
	if err != nil {
		return err
	}
	subs := []entity.PushSubscription{sub}
	for _, existing := range user.PushSubscriptions {
		if existing.Endpoint != sub.Endpoint {
			subs = append(subs, existing)
		}
	}
	return uc.userRepo.Update(ctx, userID, map[string]interface{}{
		"pushSubscriptions": entity.PushSubscriptionValues(subs),
	})
}
