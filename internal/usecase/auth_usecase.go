package usecase

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/pkg/errors"
	"shopdesk/pkg/logger"
)

// AuthUseCase signs users in and out and tells live sessions when their user signs out.
type AuthUseCase struct {
	userRepo repository.UserRepository
	auth     AuthProvider

	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]func(*entity.User)
}

func NewAuthUseCase(userRepo repository.UserRepository, auth AuthProvider) *AuthUseCase {
	return &AuthUseCase{
		userRepo:  userRepo,
		auth:      auth,
		listeners: make(map[string]map[int]func(*entity.User)),
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

type AuthResult struct {
	User  *entity.User `json:"user"`
	Token string       `json:"token"`
}

// Register opens a new shop: the account becomes the admin of a fresh tenant. Staff accounts are created
// by admins through UserUseCase.CreateUser.
func (uc *AuthUseCase) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	identity, err := uc.auth.CreateUser(ctx, input.Email, input.Password, input.DisplayName)
	if err != nil {
		return nil, errors.BadRequest("Failed to create user in authentication provider", err)
	}

	user := &entity.User{
		ID:          identity.ID,
		TenantID:    uuid.New().String(),
		Email:       identity.Email,
		DisplayName: input.DisplayName,
		Role:        entity.RoleAdmin,
		Active:      true,
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		if delErr := uc.auth.DeleteUser(detached(ctx), identity.ID); delErr != nil {
			logger.Error("Auth: orphaned auth account %s: %v", identity.ID, delErr)
		}
		return nil, errors.Internal("Failed to create user record", err)
	}

	_, token, err := uc.auth.SignIn(ctx, input.Email, input.Password)
	if err != nil {
		return nil, errors.Internal("Failed to generate authentication token", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	identity, token, err := uc.auth.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		logger.Warn("Login failed for %s: %v", email, err)
		return nil, errors.Unauthorized("Invalid credentials", err)
	}

	user, err := uc.userRepo.GetByID(ctx, identity.ID)
	if err != nil {
		return nil, errors.NotFound("User", err)
	}
	if !user.Active {
		return nil, errors.Forbidden("Account is disabled", nil)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Authenticate resolves a bearer token to the signed-in user.
func (uc *AuthUseCase) Authenticate(ctx context.Context, token string) (*entity.User, error) {
	uid, err := uc.auth.VerifyToken(ctx, token)
	if err != nil {
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}
	user, err := uc.userRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, errors.Unauthorized("Unknown user", err)
	}
	if !user.Active {
		return nil, errors.Forbidden("Account is disabled", nil)
	}
	return user, nil
}

// Logout revokes the user's tokens and signals every live session of the user with a nil user.
func (uc *AuthUseCase) Logout(ctx context.Context, userID string) error {
	if err := uc.auth.SignOut(ctx, userID); err != nil {
		return errors.Internal("Failed to sign out", err)
	}
	uc.emit(userID, nil)
	return nil
}

// OnAuthStateChange registers callback for auth changes of userID. The returned func removes it.
func (uc *AuthUseCase) OnAuthStateChange(userID string, callback func(*entity.User)) func() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.nextID++
	id := uc.nextID
	if uc.listeners[userID] == nil {
		uc.listeners[userID] = make(map[int]func(*entity.User))
	}
	uc.listeners[userID][id] = callback

	var once sync.Once
	return func() {
		once.Do(func() {
			uc.mu.Lock()
			defer uc.mu.Unlock()
			delete(uc.listeners[userID], id)
			if len(uc.listeners[userID]) == 0 {
				delete(uc.listeners, userID)
			}
		})
	}
}

func (uc *AuthUseCase) emit(userID string, user *entity.User) {
	uc.mu.Lock()
	callbacks := make([]func(*entity.User), 0, len(uc.listeners[userID]))
	for _, cb := range uc.listeners[userID] {
		callbacks = append(callbacks, cb)
	}
	uc.mu.Unlock()
	for _, cb := range callbacks {
		cb(user)
	}
}
