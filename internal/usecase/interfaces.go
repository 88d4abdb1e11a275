package usecase

import (
	"context"
	"time"

	"shopdesk/internal/domain/entity"
)

// AuthProvider is the identity service: Firebase Auth in production, a local provider with the memory store.
type AuthProvider interface {
	CreateUser(ctx context.Context, email, password, displayName string) (*entity.Identity, error)
	DeleteUser(ctx context.Context, uid string) error
	SignIn(ctx context.Context, email, password string) (*entity.Identity, string, error)
	VerifyToken(ctx context.Context, token string) (string, error)
	SignOut(ctx context.Context, uid string) error
}

// BlobStore stores message attachments.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	PublicURL(path string) string
}

// RateLimiter is consulted before chat writes.
type RateLimiter interface {
	Allow(subject, action string) (bool, time.Duration)
}
