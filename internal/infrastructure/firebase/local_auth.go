package firebase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"shopdesk/internal/domain/entity"
)

// LocalAuthClient is an in-process auth provider for DOCUMENT_STORE=memory. Tokens are opaque and live
// until SignOut.
type LocalAuthClient struct {
	mu       sync.RWMutex
	accounts map[string]*localAccount // by email
	tokens   map[string]string        // token -> uid
}

type localAccount struct {
	identity entity.Identity
	hash     []byte
}

func NewLocalAuthClient() *LocalAuthClient {
	return &LocalAuthClient{
		accounts: make(map[string]*localAccount),
		tokens:   make(map[string]string),
	}
}

func (l *LocalAuthClient) CreateUser(ctx context.Context, email, password, displayName string) (*entity.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[email]; ok {
		return nil, fmt.Errorf("email %s already exists", email)
	}
	acc := &localAccount{
		identity: entity.Identity{ID: uuid.New().String(), Email: email, DisplayName: displayName},
		hash:     hash,
	}
	l.accounts[email] = acc
	id := acc.identity
	return &id, nil
}

func (l *LocalAuthClient) DeleteUser(ctx context.Context, uid string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for email, acc := range l.accounts {
		if acc.identity.ID == uid {
			delete(l.accounts, email)
		}
	}
	l.revoke(uid)
	return nil
}

func (l *LocalAuthClient) SignIn(ctx context.Context, email, password string) (*entity.Identity, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	l.mu.RLock()
	acc, ok := l.accounts[email]
	l.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return nil, "", fmt.Errorf("invalid credentials")
	}

	token := uuid.New().String()
	l.mu.Lock()
	l.tokens[token] = acc.identity.ID
	l.mu.Unlock()

	id := acc.identity
	return &id, token, nil
}

func (l *LocalAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	uid, ok := l.tokens[token]
	if !ok {
		return "", fmt.Errorf("unknown or revoked token")
	}
	return uid, nil
}

func (l *LocalAuthClient) SignOut(ctx context.Context, uid string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoke(uid)
	return nil
}

func (l *LocalAuthClient) revoke(uid string) {
	for token, owner := range l.tokens {
		if owner == uid {
			delete(l.tokens, token)
		}
	}
}
