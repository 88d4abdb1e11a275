package usecase

import (
	"context"
	"time"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/internal/livesync"
	"shopdesk/pkg/logger"
)

// PresenceUseCase flips isOnline on session mount and unmount. There is no heartbeat: a process that dies
// without unmounting leaves the user online until their next session ends.
type PresenceUseCase struct {
	userRepo repository.UserRepository
	backend  livesync.Backend
	clock    livesync.Clock

	typingIdle    time.Duration
	typingRefresh time.Duration
	typingTTL     time.Duration
}

type PresenceConfig struct {
	TypingIdle    time.Duration
	TypingRefresh time.Duration
	TypingTTL     time.Duration
}

func NewPresenceUseCase(userRepo repository.UserRepository, backend livesync.Backend, clock livesync.Clock, cfg PresenceConfig) *PresenceUseCase {
	if clock == nil {
		clock = livesync.SystemClock()
	}
	if cfg.TypingTTL <= 0 {
		cfg.TypingTTL = livesync.DefaultTypingTTL
	}
	return &PresenceUseCase{
		userRepo:      userRepo,
		backend:       backend,
		clock:         clock,
		typingIdle:    cfg.TypingIdle,
		typingRefresh: cfg.TypingRefresh,
		typingTTL:     cfg.TypingTTL,
	}
}

func (uc *PresenceUseCase) SetOnline(ctx context.Context, userID string) error {
	return uc.set(ctx, userID, true)
}

// SetOffline is best-effort; it runs on teardown paths where the request context may already be gone.
func (uc *PresenceUseCase) SetOffline(ctx context.Context, userID string) error {
	return uc.set(detached(ctx), userID, false)
}

func (uc *PresenceUseCase) set(ctx context.Context, userID string, online bool) error {
	err := uc.userRepo.Update(ctx, userID, map[string]interface{}{
		"isOnline": online,
		"lastSeen": livesync.ServerTimestamp,
	})
	if err != nil {
		logger.Warn("Presence: failed to mark %s online=%t: %v", userID, online, err)
	}
	return err
}

// OnlineUsers is a one-shot read of the tenant's online users.
func (uc *PresenceUseCase) OnlineUsers(ctx context.Context, tenantID string) ([]entity.PublicProfile, error) {
	docs, err := livesync.Fetch(ctx, uc.backend, repository.OnlineUsers(tenantID))
	if err != nil {
		return nil, writeError("Failed to load online users", err)
	}
	out := make([]entity.PublicProfile, 0, len(docs))
	for _, doc := range docs {
		out = append(out, entity.UserFromDocument(doc).Public())
	}
	return out, nil
}

// NewTypingTracker returns the typing state machine for one session.
func (uc *PresenceUseCase) NewTypingTracker() *livesync.TypingTracker {
	return livesync.NewTypingTracker(uc.backend, uc.clock, repository.Typing, uc.typingIdle, uc.typingRefresh)
}

// ActiveTyping turns typing signal documents into the users currently typing, leaving out self.
func (uc *PresenceUseCase) ActiveTyping(signals []livesync.Document, self string) []entity.TypingSignal {
	var out []entity.TypingSignal
	for _, doc := range livesync.ActiveTyping(signals, uc.clock.Now(), uc.typingTTL) {
		s := entity.TypingSignalFromDocument(doc)
		if s.UserID == self {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (uc *PresenceUseCase) Clock() livesync.Clock {
	return uc.clock
}
