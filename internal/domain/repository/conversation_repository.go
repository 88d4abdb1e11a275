package repository

import (
	"context"

	"shopdesk/internal/domain/entity"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) (string, error)
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	FindDirect(ctx context.Context, tenantID, userA, userB string) (*entity.Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]*entity.Conversation, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
}

type MessageRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Message, error)
	// ListByConversation returns the newest page, oldest first.
	ListByConversation(ctx context.Context, conversationID string) ([]*entity.Message, error)
	ListAllByConversation(ctx context.Context, conversationID string) ([]*entity.Message, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
}
