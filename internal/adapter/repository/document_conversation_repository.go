package repository

import (
	"context"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/internal/livesync"
)

type documentConversationRepository struct {
	collection
}

func NewConversationRepository(backend livesync.Backend) repository.ConversationRepository {
	return &documentConversationRepository{collection{backend: backend, name: repository.Conversations, resource: "Conversation"}}
}

func (r *documentConversationRepository) Create(ctx context.Context, conversation *entity.Conversation) (string, error) {
	fields := conversation.Fields()
	fields["lastMessageAt"] = livesync.ServerTimestamp
	return r.add(ctx, fields)
}

func (r *documentConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return entity.ConversationFromDocument(doc), nil
}

// FindDirect returns the live direct conversation between two users, or nil.
func (r *documentConversationRepository) FindDirect(ctx context.Context, tenantID, userA, userB string) (*entity.Conversation, error) {
	docs, err := r.find(ctx, livesync.Query{}.
		Where("participants", livesync.OpArrayContains, userA).
		Where("isGroup", livesync.OpEqual, false))
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		c := entity.ConversationFromDocument(doc)
		if c.TenantID == tenantID && !c.Deleted && c.HasParticipant(userB) {
			return c, nil
		}
	}
	return nil, nil
}

func (r *documentConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	docs, err := r.find(ctx, repository.ConversationsOf(userID))
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Conversation, 0, len(docs))
	for _, doc := range docs {
		out = append(out, entity.ConversationFromDocument(doc))
	}
	return out, nil
}

func (r *documentConversationRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.update(ctx, id, fields)
}

type documentMessageRepository struct {
	collection
}

func NewMessageRepository(backend livesync.Backend) repository.MessageRepository {
	return &documentMessageRepository{collection{backend: backend, name: repository.Messages, resource: "Message"}}
}

func (r *documentMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return entity.MessageFromDocument(doc), nil
}

func (r *documentMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	return r.list(ctx, repository.MessagesOf(conversationID))
}

func (r *documentMessageRepository) ListAllByConversation(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	return r.list(ctx, repository.AllMessagesOf(conversationID))
}

func (r *documentMessageRepository) list(ctx context.Context, q livesync.Query) ([]*entity.Message, error) {
	docs, err := r.find(ctx, q)
	if err != nil {
		return nil, err
	}
	livesync.SortDocuments(docs, livesync.ByTime("createdAt", livesync.Asc))
	out := make([]*entity.Message, 0, len(docs))
	for _, doc := range docs {
		out = append(out, entity.MessageFromDocument(doc))
	}
	return out, nil
}

func (r *documentMessageRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	if err := r.backend.Update(ctx, r.name, id, fields); err != nil {
		return translate(r.resource, err)
	}
	return nil
}
