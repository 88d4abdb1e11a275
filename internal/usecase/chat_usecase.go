package usecase

import (
	"context"
	"strings"

	"shopdesk/internal/domain/access"
	"shopdesk/internal/domain/entity"
	"shopdesk/internal/domain/repository"
	"shopdesk/internal/infrastructure/ratelimit"
	"shopdesk/internal/infrastructure/storage"
	"shopdesk/internal/livesync"
	"shopdesk/pkg/errors"
	"shopdesk/pkg/logger"
)

type ChatUseCase struct {
	backend     livesync.Backend
	convRepo    repository.ConversationRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	blobs       BlobStore
	transport   livesync.Acknowledger
	clock       livesync.Clock
	rateLimiter RateLimiter
	policy      *access.Policy
	audit       *AuditUseCase
	maxUpload   int64
}

type ChatDeps struct {
	Backend       livesync.Backend
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
	Users         repository.UserRepository
	Blobs         BlobStore
	// Transport receives every accepted message; the simulated transport walks it to sent and delivered.
	Transport   livesync.Acknowledger
	Clock       livesync.Clock
	RateLimiter RateLimiter
	Policy      *access.Policy
	Audit       *AuditUseCase
	MaxUpload   int64
}

func NewChatUseCase(deps ChatDeps) *ChatUseCase {
	clock := deps.Clock
	if clock == nil {
		clock = livesync.SystemClock()
	}
	return &ChatUseCase{
		backend:     deps.Backend,
		convRepo:    deps.Conversations,
		messageRepo: deps.Messages,
		userRepo:    deps.Users,
		blobs:       deps.Blobs,
		transport:   deps.Transport,
		clock:       clock,
		rateLimiter: deps.RateLimiter,
		policy:      deps.Policy,
		audit:       deps.Audit,
		maxUpload:   deps.MaxUpload,
	}
}

func (uc *ChatUseCase) allow(userID, action string) error {
	if uc.rateLimiter == nil {
		return nil
	}
	if ok, wait := uc.rateLimiter.Allow(userID, action); !ok {
		logger.Warn("Chat: %s rate limited on %s, retry in %v", userID, action, wait)
		return errors.TooManyRequests("You are going too fast, please slow down", wait)
	}
	return nil
}

// Conversation returns the conversation if userID takes part in it. Outsiders get NotFound.
func (uc *ChatUseCase) Conversation(ctx context.Context, userID, conversationID string) (*entity.Conversation, error) {
	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) || conv.Deleted {
		return nil, errors.NotFound("Conversation", nil)
	}
	return conv, nil
}

func (uc *ChatUseCase) ListConversations(ctx context.Context, userID string, includeArchived bool) ([]*entity.Conversation, error) {
	all, err := uc.convRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Conversation, 0, len(all))
	for _, c := range all {
		if c.Deleted || (c.Archived && !includeArchived) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (uc *ChatUseCase) ListMessages(ctx context.Context, userID, conversationID string) ([]*entity.Message, error) {
	if _, err := uc.Conversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return uc.messageRepo.ListByConversation(ctx, conversationID)
}

// CreateDirect returns the existing direct conversation between the two users, or creates it.
func (uc *ChatUseCase) CreateDirect(ctx context.Context, actor *entity.User, otherID string) (*entity.Conversation, bool, error) {
	if err := authorize(uc.policy, actor, access.ChatUse); err != nil {
		return nil, false, err
	}
	if otherID == actor.ID {
		return nil, false, errors.BadRequest("Cannot start a conversation with yourself", nil)
	}
	other, err := uc.userRepo.GetByID(ctx, otherID)
	if err != nil {
		return nil, false, err
	}
	if err := sameTenant(actor, other.TenantID, "User"); err != nil {
		return nil, false, err
	}

	existing, err := uc.convRepo.FindDirect(ctx, actor.TenantID, actor.ID, otherID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.Archived {
			if err := uc.convRepo.Update(ctx, existing.ID, map[string]interface{}{"archived": false}); err != nil {
				return nil, false, err
			}
			existing.Archived = false
		}
		return existing, false, nil
	}

	if err := uc.allow(actor.ID, ratelimit.ActionCreateConversation); err != nil {
		return nil, false, err
	}
	conv := &entity.Conversation{
		TenantID:     actor.TenantID,
		Participants: []string{actor.ID, otherID},
		CreatedBy:    actor.ID,
	}
	return uc.create(ctx, actor, conv)
}

type CreateGroupInput struct {
	Name         string
	Description  string
	Avatar       string
	Participants []string
}

// CreateGroup makes the creator a participant and the only admin.
func (uc *ChatUseCase) CreateGroup(ctx context.Context, actor *entity.User, input CreateGroupInput) (*entity.Conversation, error) {
	if err := authorize(uc.policy, actor, access.ChatCreateGroup); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.BadRequest("Group name is required", nil)
	}
	if err := uc.allow(actor.ID, ratelimit.ActionCreateConversation); err != nil {
		return nil, err
	}

	participants := []string{actor.ID}
	for _, id := range input.Participants {
		if id == actor.ID || containsString(participants, id) {
			continue
		}
		u, err := uc.userRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := sameTenant(actor, u.TenantID, "User"); err != nil {
			return nil, err
		}
		participants = append(participants, id)
	}

	conv := &entity.Conversation{
		TenantID:     actor.TenantID,
		Participants: participants,
		IsGroup:      true,
		Name:         strings.TrimSpace(input.Name),
		Description:  input.Description,
		Avatar:       input.Avatar,
		Admins:       []string{actor.ID},
		CreatedBy:    actor.ID,
	}
	created, _, err := uc.create(ctx, actor, conv)
	return created, err
}

func (uc *ChatUseCase) create(ctx context.Context, actor *entity.User, conv *entity.Conversation) (*entity.Conversation, bool, error) {
	if err := conv.Validate(); err != nil {
		return nil, false, errors.BadRequest(err.Error(), err)
	}
	id, err := uc.convRepo.Create(ctx, conv)
	if err != nil {
		return nil, false, err
	}
	conv.ID = id
	conv.CreatedAt = uc.clock.Now()
	conv.LastMessageAt = conv.CreatedAt
	uc.audit.Record(ctx, actor, AuditConversationCreated, "conversation", id, map[string]interface{}{
		"isGroup":      conv.IsGroup,
		"participants": len(conv.Participants),
	})
	return conv, true, nil
}

type SendMessageInput struct {
	ConversationID string
	Content        string
	Type           entity.MessageType
	ReplyTo        string
	File           *entity.FileInfo
}

// SendMessage writes a message through the optimistic queue. When local is set, a provisional copy with
// status "sending" is shown in local under the conversation's message view until the backend answers.
func (uc *ChatUseCase) SendMessage(ctx context.Context, sender *entity.User, input SendMessageInput, local *livesync.Store) (*entity.Message, error) {
	if err := authorize(uc.policy, sender, access.ChatUse); err != nil {
		return nil, err
	}
	if err := uc.allow(sender.ID, ratelimit.ActionSendMessage); err != nil {
		return nil, err
	}
	if input.Type == "" {
		input.Type = entity.MessageText
	}
	if !input.Type.Valid() || input.Type == entity.MessageSystem {
		return nil, errors.BadRequest("Unsupported message type "+string(input.Type), nil)
	}
	input.Content = strings.TrimSpace(input.Content)
	if input.Content == "" && input.File == nil {
		return nil, errors.BadRequest("Message is empty", nil)
	}

	conv, err := uc.Conversation(ctx, sender.ID, input.ConversationID)
	if err != nil {
		return nil, err
	}
	if livesync.IsProvisionalID(input.ReplyTo) {
		return nil, errors.BadRequest("Cannot reply to a message that is still sending", nil)
	}
	if input.ReplyTo != "" {
		original, err := uc.messageRepo.GetByID(ctx, input.ReplyTo)
		if err != nil || original.ConversationID != conv.ID {
			return nil, errors.BadRequest("Replied message is not part of this conversation", err)
		}
	}

	message := &entity.Message{
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Content:        input.Content,
		Type:           input.Type,
		Status:         entity.StatusSending,
		File:           input.File,
		ReplyTo:        input.ReplyTo,
	}
	fields := message.Fields()
	fields["createdAt"] = livesync.ServerTimestamp

	write := livesync.PendingWrite{Collection: repository.Messages, Fields: fields}
	if local != nil {
		write.Key = repository.MessagesOf(conv.ID).Key()
	}
	queue := livesync.NewWriteQueue(uc.backend, local, uc.clock, uc.transport)
	id, err := queue.Send(ctx, write)
	if err != nil {
		return nil, writeError("Failed to send message", err)
	}
	message.ID = id
	message.CreatedAt = uc.clock.Now()

	update := map[string]interface{}{
		"lastMessage":         message.Summary(),
		"lastMessageAt":       livesync.ServerTimestamp,
		"lastMessageSenderId": sender.ID,
	}
	if conv.Archived {
		update["archived"] = false
	}
	if err := uc.convRepo.Update(ctx, conv.ID, update); err != nil {
		logger.Error("Chat: message %s sent but conversation %s preview not updated: %v", id, conv.ID, err)
	}

	return message, nil
}

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// SendFile uploads the attachment to the blob store, then sends a message pointing at it.
func (uc *ChatUseCase) SendFile(ctx context.Context, sender *entity.User, conversationID, caption string, file Attachment, local *livesync.Store) (*entity.Message, error) {
	if err := authorize(uc.policy, sender, access.FileUpload); err != nil {
		return nil, err
	}
	if uc.blobs == nil {
		return nil, errors.Unavailable("File uploads are not configured", nil)
	}
	if len(file.Data) == 0 {
		return nil, errors.BadRequest("File is empty", nil)
	}
	if uc.maxUpload > 0 && int64(len(file.Data)) > uc.maxUpload {
		return nil, errors.BadRequest("File is too large", nil)
	}
	if err := uc.allow(sender.ID, ratelimit.ActionUpload); err != nil {
		return nil, err
	}
	if _, err := uc.Conversation(ctx, sender.ID, conversationID); err != nil {
		return nil, err
	}

	path := storage.ObjectPath("chat/"+conversationID, file.ContentType, uc.clock.Now())
	if err := uc.blobs.Upload(ctx, path, file.Data, file.ContentType); err != nil {
		return nil, errors.Internal("Failed to upload file", err)
	}

	return uc.SendMessage(ctx, sender, SendMessageInput{
		ConversationID: conversationID,
		Content:        caption,
		Type:           messageTypeFor(file.ContentType),
		File: &entity.FileInfo{
			Name:     file.Name,
			URL:      uc.blobs.PublicURL(path),
			MimeType: file.ContentType,
			Size:     int64(len(file.Data)),
			Path:     path,
		},
	}, local)
}

func messageTypeFor(contentType string) entity.MessageType {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return entity.MessageImage
	case strings.HasPrefix(contentType, "audio/"):
		return entity.MessageAudio
	}
	return entity.MessageFile
}

// MarkRead records a read receipt on every message of the conversation the user has not read yet and
// did not send. Status jumps straight to read; delivered may never have been observed.
func (uc *ChatUseCase) MarkRead(ctx context.Context, userID, conversationID string) (int, error) {
	if _, err := uc.Conversation(ctx, userID, conversationID); err != nil {
		return 0, err
	}
	messages, err := uc.messageRepo.ListAllByConversation(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, m := range messages {
		if !m.MarkReadBy(userID) {
			continue
		}
		if err := uc.messageRepo.Update(ctx, m.ID, map[string]interface{}{
			"readBy": livesync.ArrayUnion(userID),
			"status": string(entity.StatusRead),
		}); err != nil {
			if errors.Is(err, errors.CodeNotFound) {
				continue
			}
			return marked, err
		}
		marked++
	}
	return marked, nil
}

// React toggles emoji for userID on a message. The one-emoji-per-user rule is applied here only; two
// concurrent toggles by the same user can still leave them under two emojis.
func (uc *ChatUseCase) React(ctx context.Context, userID, messageID, emoji string) (map[string][]string, error) {
	if strings.TrimSpace(emoji) == "" {
		return nil, errors.BadRequest("Emoji is required", nil)
	}
	if livesync.IsProvisionalID(messageID) {
		return nil, errors.BadRequest("Message is still sending", nil)
	}
	message, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := uc.Conversation(ctx, userID, message.ConversationID); err != nil {
		return nil, err
	}
	reactions := entity.ToggleReaction(message.Reactions, emoji, userID)
	if err := uc.messageRepo.Update(ctx, messageID, map[string]interface{}{
		"reactions": entity.ReactionFields(reactions),
	}); err != nil {
		return nil, err
	}
	return reactions, nil
}

func (uc *ChatUseCase) Archive(ctx context.Context, userID, conversationID string, archived bool) error {
	if _, err := uc.Conversation(ctx, userID, conversationID); err != nil {
		return err
	}
	return uc.convRepo.Update(ctx, conversationID, map[string]interface{}{"archived": archived})
}

// Delete soft-deletes a conversation. Groups may only be deleted by their admins; moderators may delete any.
func (uc *ChatUseCase) Delete(ctx context.Context, actor *entity.User, conversationID string) error {
	conv, err := uc.Conversation(ctx, actor.ID, conversationID)
	if err != nil {
		return err
	}
	if conv.IsGroup && !conv.IsAdmin(actor.ID) && !uc.policy.Can(actor.Role, access.ChatModerate) {
		return errors.Forbidden("Only group admins can delete the group", nil)
	}
	if err := uc.convRepo.Update(ctx, conversationID, map[string]interface{}{"deleted": true}); err != nil {
		return err
	}
	uc.audit.Record(ctx, actor, AuditConversationDeleted, "conversation", conversationID, nil)
	return nil
}

func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
