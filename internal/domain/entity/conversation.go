package entity

import (
	"errors"
	"time"

	"shopdesk/internal/livesync"
)

var (
	ErrNoParticipants       = errors.New("conversation needs at least one participant")
	ErrDuplicateParticipant = errors.New("conversation participants must be unique")
	ErrDirectParticipants   = errors.New("direct conversation needs exactly two participants")
	ErrGroupWithoutAdmin    = errors.New("group conversation needs at least one admin")
	ErrAdminNotParticipant  = errors.New("group admins must be participants")
)

type Conversation struct {
	ID                  string    `json:"id" firestore:"id"`
	TenantID            string    `json:"tenant_id" firestore:"tenantId"`
	Participants        []string  `json:"participants" firestore:"participants"`
	IsGroup             bool      `json:"is_group" firestore:"isGroup"`
	Name                string    `json:"name,omitempty" firestore:"name,omitempty"`
	Description         string    `json:"description,omitempty" firestore:"description,omitempty"`
	Avatar              string    `json:"avatar,omitempty" firestore:"avatar,omitempty"`
	Admins              []string  `json:"admins,omitempty" firestore:"admins,omitempty"`
	LastMessage         string    `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt       time.Time `json:"last_message_at" firestore:"lastMessageAt"`
	LastMessageSenderID string    `json:"last_message_sender_id,omitempty" firestore:"lastMessageSenderId,omitempty"`
	Deleted             bool      `json:"deleted" firestore:"deleted"`
	Archived            bool      `json:"archived" firestore:"archived"`
	CreatedBy           string    `json:"created_by" firestore:"createdBy"`
	CreatedAt           time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt           time.Time `json:"updated_at" firestore:"updatedAt"`
}

// Validate checks the participant and admin invariants.
func (c *Conversation) Validate() error {
	if len(c.Participants) == 0 {
		return ErrNoParticipants
	}
	seen := make(map[string]struct{}, len(c.Participants))
	for _, p := range c.Participants {
		if _, dup := seen[p]; dup || p == "" {
			return ErrDuplicateParticipant
		}
		seen[p] = struct{}{}
	}
	if !c.IsGroup {
		if len(c.Participants) != 2 {
			return ErrDirectParticipants
		}
		return nil
	}
	if len(c.Admins) == 0 {
		return ErrGroupWithoutAdmin
	}
	for _, a := range c.Admins {
		if _, ok := seen[a]; !ok {
			return ErrAdminNotParticipant
		}
	}
	return nil
}

func (c *Conversation) HasParticipant(userID string) bool {
	return contains(c.Participants, userID)
}

func (c *Conversation) IsAdmin(userID string) bool {
	return c.IsGroup && contains(c.Admins, userID)
}

// Other returns the counterpart of userID in a direct conversation.
func (c *Conversation) Other(userID string) string {
	if c.IsGroup {
		return ""
	}
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

func (c *Conversation) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"tenantId":     c.TenantID,
		"participants": c.Participants,
		"isGroup":      c.IsGroup,
		"deleted":      c.Deleted,
		"archived":     c.Archived,
		"createdBy":    c.CreatedBy,
		"lastMessage":  c.LastMessage,
	}
	if c.IsGroup {
		fields["name"] = c.Name
		fields["description"] = c.Description
		fields["avatar"] = c.Avatar
		fields["admins"] = c.Admins
	}
	return fields
}

func ConversationFromDocument(doc livesync.Document) *Conversation {
	return &Conversation{
		ID:                  doc.ID,
		TenantID:            doc.String("tenantId"),
		Participants:        doc.Strings("participants"),
		IsGroup:             doc.Bool("isGroup"),
		Name:                doc.String("name"),
		Description:         doc.String("description"),
		Avatar:              doc.String("avatar"),
		Admins:              doc.Strings("admins"),
		LastMessage:         doc.String("lastMessage"),
		LastMessageAt:       doc.Time("lastMessageAt"),
		LastMessageSenderID: doc.String("lastMessageSenderId"),
		Deleted:             doc.Bool("deleted"),
		Archived:            doc.Bool("archived"),
		CreatedBy:           doc.String("createdBy"),
		CreatedAt:           doc.Time("createdAt"),
		UpdatedAt:           doc.Time("updatedAt"),
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
