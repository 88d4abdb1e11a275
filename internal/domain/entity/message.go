package entity

import (
	"sort"
	"time"

	"shopdesk/internal/livesync"
)

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageAudio    MessageType = "audio"
	MessageFile     MessageType = "file"
	MessageLocation MessageType = "location"
	MessageSystem   MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageAudio, MessageFile, MessageLocation, MessageSystem:
		return true
	}
	return false
}

type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

var statusRank = map[MessageStatus]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Rank orders statuses; unknown statuses rank below sending.
func (s MessageStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Advances reports whether moving from -> to goes forward. Skipping ahead (sent -> read) is allowed,
// going back or staying put is not.
func Advances(from, to string) bool {
	target := MessageStatus(to)
	if _, known := statusRank[target]; !known {
		return false
	}
	return target.Rank() > MessageStatus(from).Rank()
}

type FileInfo struct {
	Name     string `json:"name" firestore:"name"`
	URL      string `json:"url" firestore:"url"`
	MimeType string `json:"mime_type" firestore:"mimeType"`
	Size     int64  `json:"size" firestore:"size"`
	Path     string `json:"path,omitempty" firestore:"path,omitempty"`
}

type Message struct {
	ID             string              `json:"id" firestore:"id"`
	TenantID       string              `json:"tenant_id" firestore:"tenantId"`
	ConversationID string              `json:"conversation_id" firestore:"conversationId"`
	SenderID       string              `json:"sender_id" firestore:"senderId"`
	Content        string              `json:"content,omitempty" firestore:"content,omitempty"`
	Type           MessageType         `json:"type" firestore:"type"`
	Status         MessageStatus       `json:"status" firestore:"status"`
	File           *FileInfo           `json:"file,omitempty" firestore:"file,omitempty"`
	Reactions      map[string][]string `json:"reactions,omitempty" firestore:"reactions,omitempty"`
	ReplyTo        string              `json:"reply_to,omitempty" firestore:"replyTo,omitempty"`
	ReadBy         []string            `json:"read_by" firestore:"readBy"`
	CreatedAt      time.Time           `json:"created_at" firestore:"createdAt"`
	Provisional    bool                `json:"provisional,omitempty" firestore:"-"`
}

// AdvanceStatus moves the status forward and reports whether it changed.
func (m *Message) AdvanceStatus(to MessageStatus) bool {
	if !Advances(string(m.Status), string(to)) {
		return false
	}
	m.Status = to
	return true
}

// MarkReadBy records a read receipt from userID.
func (m *Message) MarkReadBy(userID string) bool {
	if userID == m.SenderID || contains(m.ReadBy, userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	m.AdvanceStatus(StatusRead)
	return true
}

// Summary is the conversation list preview of the message.
func (m *Message) Summary() string {
	if m.Content != "" {
		return m.Content
	}
	if m.File != nil {
		return "📎 " + m.File.Name
	}
	switch m.Type {
	case MessageLocation:
		return "📍 Location"
	case MessageAudio:
		return "🎤 Audio"
	}
	return ""
}

func (m *Message) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"tenantId":       m.TenantID,
		"conversationId": m.ConversationID,
		"senderId":       m.SenderID,
		"content":        m.Content,
		"type":           string(m.Type),
		"status":         string(m.Status),
		"readBy":         m.ReadBy,
	}
	if len(m.ReadBy) == 0 {
		fields["readBy"] = []string{}
	}
	if m.File != nil {
		fields["file"] = map[string]interface{}{
			"name":     m.File.Name,
			"url":      m.File.URL,
			"mimeType": m.File.MimeType,
			"size":     m.File.Size,
			"path":     m.File.Path,
		}
	}
	if m.ReplyTo != "" {
		fields["replyTo"] = m.ReplyTo
	}
	if len(m.Reactions) > 0 {
		fields["reactions"] = ReactionFields(m.Reactions)
	}
	return fields
}

func MessageFromDocument(doc livesync.Document) *Message {
	m := &Message{
		ID:             doc.ID,
		TenantID:       doc.String("tenantId"),
		ConversationID: doc.String("conversationId"),
		SenderID:       doc.String("senderId"),
		Content:        doc.String("content"),
		Type:           MessageType(doc.String("type")),
		Status:         MessageStatus(doc.String("status")),
		Reactions:      doc.StringSets("reactions"),
		ReplyTo:        doc.String("replyTo"),
		ReadBy:         doc.Strings("readBy"),
		CreatedAt:      doc.Time("createdAt"),
		Provisional:    doc.Provisional,
	}
	if f := doc.Map("file"); f != nil {
		file := livesync.Document{Data: f}
		m.File = &FileInfo{
			Name:     file.String("name"),
			URL:      file.String("url"),
			MimeType: file.String("mimeType"),
			Size:     file.Int64("size"),
			Path:     file.String("path"),
		}
	}
	return m
}

// ToggleReaction returns the reactions after userID clicks emoji: clicking the emoji they already chose
// removes it, clicking another one moves them there. The input map is not modified.
func ToggleReaction(reactions map[string][]string, emoji, userID string) map[string][]string {
	out := make(map[string][]string, len(reactions)+1)
	already := contains(reactions[emoji], userID)
	for e, users := range reactions {
		kept := make([]string, 0, len(users))
		for _, u := range users {
			if u != userID {
				kept = append(kept, u)
			}
		}
		if len(kept) > 0 {
			out[e] = kept
		}
	}
	if !already {
		out[emoji] = append(out[emoji], userID)
	}
	return out
}

// ReactionFields converts reactions to a storable map with sorted user lists.
func ReactionFields(reactions map[string][]string) map[string]interface{} {
	out := make(map[string]interface{}, len(reactions))
	for emoji, users := range reactions {
		sorted := append([]string(nil), users...)
		sort.Strings(sorted)
		out[emoji] = sorted
	}
	return out
}
