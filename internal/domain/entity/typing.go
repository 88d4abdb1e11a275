package entity

import (
	"time"

	"shopdesk/internal/livesync"
)

// TypingSignal is ephemeral: readers judge it by age, never by its existence.
type TypingSignal struct {
	ConversationID string    `json:"conversation_id" firestore:"conversationId"`
	UserID         string    `json:"user_id" firestore:"userId"`
	Timestamp      time.Time `json:"timestamp" firestore:"timestamp"`
}

func TypingSignalFromDocument(doc livesync.Document) TypingSignal {
	return TypingSignal{
		ConversationID: doc.String("conversationId"),
		UserID:         doc.String("userId"),
		Timestamp:      doc.Time("timestamp"),
	}
}
