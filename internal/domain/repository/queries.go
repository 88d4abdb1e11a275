package repository

import "shopdesk/internal/livesync"

// Live queries shared by the repositories and the websocket sessions. Their Key() is the projection store
// key of the view.

const (
	MessagePage      = 200
	NotificationPage = 50
	AuditPage        = 100
)

func ConversationsOf(userID string) livesync.Query {
	return livesync.Query{Collection: Conversations}.
		Where("participants", livesync.OpArrayContains, userID).
		Ordered("lastMessageAt", livesync.Desc)
}

// MessagesOf is the newest page of a conversation. Views re-sort it oldest first at read time.
func MessagesOf(conversationID string) livesync.Query {
	return AllMessagesOf(conversationID).
		Ordered("createdAt", livesync.Desc).
		Limited(MessagePage)
}

// AllMessagesOf has no page cap. Read receipts must reach every message.
func AllMessagesOf(conversationID string) livesync.Query {
	return livesync.Query{Collection: Messages}.
		Where("conversationId", livesync.OpEqual, conversationID)
}

func TypingIn(conversationID string) livesync.Query {
	return livesync.Query{Collection: Typing}.
		Where("conversationId", livesync.OpEqual, conversationID)
}

func NotificationsOf(userID string, limit int) livesync.Query {
	if limit <= 0 {
		limit = NotificationPage
	}
	return livesync.Query{Collection: Notifications}.
		Where("userId", livesync.OpEqual, userID).
		Ordered("createdAt", livesync.Desc).
		Limited(limit)
}

func OnlineUsers(tenantID string) livesync.Query {
	return livesync.Query{Collection: Users}.
		Where("tenantId", livesync.OpEqual, tenantID).
		Where("isOnline", livesync.OpEqual, true)
}

func AuditFeed(tenantID string, limit int) livesync.Query {
	if limit <= 0 {
		limit = AuditPage
	}
	return livesync.Query{Collection: AuditLogs}.
		Where("tenantId", livesync.OpEqual, tenantID).
		Ordered("createdAt", livesync.Desc).
		Limited(limit)
}
