package repository

// Document store collection names.
const (
	Conversations = "conversations"
	Messages      = "messages"
	Typing        = "typing"
	Users         = "users"
	Notifications = "notifications"
	Products      = "products"
	Sales         = "sales"
	ServiceOrders = "serviceOrders"
	AuditLogs     = "auditLogs"
)
