package entity

import (
	"time"

	"shopdesk/internal/livesync"
)

type NotificationType string

const (
	NotificationOrder    NotificationType = "order"
	NotificationService  NotificationType = "service"
	NotificationSale     NotificationType = "sale"
	NotificationClient   NotificationType = "client"
	NotificationPayment  NotificationType = "payment"
	NotificationSystem   NotificationType = "system"
	NotificationReminder NotificationType = "reminder"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationOrder, NotificationService, NotificationSale, NotificationClient,
		NotificationPayment, NotificationSystem, NotificationReminder:
		return true
	}
	return false
}

type Notification struct {
	ID        string                 `json:"id" firestore:"id"`
	TenantID  string                 `json:"tenant_id" firestore:"tenantId"`
	UserID    string                 `json:"user_id" firestore:"userId"`
	Type      NotificationType       `json:"type" firestore:"type"`
	Title     string                 `json:"title" firestore:"title"`
	Message   string                 `json:"message" firestore:"message"`
	Data      map[string]interface{} `json:"data,omitempty" firestore:"data,omitempty"`
	Read      bool                   `json:"read" firestore:"read"`
	CreatedBy string                 `json:"created_by,omitempty" firestore:"createdBy,omitempty"`
	CreatedAt time.Time              `json:"created_at" firestore:"createdAt"`
}

func (n *Notification) Fields() map[string]interface{} {
	data := n.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	return map[string]interface{}{
		"tenantId":  n.TenantID,
		"userId":    n.UserID,
		"type":      string(n.Type),
		"title":     n.Title,
		"message":   n.Message,
		"data":      data,
		"read":      n.Read,
		"createdBy": n.CreatedBy,
	}
}

func NotificationFromDocument(doc livesync.Document) *Notification {
	return &Notification{
		ID:        doc.ID,
		TenantID:  doc.String("tenantId"),
		UserID:    doc.String("userId"),
		Type:      NotificationType(doc.String("type")),
		Title:     doc.String("title"),
		Message:   doc.String("message"),
		Data:      doc.Map("data"),
		Read:      doc.Bool("read"),
		CreatedBy: doc.String("createdBy"),
		CreatedAt: doc.Time("createdAt"),
	}
}
