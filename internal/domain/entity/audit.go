package entity

import (
	"time"

	"shopdesk/internal/livesync"
)

type AuditEntry struct {
	ID        string                 `json:"id" firestore:"id"`
	TenantID  string                 `json:"tenant_id" firestore:"tenantId"`
	ActorID   string                 `json:"actor_id" firestore:"actorId"`
	Action    string                 `json:"action" firestore:"action"`
	Entity    string                 `json:"entity" firestore:"entity"`
	EntityID  string                 `json:"entity_id" firestore:"entityId"`
	Details   map[string]interface{} `json:"details,omitempty" firestore:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at" firestore:"createdAt"`
}

func (a *AuditEntry) Fields() map[string]interface{} {
	details := a.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	return map[string]interface{}{
		"tenantId": a.TenantID,
		"actorId":  a.ActorID,
		"action":   a.Action,
		"entity":   a.Entity,
		"entityId": a.EntityID,
		"details":  details,
	}
}

func AuditEntryFromDocument(doc livesync.Document) *AuditEntry {
	return &AuditEntry{
		ID:        doc.ID,
		TenantID:  doc.String("tenantId"),
		ActorID:   doc.String("actorId"),
		Action:    doc.String("action"),
		Entity:    doc.String("entity"),
		EntityID:  doc.String("entityId"),
		Details:   doc.Map("details"),
		CreatedAt: doc.Time("createdAt"),
	}
}
