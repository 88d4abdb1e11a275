package entity

import (
	"time"

	"shopdesk/internal/livesync"
)

type ServiceStatus string

const (
	ServiceReceived   ServiceStatus = "received"
	ServiceInProgress ServiceStatus = "in_progress"
	ServiceReady      ServiceStatus = "ready"
	ServiceDelivered  ServiceStatus = "delivered"
	ServiceCancelled  ServiceStatus = "cancelled"
)

var serviceFlow = map[ServiceStatus]ServiceStatus{
	ServiceReceived:   ServiceInProgress,
	ServiceInProgress: ServiceReady,
	ServiceReady:      ServiceDelivered,
}

func (s ServiceStatus) Terminal() bool {
	return s == ServiceDelivered || s == ServiceCancelled
}

// CanTransition allows one step forward, or cancellation from any open status.
func (s ServiceStatus) CanTransition(to ServiceStatus) bool {
	if s.Terminal() {
		return false
	}
	if to == ServiceCancelled {
		return true
	}
	return serviceFlow[s] == to
}

type ServiceOrder struct {
	ID            string        `json:"id" firestore:"id"`
	TenantID      string        `json:"tenant_id" firestore:"tenantId"`
	Number        string        `json:"number" firestore:"number"`
	ClientName    string        `json:"client_name" firestore:"clientName"`
	ClientPhone   string        `json:"client_phone,omitempty" firestore:"clientPhone,omitempty"`
	Device        string        `json:"device" firestore:"device"`
	Problem       string        `json:"problem" firestore:"problem"`
	Notes         string        `json:"notes,omitempty" firestore:"notes,omitempty"`
	EstimatedCost float64       `json:"estimated_cost" firestore:"estimatedCost"`
	Status        ServiceStatus `json:"status" firestore:"status"`
	AssignedTo    string        `json:"assigned_to,omitempty" firestore:"assignedTo,omitempty"`
	CreatedBy     string        `json:"created_by" firestore:"createdBy"`
	CreatedAt     time.Time     `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time     `json:"updated_at" firestore:"updatedAt"`
}

func (o *ServiceOrder) Fields() map[string]interface{} {
	return map[string]interface{}{
		"tenantId":      o.TenantID,
		"number":        o.Number,
		"clientName":    o.ClientName,
		"clientPhone":   o.ClientPhone,
		"device":        o.Device,
		"problem":       o.Problem,
		"notes":         o.Notes,
		"estimatedCost": o.EstimatedCost,
		"status":        string(o.Status),
		"assignedTo":    o.AssignedTo,
		"createdBy":     o.CreatedBy,
	}
}

func ServiceOrderFromDocument(doc livesync.Document) *ServiceOrder {
	return &ServiceOrder{
		ID:            doc.ID,
		TenantID:      doc.String("tenantId"),
		Number:        doc.String("number"),
		ClientName:    doc.String("clientName"),
		ClientPhone:   doc.String("clientPhone"),
		Device:        doc.String("device"),
		Problem:       doc.String("problem"),
		Notes:         doc.String("notes"),
		EstimatedCost: doc.Float64("estimatedCost"),
		Status:        ServiceStatus(doc.String("status")),
		AssignedTo:    doc.String("assignedTo"),
		CreatedBy:     doc.String("createdBy"),
		CreatedAt:     doc.Time("createdAt"),
		UpdatedAt:     doc.Time("updatedAt"),
	}
}
