package entity

import (
	"time"

	"shopdesk/internal/livesync"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleSeller     Role = "seller"
	RoleTechnician Role = "technician"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSeller, RoleTechnician:
		return true
	}
	return false
}

// PushSubscription is a browser Web Push endpoint registered by the user.
type PushSubscription struct {
	Endpoint string `json:"endpoint" firestore:"endpoint"`
	P256dh   string `json:"p256dh" firestore:"p256dh"`
	Auth     string `json:"auth" firestore:"auth"`
}

type User struct {
	ID                string  `json:"id" firestore:"id"`
	TenantID          string  `json:"tenant_id" firestore:"tenantId"`
	Email             string  `json:"email" firestore:"email"`
	DisplayName       string  `json:"display_name" firestore:"displayName"`
	Role              Role    `json:"role" firestore:"role"`
	CommissionPercent float64 `json:"commission_percent" firestore:"commissionPercent"`
	Active            bool    `json:"active" firestore:"active"`
	AvatarURL         string  `json:"avatar_url,omitempty" firestore:"avatarURL,omitempty"`

	// Presence: set on session mount/unmount only, so it may be stale after a crash.
	IsOnline bool      `json:"is_online" firestore:"isOnline"`
	LastSeen time.Time `json:"last_seen" firestore:"lastSeen"`

	FCMTokens         []string           `json:"-" firestore:"fcmTokens,omitempty"`
	PushSubscriptions []PushSubscription `json:"-" firestore:"pushSubscriptions,omitempty"`

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

func (u *User) Fields() map[string]interface{} {
	tokens := u.FCMTokens
	if tokens == nil {
		tokens = []string{}
	}
	return map[string]interface{}{
		"tenantId":          u.TenantID,
		"email":             u.Email,
		"displayName":       u.DisplayName,
		"role":              string(u.Role),
		"commissionPercent": u.CommissionPercent,
		"active":            u.Active,
		"avatarURL":         u.AvatarURL,
		"isOnline":          u.IsOnline,
		"fcmTokens":         tokens,
		"pushSubscriptions": PushSubscriptionValues(u.PushSubscriptions),
	}
}

// PushSubscriptionValues encodes subscriptions for a document write.
func PushSubscriptionValues(subs []PushSubscription) []interface{} {
	out := make([]interface{}, 0, len(subs))
	for _, s := range subs {
		out = append(out, map[string]interface{}{"endpoint": s.Endpoint, "p256dh": s.P256dh, "auth": s.Auth})
	}
	return out
}

func UserFromDocument(doc livesync.Document) *User {
	u := &User{
		ID:                doc.ID,
		TenantID:          doc.String("tenantId"),
		Email:             doc.String("email"),
		DisplayName:       doc.String("displayName"),
		Role:              Role(doc.String("role")),
		CommissionPercent: doc.Float64("commissionPercent"),
		Active:            doc.Bool("active"),
		AvatarURL:         doc.String("avatarURL"),
		IsOnline:          doc.Bool("isOnline"),
		LastSeen:          doc.Time("lastSeen"),
		FCMTokens:         doc.Strings("fcmTokens"),
		CreatedAt:         doc.Time("createdAt"),
		UpdatedAt:         doc.Time("updatedAt"),
	}
	if raw, ok := doc.Value("pushSubscriptions"); ok {
		if list, ok := raw.([]interface{}); ok {
			for _, item := range list {
				m, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				s := livesync.Document{Data: m}
				u.PushSubscriptions = append(u.PushSubscriptions, PushSubscription{
					Endpoint: s.String("endpoint"),
					P256dh:   s.String("p256dh"),
					Auth:     s.String("auth"),
				})
			}
		}
	}
	return u
}

// PublicProfile is what other users of the tenant may see.
type PublicProfile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	IsOnline    bool      `json:"is_online"`
	LastSeen    time.Time `json:"last_seen"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		AvatarURL:   u.AvatarURL,
		IsOnline:    u.IsOnline,
		LastSeen:    u.LastSeen,
	}
}

// Identity is what the auth provider knows about a signed-in user.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}
