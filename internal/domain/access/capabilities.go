// Package access resolves what a role may do. Handlers and use cases ask Policy.Can instead of comparing
// role strings.
package access

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"shopdesk/internal/domain/entity"
)

type Action string

const (
	ChatUse          Action = "chat.use"
	ChatCreateGroup  Action = "chat.create_group"
	ChatModerate     Action = "chat.moderate"
	NotificationSend Action = "notification.send"
	AuditView        Action = "audit.view"
	ProductView      Action = "product.view"
	ProductManage    Action = "product.manage"
	StockAdjust      Action = "stock.adjust"
	SaleCreate       Action = "sale.create"
	SaleViewAll      Action = "sale.view_all"
	ServiceCreate    Action = "service.create"
	ServiceUpdate    Action = "service.update"
	ServiceViewAll   Action = "service.view_all"
	UserManage       Action = "user.manage"
	CommissionManage Action = "commission.manage"
	FileUpload       Action = "file.upload"
)

// AllActions lists every known action.
var AllActions = []Action{
	ChatUse, ChatCreateGroup, ChatModerate, NotificationSend, AuditView,
	ProductView, ProductManage, StockAdjust, SaleCreate, SaleViewAll,
	ServiceCreate, ServiceUpdate, ServiceViewAll, UserManage, CommissionManage, FileUpload,
}

type Set map[Action]struct{}

func NewSet(actions ...Action) Set {
	s := make(Set, len(actions))
	for _, a := range actions {
		s[a] = struct{}{}
	}
	return s
}

func (s Set) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// List returns the actions sorted, for clients that render menus from it.
func (s Set) List() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, string(a))
	}
	sort.Strings(out)
	return out
}

func defaults() map[entity.Role]Set {
	staff := []Action{ChatUse, ProductView, FileUpload}
	return map[entity.Role]Set{
		entity.RoleAdmin: NewSet(AllActions...),
		entity.RoleManager: NewSet(append(staff,
			ChatCreateGroup, ChatModerate, NotificationSend, AuditView, ProductManage, StockAdjust,
			SaleCreate, SaleViewAll, ServiceCreate, ServiceUpdate, ServiceViewAll,
		)...),
		entity.RoleSeller:     NewSet(append(staff, SaleCreate, ServiceCreate)...),
		entity.RoleTechnician: NewSet(append(staff, ServiceUpdate, ServiceViewAll)...),
	}
}

// Policy maps roles to capabilities. The zero value is not usable; use NewPolicy or LoadPolicy.
type Policy struct {
	mu    sync.RWMutex
	roles map[entity.Role]Set
}

func NewPolicy() *Policy {
	return &Policy{roles: defaults()}
}

// Capabilities is the single place a role turns into permitted actions. Unknown roles get nothing.
func (p *Policy) Capabilities(role entity.Role) Set {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(Set, len(p.roles[role]))
	for a := range p.roles[role] {
		out[a] = struct{}{}
	}
	return out
}

func (p *Policy) Can(role entity.Role, action Action) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.roles[role].Has(action)
}

type policyFile struct {
	Roles map[string]struct {
		Grant  []string `yaml:"grant"`
		Revoke []string `yaml:"revoke"`
	} `yaml:"roles"`
}

// LoadPolicy builds the default policy and applies the overrides in path, if any. The admin role always
// keeps every action.
func LoadPolicy(path string) (*Policy, error) {
	p := NewPolicy()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capability policy: %w", err)
	}
	if err := p.Apply(raw); err != nil {
		return nil, err
	}
	return p, nil
}

// Apply overlays a YAML document of the form roles: {seller: {grant: [...], revoke: [...]}}.
func (p *Policy) Apply(raw []byte) error {
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse capability policy: %w", err)
	}
	known := NewSet(AllActions...)

	p.mu.Lock()
	defer p.mu.Unlock()
	for name, rule := range file.Roles {
		role := entity.Role(name)
		if !role.Valid() {
			return fmt.Errorf("capability policy: unknown role %q", name)
		}
		if role == entity.RoleAdmin {
			continue
		}
		set := p.roles[role]
		for _, a := range rule.Grant {
			if !known.Has(Action(a)) {
				return fmt.Errorf("capability policy: unknown action %q", a)
			}
			set[Action(a)] = struct{}{}
		}
		for _, a := range rule.Revoke {
			delete(set, Action(a))
		}
	}
	return nil
}
