package access

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk/internal/domain/entity"
)

func TestDefaultCapabilities(t *testing.T) {
	p := NewPolicy()

	assert.True(t, p.Can(entity.RoleAdmin, CommissionManage))
	assert.True(t, p.Can(entity.RoleManager, AuditView))
	assert.False(t, p.Can(entity.RoleManager, UserManage))
	assert.True(t, p.Can(entity.RoleSeller, SaleCreate))
	assert.False(t, p.Can(entity.RoleSeller, AuditView))
	assert.True(t, p.Can(entity.RoleTechnician, ServiceUpdate))
	assert.False(t, p.Can(entity.RoleTechnician, SaleCreate))
	assert.Empty(t, p.Capabilities("intern"))
}

func TestCapabilitiesAreCopies(t *testing.T) {
	p := NewPolicy()
	caps := p.Capabilities(entity.RoleSeller)
	delete(caps, ChatUse)
	assert.True(t, p.Can(entity.RoleSeller, ChatUse))
}

func TestPolicyFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
roles:
  seller:
    grant: [audit.view]
    revoke: [service.create]
  admin:
    revoke: [user.manage]
`), 0o600))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.True(t, p.Can(entity.RoleSeller, AuditView))
	assert.False(t, p.Can(entity.RoleSeller, ServiceCreate))
	assert.True(t, p.Can(entity.RoleAdmin, UserManage))
}

func TestPolicyFileRejectsUnknownNames(t *testing.T) {
	p := NewPolicy()
	assert.Error(t, p.Apply([]byte("roles:\n  janitor:\n    grant: [chat.use]\n")))
	assert.Error(t, p.Apply([]byte("roles:\n  seller:\n    grant: [launch.missiles]\n")))
}
