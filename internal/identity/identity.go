package identity

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"groundtruth/pkg/platform/sentinel"
)

// Identity is one named login the harness may act as. Credentials live in the
// roster file or the environment, never in the session cache.
type Identity struct {
	Role     string `yaml:"role"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	// PasswordEnv names an environment variable that overrides Password,
	// so CI can inject secrets without editing the roster.
	PasswordEnv string `yaml:"password_env,omitempty"`
}

// Roster is the set of identities a run may use, keyed by role.
type Roster struct {
	byRole map[string]Identity
}

type rosterFile struct {
	Identities []Identity `yaml:"identities"`
}

// Load reads and validates a roster YAML file.
func Load(path string) (*Roster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return Parse(raw)
}

// Parse validates roster YAML: every identity needs a role, an email and a
// resolvable password; roles must be unique.
func Parse(raw []byte) (*Roster, error) {
	var f rosterFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if len(f.Identities) == 0 {
		return nil, fmt.Errorf("roster has no identities")
	}

	byRole := make(map[string]Identity, len(f.Identities))
	for i, id := range f.Identities {
		if id.Role == "" {
			return nil, fmt.Errorf("identity %d: missing role", i)
		}
		if id.Email == "" {
			return nil, fmt.Errorf("identity %q: missing email", id.Role)
		}
		if id.PasswordEnv != "" {
			if v := os.Getenv(id.PasswordEnv); v != "" {
				id.Password = v
			}
		}
		if id.Password == "" {
			return nil, fmt.Errorf("identity %q: no password and %q unset", id.Role, id.PasswordEnv)
		}
		if _, dup := byRole[id.Role]; dup {
			return nil, fmt.Errorf("identity %q: duplicate role", id.Role)
		}
		byRole[id.Role] = id
	}
	return &Roster{byRole: byRole}, nil
}

// Get returns the identity for role.
func (r *Roster) Get(role string) (Identity, error) {
	id, ok := r.byRole[role]
	if !ok {
		return Identity{}, fmt.Errorf("identity %q: %w", role, sentinel.ErrNotFound)
	}
	return id, nil
}

// Roles lists known roles in stable order.
func (r *Roster) Roles() []string {
	roles := make([]string, 0, len(r.byRole))
	for role := range r.byRole {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
