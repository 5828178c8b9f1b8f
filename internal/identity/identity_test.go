package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundtruth/pkg/platform/sentinel"
)

const validRoster = `
identities:
  - role: admin
    email: admin@groundtruth.test
    password: admin-secret
  - role: sales
    email: sales@groundtruth.test
    password: sales-secret
`

func TestParse(t *testing.T) {
	t.Run("valid roster", func(t *testing.T) {
		r, err := Parse([]byte(validRoster))
		require.NoError(t, err)
		assert.Equal(t, []string{"admin", "sales"}, r.Roles())

		id, err := r.Get("admin")
		require.NoError(t, err)
		assert.Equal(t, "admin@groundtruth.test", id.Email)
		assert.Equal(t, "admin-secret", id.Password)
	})

	t.Run("unknown role", func(t *testing.T) {
		r, err := Parse([]byte(validRoster))
		require.NoError(t, err)

		_, err = r.Get("warehouse")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("password from environment wins", func(t *testing.T) {
		t.Setenv("GT_TEST_ADMIN_PW", "from-env")
		r, err := Parse([]byte(`
identities:
  - role: admin
    email: admin@groundtruth.test
    password: inline
    password_env: GT_TEST_ADMIN_PW
`))
		require.NoError(t, err)
		id, err := r.Get("admin")
		require.NoError(t, err)
		assert.Equal(t, "from-env", id.Password)
	})

	invalid := []struct {
		name string
		yaml string
		want string
	}{
		{"empty file", ``, "no identities"},
		{"missing role", "identities:\n  - email: x@y.test\n    password: p\n", "missing role"},
		{"missing email", "identities:\n  - role: admin\n    password: p\n", "missing email"},
		{"missing password", "identities:\n  - role: admin\n    email: x@y.test\n", "no password"},
		{"duplicate role", validRoster + "  - role: admin\n    email: dup@y.test\n    password: p\n", "duplicate role"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
