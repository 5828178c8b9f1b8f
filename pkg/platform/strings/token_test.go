package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeToken(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain role", "admin", "admin"},
		{"uppercase lowered", "Admin", "admin"},
		{"email stays readable", "sales@groundtruth.test", "sales-groundtruth.test"},
		{"spaces collapse", "warehouse  operator", "warehouse-operator"},
		{"surrounding junk trimmed", "  /etc/passwd  ", "etc-passwd"},
		{"empty", "", ""},
		{"only junk", "///", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SafeToken(tc.input))
		})
	}
}
