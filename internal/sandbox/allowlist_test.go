package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowed(t *testing.T) {
	cases := []struct {
		cmd  string
		want bool
	}{
		{"grep", true},
		{"jq", true},
		{"bc", true},
		{"bash", false},
		{"sh", false},
		{"rm", false},
		{"", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Allowed(c.cmd), "command %q", c.cmd)
	}
}

func TestAllowlistHasNoDuplicates(t *testing.T) {
	seen := map[string]bool{}
	for _, cmd := range Allowlist {
		assert.False(t, seen[cmd], "duplicate entry %q", cmd)
		seen[cmd] = true
	}
}
