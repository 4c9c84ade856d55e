package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_NeedsConversion(t *testing.T) {
	p := NewPolicy([]string{"varchar", "text"})

	tests := []struct {
		declared string
		want     bool
	}{
		{"VARCHAR(255)", true},
		{"varchar(100)", true},
		{"text", true},
		{"  Text ", true},
		{"int(11)", false},
		{"decimal(10,2)", false},
		{"", false},
		{"   ", false},
		{"mediumtext", false}, // not a configured prefix
		{"char(3)", false},
		{"json", false},
		{"(((", false},
	}
	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.want, p.NeedsConversion(tt.declared))
		})
	}
}

func TestPolicy_DefaultTextTypes(t *testing.T) {
	p := NewPolicy(DefaultTextTypes)

	for _, declared := range []string{"longtext", "tinytext", "mediumtext", "char(36)", "varchar(255)", "json", "text"} {
		assert.True(t, p.NeedsConversion(declared), declared)
	}
	for _, declared := range []string{"int", "bigint(20) unsigned", "datetime", "blob", "enum('a','b')", "set('x')"} {
		assert.False(t, p.NeedsConversion(declared), declared)
	}
}

func TestNewPolicy_NormalizesPrefixes(t *testing.T) {
	p := NewPolicy([]string{" VarChar ", "", "  ", "TEXT"})
	require.Equal(t, []string{"varchar", "text"}, p.Prefixes())

	assert.False(t, NewPolicy(nil).NeedsConversion("varchar(10)"))
}
