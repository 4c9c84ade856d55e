package migrate

import "strings"

// Policy decides which declared column types carry character data.
type Policy struct {
	prefixes []string
}

// NewPolicy builds a policy from type-name prefixes. Prefixes are
// lower-cased and blanks are dropped.
func NewPolicy(prefixes []string) Policy {
	p := Policy{}
	for _, prefix := range prefixes {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		if prefix != "" {
			p.prefixes = append(p.prefixes, prefix)
		}
	}
	return p
}

// Prefixes returns the normalized prefixes.
func (p Policy) Prefixes() []string {
	return append([]string(nil), p.prefixes...)
}

// NeedsConversion reports whether a column with the given declared type
// (as shown by SHOW COLUMNS, e.g. "varchar(255)") must be converted.
// Empty or unrecognised types are never converted.
func (p Policy) NeedsConversion(declaredType string) bool {
	t := strings.ToLower(strings.TrimSpace(declaredType))
	if t == "" {
		return false
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}
