package migrate

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// DefaultTextTypes are the declared-type prefixes converted when none are configured.
var DefaultTextTypes = []string{"longtext", "text", "tinytext", "char", "varchar", "json", "mediumtext"}

var rowFormats = []string{"DEFAULT", "DYNAMIC", "FIXED", "COMPRESSED", "REDUNDANT", "COMPACT"}

// charset and collation names are spliced into DDL unquoted
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Config is the immutable configuration of one run.
type Config struct {
	Charset    string
	Collation  string
	RowFormat  string
	TextTypes  []string
	ViewPrefix string
	DryRun     bool

	// DisableForeignKeyChecks wraps a live run in SET FOREIGN_KEY_CHECKS = 0/1.
	DisableForeignKeyChecks bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Charset:    "utf8mb4",
		Collation:  "utf8mb4_general_ci",
		RowFormat:  "Dynamic",
		TextTypes:  slices.Clone(DefaultTextTypes),
		ViewPrefix: "v_",
	}
}

// Validate checks that the configuration can produce valid DDL.
func (c Config) Validate() error {
	if !namePattern.MatchString(c.Charset) {
		return fmt.Errorf("%w: charset %q", ErrInvalidConfig, c.Charset)
	}
	if !namePattern.MatchString(c.Collation) {
		return fmt.Errorf("%w: collation %q", ErrInvalidConfig, c.Collation)
	}
	if !slices.Contains(rowFormats, strings.ToUpper(c.RowFormat)) {
		return fmt.Errorf("%w: row format %q (valid: %s)", ErrInvalidConfig, c.RowFormat, strings.Join(rowFormats, ", "))
	}
	if len(NewPolicy(c.TextTypes).Prefixes()) == 0 {
		return fmt.Errorf("%w: no text types configured", ErrInvalidConfig)
	}
	return nil
}

// ParseTextTypes splits a comma separated prefix list as accepted by
// FIELD_TYPES_TO_UPDATE.
func ParseTextTypes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
