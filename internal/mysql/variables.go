package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RowQuerier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type RowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	versionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)
	auroraRe  = regexp.MustCompile(`^(\d+)\.(\d+)\.mysql_aurora\.(\d+\.\d+\.\d+)`)
)

// ServerVersion represents a parsed MySQL version.
type ServerVersion struct {
	Raw           string // e.g. "8.0.35-27-Percona XtraDB Cluster"
	Major         int
	Minor         int
	Patch         int    // 0 for Aurora
	Flavor        string // "mysql", "percona", "percona-xtradb-cluster", "mariadb", "aurora-mysql"
	AuroraVersion string
}

// String returns a human-readable version string.
func (v ServerVersion) String() string {
	if v.AuroraVersion != "" {
		return fmt.Sprintf("%d.%d (aurora-mysql %s)", v.Major, v.Minor, v.AuroraVersion)
	}
	if v.Major == 0 && v.Raw == "" {
		return "unknown"
	}
	return fmt.Sprintf("%d.%d.%d (%s)", v.Major, v.Minor, v.Patch, v.Flavor)
}

// IsZero reports whether the version was never detected.
func (v ServerVersion) IsZero() bool {
	return v.Major == 0 && v.Minor == 0 && v.Patch == 0 && v.Raw == ""
}

// AtLeast returns true if the server version is >= the given version.
func (v ServerVersion) AtLeast(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

// SupportsUTF8MB4 reports whether the server knows the utf8mb4 character set (5.5.3+).
func (v ServerVersion) SupportsUTF8MB4() bool {
	return v.AtLeast(5, 5, 3)
}

// GetServerVersion queries and parses the MySQL server version.
func GetServerVersion(ctx context.Context, q RowQuerier) (ServerVersion, error) {
	var raw string
	if err := q.QueryRowContext(ctx, "SELECT VERSION()").Scan(&raw); err != nil {
		return ServerVersion{}, fmt.Errorf("querying version: %w", err)
	}
	return ParseVersion(raw)
}

// ParseVersion parses a MySQL version string.
func ParseVersion(raw string) (ServerVersion, error) {
	v := ServerVersion{Raw: raw}

	// Aurora versions have no numeric patch, e.g. "8.0.mysql_aurora.3.04.0"
	if m := auroraRe.FindStringSubmatch(raw); len(m) >= 4 {
		v.Major, _ = strconv.Atoi(m[1])
		v.Minor, _ = strconv.Atoi(m[2])
		v.Flavor = "aurora-mysql"
		v.AuroraVersion = m[3]
		return v, nil
	}

	matches := versionRe.FindStringSubmatch(raw)
	if len(matches) < 4 {
		return v, fmt.Errorf("could not parse version: %s", raw)
	}
	v.Major, _ = strconv.Atoi(matches[1])
	v.Minor, _ = strconv.Atoi(matches[2])
	v.Patch, _ = strconv.Atoi(matches[3])

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "percona xtradb cluster"):
		v.Flavor = "percona-xtradb-cluster"
	case strings.Contains(lower, "percona"):
		v.Flavor = "percona"
	case strings.Contains(lower, "mariadb"):
		v.Flavor = "mariadb"
	default:
		v.Flavor = "mysql"
	}
	return v, nil
}

// escapeLike escapes the LIKE wildcards in a variable name.
func escapeLike(name string) string {
	escaped := strings.ReplaceAll(name, "_", "\\_")
	return strings.ReplaceAll(escaped, "%", "\\%")
}

// GetVariable reads a single server variable. A missing variable yields "".
// Some variables (wsrep_*) only show up without GLOBAL.
func GetVariable(ctx context.Context, q RowQuerier, name string) (string, error) {
	var varName, value sql.NullString

	// SHOW does not take placeholders in every driver mode
	query := fmt.Sprintf("SHOW GLOBAL VARIABLES LIKE '%s'", escapeLike(name))
	err := q.QueryRowContext(ctx, query).Scan(&varName, &value)
	if err == nil && value.Valid && value.String != "" {
		return value.String, nil
	}

	query = fmt.Sprintf("SHOW VARIABLES LIKE '%s'", escapeLike(name))
	err = q.QueryRowContext(ctx, query).Scan(&varName, &value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query failed: %w", err)
	}
	if !value.Valid {
		return "", nil
	}
	return value.String, nil
}

// GetStatus reads a single global status variable.
func GetStatus(ctx context.Context, q RowQuerier, name string) (string, error) {
	var varName, value string
	query := fmt.Sprintf("SHOW GLOBAL STATUS LIKE '%s'", escapeLike(name))
	err := q.QueryRowContext(ctx, query).Scan(&varName, &value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// GetVariableInt reads a server variable and returns it as int64.
func GetVariableInt(ctx context.Context, q RowQuerier, name string) (int64, error) {
	val, err := GetVariable(ctx, q, name)
	if err != nil || val == "" {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// CollationCharset returns the character set a collation belongs to. ok is
// false when the server does not know the collation.
func CollationCharset(ctx context.Context, q RowQuerier, collation string) (charset string, ok bool, err error) {
	err = q.QueryRowContext(ctx, `
		SELECT CHARACTER_SET_NAME
		FROM information_schema.COLLATIONS
		WHERE COLLATION_NAME = ?
	`, collation).Scan(&charset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("querying collation %s: %w", collation, err)
	}
	return charset, true, nil
}
