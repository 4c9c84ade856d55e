package topology

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nethalo/dbcharset/internal/mysql"
)

var (
	ErrReadOnly          = errors.New("server is read-only")
	ErrUnknownCollation  = errors.New("unknown collation")
	ErrCollationMismatch = errors.New("collation does not belong to character set")
	ErrCharsetSupport    = errors.New("character set not supported by server")
)

// Target describes the conversion a run is about to perform.
type Target struct {
	Charset   string
	Collation string
	DryRun    bool
}

// PreflightResult is the outcome of Preflight: the detected topology plus
// non-fatal warnings.
type PreflightResult struct {
	Info     *Info
	Warnings []string
}

// Preflight detects the server topology and checks that the target
// charset/collation can be applied. A read-only server only fails live runs.
func Preflight(ctx context.Context, db Querier, target Target) (*PreflightResult, error) {
	info, err := Detect(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("detecting topology: %w", err)
	}
	result := &PreflightResult{Info: info}

	if strings.EqualFold(target.Charset, "utf8mb4") && !info.Version.SupportsUTF8MB4() {
		return result, fmt.Errorf("%w: utf8mb4 requires MySQL 5.5.3+, server is %s", ErrCharsetSupport, info.Version)
	}

	charset, ok, err := mysql.CollationCharset(ctx, db, target.Collation)
	if err != nil {
		return result, fmt.Errorf("looking up collation %q: %w", target.Collation, err)
	}
	if !ok {
		return result, fmt.Errorf("%w: %s", ErrUnknownCollation, target.Collation)
	}
	if !strings.EqualFold(charset, target.Charset) {
		return result, fmt.Errorf("%w: %s belongs to %s, not %s", ErrCollationMismatch, target.Collation, charset, target.Charset)
	}

	if info.ReadOnly || info.SuperReadOnly {
		if !target.DryRun {
			return result, fmt.Errorf("%w: read_only=%t super_read_only=%t", ErrReadOnly, info.ReadOnly, info.SuperReadOnly)
		}
		result.Warnings = append(result.Warnings, "Server is read-only. A live run would be refused.")
	}

	result.Warnings = append(result.Warnings, topologyWarnings(info)...)

	if info.CharsetServer != "" && !strings.EqualFold(info.CharsetServer, target.Charset) {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Server default character_set_server is %s. New tables will not default to %s.",
			info.CharsetServer, target.Charset,
		))
	}
	return result, nil
}

func topologyWarnings(info *Info) []string {
	var warnings []string
	switch info.Type {
	case Galera:
		if info.GaleraOSUMethod == "TOI" {
			warnings = append(warnings, fmt.Sprintf(
				"Galera TOI: every ALTER runs on all %d nodes simultaneously and blocks the cluster for its duration.",
				info.GaleraClusterSize,
			))
		}
		if info.GaleraNodeState != "" && info.GaleraNodeState != "Synced" {
			warnings = append(warnings, fmt.Sprintf("Galera node state is %s, not Synced.", info.GaleraNodeState))
		}
	case GroupRepl:
		if info.GRMode == "MULTI-PRIMARY" {
			warnings = append(warnings, "Group Replication is multi-primary. Ensure no conflicting DDL runs on other primaries.")
		}
	case AsyncReplica, SemiSyncReplica:
		if info.IsReplica {
			warnings = append(warnings, "Connected to a replica. Schema changes should be applied on the source.")
		}
		if info.ReplicaLagSecs != nil && *info.ReplicaLagSecs > 30 {
			warnings = append(warnings, fmt.Sprintf(
				"Replication lag detected: %d seconds. Table rebuilds will increase lag further.",
				*info.ReplicaLagSecs,
			))
		}
		if info.IsPrimary {
			warnings = append(warnings, "Server has replicas attached. Each table rebuild replicates as a single DDL event.")
		}
	}
	return warnings
}
