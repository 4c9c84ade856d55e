package topology

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/nethalo/dbcharset/internal/mysql"
)

// Type represents the detected MySQL topology.
type Type string

const (
	Standalone      Type = "standalone"
	AsyncReplica    Type = "async-replica"
	SemiSyncReplica Type = "semisync-replica"
	Galera          Type = "galera"
	GroupRepl       Type = "group-replication"
)

// Querier is the subset of *sql.DB the detector needs.
type Querier interface {
	mysql.RowQuerier
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Info holds the server state relevant to a charset migration.
type Info struct {
	Type    Type
	Version mysql.ServerVersion

	// Replication (async/semisync)
	IsReplica      bool
	IsPrimary      bool // has replicas attached
	ReplicaLagSecs *int64

	// Galera / PXC
	GaleraClusterSize int
	GaleraNodeState   string // Synced, Donor, Desynced, etc.
	GaleraOSUMethod   string // TOI or RSU

	// Group Replication
	GRMode        string // SINGLE-PRIMARY or MULTI-PRIMARY
	GRMemberCount int

	// General
	ReadOnly      bool
	SuperReadOnly bool

	// Server defaults
	CharsetServer   string
	CollationServer string
}

// Detect queries the server and determines its topology.
func Detect(ctx context.Context, db Querier) (*Info, error) {
	info := &Info{}

	version, err := mysql.GetServerVersion(ctx, db)
	if err != nil {
		return nil, err
	}
	info.Version = version

	ro, _ := mysql.GetVariable(ctx, db, "read_only")
	info.ReadOnly = ro == "ON" || ro == "1"
	sro, _ := mysql.GetVariable(ctx, db, "super_read_only")
	info.SuperReadOnly = sro == "ON" || sro == "1"

	info.CharsetServer, _ = mysql.GetVariable(ctx, db, "character_set_server")
	info.CollationServer, _ = mysql.GetVariable(ctx, db, "collation_server")

	// Galera first (most specific)
	if detected, err := detectGalera(ctx, db, info); err == nil && detected {
		return info, nil
	}

	if detected, err := detectGroupReplication(ctx, db, info); err == nil && detected {
		return info, nil
	}

	if detected, err := detectReplication(ctx, db, info); err == nil && detected {
		return info, nil
	}

	info.Type = Standalone
	return info, nil
}

func detectGalera(ctx context.Context, db Querier, info *Info) (bool, error) {
	wsrepOn, err := mysql.GetVariable(ctx, db, "wsrep_on")
	if err != nil {
		return false, err
	}
	if wsrepOn != "ON" {
		return false, nil
	}

	clusterSize, err := mysql.GetStatus(ctx, db, "wsrep_cluster_size")
	if err != nil || clusterSize == "" {
		return false, nil
	}
	size, _ := strconv.Atoi(clusterSize)
	if size == 0 {
		return false, nil
	}

	info.Type = Galera
	info.GaleraClusterSize = size
	info.GaleraNodeState, _ = mysql.GetStatus(ctx, db, "wsrep_local_state_comment")
	info.GaleraOSUMethod, _ = mysql.GetVariable(ctx, db, "wsrep_OSU_method")
	return true, nil
}

func detectGroupReplication(ctx context.Context, db Querier, info *Info) (bool, error) {
	grName, err := mysql.GetVariable(ctx, db, "group_replication_group_name")
	if err != nil {
		return false, err
	}
	if grName == "" {
		return false, nil
	}

	info.Type = GroupRepl

	singlePrimary, _ := mysql.GetVariable(ctx, db, "group_replication_single_primary_mode")
	if singlePrimary == "ON" {
		info.GRMode = "SINGLE-PRIMARY"
	} else {
		info.GRMode = "MULTI-PRIMARY"
	}

	var count int
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM performance_schema.replication_group_members
		WHERE MEMBER_STATE = 'ONLINE'
	`).Scan(&count)
	if err == nil {
		info.GRMemberCount = count
	}

	return true, nil
}

func detectReplication(ctx context.Context, db Querier, info *Info) (bool, error) {
	detected := false

	rows, err := db.QueryContext(ctx, "SHOW REPLICA STATUS")
	if err != nil {
		// pre-8.0.22 syntax
		rows, err = db.QueryContext(ctx, "SHOW SLAVE STATUS")
	}
	if err == nil {
		defer rows.Close()
		if rows.Next() {
			info.IsReplica = true
			detected = true
			info.ReplicaLagSecs = scanReplicaLag(rows)
		}
	}

	var replCount int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM information_schema.PROCESSLIST WHERE COMMAND = 'Binlog Dump' OR COMMAND = 'Binlog Dump GTID'").Scan(&replCount)
	if err == nil && replCount > 0 {
		info.IsPrimary = true
		detected = true
	}

	if detected {
		semiSync, _ := mysql.GetVariable(ctx, db, "rpl_semi_sync_source_enabled")
		if semiSync == "" {
			semiSync, _ = mysql.GetVariable(ctx, db, "rpl_semi_sync_master_enabled")
		}
		if semiSync == "ON" {
			info.Type = SemiSyncReplica
		} else {
			info.Type = AsyncReplica
		}
	}

	return detected, nil
}

// scanReplicaLag reads Seconds_Behind_Source (or the older _Master) from the
// current row of a replica status result.
func scanReplicaLag(rows *sql.Rows) *int64 {
	cols, err := rows.Columns()
	if err != nil {
		return nil
	}
	values := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil
	}

	for i, col := range cols {
		switch col {
		case "Seconds_Behind_Source", "Seconds_Behind_Master":
			if values[i].Valid {
				lag, err := strconv.ParseInt(values[i].String, 10, 64)
				if err == nil {
					return &lag
				}
			}
		}
	}
	return nil
}
