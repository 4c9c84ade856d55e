package analyzer

import "github.com/nethalo/dbcharset/internal/parser"

// Algorithm represents how MySQL executes an ALTER.
type Algorithm string

const (
	AlgoInstant Algorithm = "INSTANT"
	AlgoInplace Algorithm = "INPLACE"
	AlgoCopy    Algorithm = "COPY"
)

// LockLevel represents what lock MySQL requires during the operation.
type LockLevel string

const (
	LockNone      LockLevel = "NONE"
	LockShared    LockLevel = "SHARED"
	LockExclusive LockLevel = "EXCLUSIVE"
)

// DDLClassification holds the analysis result for a DDL operation.
type DDLClassification struct {
	Algorithm     Algorithm
	Lock          LockLevel
	RebuildsTable bool
	Notes         string
}

// VersionRange represents a MySQL version range for the matrix.
type VersionRange int

const (
	V5_7     VersionRange = iota // 5.7 and older
	V8_0                         // 8.0.x
	V8_4_LTS                     // 8.4 and later
)

func (r VersionRange) String() string {
	switch r {
	case V5_7:
		return "5.7"
	case V8_0:
		return "8.0"
	default:
		return "8.4+"
	}
}

// classifyVersion maps a parsed version to a matrix range.
func classifyVersion(major, minor int) VersionRange {
	switch {
	case major < 8:
		return V5_7
	case major == 8 && minor == 0:
		return V8_0
	case major == 8 || major == 9:
		return V8_4_LTS
	}
	// MariaDB reports 10.x/11.x; its online DDL behaves like 5.7 for these ops
	return V5_7
}

type matrixKey struct {
	Op      parser.DDLOperation
	Version VersionRange
}

var ddlMatrix = map[matrixKey]DDLClassification{

	// ═══════════════════════════════════════════════════
	// ROW_FORMAT=...
	// ═══════════════════════════════════════════════════
	{parser.ChangeRowFormat, V5_7}: {
		Algorithm: AlgoInplace, Lock: LockNone, RebuildsTable: true,
		Notes: "INPLACE with full table rebuild. Concurrent DML allowed.",
	},
	{parser.ChangeRowFormat, V8_0}: {
		Algorithm: AlgoInplace, Lock: LockNone, RebuildsTable: true,
		Notes: "INPLACE with full table rebuild. Concurrent DML allowed.",
	},
	{parser.ChangeRowFormat, V8_4_LTS}: {
		Algorithm: AlgoInplace, Lock: LockNone, RebuildsTable: true,
		Notes: "INPLACE with full table rebuild. Concurrent DML allowed.",
	},

	// ═══════════════════════════════════════════════════
	// CONVERT TO CHARACTER SET (rewrites every string column)
	// ═══════════════════════════════════════════════════
	{parser.ConvertCharset, V5_7}: {
		Algorithm: AlgoCopy, Lock: LockShared, RebuildsTable: true,
		Notes: "COPY with SHARED lock. Reads allowed, writes blocked during rebuild.",
	},
	{parser.ConvertCharset, V8_0}: {
		Algorithm: AlgoCopy, Lock: LockShared, RebuildsTable: true,
		Notes: "COPY when indexed string columns exist, INPLACE otherwise. SHARED lock either way: writes blocked during rebuild.",
	},
	{parser.ConvertCharset, V8_4_LTS}: {
		Algorithm: AlgoCopy, Lock: LockShared, RebuildsTable: true,
		Notes: "COPY when indexed string columns exist, INPLACE otherwise. SHARED lock either way: writes blocked during rebuild.",
	},

	// ═══════════════════════════════════════════════════
	// CHARACTER SET = ... (table default only)
	// ═══════════════════════════════════════════════════
	{parser.ChangeCharset, V5_7}: {
		Algorithm: AlgoInplace, Lock: LockNone, RebuildsTable: false,
		Notes: "Changes the default for new columns only. Existing columns keep their charset.",
	},
	{parser.ChangeCharset, V8_0}: {
		Algorithm: AlgoInplace, Lock: LockNone, RebuildsTable: false,
		Notes: "Changes the default for new columns only. Existing columns keep their charset.",
	},
	{parser.ChangeCharset, V8_4_LTS}: {
		Algorithm: AlgoInplace, Lock: LockNone, RebuildsTable: false,
		Notes: "Changes the default for new columns only. Existing columns keep their charset.",
	},

	// ═══════════════════════════════════════════════════
	// CHANGE / MODIFY column with a new charset
	// ═══════════════════════════════════════════════════
	{parser.ChangeColumn, V5_7}: {
		Algorithm: AlgoCopy, Lock: LockShared, RebuildsTable: true,
		Notes: "Column charset change requires COPY. Reads allowed, writes blocked during rebuild.",
	},
	{parser.ChangeColumn, V8_0}: {
		Algorithm: AlgoCopy, Lock: LockShared, RebuildsTable: true,
		Notes: "Column charset change requires COPY unless the column already uses the target charset (then a no-op).",
	},
	{parser.ChangeColumn, V8_4_LTS}: {
		Algorithm: AlgoCopy, Lock: LockShared, RebuildsTable: true,
		Notes: "Column charset change requires COPY unless the column already uses the target charset (then a no-op).",
	},
	{parser.ModifyColumn, V5_7}: {
		Algorithm: AlgoCopy, Lock: LockShared, RebuildsTable: true,
		Notes: "Column charset change requires COPY. Reads allowed, writes blocked during rebuild.",
	},
	{parser.ModifyColumn, V8_0}: {
		Algorithm: AlgoCopy, Lock: LockShared, RebuildsTable: true,
		Notes: "Column charset change requires COPY unless the column already uses the target charset (then a no-op).",
	},
	{parser.ModifyColumn, V8_4_LTS}: {
		Algorithm: AlgoCopy, Lock: LockShared, RebuildsTable: true,
		Notes: "Column charset change requires COPY unless the column already uses the target charset (then a no-op).",
	},
}

// ClassifyDDL looks up the DDL operation in the matrix.
func ClassifyDDL(op parser.DDLOperation, major, minor int) DDLClassification {
	key := matrixKey{Op: op, Version: classifyVersion(major, minor)}
	if c, ok := ddlMatrix[key]; ok {
		return c
	}

	// Default: assume COPY with SHARED lock (safest assumption)
	return DDLClassification{
		Algorithm:     AlgoCopy,
		Lock:          LockShared,
		RebuildsTable: true,
		Notes:         "Operation not in classification matrix. Assuming worst case (COPY + SHARED lock).",
	}
}
