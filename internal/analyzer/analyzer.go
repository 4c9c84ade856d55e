package analyzer

import (
	"fmt"

	"github.com/nethalo/dbcharset/internal/mysql"
	"github.com/nethalo/dbcharset/internal/parser"
	"github.com/nethalo/dbcharset/internal/topology"
)

// RiskLevel classifies the overall risk of an operation.
type RiskLevel string

const (
	RiskSafe      RiskLevel = "SAFE"
	RiskCaution   RiskLevel = "CAUTION"
	RiskDangerous RiskLevel = "DANGEROUS"
)

// Result is the classification of one generated ALTER TABLE.
type Result struct {
	DDLOp          parser.DDLOperation
	Classification DDLClassification
	Risk           RiskLevel
	Warnings       []string
}

// Analyze classifies a parsed statement for the given server. topo may be nil.
func Analyze(parsed *parser.ParsedAlter, v mysql.ServerVersion, topo *topology.Info) *Result {
	result := &Result{DDLOp: parsed.DDLOp}
	result.Classification = ClassifyDDL(parsed.DDLOp, v.Major, v.Minor)
	result.Risk = riskFor(result.Classification)

	if parsed.DDLOp == parser.OtherDDL || parsed.DDLOp == parser.MultipleOps {
		result.Warnings = append(result.Warnings,
			"Statement is not a single charset or row format change. Classification assumes the worst case.")
	}

	if topo != nil {
		applyTopologyWarnings(topo, result)
	}
	return result
}

func riskFor(c DDLClassification) RiskLevel {
	switch {
	case c.Lock == LockExclusive:
		return RiskDangerous
	case c.Algorithm == AlgoCopy || c.Lock == LockShared:
		return RiskCaution
	default:
		return RiskSafe
	}
}

func applyTopologyWarnings(topo *topology.Info, result *Result) {
	if !result.Classification.RebuildsTable {
		return
	}
	switch topo.Type {
	case topology.Galera:
		if topo.GaleraOSUMethod == "TOI" {
			// TOI blocks the whole cluster for the duration of a rebuild
			result.Risk = RiskDangerous
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"TOI executes this rebuild on all %d nodes at once. Consider RSU for large tables.",
				topo.GaleraClusterSize,
			))
		}
	case topology.GroupRepl:
		if topo.GRMode == "MULTI-PRIMARY" {
			result.Warnings = append(result.Warnings,
				"Multi-primary Group Replication: concurrent writes on other members may conflict with the rebuild.")
		}
	case topology.AsyncReplica, topology.SemiSyncReplica:
		if topo.IsPrimary {
			result.Warnings = append(result.Warnings,
				"Replicas apply this rebuild single-threaded. Expect replication lag proportional to table size.")
		}
	}
}
