package migrate

type State int32

const (
	StateIdle State = iota
	StateConnected
	StateTablesDiscovered
	StateProcessing
	StateFinalizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateTablesDiscovered:
		return "tablesDiscovered"
	case StateProcessing:
		return "processing"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
