package engine

// Stage is a step of the decision cycle.
type Stage int32

const (
	StageIdle Stage = iota
	StageFetch
	StageUpdateHistory
	StageEvaluate
	StageGate
	StageEmit
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageFetch:
		return "fetch"
	case StageUpdateHistory:
		return "update_history"
	case StageEvaluate:
		return "evaluate"
	case StageGate:
		return "gate"
	case StageEmit:
		return "emit"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the stage name in JSON payloads.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
