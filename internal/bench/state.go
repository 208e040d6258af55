package bench

// State is the phase of the measurement sequencer
type State int

const (
	Idle State = iota
	Configuring
	SweepingCode
	Reducing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Configuring:
		return "configuring"
	case SweepingCode:
		return "sweeping"
	case Reducing:
		return "reducing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
