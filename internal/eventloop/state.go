package eventloop

// State is where a call is in its lifecycle.
type State int

const (
	Invoking State = iota
	AwaitingSettlement
	Settled
	Failed
	TimedOut
)

func (s State) String() string {
	switch s {
	case Invoking:
		return "invoking"
	case AwaitingSettlement:
		return "awaiting-settlement"
	case Settled:
		return "settled"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Settled || s == Failed || s == TimedOut
}
