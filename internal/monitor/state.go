package monitor

import (
	"vol-spread-monitor/internal/types"
)

// State is a step of a monitor run.
type State string

const (
	StateStart          State = "start"
	StateFetchingVIX    State = "fetching_vix"
	StateFetchingVStoxx State = "fetching_vstoxx"
	StateDeciding       State = "deciding"
	StateFormatting     State = "formatting"
	StateNotifying      State = "notifying"
	StateDone           State = "done"
	StateErrorNotifying State = "error_notifying"
	StateFailed         State = "failed"
	StateMisconfigured  State = "misconfigured"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitFailed        = 1
	ExitMisconfigured = 2
)

// Result describes one finished run.
type Result struct {
	State       State
	Transitions []State
	VIX         types.PriceQuote
	VStoxx      types.PriceQuote
	Verdict     types.Verdict
	Outcome     types.Outcome
	Message     string
	Receipt     types.DeliveryReceipt
	Err         error
}

// ExitCode maps the terminal state to the process exit status.
func (r Result) ExitCode() int {
	switch r.State {
	case StateDone:
		return ExitOK
	case StateMisconfigured:
		return ExitMisconfigured
	default:
		return ExitFailed
	}
}

func (r *Result) enter(s State) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}
