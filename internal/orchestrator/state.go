package orchestrator

// State is a job's position in the per-job state machine of spec.md §4.6.
type State string

const (
	StateInitializing State = "initializing"
	StateRunning       State = "running"
	StateDraining      State = "draining"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
	StateTimeout       State = "timeout"
	StateCancelled     State = "cancelled"
)

// Terminal reports whether a state is sticky (ignores further events).
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimeout, StateCancelled:
		return true
	default:
		return false
	}
}

// externalStatus maps an internal substate onto spec.md §3's external Job
// status enum (pending, running, completed, failed, timeout, cancelled).
// StateInitializing hasn't started crawling yet, so it reads as pending;
// StateDraining is still "running" from a caller's perspective, since
// finalization is an implementation detail of how a run ends, not a status
// a client should see. Neither value is ever written to the store under
// its internal name (see dbActiveStates).
func (s State) externalStatus() string {
	switch s {
	case StateInitializing:
		return "pending"
	case StateDraining:
		return "running"
	default:
		return string(s)
	}
}

// dbActiveStates lists the statuses a job's persisted row holds while
// non-terminal; used as the "expected" set for the store's CAS guard.
// StateInitializing and StateDraining are in-process-only substates (see
// externalStatus) and never appear in the store, so they are not listed
// here.
var dbActiveStates = []string{"pending", "running"}
