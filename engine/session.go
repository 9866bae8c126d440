package engine

// Status is the lifecycle state of the one outstanding generation session.
// Completion, stop-confirmation and errors all re-enter Idle immediately
// after their side effects commit, so no terminal state is ever observable.
type Status int

const (
	// StatusIdle: no session in flight; dispatch is allowed.
	StatusIdle Status = iota
	// StatusStarting: the request has been sent; awaiting the backend's
	// stream id confirmation.
	StatusStarting
	// StatusStreaming: chunks are being accumulated for the live stream id.
	StatusStreaming
	// StatusStopping: cancellation requested; the backend has not yet
	// confirmed it stopped.
	StatusStopping
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStarting:
		return "starting"
	case StatusStreaming:
		return "streaming"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}
