package engine

import (
	"errors"
	"fmt"
)

// ErrBusy is returned by Send, Regenerate and EditLastUserMessage when a
// generation session is already active. Dispatch never queues: queuing would
// violate the one-active-session invariant.
var ErrBusy = errors.New("a generation session is already active")

// ErrNothingToRegenerate is returned by Regenerate when the history holds no
// assistant message to replace.
var ErrNothingToRegenerate = errors.New("no assistant message to regenerate")

// ErrNothingToEdit is returned by EditLastUserMessage when the history holds
// no user message.
var ErrNothingToEdit = errors.New("no user message to edit")

// AttachmentResolutionError reports an attachment id that could not be
// resolved. It never aborts a turn: the engine skips the attachment and
// proceeds with whatever resolved.
type AttachmentResolutionError struct {
	ID  string
	Err error
}

func (e *AttachmentResolutionError) Error() string {
	return fmt.Sprintf("attachment %s could not be resolved: %v", e.ID, e.Err)
}

func (e *AttachmentResolutionError) Unwrap() error {
	return e.Err
}

// ToolResolutionError reports a tool catalog lookup failure. Also non-fatal:
// the turn proceeds without tools and the failure is folded into the system
// notice.
type ToolResolutionError struct {
	Err error
}

func (e *ToolResolutionError) Error() string {
	return fmt.Sprintf("tool catalog lookup failed: %v", e.Err)
}

func (e *ToolResolutionError) Unwrap() error {
	return e.Err
}

// TransportError wraps a backend failure reported on dispatch or mid-stream.
// The session always terminates (back to idle) and the failure is surfaced as
// a system message in the history; it is never silently swallowed.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
