package domain

import "slices"

// DialogState is the UI-facing state of a deposit dialog.
type DialogState string

const (
	DialogIdle       DialogState = "IDLE"
	DialogSubmitting DialogState = "SUBMITTING"
	DialogWaiting    DialogState = "WAITING"
	DialogSuccess    DialogState = "SUCCESS"
	DialogFailed     DialogState = "FAILED"
	DialogTimedOut   DialogState = "TIMED_OUT"
	DialogCancelled  DialogState = "CANCELLED"
)

// CanTransitionTo validates a dialog transition.
//
// Valid transitions are:
//   - Idle → Submitting
//   - Submitting → Waiting, Idle, Cancelled
//   - Waiting → Success, Failed, TimedOut, Cancelled
//   - Success, Failed, TimedOut, Cancelled → Idle (reset)
func (s DialogState) CanTransitionTo(target DialogState) error {
	var allowed []DialogState
	switch s {
	case DialogIdle:
		allowed = []DialogState{DialogSubmitting}
	case DialogSubmitting:
		allowed = []DialogState{DialogWaiting, DialogIdle, DialogCancelled}
	case DialogWaiting:
		allowed = []DialogState{DialogSuccess, DialogFailed, DialogTimedOut, DialogCancelled}
	case DialogSuccess, DialogFailed, DialogTimedOut, DialogCancelled:
		allowed = []DialogState{DialogIdle}
	}
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(s, target)
}

// IsTerminal reports whether the dialog finished a deposit attempt.
func (s DialogState) IsTerminal() bool {
	switch s {
	case DialogSuccess, DialogFailed, DialogTimedOut, DialogCancelled:
		return true
	default:
		return false
	}
}

// IsBusy reports whether a deposit is in flight.
func (s DialogState) IsBusy() bool {
	return s == DialogSubmitting || s == DialogWaiting
}

// DialogStateFor maps a polling outcome onto the dialog state it produces.
func DialogStateFor(o Outcome) DialogState {
	switch o {
	case OutcomeSuccess:
		return DialogSuccess
	case OutcomeFailed:
		return DialogFailed
	case OutcomeTimedOut:
		return DialogTimedOut
	default:
		return DialogCancelled
	}
}

// Message is the text shown to the member for a state. TIMED_OUT must not read
// like a failure: the payment may still complete.
func (s DialogState) Message() string {
	switch s {
	case DialogSubmitting:
		return "Sending your deposit request..."
	case DialogWaiting:
		return "Approve the payment on your phone. Waiting for confirmation..."
	case DialogSuccess:
		return "Deposit confirmed. Your balance has been updated."
	case DialogFailed:
		return "The payment was declined or failed. No money was taken."
	case DialogTimedOut:
		return "We could not confirm the payment in time. It may still complete; check your transaction history before trying again."
	case DialogCancelled:
		return "Deposit dialog closed."
	default:
		return ""
	}
}
