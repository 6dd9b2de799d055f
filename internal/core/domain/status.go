package domain

import (
	"fmt"
	"strings"
)

// DepositStatus is the status reported by the payment processor. The client
// never owns it, it only observes it.
type DepositStatus string

const (
	StatusPending DepositStatus = "PENDING"
	StatusSuccess DepositStatus = "SUCCESS"
	StatusFailed  DepositStatus = "FAILED"
)

// IsTerminal reports whether no further polling is needed.
func (s DepositStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ParseDepositStatus maps a remote status string onto DepositStatus.
func ParseDepositStatus(raw string) (DepositStatus, error) {
	switch s := DepositStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusPending, StatusSuccess, StatusFailed:
		return s, nil
	}
	return "", fmt.Errorf("unknown deposit status %q", raw)
}

// Outcome is how a polling session ended.
type Outcome string

const (
	OutcomeSuccess   Outcome = "SUCCESS"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeTimedOut  Outcome = "TIMED_OUT"
	OutcomeCancelled Outcome = "CANCELLED"
)

// OutcomeFromStatus converts a terminal remote status into an outcome.
func OutcomeFromStatus(s DepositStatus) (Outcome, bool) {
	switch s {
	case StatusSuccess:
		return OutcomeSuccess, true
	case StatusFailed:
		return OutcomeFailed, true
	}
	return "", false
}
