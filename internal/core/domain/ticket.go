package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositTicket correlates a local deposit attempt with the transaction id the
// payment API handed back. TransactionID is the only key the poller uses.
type DepositTicket struct {
	TransactionID  string
	IdempotencyKey string
	AccountID      string
	Amount         decimal.Decimal
	PhoneNumber    string
	Method         PaymentMethod
	CreatedAt      time.Time
}

// NewDepositTicket builds a ticket for a successfully initiated request.
func NewDepositTicket(transactionID, idempotencyKey string, req DepositRequest, createdAt time.Time) (*DepositTicket, error) {
	if transactionID == "" {
		return nil, NewMissingRequiredFieldError("transactionId")
	}
	return &DepositTicket{
		TransactionID:  transactionID,
		IdempotencyKey: idempotencyKey,
		AccountID:      req.AccountID,
		Amount:         req.Amount,
		PhoneNumber:    req.PhoneNumber,
		Method:         req.Method,
		CreatedAt:      createdAt,
	}, nil
}

// Deadline is the instant after which polling gives up on this ticket.
func (t *DepositTicket) Deadline(timeout time.Duration) time.Time {
	return t.CreatedAt.Add(timeout)
}
