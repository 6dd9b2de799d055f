package events

import (
	"strings"
	"time"

	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/shopspring/decimal"
)

// SettlementEvent is published once a deposit reaches SUCCESS or FAILED.
// Balance and history views refresh on it.
type SettlementEvent struct {
	TransactionID string               `json:"transactionId"`
	AccountID     string               `json:"accountId"`
	Amount        decimal.Decimal      `json:"amount"`
	Method        domain.PaymentMethod `json:"method"`
	Outcome       domain.Outcome       `json:"outcome"`
	SettledAt     time.Time            `json:"settledAt"`
}

func NewSettlementEvent(ticket *domain.DepositTicket, outcome domain.Outcome, at time.Time) SettlementEvent {
	return SettlementEvent{
		TransactionID: ticket.TransactionID,
		AccountID:     ticket.AccountID,
		Amount:        ticket.Amount,
		Method:        ticket.Method,
		Outcome:       outcome,
		SettledAt:     at.UTC(),
	}
}

// Subject is "<prefix>.success" or "<prefix>.failed".
func Subject(prefix string, outcome domain.Outcome) string {
	return strings.TrimSuffix(prefix, ".") + "." + strings.ToLower(string(outcome))
}
