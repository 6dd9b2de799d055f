package events

import (
	"context"
	"log/slog"

	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
)

// LogNotifier stands in for NATS when no broker is configured.
type LogNotifier struct {
	prefix string
	logger *slog.Logger
}

func NewLogNotifier(prefix string, logger *slog.Logger) *LogNotifier {
	return &LogNotifier{prefix: prefix, logger: logger}
}

func (l *LogNotifier) DepositSettled(_ context.Context, ticket *domain.DepositTicket, outcome domain.Outcome) error {
	l.logger.Info("deposit settled",
		"subject", Subject(l.prefix, outcome),
		"transaction_id", ticket.TransactionID,
		"account_id", ticket.AccountID,
		"amount", ticket.Amount.String(),
		"outcome", outcome)
	return nil
}
