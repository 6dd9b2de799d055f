package ports

import (
	"context"
	"time"

	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
)

// TicketStore is the durable list of deposits that were initiated but whose
// outcome has not been settled yet.
type TicketStore interface {
	Save(ctx context.Context, ticket *domain.DepositTicket) error
	FindByTransactionID(ctx context.Context, transactionID string) (*domain.DepositTicket, error)
	Delete(ctx context.Context, transactionID string) error
	// FindStale returns tickets created before the cutoff, oldest first.
	FindStale(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.DepositTicket, error)
}
