package ports

import (
	"context"

	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
)

// DepositNotifier tells downstream collaborators (account balance refresh,
// history views) that a deposit reached a remote terminal status.
type DepositNotifier interface {
	DepositSettled(ctx context.Context, ticket *domain.DepositTicket, outcome domain.Outcome) error
}
