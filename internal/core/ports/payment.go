package ports

import (
	"context"

	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
)

// PaymentPort defines the behavior of the external mobile money payment API.
type PaymentPort interface {
	InitiateDeposit(ctx context.Context, req domain.PaymentInitiateRequest, idempotencyKey string) (*domain.PaymentInitiateResponse, error)
	GetDepositStatus(ctx context.Context, transactionID string) (*domain.PaymentStatusResponse, error)
}

// TokenSource supplies the bearer token sent with every payment API call.
// Session management lives outside this service; the token is opaque.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// PaymentPortFactory builds a PaymentPort bound to one caller's credentials.
type PaymentPortFactory func(tokens TokenSource) PaymentPort
