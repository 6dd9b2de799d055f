package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/ports"
	"github.com/l2p-cooperative/deposit-gateway/internal/metrics"
	"github.com/shopspring/decimal"
)

// Initiator submits deposit requests to the payment API. It makes exactly one
// outbound call per request; initiation is never retried.
type Initiator struct {
	payments  ports.PaymentPort
	store     ports.TicketStore
	minAmount decimal.Decimal
	now       func() time.Time
	logger    *slog.Logger
}

func NewInitiator(payments ports.PaymentPort, store ports.TicketStore, minAmount decimal.Decimal, logger *slog.Logger) *Initiator {
	if minAmount.IsZero() {
		minAmount = domain.DefaultMinDepositAmount
	}
	return &Initiator{
		payments:  payments,
		store:     store,
		minAmount: minAmount,
		now:       time.Now,
		logger:    logger,
	}
}

// Initiate validates req, sends it and returns a ticket with a non-empty
// transaction id, or a VALIDATION_ERROR / REQUEST_FAILED DomainError.
func (i *Initiator) Initiate(ctx context.Context, req domain.DepositRequest) (*domain.DepositTicket, error) {
	req = req.Normalize()
	if err := req.Validate(i.minAmount); err != nil {
		metrics.DepositsInitiated.WithLabelValues(string(req.Method), "validation").Inc()
		return nil, err
	}

	idempotencyKey := uuid.NewString()
	resp, err := i.payments.InitiateDeposit(ctx, domain.NewPaymentInitiateRequest(req), idempotencyKey)
	if err != nil {
		metrics.DepositsInitiated.WithLabelValues(string(req.Method), "request_failed").Inc()
		i.logger.Warn("deposit initiation failed",
			"account_id", req.AccountID,
			"method", req.Method,
			"error", err)
		return nil, domain.NewRequestFailedError(err)
	}
	if resp == nil || resp.TransactionID == "" {
		metrics.DepositsInitiated.WithLabelValues(string(req.Method), "request_failed").Inc()
		return nil, domain.NewRequestFailedError(errors.New("payment API returned no transaction id"))
	}

	ticket, err := domain.NewDepositTicket(resp.TransactionID, idempotencyKey, req, i.now())
	if err != nil {
		return nil, domain.NewRequestFailedError(err)
	}

	// The remote transaction exists at this point; losing the local record only
	// costs the ability to resume, so the deposit goes ahead.
	if err := i.store.Save(ctx, ticket); err != nil {
		i.logger.Error("failed to persist pending deposit",
			"transaction_id", ticket.TransactionID,
			"error", err)
	}

	metrics.DepositsInitiated.WithLabelValues(string(req.Method), "ok").Inc()
	i.logger.Info("deposit initiated",
		"transaction_id", ticket.TransactionID,
		"account_id", ticket.AccountID,
		"amount", ticket.Amount.String(),
		"method", ticket.Method)

	return ticket, nil
}
