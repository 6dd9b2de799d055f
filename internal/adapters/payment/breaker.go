package payment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/l2p-cooperative/deposit-gateway/internal/config"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/ports"
	"github.com/l2p-cooperative/deposit-gateway/internal/metrics"
	"github.com/sony/gobreaker/v2"
)

type StatusBreaker = gobreaker.CircuitBreaker[*domain.PaymentStatusResponse]

// NewStatusBreaker builds the breaker shared by every dialog's status
// queries. One breaker per process: the payment API is one dependency no
// matter whose token is used.
func NewStatusBreaker(cfg config.BreakerConfig, logger *slog.Logger) *StatusBreaker {
	st := gobreaker.Settings{
		Name:        "payment-status",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: isSuccessfulForBreaker,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name, from.String()).Set(0)
			metrics.BreakerState.WithLabelValues(name, to.String()).Set(1)
			logger.Warn("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())
		},
	}
	metrics.BreakerState.WithLabelValues(st.Name, gobreaker.StateClosed.String()).Set(1)
	return gobreaker.NewCircuitBreaker[*domain.PaymentStatusResponse](st)
}

// Client errors mean the API answered; they do not count against it.
func isSuccessfulForBreaker(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	if apiErr, ok := IsAPIError(err); ok {
		return apiErr.StatusCode < http.StatusInternalServerError && apiErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// BreakerPaymentClient guards status queries with a circuit breaker.
// Initiation bypasses it and fails on its own.
type BreakerPaymentClient struct {
	inner ports.PaymentPort
	cb    *StatusBreaker
}

func NewBreakerPaymentClient(inner ports.PaymentPort, cb *StatusBreaker) *BreakerPaymentClient {
	return &BreakerPaymentClient{inner: inner, cb: cb}
}

func (b *BreakerPaymentClient) InitiateDeposit(ctx context.Context, req domain.PaymentInitiateRequest, idempotencyKey string) (*domain.PaymentInitiateResponse, error) {
	return b.inner.InitiateDeposit(ctx, req, idempotencyKey)
}

func (b *BreakerPaymentClient) GetDepositStatus(ctx context.Context, transactionID string) (*domain.PaymentStatusResponse, error) {
	return b.cb.Execute(func() (*domain.PaymentStatusResponse, error) {
		return b.inner.GetDepositStatus(ctx, transactionID)
	})
}

// NewFactory composes the client stack for one set of credentials:
// retries wrap the breaker, which wraps the HTTP client.
func NewFactory(cfg config.PaymentConfig, retryCfg config.RetryConfig, cb *StatusBreaker) ports.PaymentPortFactory {
	return func(tokens ports.TokenSource) ports.PaymentPort {
		httpClient := NewPaymentClient(cfg, tokens)
		return NewRetryPaymentClient(NewBreakerPaymentClient(httpClient, cb), retryCfg)
	}
}
