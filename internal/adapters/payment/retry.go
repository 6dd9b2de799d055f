package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/l2p-cooperative/deposit-gateway/internal/config"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/ports"
	"github.com/sony/gobreaker/v2"
)

// RetryPaymentClient retries status queries. Initiation is passed through
// untouched: a repeated initiation could create a second remote transaction.
type RetryPaymentClient struct {
	inner      ports.PaymentPort
	baseDelay  time.Duration
	maxRetries int
}

func NewRetryPaymentClient(inner ports.PaymentPort, cfg config.RetryConfig) *RetryPaymentClient {
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryPaymentClient{
		inner:      inner,
		baseDelay:  cfg.BaseDelay,
		maxRetries: maxRetries,
	}
}

func (r *RetryPaymentClient) InitiateDeposit(ctx context.Context, req domain.PaymentInitiateRequest, idempotencyKey string) (*domain.PaymentInitiateResponse, error) {
	return r.inner.InitiateDeposit(ctx, req, idempotencyKey)
}

func (r *RetryPaymentClient) GetDepositStatus(ctx context.Context, transactionID string) (*domain.PaymentStatusResponse, error) {
	return retry(r, ctx, func(ctx context.Context) (*domain.PaymentStatusResponse, error) {
		return r.inner.GetDepositStatus(ctx, transactionID)
	})
}

func retry[T any](r *RetryPaymentClient, ctx context.Context, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.backoff(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	if apiErr, ok := IsAPIError(err); ok {
		return apiErr.IsRetryable()
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	return true
}

// backoff is exponential with up to 100ms of jitter.
func (r *RetryPaymentClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Intn(100)) * time.Millisecond
	return base + jitter
}
