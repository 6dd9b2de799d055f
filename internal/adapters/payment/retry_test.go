package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/l2p-cooperative/deposit-gateway/internal/config"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPort returns the queued errors in order, then succeeds.
type scriptedPort struct {
	mu            sync.Mutex
	errs          []error
	initiateCalls int
	statusCalls   int
}

func (s *scriptedPort) next() error {
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *scriptedPort) InitiateDeposit(ctx context.Context, req domain.PaymentInitiateRequest, idempotencyKey string) (*domain.PaymentInitiateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initiateCalls++
	if err := s.next(); err != nil {
		return nil, err
	}
	return &domain.PaymentInitiateResponse{TransactionID: "TXN123"}, nil
}

func (s *scriptedPort) GetDepositStatus(ctx context.Context, transactionID string) (*domain.PaymentStatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	if err := s.next(); err != nil {
		return nil, err
	}
	return &domain.PaymentStatusResponse{TransactionID: transactionID, Status: "PENDING"}, nil
}

var fastRetry = config.RetryConfig{BaseDelay: time.Millisecond, MaxRetries: 3}

func TestRetryPaymentClient_StatusRetriesServerErrors(t *testing.T) {
	inner := &scriptedPort{errs: []error{
		&APIError{StatusCode: http.StatusServiceUnavailable, Message: "busy"},
		errors.New("connection reset by peer"),
	}}
	client := NewRetryPaymentClient(inner, fastRetry)

	resp, err := client.GetDepositStatus(context.Background(), "TXN123")

	require.NoError(t, err)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, 3, inner.statusCalls)
}

func TestRetryPaymentClient_StatusGivesUp(t *testing.T) {
	inner := &scriptedPort{errs: []error{
		&APIError{StatusCode: 500}, &APIError{StatusCode: 500}, &APIError{StatusCode: 500},
	}}
	client := NewRetryPaymentClient(inner, fastRetry)

	_, err := client.GetDepositStatus(context.Background(), "TXN123")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum retries exceeded")
	assert.Equal(t, 3, inner.statusCalls)
}

func TestRetryPaymentClient_StatusClientErrorNotRetried(t *testing.T) {
	inner := &scriptedPort{errs: []error{&APIError{StatusCode: http.StatusNotFound}}}
	client := NewRetryPaymentClient(inner, fastRetry)

	_, err := client.GetDepositStatus(context.Background(), "TXN404")

	require.Error(t, err)
	assert.Equal(t, 1, inner.statusCalls)
}

func TestRetryPaymentClient_InitiateNeverRetried(t *testing.T) {
	inner := &scriptedPort{errs: []error{&APIError{StatusCode: http.StatusBadGateway}}}
	client := NewRetryPaymentClient(inner, fastRetry)

	_, err := client.InitiateDeposit(context.Background(), domain.PaymentInitiateRequest{}, "idem-1")

	require.Error(t, err)
	assert.Equal(t, 1, inner.initiateCalls)
}

func TestRetryPaymentClient_StopsOnCancelledContext(t *testing.T) {
	inner := &scriptedPort{errs: []error{errors.New("timeout")}}
	client := NewRetryPaymentClient(inner, config.RetryConfig{BaseDelay: time.Hour, MaxRetries: 3})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.GetDepositStatus(ctx, "TXN123")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, inner.statusCalls)
}

func TestBreakerPaymentClient_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &scriptedPort{errs: []error{
		&APIError{StatusCode: 500}, &APIError{StatusCode: 500},
	}}
	cb := NewStatusBreaker(config.BreakerConfig{
		MaxRequests:         1,
		Timeout:             time.Minute,
		ConsecutiveFailures: 2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	client := NewBreakerPaymentClient(inner, cb)

	for i := 0; i < 2; i++ {
		_, err := client.GetDepositStatus(context.Background(), "TXN123")
		require.Error(t, err)
	}

	_, err := client.GetDepositStatus(context.Background(), "TXN123")

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.statusCalls, "open breaker short-circuits the call")
	assert.False(t, isRetryable(err))
}

func TestBreakerPaymentClient_ClientErrorsDoNotTrip(t *testing.T) {
	inner := &scriptedPort{errs: []error{
		&APIError{StatusCode: 404}, &APIError{StatusCode: 404}, &APIError{StatusCode: 404},
	}}
	cb := NewStatusBreaker(config.BreakerConfig{
		Timeout:             time.Minute,
		ConsecutiveFailures: 2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	client := NewBreakerPaymentClient(inner, cb)

	for i := 0; i < 3; i++ {
		_, _ = client.GetDepositStatus(context.Background(), "TXN123")
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, 3, inner.statusCalls)
}
