package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPoller(port *MockPaymentPort, interval, timeout time.Duration) (*Poller, *manualTicker) {
	p := NewPoller(port, interval, timeout, testLogger())
	ticker := newManualTicker()
	p.newTicker = ticker.factory()
	return p, ticker
}

func testTicket(transactionID string) *domain.DepositTicket {
	return &domain.DepositTicket{
		TransactionID:  transactionID,
		IdempotencyKey: "idem-1",
		AccountID:      "acc-42",
		Amount:         decimal.NewFromInt(5000),
		PhoneNumber:    "+237670000000",
		Method:         domain.MethodMTN,
		CreatedAt:      t0,
	}
}

// statusSequence answers status queries with statuses in order, repeating the
// last one once exhausted.
func statusSequence(statuses ...string) func(ctx context.Context, transactionID string) (*domain.PaymentStatusResponse, error) {
	var n atomic.Int32
	return func(ctx context.Context, transactionID string) (*domain.PaymentStatusResponse, error) {
		i := int(n.Add(1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		return &domain.PaymentStatusResponse{TransactionID: transactionID, Status: statuses[i]}, nil
	}
}

func recordOutcomes() (chan domain.Outcome, func(domain.Outcome)) {
	ch := make(chan domain.Outcome, 4)
	return ch, func(o domain.Outcome) { ch <- o }
}

func waitOutcome(t *testing.T, ch <-chan domain.Outcome) domain.Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for terminal outcome")
		return ""
	}
}

func waitDone(t *testing.T, h *PollHandle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller goroutine did not exit")
	}
}

func TestPoller_PendingThenSuccess(t *testing.T) {
	// Setup
	port := &MockPaymentPort{StatusFn: statusSequence("PENDING", "PENDING", "SUCCESS")}
	poller, ticker := newTestPoller(port, 3*time.Second, 5*time.Minute)
	outcomes, onTerminal := recordOutcomes()

	// Action
	h := poller.Start(context.Background(), testTicket("TXN123"), onTerminal)
	ticker.ch <- t0.Add(3 * time.Second)
	ticker.ch <- t0.Add(6 * time.Second)
	ticker.ch <- t0.Add(9 * time.Second)

	// Assert
	assert.Equal(t, domain.OutcomeSuccess, waitOutcome(t, outcomes))
	waitDone(t, h)
	assert.Equal(t, 3, port.GetCalls("GetDepositStatus"))
	assert.Empty(t, outcomes, "terminal callback must fire exactly once")
	assert.False(t, h.Cancel(), "cancel after completion reports the session was not running")
}

func TestPoller_Failed(t *testing.T) {
	// Setup
	port := &MockPaymentPort{StatusFn: statusSequence("FAILED")}
	poller, ticker := newTestPoller(port, 3*time.Second, 5*time.Minute)
	outcomes, onTerminal := recordOutcomes()

	// Action
	h := poller.Start(context.Background(), testTicket("TXN-F"), onTerminal)
	ticker.ch <- t0.Add(3 * time.Second)

	// Assert
	assert.Equal(t, domain.OutcomeFailed, waitOutcome(t, outcomes))
	waitDone(t, h)
	assert.Equal(t, 1, port.GetCalls("GetDepositStatus"))
}

func TestPoller_TimesOutAfterDeadline(t *testing.T) {
	// Setup: timeout 9s, interval 3s, processor never leaves PENDING.
	port := &MockPaymentPort{StatusFn: statusSequence("PENDING")}
	poller, ticker := newTestPoller(port, 3*time.Second, 9*time.Second)
	outcomes, onTerminal := recordOutcomes()

	// Action
	h := poller.Start(context.Background(), testTicket("TXN-T"), onTerminal)
	ticker.ch <- t0.Add(3 * time.Second)
	ticker.ch <- t0.Add(6 * time.Second)
	ticker.ch <- t0.Add(9 * time.Second)
	ticker.ch <- t0.Add(12 * time.Second)

	// Assert
	assert.Equal(t, domain.OutcomeTimedOut, waitOutcome(t, outcomes))
	waitDone(t, h)
	assert.Equal(t, 3, port.GetCalls("GetDepositStatus"), "no query once the deadline has passed")
	assert.Empty(t, outcomes)
}

func TestPoller_CancelDiscardsLateSuccess(t *testing.T) {
	// Setup
	entered := make(chan struct{})
	release := make(chan struct{})
	port := &MockPaymentPort{
		StatusFn: func(ctx context.Context, transactionID string) (*domain.PaymentStatusResponse, error) {
			close(entered)
			<-release
			return &domain.PaymentStatusResponse{TransactionID: transactionID, Status: "SUCCESS"}, nil
		},
	}
	poller, ticker := newTestPoller(port, 3*time.Second, 5*time.Minute)
	outcomes, onTerminal := recordOutcomes()

	h := poller.Start(context.Background(), testTicket("TXN-C"), onTerminal)
	ticker.ch <- t0.Add(3 * time.Second)
	<-entered

	// Action
	won := h.Cancel()
	close(release)

	// Assert
	assert.True(t, won)
	waitDone(t, h)
	assert.Empty(t, outcomes, "no callback after cancel")
	assert.False(t, h.Cancel())
}

func TestPoller_CancelBeforeFirstTick(t *testing.T) {
	// Setup
	port := &MockPaymentPort{}
	poller, _ := newTestPoller(port, 3*time.Second, 5*time.Minute)
	outcomes, onTerminal := recordOutcomes()

	// Action
	h := poller.Start(context.Background(), testTicket("TXN-0"), onTerminal)
	require.True(t, h.Cancel())

	// Assert
	waitDone(t, h)
	assert.Equal(t, 0, port.GetCalls("GetDepositStatus"))
	assert.Empty(t, outcomes)
}

func TestPoller_TransientErrorsAreRetriedOnNextTick(t *testing.T) {
	// Setup
	var n atomic.Int32
	port := &MockPaymentPort{
		StatusFn: func(ctx context.Context, transactionID string) (*domain.PaymentStatusResponse, error) {
			switch n.Add(1) {
			case 1:
				return nil, errors.New("connection reset")
			case 2:
				return &domain.PaymentStatusResponse{TransactionID: transactionID, Status: "SETTLING"}, nil
			default:
				return &domain.PaymentStatusResponse{TransactionID: transactionID, Status: "success"}, nil
			}
		},
	}
	poller, ticker := newTestPoller(port, 3*time.Second, 5*time.Minute)
	outcomes, onTerminal := recordOutcomes()

	// Action
	h := poller.Start(context.Background(), testTicket("TXN-E"), onTerminal)
	ticker.ch <- t0.Add(3 * time.Second)
	ticker.ch <- t0.Add(6 * time.Second)
	ticker.ch <- t0.Add(9 * time.Second)

	// Assert
	assert.Equal(t, domain.OutcomeSuccess, waitOutcome(t, outcomes))
	waitDone(t, h)
	assert.Equal(t, 3, port.GetCalls("GetDepositStatus"))
}

func TestPoller_ParentContextStopsSession(t *testing.T) {
	// Setup
	ctx, cancel := context.WithCancel(context.Background())
	poller, _ := newTestPoller(&MockPaymentPort{}, 3*time.Second, 5*time.Minute)
	outcomes, onTerminal := recordOutcomes()

	// Action
	h := poller.Start(ctx, testTicket("TXN-P"), onTerminal)
	cancel()

	// Assert
	waitDone(t, h)
	assert.Empty(t, outcomes)
	assert.Equal(t, "TXN-P", h.TransactionID())
}

func TestPoller_Defaults(t *testing.T) {
	p := NewPoller(&MockPaymentPort{}, 0, 0, testLogger())

	assert.Equal(t, DefaultPollInterval, p.interval)
	assert.Equal(t, DefaultPollTimeout, p.timeout)
}

func TestPoller_QueriesAreSerialized(t *testing.T) {
	// Setup
	var inFlight, maxInFlight, queries atomic.Int32
	entered := make(chan struct{}, 8)
	release := make(chan struct{})
	port := &MockPaymentPort{
		StatusFn: func(ctx context.Context, transactionID string) (*domain.PaymentStatusResponse, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			queries.Add(1)
			entered <- struct{}{}
			<-release
			return &domain.PaymentStatusResponse{TransactionID: transactionID, Status: "PENDING"}, nil
		},
	}
	poller := NewPoller(port, time.Hour, 24*time.Hour, testLogger())
	ticker := newDroppingTicker()
	poller.newTicker = func(time.Duration) Ticker { return ticker }
	_, onTerminal := recordOutcomes()

	h := poller.Start(context.Background(), testTicket("TXN123"), onTerminal)
	defer func() {
		h.Cancel()
		waitDone(t, h)
	}()

	require.True(t, ticker.tick(t0.Add(3*time.Second)))
	<-entered

	// Action: five ticks arrive while the first query is outstanding.
	buffered := 0
	for i := 2; i <= 6; i++ {
		if ticker.tick(t0.Add(time.Duration(3*i) * time.Second)) {
			buffered++
		}
	}
	close(release)

	// Assert
	assert.Equal(t, 1, buffered, "only one tick is held while a query runs")
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("buffered tick was not served")
	}
	select {
	case <-entered:
		t.Fatal("dropped ticks produced extra queries")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(2), queries.Load())
	assert.Equal(t, int32(1), maxInFlight.Load())
}
