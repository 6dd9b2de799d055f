package service

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/ports"
	"github.com/l2p-cooperative/deposit-gateway/internal/metrics"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollTimeout  = 5 * time.Minute
)

// Ticker is the part of *time.Ticker the poller needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Poller queries the status of one ticket per session until the processor
// reports a terminal status, the deadline passes, or the session is cancelled.
type Poller struct {
	statuses  ports.PaymentPort
	interval  time.Duration
	timeout   time.Duration
	source    string
	logger    *slog.Logger
	newTicker func(time.Duration) Ticker
}

func NewPoller(statuses ports.PaymentPort, interval, timeout time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Poller{
		statuses:  statuses,
		interval:  interval,
		timeout:   timeout,
		source:    "dialog",
		logger:    logger,
		newTicker: newTimeTicker,
	}
}

const (
	handleRunning int32 = iota
	handleFinished
	handleCancelled
)

// PollHandle controls one polling session.
type PollHandle struct {
	transactionID string
	state         atomic.Int32
	cancel        context.CancelFunc
	done          chan struct{}
}

// Cancel stops the session. After Cancel returns no terminal callback will
// fire, including for a query that was already in flight. It reports whether
// the session was still running.
func (h *PollHandle) Cancel() bool {
	won := h.state.CompareAndSwap(handleRunning, handleCancelled)
	h.cancel()
	return won
}

// Done is closed once the polling goroutine has exited.
func (h *PollHandle) Done() <-chan struct{} {
	return h.done
}

func (h *PollHandle) TransactionID() string {
	return h.transactionID
}

func (h *PollHandle) fire(onTerminal func(domain.Outcome), outcome domain.Outcome) bool {
	if !h.state.CompareAndSwap(handleRunning, handleFinished) {
		return false
	}
	onTerminal(outcome)
	return true
}

// Start begins polling ticket. onTerminal is invoked at most once, from the
// polling goroutine, with SUCCESS, FAILED or TIMED_OUT.
func (p *Poller) Start(ctx context.Context, ticket *domain.DepositTicket, onTerminal func(domain.Outcome)) *PollHandle {
	ctx, cancel := context.WithCancel(ctx)
	h := &PollHandle{
		transactionID: ticket.TransactionID,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	metrics.ActivePollers.Inc()
	go p.run(ctx, h, ticket, onTerminal)

	return h
}

func (p *Poller) run(ctx context.Context, h *PollHandle, ticket *domain.DepositTicket, onTerminal func(domain.Outcome)) {
	defer close(h.done)
	defer metrics.ActivePollers.Dec()
	defer h.cancel()

	ticker := p.newTicker(p.interval)
	defer ticker.Stop()

	deadline := ticket.Deadline(p.timeout)
	logger := p.logger.With("transaction_id", ticket.TransactionID)
	logger.Debug("polling started", "interval", p.interval, "deadline", deadline)

	for {
		var now time.Time
		select {
		case <-ctx.Done():
			logger.Debug("polling cancelled")
			return
		case now = <-ticker.C():
		}

		if ctx.Err() != nil {
			return
		}

		if now.After(deadline) {
			if h.fire(onTerminal, domain.OutcomeTimedOut) {
				logger.Warn("deposit confirmation timed out", "timeout", p.timeout)
			}
			return
		}

		status, err := p.query(ctx, ticket.TransactionID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("status query failed, retrying on next tick", "error", err)
			continue
		}

		if outcome, ok := domain.OutcomeFromStatus(status); ok {
			if h.fire(onTerminal, outcome) {
				logger.Info("deposit reached terminal status", "status", status)
			}
			return
		}
	}
}

func (p *Poller) query(ctx context.Context, transactionID string) (domain.DepositStatus, error) {
	queryCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	resp, err := p.statuses.GetDepositStatus(queryCtx, transactionID)
	if err != nil {
		metrics.StatusPolls.WithLabelValues(p.source, "error").Inc()
		return "", err
	}

	status, err := domain.ParseDepositStatus(resp.Status)
	if err != nil {
		metrics.StatusPolls.WithLabelValues(p.source, "error").Inc()
		return "", err
	}

	metrics.StatusPolls.WithLabelValues(p.source, strings.ToLower(string(status))).Inc()
	return status, nil
}
