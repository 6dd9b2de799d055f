package worker

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/l2p-cooperative/deposit-gateway/internal/adapters/payment"
	"github.com/l2p-cooperative/deposit-gateway/internal/config"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/ports"
	"github.com/l2p-cooperative/deposit-gateway/internal/metrics"
)

// Reconciler resolves tickets no dialog is watching any more: deposits that
// timed out, were closed mid-wait, or were left behind by a restart.
type Reconciler struct {
	store      ports.TicketStore
	payments   ports.PaymentPort
	notifier   ports.DepositNotifier
	interval   time.Duration
	batchSize  int
	staleAfter time.Duration
	maxAge     time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func NewReconciler(
	store ports.TicketStore,
	payments ports.PaymentPort,
	notifier ports.DepositNotifier,
	cfg config.WorkerConfig,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		store:      store,
		payments:   payments,
		notifier:   notifier,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		staleAfter: cfg.StaleAfter,
		maxAge:     cfg.MaxAge,
		now:        time.Now,
		logger:     logger,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("starting background reconciler",
		"interval", r.interval,
		"batch_size", r.batchSize,
		"stale_after", r.staleAfter)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping background reconciler")
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

// RunOnce executes a single reconciliation cycle.
func (r *Reconciler) RunOnce(ctx context.Context) {
	r.run(ctx)
}

func (r *Reconciler) run(ctx context.Context) {
	r.reconcileStaleTickets(ctx)
}

func (r *Reconciler) reconcileStaleTickets(ctx context.Context) {
	now := r.now()
	tickets, err := r.store.FindStale(ctx, now.Add(-r.staleAfter), r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch stale tickets", "error", err)
		return
	}

	if len(tickets) == 0 {
		return
	}

	r.logger.Info("reconciling stale deposits", "count", len(tickets))

	for _, t := range tickets {
		if ctx.Err() != nil {
			return
		}
		r.reconcile(ctx, t, now)
	}
}

func (r *Reconciler) reconcile(ctx context.Context, t *domain.DepositTicket, now time.Time) {
	logger := r.logger.With("transaction_id", t.TransactionID)
	age := now.Sub(t.CreatedAt)

	resp, err := r.payments.GetDepositStatus(ctx, t.TransactionID)
	if err != nil {
		metrics.StatusPolls.WithLabelValues("reconciler", "error").Inc()
		if isNotFound(err) {
			r.drop(ctx, t, logger, "payment API does not know this transaction")
			return
		}
		if age > r.maxAge {
			r.drop(ctx, t, logger, "status unavailable past max age")
			return
		}
		logger.Warn("status query failed, will retry next cycle", "error", err)
		return
	}

	status, err := domain.ParseDepositStatus(resp.Status)
	if err != nil {
		metrics.StatusPolls.WithLabelValues("reconciler", "error").Inc()
		logger.Warn("unexpected status from payment API", "error", err)
		return
	}
	metrics.StatusPolls.WithLabelValues("reconciler", strings.ToLower(string(status))).Inc()

	outcome, terminal := domain.OutcomeFromStatus(status)
	if !terminal {
		if age > r.maxAge {
			r.drop(ctx, t, logger, "still pending past max age")
		}
		return
	}

	if err := r.notifier.DepositSettled(ctx, t, outcome); err != nil {
		logger.Error("failed to publish settlement", "outcome", outcome, "error", err)
		return
	}
	if err := r.store.Delete(ctx, t.TransactionID); err != nil {
		logger.Error("failed to prune settled ticket", "error", err)
		return
	}

	logger.Info("successfully reconciled deposit", "outcome", outcome, "age", age)
}

func (r *Reconciler) drop(ctx context.Context, t *domain.DepositTicket, logger *slog.Logger, reason string) {
	if err := r.store.Delete(ctx, t.TransactionID); err != nil {
		logger.Error("failed to drop ticket", "reason", reason, "error", err)
		return
	}
	logger.Warn("dropped unresolved deposit, manual follow-up needed",
		"reason", reason,
		"account_id", t.AccountID,
		"amount", t.Amount.String(),
		"created_at", t.CreatedAt)
}

func isNotFound(err error) bool {
	if apiErr, ok := payment.IsAPIError(err); ok {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}
