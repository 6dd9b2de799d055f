package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/ports"
	"github.com/l2p-cooperative/deposit-gateway/internal/metrics"
	"github.com/shopspring/decimal"
)

const settleTimeout = 10 * time.Second

// Snapshot is a consistent view of a dialog, delivered to subscribers on every
// state change. Version increases monotonically per dialog.
type Snapshot struct {
	DialogID      uuid.UUID
	State         domain.DialogState
	Message       string
	TransactionID string
	Amount        decimal.Decimal
	Method        domain.PaymentMethod
	Err           error
	Version       uint64
	UpdatedAt     time.Time
}

// Dialog drives one deposit dialog: Idle → Submitting → Waiting → terminal.
// It owns at most one ticket and the lifecycle of the poller bound to it.
type Dialog struct {
	id        uuid.UUID
	initiator *Initiator
	poller    *Poller
	store     ports.TicketStore
	notifier  ports.DepositNotifier
	logger    *slog.Logger
	now       func() time.Time

	ctx   context.Context
	close context.CancelFunc

	mu           sync.Mutex
	state        domain.DialogState
	ticket       *domain.DepositTicket
	handle       *PollHandle
	cancelSubmit context.CancelFunc
	submitSeq    uint64
	lastErr      error
	version      uint64
	updatedAt    time.Time
	subscribers  map[int]func(Snapshot)
	nextSub      int
}

func NewDialog(
	parent context.Context,
	initiator *Initiator,
	poller *Poller,
	store ports.TicketStore,
	notifier ports.DepositNotifier,
	logger *slog.Logger,
) *Dialog {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.New()
	return &Dialog{
		id:          id,
		initiator:   initiator,
		poller:      poller,
		store:       store,
		notifier:    notifier,
		logger:      logger.With("dialog_id", id.String()),
		now:         time.Now,
		ctx:         ctx,
		close:       cancel,
		state:       domain.DialogIdle,
		updatedAt:   time.Now(),
		subscribers: make(map[int]func(Snapshot)),
	}
}

func (d *Dialog) ID() uuid.UUID {
	return d.id
}

// Submit validates req, initiates the deposit and starts polling. It returns
// ErrDialogBusy without side effects while another deposit is in flight.
func (d *Dialog) Submit(ctx context.Context, req domain.DepositRequest) (Snapshot, error) {
	req = req.Normalize()

	d.mu.Lock()
	if d.ctx.Err() != nil {
		snap := d.snapshotLocked()
		d.mu.Unlock()
		return snap, domain.NewDialogNotFoundError(d.id.String())
	}
	if d.state.IsBusy() {
		snap := d.snapshotLocked()
		d.mu.Unlock()
		return snap, domain.ErrDialogBusy
	}
	if err := d.state.CanTransitionTo(domain.DialogSubmitting); err != nil {
		snap := d.snapshotLocked()
		d.mu.Unlock()
		return snap, err
	}

	if err := req.Validate(d.initiator.minAmount); err != nil {
		d.lastErr = err
		snap := d.bumpLocked()
		d.mu.Unlock()
		d.notify(snap)
		return snap, err
	}

	submitCtx, cancel := context.WithCancel(ctx)
	d.submitSeq++
	seq := d.submitSeq
	d.state = domain.DialogSubmitting
	d.cancelSubmit = cancel
	d.lastErr = nil
	d.ticket = nil
	snap := d.bumpLocked()
	d.mu.Unlock()
	d.notify(snap)

	ticket, err := d.initiator.Initiate(submitCtx, req)
	cancel()

	d.mu.Lock()
	if d.submitSeq != seq || d.state != domain.DialogSubmitting {
		// Cancelled while the request was in flight, possibly followed by a
		// newer submit that now owns the dialog.
		if ticket != nil {
			d.logger.Info("dialog closed during initiation, leaving ticket to reconciler",
				"transaction_id", ticket.TransactionID)
		}
		snap := d.snapshotLocked()
		d.mu.Unlock()
		return snap, nil
	}
	d.cancelSubmit = nil

	if err != nil {
		d.state = domain.DialogIdle
		d.lastErr = err
		snap := d.bumpLocked()
		d.mu.Unlock()
		d.notify(snap)
		return snap, err
	}

	d.ticket = ticket
	d.state = domain.DialogWaiting
	d.handle = d.poller.Start(d.ctx, ticket, func(outcome domain.Outcome) {
		d.onTerminal(ticket, outcome)
	})
	snap = d.bumpLocked()
	d.mu.Unlock()
	d.notify(snap)

	return snap, nil
}

func (d *Dialog) onTerminal(ticket *domain.DepositTicket, outcome domain.Outcome) {
	d.mu.Lock()
	if d.state != domain.DialogWaiting || d.ticket == nil || d.ticket.TransactionID != ticket.TransactionID {
		d.mu.Unlock()
		d.logger.Debug("discarding stale poll outcome",
			"transaction_id", ticket.TransactionID,
			"outcome", outcome)
		return
	}

	d.state = domain.DialogStateFor(outcome)
	d.handle = nil
	snap := d.bumpLocked()
	d.mu.Unlock()

	metrics.Outcomes.WithLabelValues(string(outcome)).Inc()
	d.logger.Info("deposit dialog finished",
		"transaction_id", ticket.TransactionID,
		"outcome", outcome)

	d.notify(snap)
	d.settle(ticket, outcome)
}

// settle publishes remote terminal outcomes and prunes the ticket. TIMED_OUT
// tickets stay in the store: the payment may still complete.
func (d *Dialog) settle(ticket *domain.DepositTicket, outcome domain.Outcome) {
	if outcome != domain.OutcomeSuccess && outcome != domain.OutcomeFailed {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(d.ctx), settleTimeout)
	defer cancel()

	if err := d.notifier.DepositSettled(ctx, ticket, outcome); err != nil {
		d.logger.Error("failed to publish deposit settlement, reconciler will retry",
			"transaction_id", ticket.TransactionID,
			"error", err)
		return
	}

	if err := d.store.Delete(ctx, ticket.TransactionID); err != nil {
		d.logger.Error("failed to prune settled deposit",
			"transaction_id", ticket.TransactionID,
			"error", err)
	}
}

// Cancel abandons the deposit in flight, if any. The poller is stopped before
// the ticket is discarded, so a late response cannot revive the dialog.
func (d *Dialog) Cancel() Snapshot {
	d.mu.Lock()
	switch d.state {
	case domain.DialogWaiting:
		if d.handle != nil {
			d.handle.Cancel()
			d.handle = nil
		}
		d.logger.Info("deposit dialog cancelled while waiting",
			"transaction_id", d.ticket.TransactionID)
		d.ticket = nil
	case domain.DialogSubmitting:
		if d.cancelSubmit != nil {
			d.cancelSubmit()
			d.cancelSubmit = nil
		}
	default:
		snap := d.snapshotLocked()
		d.mu.Unlock()
		return snap
	}

	d.state = domain.DialogCancelled
	snap := d.bumpLocked()
	d.mu.Unlock()

	metrics.Outcomes.WithLabelValues(string(domain.OutcomeCancelled)).Inc()
	d.notify(snap)
	return snap
}

// Reset returns a finished dialog to Idle so another deposit can be made.
func (d *Dialog) Reset() (Snapshot, error) {
	d.mu.Lock()
	if d.state == domain.DialogIdle {
		snap := d.snapshotLocked()
		d.mu.Unlock()
		return snap, nil
	}
	if d.state.IsBusy() {
		snap := d.snapshotLocked()
		d.mu.Unlock()
		return snap, domain.ErrDialogBusy
	}

	d.state = domain.DialogIdle
	d.ticket = nil
	d.lastErr = nil
	snap := d.bumpLocked()
	d.mu.Unlock()

	d.notify(snap)
	return snap, nil
}

// Close cancels any deposit in flight and releases the dialog's resources.
func (d *Dialog) Close() Snapshot {
	snap := d.Cancel()
	d.close()
	return snap
}

func (d *Dialog) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// Subscribe registers fn for state change notifications. fn is called outside
// the dialog lock and must not block for long.
func (d *Dialog) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subscribers[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.subscribers, id)
		d.mu.Unlock()
	}
}

// Done is closed once the dialog has been closed.
func (d *Dialog) Done() <-chan struct{} {
	return d.ctx.Done()
}

func (d *Dialog) notify(snap Snapshot) {
	d.mu.Lock()
	subs := make([]func(Snapshot), 0, len(d.subscribers))
	for _, fn := range d.subscribers {
		subs = append(subs, fn)
	}
	d.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (d *Dialog) bumpLocked() Snapshot {
	d.version++
	d.updatedAt = d.now()
	return d.snapshotLocked()
}

func (d *Dialog) snapshotLocked() Snapshot {
	snap := Snapshot{
		DialogID:  d.id,
		State:     d.state,
		Message:   d.state.Message(),
		Err:       d.lastErr,
		Version:   d.version,
		UpdatedAt: d.updatedAt,
	}
	if d.ticket != nil {
		snap.TransactionID = d.ticket.TransactionID
		snap.Amount = d.ticket.Amount
		snap.Method = d.ticket.Method
	}
	return snap
}

func (d *Dialog) idleSince() (domain.DialogState, time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, d.updatedAt
}
