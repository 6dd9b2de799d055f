package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/ports"
	"github.com/shopspring/decimal"
)

type DialogConfig struct {
	MinAmount    decimal.Decimal
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// DialogManager owns every open dialog. Closing the manager stops all pollers.
type DialogManager struct {
	paymentsFor ports.PaymentPortFactory
	store       ports.TicketStore
	notifier    ports.DepositNotifier
	cfg         DialogConfig
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	dialogs map[uuid.UUID]*Dialog
}

func NewDialogManager(
	paymentsFor ports.PaymentPortFactory,
	store ports.TicketStore,
	notifier ports.DepositNotifier,
	cfg DialogConfig,
	logger *slog.Logger,
) *DialogManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &DialogManager{
		paymentsFor: paymentsFor,
		store:       store,
		notifier:    notifier,
		cfg:         cfg,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		dialogs:     make(map[uuid.UUID]*Dialog),
	}
}

// Open creates a dialog whose payment calls carry the caller's token.
func (m *DialogManager) Open(tokens ports.TokenSource) *Dialog {
	payments := m.paymentsFor(tokens)
	initiator := NewInitiator(payments, m.store, m.cfg.MinAmount, m.logger)
	poller := NewPoller(payments, m.cfg.PollInterval, m.cfg.PollTimeout, m.logger)
	d := NewDialog(m.ctx, initiator, poller, m.store, m.notifier, m.logger)

	m.mu.Lock()
	m.dialogs[d.ID()] = d
	m.mu.Unlock()

	m.logger.Debug("dialog opened", "dialog_id", d.ID())
	return d
}

func (m *DialogManager) Get(id uuid.UUID) (*Dialog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.dialogs[id]
	if !ok {
		return nil, domain.NewDialogNotFoundError(id.String())
	}
	return d, nil
}

// Close cancels the dialog's deposit in flight and forgets the dialog.
func (m *DialogManager) Close(id uuid.UUID) (Snapshot, error) {
	m.mu.Lock()
	d, ok := m.dialogs[id]
	delete(m.dialogs, id)
	m.mu.Unlock()

	if !ok {
		return Snapshot{}, domain.NewDialogNotFoundError(id.String())
	}
	return d.Close(), nil
}

// CloseAll closes every dialog; used on shutdown.
func (m *DialogManager) CloseAll() {
	m.mu.Lock()
	dialogs := m.dialogs
	m.dialogs = make(map[uuid.UUID]*Dialog)
	m.mu.Unlock()

	for _, d := range dialogs {
		d.Close()
	}
	m.cancel()
	m.logger.Info("closed all dialogs", "count", len(dialogs))
}

func (m *DialogManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dialogs)
}

// Prune closes dialogs that are not busy and have not changed for maxIdle.
func (m *DialogManager) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var stale []*Dialog
	for id, d := range m.dialogs {
		state, updatedAt := d.idleSince()
		if state.IsBusy() || updatedAt.After(cutoff) {
			continue
		}
		stale = append(stale, d)
		delete(m.dialogs, id)
	}
	m.mu.Unlock()

	for _, d := range stale {
		d.Close()
	}
	return len(stale)
}

// RunJanitor prunes idle dialogs every interval until ctx is done.
func (m *DialogManager) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Prune(maxIdle); n > 0 {
				m.logger.Info("pruned idle dialogs", "count", n)
			}
		}
	}
}
