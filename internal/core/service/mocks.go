package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/ports"
)

// MockPaymentPort
type MockPaymentPort struct {
	mu    sync.Mutex
	calls map[string]int

	InitiateFn func(ctx context.Context, req domain.PaymentInitiateRequest, idempotencyKey string) (*domain.PaymentInitiateResponse, error)
	StatusFn   func(ctx context.Context, transactionID string) (*domain.PaymentStatusResponse, error)
}

func (m *MockPaymentPort) inc(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

func (m *MockPaymentPort) GetCalls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockPaymentPort) InitiateDeposit(ctx context.Context, req domain.PaymentInitiateRequest, idempotencyKey string) (*domain.PaymentInitiateResponse, error) {
	m.inc("InitiateDeposit")
	if m.InitiateFn != nil {
		return m.InitiateFn(ctx, req, idempotencyKey)
	}
	return &domain.PaymentInitiateResponse{
		TransactionID: "TXN123",
		Status:        string(domain.StatusPending),
	}, nil
}

func (m *MockPaymentPort) GetDepositStatus(ctx context.Context, transactionID string) (*domain.PaymentStatusResponse, error) {
	m.inc("GetDepositStatus")
	if m.StatusFn != nil {
		return m.StatusFn(ctx, transactionID)
	}
	return &domain.PaymentStatusResponse{
		TransactionID: transactionID,
		Status:        string(domain.StatusPending),
	}, nil
}

// Factory returns a PaymentPortFactory that ignores credentials and always
// hands out m.
func (m *MockPaymentPort) Factory() ports.PaymentPortFactory {
	return func(ports.TokenSource) ports.PaymentPort { return m }
}

// MockTicketStore
type MockTicketStore struct {
	mu      sync.RWMutex
	tickets map[string]*domain.DepositTicket

	SaveFn      func(ctx context.Context, ticket *domain.DepositTicket) error
	DeleteFn    func(ctx context.Context, transactionID string) error
	FindStaleFn func(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.DepositTicket, error)
}

func NewMockTicketStore() *MockTicketStore {
	return &MockTicketStore{
		tickets: make(map[string]*domain.DepositTicket),
	}
}

func (m *MockTicketStore) Save(ctx context.Context, ticket *domain.DepositTicket) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, ticket)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[ticket.TransactionID] = ticket
	return nil
}

func (m *MockTicketStore) FindByTransactionID(ctx context.Context, transactionID string) (*domain.DepositTicket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tickets[transactionID]; ok {
		return t, nil
	}
	return nil, domain.NewTicketNotFoundError(transactionID)
}

func (m *MockTicketStore) Delete(ctx context.Context, transactionID string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, transactionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tickets, transactionID)
	return nil
}

func (m *MockTicketStore) FindStale(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.DepositTicket, error) {
	if m.FindStaleFn != nil {
		return m.FindStaleFn(ctx, createdBefore, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.DepositTicket
	for _, t := range m.tickets {
		if t.CreatedAt.Before(createdBefore) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockTicketStore) Has(transactionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tickets[transactionID]
	return ok
}

func (m *MockTicketStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tickets)
}

// SettledEvent is one call recorded by MockNotifier.
type SettledEvent struct {
	TransactionID string
	Outcome       domain.Outcome
}

// MockNotifier
type MockNotifier struct {
	mu     sync.Mutex
	events []SettledEvent

	SettledFn func(ctx context.Context, ticket *domain.DepositTicket, outcome domain.Outcome) error
}

func (m *MockNotifier) DepositSettled(ctx context.Context, ticket *domain.DepositTicket, outcome domain.Outcome) error {
	if m.SettledFn != nil {
		if err := m.SettledFn(ctx, ticket, outcome); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, SettledEvent{TransactionID: ticket.TransactionID, Outcome: outcome})
	return nil
}

func (m *MockNotifier) Events() []SettledEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SettledEvent(nil), m.events...)
}
