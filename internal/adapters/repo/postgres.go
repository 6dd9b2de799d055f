package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/shopspring/decimal"
)

type PostgresTicketStore struct {
	q Executor
}

func NewTicketStore(db *DB) *PostgresTicketStore {
	return &PostgresTicketStore{q: db.Pool}
}

// Save records a pending deposit. Saving the same transaction twice is a no-op.
func (s *PostgresTicketStore) Save(ctx context.Context, t *domain.DepositTicket) error {
	query := `
		INSERT INTO deposit_tickets (
			transaction_id, idempotency_key, account_id, amount, phone_number, method, created_at
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		ON CONFLICT (transaction_id) DO NOTHING
	`

	_, err := s.q.Exec(ctx, query,
		t.TransactionID,
		t.IdempotencyKey,
		t.AccountID,
		t.Amount.String(),
		t.PhoneNumber,
		string(t.Method),
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save deposit ticket: %w", err)
	}
	return nil
}

func (s *PostgresTicketStore) FindByTransactionID(ctx context.Context, transactionID string) (*domain.DepositTicket, error) {
	query := `
		SELECT transaction_id, idempotency_key, account_id, amount::text, phone_number, method, created_at
		FROM deposit_tickets
		WHERE transaction_id = $1
	`

	ticket, err := scanTicket(s.q.QueryRow(ctx, query, transactionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewTicketNotFoundError(transactionID)
	}
	return ticket, err
}

func (s *PostgresTicketStore) Delete(ctx context.Context, transactionID string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM deposit_tickets WHERE transaction_id = $1`, transactionID)
	if err != nil {
		return fmt.Errorf("failed to delete deposit ticket: %w", err)
	}
	return nil
}

// FindStale returns tickets created before the cutoff, oldest first.
func (s *PostgresTicketStore) FindStale(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.DepositTicket, error) {
	query := `
		SELECT transaction_id, idempotency_key, account_id, amount::text, phone_number, method, created_at
		FROM deposit_tickets
		WHERE created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := s.q.Query(ctx, query, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale tickets: %w", err)
	}

	tickets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.DepositTicket, error) {
		return scanTicket(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan stale tickets: %w", err)
	}
	return tickets, nil
}

func scanTicket(row pgx.Row) (*domain.DepositTicket, error) {
	var (
		t      domain.DepositTicket
		amount string
		method string
	)
	err := row.Scan(
		&t.TransactionID,
		&t.IdempotencyKey,
		&t.AccountID,
		&amount,
		&t.PhoneNumber,
		&method,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	t.Method = domain.PaymentMethod(method)
	return &t, nil
}
