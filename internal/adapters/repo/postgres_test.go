package repo

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/l2p-cooperative/deposit-gateway/internal/config"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type TicketStoreTestSuite struct {
	suite.Suite
	container testcontainers.Container
	db        *DB
	store     *PostgresTicketStore
}

func TestTicketStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	suite.Run(t, new(TicketStoreTestSuite))
}

func (s *TicketStoreTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "testuser",
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.container = container

	host, err := container.Host(ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(ctx, "5432")
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.db, err = Connect(ctx, &config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "testuser",
		Password:        "testpass",
		Name:            "testdb",
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}, logger)
	s.Require().NoError(err)
	s.Require().NoError(s.db.Migrate(ctx))

	s.store = NewTicketStore(s.db)
}

func (s *TicketStoreTestSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *TicketStoreTestSuite) SetupTest() {
	_, err := s.db.Pool.Exec(context.Background(), "TRUNCATE TABLE deposit_tickets")
	s.Require().NoError(err)
}

func ticketAt(id string, createdAt time.Time) *domain.DepositTicket {
	return &domain.DepositTicket{
		TransactionID:  id,
		IdempotencyKey: "idem-" + id,
		AccountID:      "acc-42",
		Amount:         decimal.NewFromInt(25000),
		PhoneNumber:    "+237690000000",
		Method:         domain.MethodOrange,
		CreatedAt:      createdAt,
	}
}

func (s *TicketStoreTestSuite) TestSaveAndFind() {
	t := s.T()
	ctx := context.Background()
	created := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, s.store.Save(ctx, ticketAt("TXN123", created)))
	require.NoError(t, s.store.Save(ctx, ticketAt("TXN123", created)), "save is idempotent")

	got, err := s.store.FindByTransactionID(ctx, "TXN123")
	require.NoError(t, err)
	assert.Equal(t, "idem-TXN123", got.IdempotencyKey)
	assert.True(t, decimal.NewFromInt(25000).Equal(got.Amount))
	assert.Equal(t, domain.MethodOrange, got.Method)
	assert.True(t, created.Equal(got.CreatedAt))
}

func (s *TicketStoreTestSuite) TestFindMissing() {
	_, err := s.store.FindByTransactionID(context.Background(), "nope")
	assert.True(s.T(), domain.IsErrorCode(err, domain.ErrCodeTicketNotFound))
}

func (s *TicketStoreTestSuite) TestFindStaleOldestFirst() {
	t := s.T()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.store.Save(ctx, ticketAt("recent", now)))
	require.NoError(t, s.store.Save(ctx, ticketAt("older", now.Add(-20*time.Minute))))
	require.NoError(t, s.store.Save(ctx, ticketAt("oldest", now.Add(-2*time.Hour))))

	stale, err := s.store.FindStale(ctx, now.Add(-10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, "oldest", stale[0].TransactionID)
	assert.Equal(t, "older", stale[1].TransactionID)

	limited, err := s.store.FindStale(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "oldest", limited[0].TransactionID)
}

func (s *TicketStoreTestSuite) TestDelete() {
	t := s.T()
	ctx := context.Background()

	require.NoError(t, s.store.Save(ctx, ticketAt("TXN-D", time.Now())))
	require.NoError(t, s.store.Delete(ctx, "TXN-D"))
	require.NoError(t, s.store.Delete(ctx, "TXN-D"), "deleting a missing ticket is not an error")

	_, err := s.store.FindByTransactionID(ctx, "TXN-D")
	assert.Error(t, err)
}
