package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/nats-io/nats.go"
)

type natsConn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

type NatsNotifier struct {
	nc      natsConn
	closer  func()
	prefix  string
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewNatsNotifier connects to url. The connection reconnects on its own;
// publishes during an outage fail and are retried by the reconciler.
func NewNatsNotifier(url, prefix string, logger *slog.Logger) (*NatsNotifier, error) {
	nc, err := nats.Connect(url,
		nats.Name("deposit-gateway"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	n := newNatsNotifier(nc, prefix, logger)
	n.closer = func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return n, nil
}

func newNatsNotifier(nc natsConn, prefix string, logger *slog.Logger) *NatsNotifier {
	return &NatsNotifier{
		nc:      nc,
		closer:  func() {},
		prefix:  prefix,
		logger:  logger,
		nowFunc: time.Now,
	}
}

func (n *NatsNotifier) DepositSettled(ctx context.Context, ticket *domain.DepositTicket, outcome domain.Outcome) error {
	payload, err := json.Marshal(NewSettlementEvent(ticket, outcome, n.nowFunc()))
	if err != nil {
		return fmt.Errorf("marshal settlement event: %w", err)
	}

	subject := Subject(n.prefix, outcome)
	if err := n.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := n.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}

	n.logger.Debug("published settlement event",
		"subject", subject,
		"transaction_id", ticket.TransactionID)
	return nil
}

func (n *NatsNotifier) Close() {
	n.closer()
}
