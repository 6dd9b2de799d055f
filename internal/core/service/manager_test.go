package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func newTestManager(port *MockPaymentPort) *DialogManager {
	return NewDialogManager(port.Factory(), NewMockTicketStore(), &MockNotifier{}, DialogConfig{
		PollInterval: time.Hour,
		PollTimeout:  time.Hour,
	}, testLogger())
}

func TestDialogManager_OpenGetClose(t *testing.T) {
	// Setup
	m := newTestManager(&MockPaymentPort{})
	t.Cleanup(m.CloseAll)

	// Action
	d := m.Open(staticToken("member-token"))

	// Assert
	got, err := m.Get(d.ID())
	require.NoError(t, err)
	assert.Same(t, d, got)
	assert.Equal(t, 1, m.Len())

	snap, err := m.Close(d.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.DialogIdle, snap.State)
	assert.Equal(t, 0, m.Len())

	_, err = m.Get(d.ID())
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeDialogNotFound))
	_, err = m.Close(d.ID())
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeDialogNotFound))
}

func TestDialogManager_OpenUsesCallerToken(t *testing.T) {
	// Setup
	var seen []ports.TokenSource
	port := &MockPaymentPort{}
	m := NewDialogManager(func(tokens ports.TokenSource) ports.PaymentPort {
		seen = append(seen, tokens)
		return port
	}, NewMockTicketStore(), &MockNotifier{}, DialogConfig{}, testLogger())
	t.Cleanup(m.CloseAll)

	// Action
	m.Open(staticToken("a"))
	m.Open(staticToken("b"))

	// Assert
	require.Len(t, seen, 2)
	tok, err := seen[1].Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", tok)
}

func TestDialogManager_CloseAllStopsPollers(t *testing.T) {
	// Setup
	m := newTestManager(&MockPaymentPort{})
	d := m.Open(staticToken("t"))
	_, err := d.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	h := d.currentHandle()
	require.NotNil(t, h)

	// Action
	m.CloseAll()

	// Assert
	waitDone(t, h)
	assert.Equal(t, domain.DialogCancelled, d.Snapshot().State)
	assert.Equal(t, 0, m.Len())
}

func TestDialogManager_PruneSkipsBusyDialogs(t *testing.T) {
	// Setup
	m := newTestManager(&MockPaymentPort{})
	t.Cleanup(m.CloseAll)

	idle := m.Open(staticToken("t"))
	busy := m.Open(staticToken("t"))
	_, err := busy.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	// Action
	n := m.Prune(0)

	// Assert
	assert.Equal(t, 1, n)
	_, err = m.Get(idle.ID())
	assert.Error(t, err)
	_, err = m.Get(busy.ID())
	assert.NoError(t, err)
}

func TestDialogManager_GetUnknown(t *testing.T) {
	m := newTestManager(&MockPaymentPort{})

	_, err := m.Get(uuid.New())

	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeDialogNotFound))
}
