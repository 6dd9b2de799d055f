package service

import (
	"io"
	"log/slog"
	"time"
)

// manualTicker delivers ticks only when the test sends them. The channel is
// unbuffered, so a send returns once the poller has picked the tick up.
type manualTicker struct {
	ch chan time.Time
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

func (m *manualTicker) factory() func(time.Duration) Ticker {
	return func(time.Duration) Ticker { return m }
}

// droppingTicker buffers one tick and drops the rest while the reader is
// busy, the way time.Ticker does.
type droppingTicker struct {
	ch chan time.Time
}

func newDroppingTicker() *droppingTicker {
	return &droppingTicker{ch: make(chan time.Time, 1)}
}

func (d *droppingTicker) C() <-chan time.Time { return d.ch }
func (d *droppingTicker) Stop()               {}

// tick reports whether the tick was buffered.
func (d *droppingTicker) tick(at time.Time) bool {
	select {
	case d.ch <- at:
		return true
	default:
		return false
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func (d *Dialog) currentHandle() *PollHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handle
}
