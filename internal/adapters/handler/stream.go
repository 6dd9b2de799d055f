package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/l2p-cooperative/deposit-gateway/internal/core/service"
)

const heartbeatInterval = 15 * time.Second

// HandleEvents streams dialog snapshots as server-sent events until the
// client goes away or the dialog is closed.
// @Summary      Stream dialog snapshots
// @Tags         dialogs
// @Produce      text/event-stream
// @Param        id   path      string       true  "Dialog ID"
// @Success      200  {string}  string       "state events"
// @Failure      404  {object}  APIResponse
// @Router       /dialogs/{id}/events [get]
func (h *DialogHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	d, err := h.dialog(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	rc := http.NewResponseController(w)

	// Latest snapshot wins: a slow client skips intermediate states, never
	// the final one.
	var (
		mu     sync.Mutex
		latest service.Snapshot
	)
	signal := make(chan struct{}, 1)
	unsubscribe := d.Subscribe(func(s service.Snapshot) {
		mu.Lock()
		if s.Version > latest.Version {
			latest = s
		}
		mu.Unlock()
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var lastVersion uint64
	send := func(s service.Snapshot) error {
		if lastVersion != 0 && s.Version <= lastVersion {
			return nil
		}
		lastVersion = s.Version
		payload, err := json.Marshal(toDialogResponse(s))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", s.Version, payload); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(d.Snapshot()); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-d.Done():
			_ = send(d.Snapshot())
			return
		case <-signal:
			mu.Lock()
			s := latest
			mu.Unlock()
			if err := send(s); err != nil {
				h.logger.Debug("event stream write failed", "dialog_id", d.ID(), "error", err)
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
