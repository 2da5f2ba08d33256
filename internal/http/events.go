package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"moneytrack/internal/core"
	applog "moneytrack/internal/log"
)

// EventTransactions names the SSE event carrying a full list snapshot.
const EventTransactions = "transactions"

// handleEvents streams the in-memory list: one snapshot on connect, then one
// after every change. Idle streams get a comment line every heartbeat.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// Streams outlive the server's read timeout.
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	updates, cancel := s.store.Subscribe()
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentEvents)
	logger.DebugContext(ctx, "Event stream opened")
	defer logger.DebugContext(ctx, "Event stream closed")

	if err := writeSnapshot(w, rc, s.store.Transactions()); err != nil {
		return
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.streamsDone:
			return
		case items, ok := <-updates:
			if !ok {
				return
			}
			if err := writeSnapshot(w, rc, items); err != nil {
				logger.DebugContext(ctx, "Event stream write failed", applog.FieldError, err)
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

func writeSnapshot(w http.ResponseWriter, rc *http.ResponseController, items []core.Transaction) error {
	if items == nil {
		items = []core.Transaction{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", EventTransactions, data); err != nil {
		return err
	}
	return rc.Flush()
}
