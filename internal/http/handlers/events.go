package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// StreamTaskEvents serves the per-task SSE stream: the current snapshot
// immediately, then one status event per mutation. The server never forces
// the connection closed on terminal state; the client decides when to stop
// listening. Comment-only keep-alive lines hold idle connections open.
func (a *App) StreamTaskEvents(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "response writer does not support streaming")
		return
	}

	sub, err := a.Store.Subscribe(taskID)
	if err != nil {
		a.errorDetails(w, http.StatusNotFound, "TASK_NOT_FOUND", "no task with this id is currently tracked", map[string]any{"taskId": taskID})
		return
	}
	defer a.Store.Unsubscribe(taskID, sub)

	a.Metrics.SSESubscribers.Inc()
	defer a.Metrics.SSESubscribers.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(a.Config.SSEKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case snap, open := <-sub.Events():
			if !open {
				// Task evicted; nothing further will ever arrive.
				return
			}
			data, err := json.Marshal(a.envelope(snap))
			if err != nil {
				a.Logger.Error().Err(err).Str("task_id", taskID).Msg("sse: marshal snapshot failed")
				continue
			}
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
