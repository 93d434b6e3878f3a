// Package handlers implements the HTTP/SSE facade over the task pipeline.
package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/contract"
	"server/internal/executor"
	"server/internal/infra"
	"server/internal/metrics"
	"server/internal/storage"
	"server/internal/task"
)

// App bundles the dependencies the handlers operate on. It is created once
// at process start and injected into the router.
type App struct {
	Config  *infra.Config
	Logger  infra.Logger
	Store   *task.Store
	Exec    *executor.Executor
	Files   *storage.FileStore
	Metrics *metrics.Metrics
}

// NewApp wires the handler container.
func NewApp(cfg *infra.Config, logger infra.Logger, store *task.Store, exec *executor.Executor, files *storage.FileStore, m *metrics.Metrics) *App {
	return &App{Config: cfg, Logger: logger, Store: store, Exec: exec, Files: files, Metrics: m}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.errorDetails(w, status, code, message, nil)
}

func (a *App) errorDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message, Details: details}})
}

// validationError maps a contract violation onto the 400 wire shape.
func (a *App) validationError(w http.ResponseWriter, err *contract.ValidationError) {
	a.errorDetails(w, http.StatusBadRequest, err.Code, err.Message, err.Details)
}

// taskEnvelope is the task projection plus the discovery URLs clients use
// to poll or stream it.
type taskEnvelope struct {
	task.Snapshot
	StatusURL string `json:"statusUrl"`
	StreamURL string `json:"streamUrl"`
}

func (a *App) envelope(snap task.Snapshot) taskEnvelope {
	base := "/api/tasks/" + snap.TaskID
	return taskEnvelope{Snapshot: snap, StatusURL: base, StreamURL: base + "/events"}
}
