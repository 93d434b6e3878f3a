package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/contract"
	"server/internal/task"
)

// CreateTask validates a raw generation contract, registers the task, and
// launches its asynchronous run. Validation failures never create a task.
func (a *App) CreateTask(w http.ResponseWriter, r *http.Request) {
	var input map[string]any
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		a.error(w, http.StatusBadRequest, "INVALID_JSON", "request body must be valid JSON")
		return
	}

	c, err := contract.ValidateGenerationContract(input)
	if err != nil {
		var vErr *contract.ValidationError
		if errors.As(err, &vErr) {
			a.validationError(w, vErr)
			return
		}
		a.error(w, http.StatusBadRequest, "INVALID_CONTRACT", err.Error())
		return
	}

	snap, err := a.Store.Create(c)
	if err != nil {
		if errors.Is(err, task.ErrTaskExists) {
			a.errorDetails(w, http.StatusConflict, "TASK_EXISTS", "a task with this id already exists", map[string]any{"taskId": c.TaskID})
			return
		}
		a.error(w, http.StatusInternalServerError, "UNEXPECTED_ERROR", err.Error())
		return
	}

	a.Metrics.TasksCreated.Inc()
	go a.runTask(c)

	a.json(w, http.StatusAccepted, a.envelope(snap))
}

// ListTasks returns the projection of every currently tracked task.
func (a *App) ListTasks(w http.ResponseWriter, r *http.Request) {
	snapshots := a.Store.List()
	envelopes := make([]taskEnvelope, len(snapshots))
	for i, snap := range snapshots {
		envelopes[i] = a.envelope(snap)
	}
	a.json(w, http.StatusOK, map[string]any{"tasks": envelopes})
}

// GetTask returns the projection of a single task.
func (a *App) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	snap, err := a.Store.Get(taskID)
	if err != nil {
		a.errorDetails(w, http.StatusNotFound, "TASK_NOT_FOUND", "no task with this id is currently tracked", map[string]any{"taskId": taskID})
		return
	}
	a.json(w, http.StatusOK, a.envelope(snap))
}
