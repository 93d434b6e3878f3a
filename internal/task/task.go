// Package task owns the in-memory task registry and its event hub. Tasks
// move through a forward-only state machine and every mutation is fanned out
// synchronously to the subscribers of that task.
package task

import (
	"errors"
	"time"

	"server/internal/contract"
	"server/internal/workflow"
)

var (
	ErrTaskExists        = errors.New("task: id already exists")
	ErrTaskNotFound      = errors.New("task: not found")
	ErrInvalidTransition = errors.New("task: invalid status transition")
)

// Progress is the last stage reported by the executor.
type Progress struct {
	Stage    string  `json:"stage"`
	Progress float64 `json:"progress"`
}

// Task is the mutable lifecycle record of one generation request. It is
// owned exclusively by the Store; callers only ever see snapshots.
type Task struct {
	TaskID    string
	Contract  *contract.GenerationContract
	Status    contract.Status
	OutputURL string
	ErrorCode string
	Message   string
	Warnings  []string
	Graph     *workflow.Graph
	Progress  *Progress
	UpdatedAt time.Time
}

// Snapshot is the externally visible projection of a task: the wire status
// response plus workflow graph and progress.
type Snapshot struct {
	contract.StatusResponse
	WorkflowGraph *workflow.Graph `json:"workflowGraph,omitempty"`
	Progress      *Progress       `json:"progress,omitempty"`
}

// CompletionResult carries everything a successful run settles onto a task.
type CompletionResult struct {
	OutputURL string
	Warnings  []string
	Graph     *workflow.Graph
}
