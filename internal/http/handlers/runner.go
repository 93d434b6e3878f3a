package handlers

import (
	"context"
	"errors"
	"time"

	"server/internal/contract"
	"server/internal/executor"
	"server/internal/providers/genai"
	"server/internal/task"
)

// runTask drives one task through the executor. It runs detached from the
// originating request: there is no cancellation, so the run continues and
// keeps updating the (possibly unwatched) task record even after every
// subscriber has gone away. All failures are absorbed into the task record;
// nothing escapes to the HTTP layer.
func (a *App) runTask(c *contract.GenerationContract) {
	if err := a.Store.Start(c.TaskID); err != nil {
		a.Logger.Error().Err(err).Str("task_id", c.TaskID).Msg("runner: start failed")
		return
	}

	started := time.Now()
	sink := executor.StageSinkFunc(func(stage executor.Stage, progress float64) {
		a.Store.ReportProgress(c.TaskID, string(stage), progress)
	})

	result, err := a.Exec.Run(context.Background(), c, sink)
	if err != nil {
		a.settleFailure(c.TaskID, err, started)
		return
	}

	name := c.TaskID + "." + result.OutputExtension
	if _, err := a.Files.Write(name, result.OutputBytes); err != nil {
		a.settleFailure(c.TaskID, err, started)
		return
	}

	outputURL := a.Config.PublicBaseURL + "/outputs/" + name
	if err := a.Store.Complete(c.TaskID, task.CompletionResult{
		OutputURL: outputURL,
		Warnings:  result.Warnings,
		Graph:     result.Graph,
	}); err != nil {
		a.Logger.Error().Err(err).Str("task_id", c.TaskID).Msg("runner: complete failed")
		return
	}

	a.Metrics.TasksCompleted.WithLabelValues(string(contract.StatusSuccess)).Inc()
	a.Metrics.ProviderCalls.Observe(time.Since(started).Seconds())
}

func (a *App) settleFailure(taskID string, runErr error, started time.Time) {
	code, message := classifyRunError(runErr)
	if err := a.Store.Fail(taskID, code, message); err != nil {
		a.Logger.Error().Err(err).Str("task_id", taskID).Msg("runner: fail transition rejected")
		return
	}
	a.Metrics.TasksCompleted.WithLabelValues(string(contract.StatusFailed)).Inc()
	a.Metrics.ProviderCalls.Observe(time.Since(started).Seconds())
}

// classifyRunError folds any executor failure into the stable error
// taxonomy so the wire contract never leaks an unstructured failure.
func classifyRunError(err error) (code, message string) {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message
	}
	var inputErr *executor.InputError
	if errors.As(err, &inputErr) {
		return inputErr.Code, inputErr.Message
	}
	return "UNEXPECTED_ERROR", err.Error()
}
