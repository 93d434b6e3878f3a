package task

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/contract"
	"server/internal/workflow"
)

func fusionContract(taskID string) *contract.GenerationContract {
	return &contract.GenerationContract{
		TaskID:    taskID,
		Prompt:    "Fuse [Reference] with [Source 0]",
		Reference: contract.Reference{ImageRef: "data:image/png;base64,AAAA", Weight: 0.9},
		Sources: []contract.Source{
			{ImageRef: "data:image/png;base64,BBBB", FeatureType: contract.FeatureStyle, Weight: 0.75},
		},
	}
}

func newTestStore(retention time.Duration) *Store {
	return NewStore(retention, zerolog.Nop())
}

func TestCreateRejectsDuplicateTaskID(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	first, err := store.Create(fusionContract("t1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Status != contract.StatusQueued {
		t.Fatalf("status = %s, want QUEUED", first.Status)
	}

	if _, err := store.Create(fusionContract("t1")); !errors.Is(err, ErrTaskExists) {
		t.Fatalf("expected ErrTaskExists, got %v", err)
	}

	snap, err := store.Get("t1")
	if err != nil {
		t.Fatalf("first task vanished: %v", err)
	}
	if snap.Status != contract.StatusQueued {
		t.Fatalf("first task status changed to %s", snap.Status)
	}
}

func TestLifecycleSuccessPath(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	if _, err := store.Create(fusionContract("t1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap, _ := store.Get("t1")
	if snap.Status != contract.StatusProcessing {
		t.Fatalf("status = %s, want PROCESSING", snap.Status)
	}

	graph := workflow.BuildGraph(fusionContract("t1"), "m")
	if err := store.Complete("t1", CompletionResult{OutputURL: "http://x/outputs/t1.png", Warnings: []string{"w"}, Graph: graph}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	snap, _ = store.Get("t1")
	if snap.Status != contract.StatusSuccess {
		t.Fatalf("status = %s, want SUCCESS", snap.Status)
	}
	if snap.OutputURL == nil || *snap.OutputURL != "http://x/outputs/t1.png" {
		t.Fatalf("outputUrl = %v", snap.OutputURL)
	}
	if snap.WorkflowGraph == nil || len(snap.WorkflowGraph.Nodes) != 3 {
		t.Fatalf("workflowGraph missing")
	}
	if len(snap.Warnings) != 1 || snap.Warnings[0] != "w" {
		t.Fatalf("warnings = %v", snap.Warnings)
	}
}

func TestLifecycleFailurePath(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	_, _ = store.Create(fusionContract("t1"))
	_ = store.Start("t1")
	if err := store.Fail("t1", "GEMINI_API_ERROR", "provider exploded"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	snap, _ := store.Get("t1")
	if snap.Status != contract.StatusFailed {
		t.Fatalf("status = %s, want FAILED", snap.Status)
	}
	if snap.ErrorCode == nil || *snap.ErrorCode != "GEMINI_API_ERROR" {
		t.Fatalf("errorCode = %v", snap.ErrorCode)
	}
	if snap.OutputURL != nil {
		t.Fatalf("outputUrl = %v, want nil", snap.OutputURL)
	}
}

func TestStatusNeverRegressesOrSkips(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	_, _ = store.Create(fusionContract("t1"))

	// SUCCESS straight from QUEUED must be rejected: PROCESSING is mandatory.
	if err := store.Complete("t1", CompletionResult{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	_ = store.Start("t1")
	if err := store.Start("t1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second start accepted: %v", err)
	}

	_ = store.Complete("t1", CompletionResult{OutputURL: "u"})
	if err := store.Fail("t1", "X", "y"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("terminal state mutated: %v", err)
	}
	snap, _ := store.Get("t1")
	if snap.Status != contract.StatusSuccess {
		t.Fatalf("terminal status changed to %s", snap.Status)
	}
}

func TestSubscribersObserveEveryMutationInOrder(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	_, _ = store.Create(fusionContract("t1"))

	sub, err := store.Subscribe("t1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer store.Unsubscribe("t1", sub)

	_ = store.Start("t1")
	store.ReportProgress("t1", "DIFFUSION_SAMPLING", 0.65)
	_ = store.Complete("t1", CompletionResult{OutputURL: "u"})

	want := []contract.Status{contract.StatusQueued, contract.StatusProcessing, contract.StatusProcessing, contract.StatusSuccess}
	for i, expected := range want {
		select {
		case snap := <-sub.Events():
			if snap.Status != expected {
				t.Fatalf("event %d status = %s, want %s", i, snap.Status, expected)
			}
			if i == 2 && (snap.Progress == nil || snap.Progress.Stage != "DIFFUSION_SAMPLING") {
				t.Fatalf("event %d progress = %+v", i, snap.Progress)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestSubscribeToTerminalTaskDeliversSnapshotOnce(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	_, _ = store.Create(fusionContract("t1"))
	_ = store.Start("t1")
	_ = store.Fail("t1", "GEMINI_API_ERROR", "boom")

	sub, err := store.Subscribe("t1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer store.Unsubscribe("t1", sub)

	select {
	case snap := <-sub.Events():
		if snap.Status != contract.StatusFailed {
			t.Fatalf("snapshot status = %s, want FAILED", snap.Status)
		}
	case <-time.After(time.Second):
		t.Fatalf("terminal snapshot never delivered")
	}

	select {
	case snap := <-sub.Events():
		t.Fatalf("unexpected extra event: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReportProgressOnUnknownTaskIsNoOp(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	store.ReportProgress("ghost", "REFERENCE_PREPROCESS", 0.1)
}

func TestEvictionDropsTaskAndClosesSubscribers(t *testing.T) {
	store := newTestStore(20 * time.Millisecond)
	defer store.Close()

	_, _ = store.Create(fusionContract("t1"))
	sub, err := store.Subscribe("t1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// drain the initial snapshot
	<-sub.Events()

	deadline := time.After(time.Second)
	for {
		select {
		case _, open := <-sub.Events():
			if !open {
				goto evicted
			}
		case <-deadline:
			t.Fatalf("subscriber channel never closed after eviction")
		}
	}
evicted:
	if _, err := store.Get("t1"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("task still present after eviction: %v", err)
	}
	store.ReportProgress("t1", "OUTPUT_RENDER", 0.95)
}
