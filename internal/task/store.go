package task

import (
	"sort"
	"sync"
	"time"

	"server/internal/contract"
	"server/internal/infra"
)

// subscriberBuffer bounds how many undelivered snapshots one subscriber may
// lag behind before events are dropped for it.
const subscriberBuffer = 32

// Subscriber receives every snapshot of one task, starting with the current
// one at subscription time. The channel is closed when the task is evicted.
type Subscriber struct {
	ch      chan Snapshot
	dropped int
}

// Events returns the ordered stream of task snapshots.
func (s *Subscriber) Events() <-chan Snapshot {
	return s.ch
}

// Store is the single shared mutable resource of the service: a registry of
// live tasks plus the per-task subscriber sets. Every mutation runs its full
// read-modify-notify sequence under one lock so subscribers never observe a
// torn intermediate state.
type Store struct {
	mu        sync.Mutex
	logger    infra.Logger
	retention time.Duration
	tasks     map[string]*Task
	subs      map[string]map[*Subscriber]struct{}
	timers    map[string]*time.Timer
	now       func() time.Time
}

// NewStore creates an empty registry. Tasks are evicted retention after
// creation regardless of their terminal state.
func NewStore(retention time.Duration, logger infra.Logger) *Store {
	return &Store{
		logger:    logger,
		retention: retention,
		tasks:     make(map[string]*Task),
		subs:      make(map[string]map[*Subscriber]struct{}),
		timers:    make(map[string]*time.Timer),
		now:       time.Now,
	}
}

// Create inserts a new QUEUED task for a validated contract and schedules
// its eviction.
func (s *Store) Create(c *contract.GenerationContract) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[c.TaskID]; exists {
		return Snapshot{}, ErrTaskExists
	}

	t := &Task{
		TaskID:    c.TaskID,
		Contract:  c,
		Status:    contract.StatusQueued,
		Warnings:  []string{},
		UpdatedAt: s.now(),
	}
	s.tasks[c.TaskID] = t
	s.timers[c.TaskID] = time.AfterFunc(s.retention, func() { s.evict(c.TaskID) })

	s.logger.Info().Str("task_id", c.TaskID).Msg("task: created")
	return s.notifyLocked(t), nil
}

// Start transitions QUEUED to PROCESSING and clears any residue from fields
// a rerun would otherwise inherit.
func (s *Store) Start(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if t.Status != contract.StatusQueued {
		return ErrInvalidTransition
	}

	t.Status = contract.StatusProcessing
	t.OutputURL = ""
	t.ErrorCode = ""
	t.Message = ""
	t.Progress = nil
	t.UpdatedAt = s.now()
	s.notifyLocked(t)
	return nil
}

// ReportProgress updates the progress field only. It is a no-op for unknown
// (possibly evicted) or already terminal tasks.
func (s *Store) ReportProgress(taskID, stage string, progress float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok || t.Status.Terminal() {
		return
	}

	t.Progress = &Progress{Stage: stage, Progress: progress}
	t.UpdatedAt = s.now()
	s.notifyLocked(t)
}

// Complete transitions PROCESSING to SUCCESS and settles the run's output.
func (s *Store) Complete(taskID string, res CompletionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if t.Status != contract.StatusProcessing {
		return ErrInvalidTransition
	}

	t.Status = contract.StatusSuccess
	t.OutputURL = res.OutputURL
	t.ErrorCode = ""
	t.Message = ""
	t.Warnings = append([]string{}, res.Warnings...)
	t.Graph = res.Graph
	t.UpdatedAt = s.now()
	s.notifyLocked(t)

	s.logger.Info().Str("task_id", taskID).Str("output_url", res.OutputURL).Msg("task: completed")
	return nil
}

// Fail transitions PROCESSING to FAILED and records the error.
func (s *Store) Fail(taskID, errorCode, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if t.Status != contract.StatusProcessing {
		return ErrInvalidTransition
	}

	t.Status = contract.StatusFailed
	t.OutputURL = ""
	t.ErrorCode = errorCode
	t.Message = message
	t.UpdatedAt = s.now()
	s.notifyLocked(t)

	s.logger.Warn().Str("task_id", taskID).Str("error_code", errorCode).Str("message", message).Msg("task: failed")
	return nil
}

// Get returns the current snapshot of one task.
func (s *Store) Get(taskID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return Snapshot{}, ErrTaskNotFound
	}
	return s.snapshotLocked(t), nil
}

// List returns snapshots of all currently tracked tasks ordered by id.
func (s *Store) List() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Snapshot, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, s.snapshotLocked(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// Subscribe registers interest in one task and immediately delivers its
// current snapshot. A subscriber that joins a terminal task receives that
// snapshot once and nothing further.
func (s *Store) Subscribe(taskID string) (*Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}

	sub := &Subscriber{ch: make(chan Snapshot, subscriberBuffer)}
	set := s.subs[taskID]
	if set == nil {
		set = make(map[*Subscriber]struct{})
		s.subs[taskID] = set
	}
	set[sub] = struct{}{}

	sub.ch <- s.snapshotLocked(t)
	return sub, nil
}

// Unsubscribe detaches a subscriber and closes its channel.
func (s *Store) Unsubscribe(taskID string, sub *Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.subs[taskID]
	if !ok {
		return
	}
	if _, member := set[sub]; !member {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(s.subs, taskID)
	}
	close(sub.ch)
}

// Close tears the registry down: every pending eviction timer is stopped and
// every subscriber channel closed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	for id, set := range s.subs {
		for sub := range set {
			close(sub.ch)
		}
		delete(s.subs, id)
	}
	s.tasks = make(map[string]*Task)
}

// evict drops a task after the retention window. It does not cancel any
// in-flight executor run; a late run simply finds the record gone.
func (s *Store) evict(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return
	}
	delete(s.tasks, taskID)
	delete(s.timers, taskID)
	if set, ok := s.subs[taskID]; ok {
		for sub := range set {
			close(sub.ch)
		}
		delete(s.subs, taskID)
	}
	s.logger.Debug().Str("task_id", taskID).Msg("task: evicted after retention window")
}

// notifyLocked snapshots the task and fans it out to all of that task's
// subscribers. A subscriber that cannot keep up has events dropped rather
// than stalling the store. Callers must hold s.mu.
func (s *Store) notifyLocked(t *Task) Snapshot {
	snap := s.snapshotLocked(t)
	for sub := range s.subs[t.TaskID] {
		select {
		case sub.ch <- snap:
		default:
			sub.dropped++
			s.logger.Warn().Str("task_id", t.TaskID).Int("dropped", sub.dropped).Msg("task: dropping event for slow subscriber")
		}
	}
	return snap
}

func (s *Store) snapshotLocked(t *Task) Snapshot {
	snap := Snapshot{
		StatusResponse: contract.StatusResponse{
			TaskID:    t.TaskID,
			Status:    t.Status,
			Warnings:  append([]string{}, t.Warnings...),
			UpdatedAt: t.UpdatedAt,
		},
		WorkflowGraph: t.Graph,
		Progress:      t.Progress,
	}
	if t.OutputURL != "" {
		url := t.OutputURL
		snap.OutputURL = &url
	}
	if t.ErrorCode != "" {
		code := t.ErrorCode
		snap.ErrorCode = &code
	}
	if t.Message != "" {
		message := t.Message
		snap.Message = &message
	}
	return snap
}
