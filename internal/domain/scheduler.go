package domain

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CompletionHandler runs the owning state machine's effect when a task of a
// given type completes. A returned error keeps the task in_progress.
type CompletionHandler func(Task) error

type dedupeKey struct {
	Type     TaskType
	SKU      string
	Location string
}

// Scheduler maintains warehouse tasks and the pending priority queues.
type Scheduler struct {
	mu       sync.Mutex
	tasks    map[string]*Task
	queues   map[TaskType]*taskQueue
	open     map[dedupeKey]string
	handlers map[TaskType]CompletionHandler
	eligible func(location string) bool
	seq      uint64
	bus      *EventBus
	now      func() time.Time
	newID    func() string
}

// NewScheduler creates an empty scheduler
func NewScheduler(bus *EventBus, now func() time.Time, newID func() string) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Scheduler{
		tasks:    make(map[string]*Task),
		queues:   make(map[TaskType]*taskQueue),
		open:     make(map[dedupeKey]string),
		handlers: make(map[TaskType]CompletionHandler),
		bus:      bus,
		now:      now,
		newID:    newID,
	}
}

// OnComplete registers the completion handler for a task type
func (s *Scheduler) OnComplete(taskType TaskType, h CompletionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[taskType] = h
}

// SetReplenishFilter limits automatic replenishment to locations for which fn
// returns true. Staging and shipping bins are excluded this way.
func (s *Scheduler) SetReplenishFilter(fn func(location string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eligible = fn
}

// CreateTask creates a task. Pre-assigned specs start in the assigned state;
// everything else joins the pending queue.
func (s *Scheduler) CreateTask(spec TaskSpec) (Task, error) {
	if err := spec.Validate(); err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	task := s.createLocked(spec)
	snap := task.snapshot()
	s.mu.Unlock()

	s.bus.Publish(&TaskEvent{Action: TaskActionCreated, Task: snap, At: snap.CreatedAt})
	return snap, nil
}

func (s *Scheduler) createLocked(spec TaskSpec) *Task {
	at := s.now().UTC()
	s.seq++
	priority := spec.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	task := &Task{
		ID:           s.newID(),
		Type:         spec.Type,
		Priority:     priority,
		Status:       TaskStatusPending,
		FromLocation: spec.FromLocation,
		ToLocation:   spec.ToLocation,
		SKU:          spec.SKU,
		Quantity:     spec.Quantity,
		ParentID:     spec.ParentID,
		CreatedAt:    at,
		UpdatedAt:    at,
		seq:          s.seq,
		index:        -1,
	}
	s.tasks[task.ID] = task

	if spec.Assignee != "" {
		task.Status = TaskStatusAssigned
		task.Assignee = spec.Assignee
	} else {
		heap.Push(s.queue(task.Type), task)
	}
	if task.Type == TaskTypeReplenish {
		s.open[replenishKey(task.SKU, task.ToLocation)] = task.ID
	}
	return task
}

func (s *Scheduler) queue(t TaskType) *taskQueue {
	q, ok := s.queues[t]
	if !ok {
		q = &taskQueue{}
		s.queues[t] = q
	}
	return q
}

func replenishKey(sku, location string) dedupeKey {
	return dedupeKey{Type: TaskTypeReplenish, SKU: sku, Location: location}
}

func (s *Scheduler) get(id string) (*Task, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrTaskNotFound)
	}
	return task, nil
}

func taskTransitionError(t *Task, to TaskStatus) error {
	return &TransitionError{Entity: "task", ID: t.ID, From: string(t.Status), To: string(to)}
}

// Assign atomically moves a pending task to assigned. Any other state fails
// with ErrAlreadyAssigned so the caller can refresh and retry.
func (s *Scheduler) Assign(id, assignee string) (Task, error) {
	if assignee == "" {
		return Task{}, ErrAssigneeRequired
	}

	s.mu.Lock()
	task, err := s.get(id)
	if err != nil {
		s.mu.Unlock()
		return Task{}, err
	}
	if task.Status != TaskStatusPending {
		s.mu.Unlock()
		return Task{}, &AssignmentError{TaskID: id, Status: task.Status, Assignee: task.Assignee}
	}
	s.queue(task.Type).remove(task)
	task.Status = TaskStatusAssigned
	task.Assignee = assignee
	task.UpdatedAt = s.now().UTC()
	snap := task.snapshot()
	s.mu.Unlock()

	s.bus.Publish(&TaskEvent{Action: TaskActionAssigned, Task: snap, At: snap.UpdatedAt})
	return snap, nil
}

// Start moves an assigned task to in_progress
func (s *Scheduler) Start(id string) (Task, error) {
	s.mu.Lock()
	task, err := s.get(id)
	if err != nil {
		s.mu.Unlock()
		return Task{}, err
	}
	if task.Status != TaskStatusAssigned {
		s.mu.Unlock()
		return Task{}, taskTransitionError(task, TaskStatusInProgress)
	}
	task.Status = TaskStatusInProgress
	task.UpdatedAt = s.now().UTC()
	snap := task.snapshot()
	s.mu.Unlock()

	s.bus.Publish(&TaskEvent{Action: TaskActionStarted, Task: snap, At: snap.UpdatedAt})
	return snap, nil
}

// Complete finishes an in_progress task. The type's completion handler runs
// outside the scheduler lock; if it fails the task stays in_progress.
func (s *Scheduler) Complete(id string) (Task, error) {
	s.mu.Lock()
	task, err := s.get(id)
	if err != nil {
		s.mu.Unlock()
		return Task{}, err
	}
	if task.Status != TaskStatusInProgress {
		s.mu.Unlock()
		return Task{}, taskTransitionError(task, TaskStatusCompleted)
	}
	if task.completing {
		s.mu.Unlock()
		return Task{}, preconditionf("task %s completion already in progress", id)
	}
	task.completing = true
	pending := task.snapshot()
	handler := s.handlers[task.Type]
	s.mu.Unlock()

	if handler != nil {
		if err := handler(pending); err != nil {
			s.mu.Lock()
			task.completing = false
			s.mu.Unlock()
			return Task{}, err
		}
	}

	s.mu.Lock()
	task.completing = false
	snap := s.finishLocked(task, task.Assignee)
	s.mu.Unlock()

	s.bus.Publish(&TaskEvent{Action: TaskActionCompleted, Task: snap, At: snap.UpdatedAt})
	return snap, nil
}

// CloseOut completes an open task on behalf of a state machine that moved
// past the step. No completion handler runs. Completed tasks are returned as is.
func (s *Scheduler) CloseOut(id string) (Task, error) {
	s.mu.Lock()
	task, err := s.get(id)
	if err != nil {
		s.mu.Unlock()
		return Task{}, err
	}
	if task.Status == TaskStatusCompleted {
		snap := task.snapshot()
		s.mu.Unlock()
		return snap, nil
	}
	if !task.Status.IsOpen() {
		s.mu.Unlock()
		return Task{}, taskTransitionError(task, TaskStatusCompleted)
	}
	if task.completing {
		s.mu.Unlock()
		return Task{}, preconditionf("task %s completion already in progress", id)
	}
	s.queue(task.Type).remove(task)
	snap := s.finishLocked(task, SystemActor)
	s.mu.Unlock()

	s.bus.Publish(&TaskEvent{Action: TaskActionCompleted, Task: snap, At: snap.UpdatedAt})
	return snap, nil
}

func (s *Scheduler) finishLocked(task *Task, by string) Task {
	at := s.now().UTC()
	task.Status = TaskStatusCompleted
	task.CompletedAt = &at
	task.CompletedBy = by
	task.UpdatedAt = at
	s.releaseKeyLocked(task)
	return task.snapshot()
}

// Cancel cancels an open task. Cancellation never propagates to the parent.
func (s *Scheduler) Cancel(id string) (Task, error) {
	s.mu.Lock()
	task, err := s.get(id)
	if err != nil {
		s.mu.Unlock()
		return Task{}, err
	}
	if !task.Status.IsOpen() {
		s.mu.Unlock()
		return Task{}, taskTransitionError(task, TaskStatusCancelled)
	}
	if task.completing {
		s.mu.Unlock()
		return Task{}, preconditionf("task %s completion already in progress", id)
	}
	s.queue(task.Type).remove(task)
	task.Status = TaskStatusCancelled
	task.UpdatedAt = s.now().UTC()
	s.releaseKeyLocked(task)
	snap := task.snapshot()
	s.mu.Unlock()

	s.bus.Publish(&TaskEvent{Action: TaskActionCancelled, Task: snap, At: snap.UpdatedAt})
	return snap, nil
}

func (s *Scheduler) releaseKeyLocked(task *Task) {
	if task.Type != TaskTypeReplenish {
		return
	}
	key := replenishKey(task.SKU, task.ToLocation)
	if s.open[key] == task.ID {
		delete(s.open, key)
	}
}

// Task returns a task snapshot
func (s *Scheduler) Task(id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.get(id)
	if err != nil {
		return Task{}, err
	}
	return task.snapshot(), nil
}

// ListTasks returns matching tasks in queue order
func (s *Scheduler) ListTasks(filter TaskFilter) []Task {
	s.mu.Lock()
	matched := make([]*Task, 0)
	for _, t := range s.tasks {
		if filter.matches(t) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return taskLess(matched[i], matched[j]) })
	out := make([]Task, len(matched))
	for i, t := range matched {
		out[i] = t.snapshot()
	}
	s.mu.Unlock()
	return out
}

// NextTask peeks the highest priority pending task, optionally of one type
func (s *Scheduler) NextTask(taskType TaskType) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *Task
	for t, q := range s.queues {
		if taskType != "" && t != taskType {
			continue
		}
		if q.Len() == 0 {
			continue
		}
		if top := (*q)[0]; best == nil || taskLess(top, best) {
			best = top
		}
	}
	if best == nil {
		return Task{}, false
	}
	return best.snapshot(), true
}

// TasksByStatus reports whether every listed task has the given status
func (s *Scheduler) TasksByStatus(ids []string, status TaskStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		t, ok := s.tasks[id]
		if !ok || t.Status != status {
			return false
		}
	}
	return true
}

// HandleEvent reacts to ledger changes by opening replenish tasks for records
// that are low or out of stock, at most one open task per SKU and location.
// Stock already incoming above the reorder point suppresses the task.
func (s *Scheduler) HandleEvent(ev DomainEvent) {
	changed, ok := ev.(*RecordChangedEvent)
	if !ok || !changed.Status.NeedsReplenishment() {
		return
	}
	if changed.QuantityIncoming > 0 && changed.QuantityAvailable+changed.QuantityIncoming > changed.ReorderPoint {
		return
	}

	s.mu.Lock()
	if s.eligible != nil && !s.eligible(changed.Location) {
		s.mu.Unlock()
		return
	}
	if _, exists := s.open[replenishKey(changed.SKU, changed.Location)]; exists {
		s.mu.Unlock()
		return
	}

	quantity := changed.ReorderQuantity
	if quantity <= 0 {
		quantity = max(changed.ReorderPoint-changed.QuantityAvailable, 1)
	}
	priority := PriorityNormal
	if changed.Status == StockStatusOutOfStock {
		priority = PriorityHigh
	}
	task := s.createLocked(TaskSpec{
		Type:       TaskTypeReplenish,
		Priority:   priority,
		ToLocation: changed.Location,
		SKU:        changed.SKU,
		Quantity:   quantity,
	})
	snap := task.snapshot()
	s.mu.Unlock()

	s.bus.Publish(&TaskEvent{Action: TaskActionCreated, Task: snap, At: snap.CreatedAt})
}

// closeIfOpen closes a state machine's step task. Tasks an operator already
// cancelled are left alone.
func (s *Scheduler) closeIfOpen(id string) error {
	if id == "" {
		return nil
	}
	_, err := s.CloseOut(id)
	if errors.Is(err, ErrInvalidTransition) {
		return nil
	}
	return err
}
