package domain

import (
	"container/heap"
	"time"
)

// TaskType classifies a warehouse task
type TaskType string

const (
	TaskTypePutaway   TaskType = "putaway"
	TaskTypePick      TaskType = "pick"
	TaskTypePack      TaskType = "pack"
	TaskTypeCount     TaskType = "count"
	TaskTypeReplenish TaskType = "replenish"
	TaskTypeMove      TaskType = "move"
	TaskTypeReceive   TaskType = "receive"
	TaskTypeShip      TaskType = "ship"
)

// IsValid checks if the task type is one of the known values
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypePutaway, TaskTypePick, TaskTypePack, TaskTypeCount,
		TaskTypeReplenish, TaskTypeMove, TaskTypeReceive, TaskTypeShip:
		return true
	}
	return false
}

// TaskStatus is the lifecycle state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusAssigned   TaskStatus = "assigned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsOpen reports whether the task still needs work
func (s TaskStatus) IsOpen() bool {
	return s == TaskStatusPending || s == TaskStatusAssigned || s == TaskStatusInProgress
}

// IsValid checks if the status is one of the known values
func (s TaskStatus) IsValid() bool {
	return s.IsOpen() || s == TaskStatusCompleted || s == TaskStatusCancelled
}

// SystemActor marks tasks closed by a state machine rather than an operator.
const SystemActor = "system"

// Task is a discrete unit of warehouse work. Tasks are retained after
// completion or cancellation for audit.
type Task struct {
	ID           string     `json:"id"`
	Type         TaskType   `json:"type"`
	Priority     Priority   `json:"priority"`
	Status       TaskStatus `json:"status"`
	FromLocation string     `json:"fromLocation,omitempty"`
	ToLocation   string     `json:"toLocation,omitempty"`
	SKU          string     `json:"sku,omitempty"`
	Quantity     int        `json:"quantity"`
	Assignee     string     `json:"assignee,omitempty"`
	// ParentID is the order, shipment or cycle count that spawned the task.
	ParentID    string     `json:"parentId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CompletedBy string     `json:"completedBy,omitempty"`

	seq        uint64
	completing bool
	index      int
}

func (t *Task) snapshot() Task {
	out := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		out.CompletedAt = &at
	}
	out.completing = false
	out.index = -1
	return out
}

// TaskSpec describes a task to create
type TaskSpec struct {
	Type         TaskType
	Priority     Priority
	FromLocation string
	ToLocation   string
	SKU          string
	Quantity     int
	// Assignee pre-assigns the task; it is created in the assigned state.
	Assignee string
	ParentID string
}

// Validate checks the spec's shape
func (s TaskSpec) Validate() error {
	if !s.Type.IsValid() {
		return validationf("unknown task type %q", s.Type)
	}
	if s.Priority != "" && !s.Priority.IsValid() {
		return ErrInvalidPriority
	}
	if s.Quantity < 0 {
		return ErrInvalidQuantity
	}
	switch s.Type {
	case TaskTypeMove, TaskTypePutaway:
		if s.SKU == "" || s.FromLocation == "" || s.ToLocation == "" {
			return validationf("%s task requires sku, fromLocation and toLocation", s.Type)
		}
		if s.FromLocation == s.ToLocation {
			return validationf("%s task source and destination are the same", s.Type)
		}
		if s.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	case TaskTypePick:
		if s.SKU == "" || s.FromLocation == "" || s.Quantity <= 0 {
			return validationf("pick task requires sku, fromLocation and a positive quantity")
		}
	case TaskTypeCount:
		if s.ToLocation == "" && s.FromLocation == "" {
			return validationf("count task requires a location")
		}
	case TaskTypeReplenish:
		if s.SKU == "" || s.ToLocation == "" {
			return validationf("replenish task requires sku and toLocation")
		}
	}
	return nil
}

// TaskFilter narrows ListTasks. Zero fields match everything.
type TaskFilter struct {
	Type     TaskType
	Status   TaskStatus
	Assignee string
	ParentID string
	SKU      string
}

func (f TaskFilter) matches(t *Task) bool {
	return (f.Type == "" || t.Type == f.Type) &&
		(f.Status == "" || t.Status == f.Status) &&
		(f.Assignee == "" || t.Assignee == f.Assignee) &&
		(f.ParentID == "" || t.ParentID == f.ParentID) &&
		(f.SKU == "" || t.SKU == f.SKU)
}

// taskLess orders by priority desc then creation order asc.
func taskLess(a, b *Task) bool {
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() > b.Priority.Rank()
	}
	return a.seq < b.seq
}

// taskQueue is a heap of pending tasks with indexed removal.
type taskQueue []*Task

func (q taskQueue) Len() int           { return len(q) }
func (q taskQueue) Less(i, j int) bool { return taskLess(q[i], q[j]) }

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*Task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

func (q *taskQueue) remove(t *Task) {
	if t.index >= 0 && t.index < q.Len() && (*q)[t.index] == t {
		heap.Remove(q, t.index)
	}
}
