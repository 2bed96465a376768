package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/warehouse-core/internal/domain"
	"github.com/wms-platform/warehouse-core/pkg/tracing"
)

// CreateTask creates an operator task
func (s *WarehouseService) CreateTask(ctx context.Context, spec domain.TaskSpec) (domain.Task, error) {
	var task domain.Task
	attrs := []attribute.KeyValue{
		attribute.String("wms.task.type", string(spec.Type)),
		attribute.String("wms.priority", string(spec.Priority)),
	}
	err := s.run(ctx, "create_task", attrs, func(ctx context.Context) error {
		var err error
		task, err = s.warehouse.Scheduler.CreateTask(spec)
		return err
	})
	return task, err
}

// GetTask returns a task by id
func (s *WarehouseService) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return s.warehouse.Scheduler.Task(id)
}

// ListTasks returns tasks matching filter
func (s *WarehouseService) ListTasks(ctx context.Context, filter domain.TaskFilter) []domain.Task {
	return s.warehouse.Scheduler.ListTasks(filter)
}

// NextTask peeks the highest priority pending task, optionally of one type
func (s *WarehouseService) NextTask(ctx context.Context, taskType domain.TaskType) (domain.Task, bool) {
	return s.warehouse.Scheduler.NextTask(taskType)
}

// AssignTask assigns a pending task. Losing a race returns ErrAlreadyAssigned.
func (s *WarehouseService) AssignTask(ctx context.Context, id, assignee string) (domain.Task, error) {
	attrs := append(tracing.WarehouseAttributes(AggregateTask, id), attribute.String("wms.assignee", assignee))
	return s.taskOp(ctx, "assign_task", attrs, func() (domain.Task, error) {
		return s.warehouse.Scheduler.Assign(id, assignee)
	})
}

// StartTask starts an assigned task
func (s *WarehouseService) StartTask(ctx context.Context, id string) (domain.Task, error) {
	return s.taskOp(ctx, "start_task", tracing.WarehouseAttributes(AggregateTask, id), func() (domain.Task, error) {
		return s.warehouse.Scheduler.Start(id)
	})
}

// CompleteTask completes an in-progress task and runs its completion effect
func (s *WarehouseService) CompleteTask(ctx context.Context, id string) (domain.Task, error) {
	return s.taskOp(ctx, "complete_task", tracing.WarehouseAttributes(AggregateTask, id), func() (domain.Task, error) {
		return s.warehouse.Scheduler.Complete(id)
	})
}

// CancelTask cancels an open task
func (s *WarehouseService) CancelTask(ctx context.Context, id string) (domain.Task, error) {
	return s.taskOp(ctx, "cancel_task", tracing.WarehouseAttributes(AggregateTask, id), func() (domain.Task, error) {
		return s.warehouse.Scheduler.Cancel(id)
	})
}

func (s *WarehouseService) taskOp(ctx context.Context, op string, attrs []attribute.KeyValue, fn func() (domain.Task, error)) (domain.Task, error) {
	var task domain.Task
	err := s.run(ctx, op, attrs, func(ctx context.Context) error {
		var err error
		task, err = fn()
		return err
	})
	return task, err
}
