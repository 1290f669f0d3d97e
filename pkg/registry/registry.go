// Package registry owns workflow definitions. Every change to a schedule or
// status is reflected in the scheduler's live trigger set before the call
// returns, so a paused or deleted workflow can never fire through a stale
// trigger.
package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/bizflow/bizflow/pkg/eventbus"
	"github.com/bizflow/bizflow/pkg/model"
	"github.com/bizflow/bizflow/pkg/schedule"
	"github.com/bizflow/bizflow/pkg/store"
)

// Scheduler is the trigger-set side of the engine as the registry sees it.
type Scheduler interface {
	ScheduleWorkflow(workflow *model.Workflow) error
	UnscheduleWorkflow(id uuid.UUID)
}

// Runner executes a workflow outside its schedule (manual trigger).
type Runner interface {
	Run(ctx context.Context, workflow *model.Workflow)
}

type Service struct {
	workflows  store.WorkflowStore
	executions store.ExecutionStore
	scheduler  Scheduler
	runner     Runner
	bus        *eventbus.Bus
	logger     *zap.Logger

	// historyLimit caps ListExecutions when the caller supplies no limit.
	historyLimit int
}

type Option func(*Service)

// WithBus publishes workflow lifecycle events to the given bus.
func WithBus(bus *eventbus.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithHistoryLimit overrides the default execution history page size.
func WithHistoryLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

func NewService(workflows store.WorkflowStore, executions store.ExecutionStore, sched Scheduler, runner Runner, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		workflows:    workflows,
		executions:   executions,
		scheduler:    sched,
		runner:       runner,
		logger:       logger,
		historyLimit: 50,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	BusinessID  uuid.UUID
	Name        string
	Type        model.WorkflowType
	Description string
	Config      model.JSONB
	Schedule    string
	Tags        []string
}

// Create validates the schedule before acceptance, persists the workflow as
// active, and installs its trigger when one is due.
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.Workflow, error) {
	if input.Schedule != "" {
		if err := schedule.Validate(input.Schedule); err != nil {
			return nil, err
		}
	}

	config := input.Config
	if config == nil {
		config = model.JSONB{}
	}

	workflow := &model.Workflow{
		ID:          uuid.New(),
		BusinessID:  input.BusinessID,
		Name:        input.Name,
		Description: input.Description,
		Type:        input.Type,
		Config:      config,
		Schedule:    input.Schedule,
		Status:      model.WorkflowActive,
		Tags:        pq.StringArray(input.Tags),
	}

	if err := s.workflows.Create(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	if workflow.Schedulable() {
		if err := s.scheduler.ScheduleWorkflow(workflow); err != nil {
			// Schedule already validated; treat as scheduler-side failure.
			s.logger.Error("failed to schedule new workflow",
				zap.String("workflow_id", workflow.ID.String()),
				zap.Error(err))
		}
	}

	s.publish(ctx, "workflow_created", workflow)
	s.logger.Info("workflow created",
		zap.String("workflow_id", workflow.ID.String()),
		zap.String("type", string(workflow.Type)),
		zap.String("schedule", workflow.Schedule))
	return workflow, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Workflow, error) {
	return s.workflows.GetByID(ctx, id)
}

func (s *Service) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]model.Workflow, error) {
	return s.workflows.ListByBusiness(ctx, businessID)
}

type UpdateInput struct {
	Name        *string
	Description *string
	Config      *model.JSONB
	Schedule    *string
	Status      *model.WorkflowStatus
	Tags        *[]string
}

// Update applies only the supplied fields. When the schedule or status
// changes, the live trigger is reconciled before Update returns.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*model.Workflow, error) {
	if _, err := s.workflows.GetByID(ctx, id); err != nil {
		return nil, err
	}

	if input.Schedule != nil && *input.Schedule != "" {
		if err := schedule.Validate(*input.Schedule); err != nil {
			return nil, err
		}
	}
	if input.Status != nil && !validStatus(*input.Status) {
		return nil, fmt.Errorf("invalid workflow status: %q", *input.Status)
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Config != nil {
		updates["config"] = *input.Config
	}
	if input.Schedule != nil {
		updates["schedule"] = *input.Schedule
	}
	if input.Status != nil {
		updates["status"] = *input.Status
	}
	if input.Tags != nil {
		updates["tags"] = pq.StringArray(*input.Tags)
	}

	if len(updates) > 0 {
		if err := s.workflows.Update(ctx, id, updates); err != nil {
			return nil, err
		}
	}

	updated, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Trigger reconciliation is synchronous with the definition change.
	if input.Schedule != nil || input.Status != nil {
		if updated.Schedulable() {
			if err := s.scheduler.ScheduleWorkflow(updated); err != nil {
				return nil, err
			}
		} else {
			s.scheduler.UnscheduleWorkflow(id)
		}
	}

	s.publish(ctx, "workflow_updated", updated)
	return updated, nil
}

// Remove unschedules the workflow and then soft-deletes it. The trigger is
// gone before the registry state changes, so no orphaned timer survives.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	workflow, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return err
	}

	s.scheduler.UnscheduleWorkflow(id)

	if err := s.workflows.Delete(ctx, id); err != nil {
		return err
	}

	workflow.Status = model.WorkflowDeleted
	s.publish(ctx, "workflow_removed", workflow)
	s.logger.Info("workflow removed", zap.String("workflow_id", id.String()))
	return nil
}

// TriggerNow runs the workflow once, outside its schedule. The execution
// happens off the caller's path; overlap rules still apply.
func (s *Service) TriggerNow(ctx context.Context, id uuid.UUID) error {
	workflow, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if workflow.Status == model.WorkflowDeleted {
		return store.ErrNotFound
	}

	go s.runner.Run(context.Background(), workflow)

	s.logger.Info("workflow triggered manually", zap.String("workflow_id", id.String()))
	return nil
}

func (s *Service) ListExecutions(ctx context.Context, workflowID uuid.UUID, limit int) ([]model.Execution, error) {
	if _, err := s.workflows.GetByID(ctx, workflowID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.historyLimit
	}
	return s.executions.ListByWorkflow(ctx, workflowID, limit)
}

func (s *Service) publish(ctx context.Context, eventType string, workflow *model.Workflow) {
	if s.bus == nil {
		return
	}
	payload := eventbus.WorkflowEvent{
		WorkflowID: workflow.ID.String(),
		Status:     string(workflow.Status),
		Schedule:   workflow.Schedule,
	}
	if event, err := eventbus.NewEvent(eventType, payload); err == nil {
		_ = s.bus.Publish(ctx, eventbus.ChannelWorkflow, event)
	}
}

func validStatus(status model.WorkflowStatus) bool {
	switch status {
	case model.WorkflowActive, model.WorkflowPaused, model.WorkflowDeleted:
		return true
	default:
		return false
	}
}
