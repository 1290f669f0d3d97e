// Package scheduler owns the live trigger set: the mapping from workflow id
// to an active cron entry. It is the single scheduling authority; all
// mutations of the trigger set go through ScheduleWorkflow and
// UnscheduleWorkflow under one lock.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bizflow/bizflow/pkg/metrics"
	"github.com/bizflow/bizflow/pkg/model"
	"github.com/bizflow/bizflow/pkg/schedule"
	"github.com/bizflow/bizflow/pkg/store"
)

// Runner executes a fired workflow. Invocations for distinct workflows may
// run concurrently; the runner enforces the per-workflow overlap guard.
type Runner interface {
	Run(ctx context.Context, workflow *model.Workflow)
}

type Scheduler struct {
	workflows store.WorkflowStore
	runner    Runner
	logger    *zap.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	entries map[uuid.UUID]cron.EntryID
}

func New(workflows store.WorkflowStore, runner Runner, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		workflows: workflows,
		runner:    runner,
		logger:    logger,
		cron:      cron.New(cron.WithParser(schedule.Parser), cron.WithLocation(time.UTC)),
		entries:   make(map[uuid.UUID]cron.EntryID),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts trigger firing and waits for in-flight jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out waiting for running jobs")
	}
}

// ScheduleWorkflow installs a live trigger for the workflow, atomically
// replacing any existing one. Calling it again with an unchanged schedule is
// idempotent: the workflow holds exactly one trigger afterwards. An invalid
// schedule leaves the workflow unscheduled and is reported to the caller,
// never fatal to the process.
func (s *Scheduler) ScheduleWorkflow(workflow *model.Workflow) error {
	if !workflow.Schedulable() {
		s.UnscheduleWorkflow(workflow.ID)
		return nil
	}

	spec, err := schedule.Parse(workflow.Schedule)
	if err != nil {
		s.logger.Error("invalid schedule, workflow left unscheduled",
			zap.String("workflow_id", workflow.ID.String()),
			zap.String("schedule", workflow.Schedule),
			zap.Error(err))
		return err
	}

	id := workflow.ID

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[id]; ok {
		s.cron.Remove(existing)
	}
	s.entries[id] = s.cron.Schedule(spec, cron.FuncJob(func() {
		s.fire(id)
	}))
	metrics.LiveTriggers.Set(float64(len(s.entries)))

	s.logger.Info("scheduled workflow",
		zap.String("workflow_id", id.String()),
		zap.String("name", workflow.Name),
		zap.String("schedule", workflow.Schedule))
	return nil
}

// UnscheduleWorkflow removes the live trigger if present; a no-op otherwise.
// Once it returns, no future fire occurs for the id. An execution already
// running is not aborted.
func (s *Scheduler) UnscheduleWorkflow(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return
	}
	s.cron.Remove(entry)
	delete(s.entries, id)
	metrics.LiveTriggers.Set(float64(len(s.entries)))

	s.logger.Info("unscheduled workflow", zap.String("workflow_id", id.String()))
}

// Reconcile rebuilds the trigger set from the registry. A workflow that
// fails to schedule is skipped; it never aborts reconciliation of the rest.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	workflows, err := s.workflows.ListActiveScheduled(ctx)
	if err != nil {
		return err
	}

	scheduled := 0
	for i := range workflows {
		if err := s.ScheduleWorkflow(&workflows[i]); err != nil {
			s.logger.Error("reconcile skipped workflow",
				zap.String("workflow_id", workflows[i].ID.String()),
				zap.Error(err))
			continue
		}
		scheduled++
	}

	s.logger.Info("reconciled scheduled workflows",
		zap.Int("scheduled", scheduled),
		zap.Int("candidates", len(workflows)))
	return nil
}

// HasTrigger reports whether the workflow currently holds a live trigger.
func (s *Scheduler) HasTrigger(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// TriggerCount returns the number of live triggers.
func (s *Scheduler) TriggerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// fire handles one due trigger. The workflow definition is re-fetched so the
// execution sees the most recent configuration, not the copy that was
// current when the trigger was installed.
func (s *Scheduler) fire(id uuid.UUID) {
	ctx := context.Background()

	workflow, err := s.workflows.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("fired workflow no longer exists, dropping trigger",
			zap.String("workflow_id", id.String()))
		s.UnscheduleWorkflow(id)
		return
	}
	if err != nil {
		// Transient storage errors do not unschedule the workflow.
		s.logger.Error("failed to fetch workflow at fire time",
			zap.String("workflow_id", id.String()),
			zap.Error(err))
		return
	}

	if !workflow.Schedulable() {
		s.logger.Info("fired workflow is no longer schedulable, dropping trigger",
			zap.String("workflow_id", id.String()),
			zap.String("status", string(workflow.Status)))
		s.UnscheduleWorkflow(id)
		return
	}

	s.runner.Run(ctx, workflow)
}
