package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bizflow/bizflow/pkg/model"
	"github.com/bizflow/bizflow/pkg/schedule"
	"github.com/bizflow/bizflow/pkg/store/storetest"
)

type recordingRunner struct {
	mu   sync.Mutex
	runs []*model.Workflow
}

func (r *recordingRunner) Run(ctx context.Context, workflow *model.Workflow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, workflow)
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func (r *recordingRunner) last() *model.Workflow {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.runs) == 0 {
		return nil
	}
	return r.runs[len(r.runs)-1]
}

func seedWorkflow(t *testing.T, workflows *storetest.WorkflowStore, spec string, status model.WorkflowStatus) *model.Workflow {
	t.Helper()
	workflow := &model.Workflow{
		ID:       uuid.New(),
		Name:     "seeded",
		Type:     model.TypeReporting,
		Schedule: spec,
		Status:   status,
	}
	if err := workflows.Create(context.Background(), workflow); err != nil {
		t.Fatalf("failed to seed workflow: %v", err)
	}
	return workflow
}

func TestScheduleWorkflowRejectsInvalidExpression(t *testing.T) {
	workflows := storetest.NewWorkflowStore()
	s := New(workflows, &recordingRunner{}, zap.NewNop())

	workflow := seedWorkflow(t, workflows, "not a cron", model.WorkflowActive)

	err := s.ScheduleWorkflow(workflow)
	if !errors.Is(err, schedule.ErrInvalidExpression) {
		t.Fatalf("expected ErrInvalidExpression, got %v", err)
	}
	if s.HasTrigger(workflow.ID) {
		t.Fatal("invalid schedule must leave the workflow unscheduled")
	}
}

func TestScheduleWorkflowIsIdempotent(t *testing.T) {
	workflows := storetest.NewWorkflowStore()
	s := New(workflows, &recordingRunner{}, zap.NewNop())

	workflow := seedWorkflow(t, workflows, "*/5 * * * *", model.WorkflowActive)

	if err := s.ScheduleWorkflow(workflow); err != nil {
		t.Fatalf("ScheduleWorkflow error: %v", err)
	}
	if err := s.ScheduleWorkflow(workflow); err != nil {
		t.Fatalf("ScheduleWorkflow repeat error: %v", err)
	}

	if got := s.TriggerCount(); got != 1 {
		t.Fatalf("expected exactly 1 live trigger, got %d", got)
	}

	// A changed schedule swaps the trigger, it does not stack.
	workflow.Schedule = "0 * * * *"
	if err := s.ScheduleWorkflow(workflow); err != nil {
		t.Fatalf("ScheduleWorkflow swap error: %v", err)
	}
	if got := s.TriggerCount(); got != 1 {
		t.Fatalf("expected 1 live trigger after swap, got %d", got)
	}
}

func TestScheduleWorkflowUnschedulesNonSchedulable(t *testing.T) {
	workflows := storetest.NewWorkflowStore()
	s := New(workflows, &recordingRunner{}, zap.NewNop())

	workflow := seedWorkflow(t, workflows, "*/5 * * * *", model.WorkflowActive)
	if err := s.ScheduleWorkflow(workflow); err != nil {
		t.Fatalf("ScheduleWorkflow error: %v", err)
	}

	workflow.Status = model.WorkflowPaused
	if err := s.ScheduleWorkflow(workflow); err != nil {
		t.Fatalf("ScheduleWorkflow on paused error: %v", err)
	}
	if s.HasTrigger(workflow.ID) {
		t.Fatal("paused workflow must not hold a trigger")
	}
}

func TestUnscheduleWorkflowIsNoOpWhenAbsent(t *testing.T) {
	s := New(storetest.NewWorkflowStore(), &recordingRunner{}, zap.NewNop())
	s.UnscheduleWorkflow(uuid.New()) // must not panic
	if got := s.TriggerCount(); got != 0 {
		t.Fatalf("expected 0 triggers, got %d", got)
	}
}

func TestReconcileSeedsOnlyActiveScheduled(t *testing.T) {
	workflows := storetest.NewWorkflowStore()
	s := New(workflows, &recordingRunner{}, zap.NewNop())

	seedWorkflow(t, workflows, "*/5 * * * *", model.WorkflowActive)
	seedWorkflow(t, workflows, "0 9 * * *", model.WorkflowActive)
	seedWorkflow(t, workflows, "30 8 * * 1", model.WorkflowActive)
	seedWorkflow(t, workflows, "*/10 * * * *", model.WorkflowPaused)
	broken := seedWorkflow(t, workflows, "every day at nine", model.WorkflowActive)

	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}

	if got := s.TriggerCount(); got != 3 {
		t.Fatalf("expected 3 live triggers after reconcile, got %d", got)
	}
	if s.HasTrigger(broken.ID) {
		t.Fatal("workflow with invalid schedule must stay unscheduled")
	}
}

func TestFiringRunsWithFreshDefinition(t *testing.T) {
	workflows := storetest.NewWorkflowStore()
	runner := &recordingRunner{}
	s := New(workflows, runner, zap.NewNop())

	workflow := seedWorkflow(t, workflows, "@every 1s", model.WorkflowActive)
	if err := s.ScheduleWorkflow(workflow); err != nil {
		t.Fatalf("ScheduleWorkflow error: %v", err)
	}

	// Rename in the store after scheduling; the fire must see the new name.
	if err := workflows.Update(context.Background(), workflow.ID, map[string]interface{}{"name": "renamed"}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	s.Start()
	defer s.Stop(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for runner.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("trigger never fired")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if got := runner.last().Name; got != "renamed" {
		t.Fatalf("fire used a stale definition: name %q", got)
	}
}

func TestUnscheduledWorkflowDoesNotFire(t *testing.T) {
	workflows := storetest.NewWorkflowStore()
	runner := &recordingRunner{}
	s := New(workflows, runner, zap.NewNop())

	workflow := seedWorkflow(t, workflows, "@every 1s", model.WorkflowActive)
	if err := s.ScheduleWorkflow(workflow); err != nil {
		t.Fatalf("ScheduleWorkflow error: %v", err)
	}

	s.UnscheduleWorkflow(workflow.ID)

	s.Start()
	defer s.Stop(context.Background())

	time.Sleep(1500 * time.Millisecond)
	if got := runner.count(); got != 0 {
		t.Fatalf("unscheduled workflow fired %d times", got)
	}
}

func TestFireDropsTriggerForPausedWorkflow(t *testing.T) {
	workflows := storetest.NewWorkflowStore()
	runner := &recordingRunner{}
	s := New(workflows, runner, zap.NewNop())

	workflow := seedWorkflow(t, workflows, "@every 1s", model.WorkflowActive)
	if err := s.ScheduleWorkflow(workflow); err != nil {
		t.Fatalf("ScheduleWorkflow error: %v", err)
	}

	// Pause in the store without going through the scheduler, simulating a
	// write the trigger set has not observed yet.
	if err := workflows.Update(context.Background(), workflow.ID, map[string]interface{}{"status": model.WorkflowPaused}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	s.Start()
	defer s.Stop(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for s.HasTrigger(workflow.ID) {
		if time.Now().After(deadline) {
			t.Fatal("trigger for paused workflow was never dropped")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if got := runner.count(); got != 0 {
		t.Fatalf("paused workflow was executed %d times", got)
	}
}
