// Package runner turns a fired trigger into one recorded execution: it
// creates the execution row, resolves and invokes the handler, and writes
// the outcome back. Failures are contained per execution; nothing a handler
// does can take down the scheduling process.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bizflow/bizflow/pkg/eventbus"
	"github.com/bizflow/bizflow/pkg/handler"
	"github.com/bizflow/bizflow/pkg/metrics"
	"github.com/bizflow/bizflow/pkg/model"
	"github.com/bizflow/bizflow/pkg/store"
)

type Runner struct {
	executions store.ExecutionStore
	workflows  store.WorkflowStore
	handlers   *handler.Registry
	bus        *eventbus.Bus
	logger     *zap.Logger

	// timeout bounds one handler invocation; zero means unbounded.
	timeout time.Duration

	mu       sync.Mutex
	inFlight map[uuid.UUID]uuid.UUID // workflow id -> running execution id
	wg       sync.WaitGroup
}

type Option func(*Runner)

// WithHandlerTimeout force-fails executions that exceed d. The per-workflow
// run lock is released on timeout even if the handler is still going.
func WithHandlerTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithBus publishes execution lifecycle events to the given bus.
func WithBus(bus *eventbus.Bus) Option {
	return func(r *Runner) { r.bus = bus }
}

func New(executions store.ExecutionStore, workflows store.WorkflowStore, handlers *handler.Registry, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		executions: executions,
		workflows:  workflows,
		handlers:   handlers,
		logger:     logger,
		inFlight:   make(map[uuid.UUID]uuid.UUID),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the workflow once. At most one execution per workflow is in
// the running state at any instant: a trigger that fires while a prior run
// is still in flight is recorded as a skipped execution, not run.
func (r *Runner) Run(ctx context.Context, workflow *model.Workflow) {
	executionID := uuid.New()

	r.mu.Lock()
	if runningID, ok := r.inFlight[workflow.ID]; ok {
		r.mu.Unlock()
		r.recordSkip(ctx, workflow, runningID)
		return
	}
	r.inFlight[workflow.ID] = executionID
	r.mu.Unlock()

	r.wg.Add(1)
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		if r.inFlight[workflow.ID] == executionID {
			delete(r.inFlight, workflow.ID)
		}
		r.mu.Unlock()
	}()

	startedAt := time.Now().UTC()
	execution := &model.Execution{
		ID:         executionID,
		WorkflowID: workflow.ID,
		Status:     model.ExecutionRunning,
		StartedAt:  startedAt,
	}
	if err := r.executions.Create(ctx, execution); err != nil {
		// Without a record the run would be unauditable; skip this trigger.
		r.logger.Error("failed to create execution record",
			zap.String("workflow_id", workflow.ID.String()),
			zap.Error(err))
		return
	}

	r.publish(ctx, execution, "")
	r.logger.Info("executing workflow",
		zap.String("workflow_id", workflow.ID.String()),
		zap.String("execution_id", executionID.String()),
		zap.String("type", string(workflow.Type)))

	h, ok := r.handlers.Resolve(string(workflow.Type))
	if !ok {
		r.finish(ctx, workflow, execution, nil, fmt.Errorf("unknown workflow type: %q", workflow.Type))
		return
	}

	runCtx := ctx
	cancel := func() {}
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	result, err := invoke(runCtx, h, workflow)
	r.finish(ctx, workflow, execution, result, err)
}

// Wait blocks until every in-flight execution has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

type outcome struct {
	result *handler.Result
	err    error
}

// invoke runs the handler, converting panics to errors and honoring the
// context deadline even when the handler ignores it. On timeout the handler
// goroutine is abandoned; its eventual result is discarded.
func invoke(ctx context.Context, h handler.Handler, workflow *model.Workflow) (*handler.Result, error) {
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("handler panic: %v", p)}
			}
		}()
		result, err := h.Execute(ctx, workflow)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("handler execution timed out: %w", ctx.Err())
	}
}

func (r *Runner) finish(ctx context.Context, workflow *model.Workflow, execution *model.Execution, result *handler.Result, runErr error) {
	completedAt := time.Now().UTC()
	updates := map[string]interface{}{
		"completed_at": &completedAt,
		"duration_ms":  completedAt.Sub(execution.StartedAt).Milliseconds(),
	}

	if runErr != nil {
		execution.Status = model.ExecutionFailed
		execution.ErrorMessage = runErr.Error()
		updates["status"] = model.ExecutionFailed
		updates["error_message"] = runErr.Error()
	} else {
		execution.Status = model.ExecutionSucceeded
		updates["status"] = model.ExecutionSucceeded
		if result != nil && result.Output != nil {
			updates["output"] = result.Output
		}
	}

	if err := r.executions.Update(ctx, execution.ID, updates); err != nil {
		r.logger.Error("failed to record execution outcome",
			zap.String("execution_id", execution.ID.String()),
			zap.Error(err))
	}

	// A failed attempt is still an attempt: stats update on every outcome.
	if err := r.workflows.RecordRun(ctx, workflow.ID, completedAt); err != nil {
		r.logger.Error("failed to update workflow stats",
			zap.String("workflow_id", workflow.ID.String()),
			zap.Error(err))
	}

	metrics.ExecutionsTotal.WithLabelValues(string(workflow.Type), string(execution.Status)).Inc()
	metrics.ExecutionDuration.WithLabelValues(string(workflow.Type)).Observe(completedAt.Sub(execution.StartedAt).Seconds())
	r.publish(ctx, execution, execution.ErrorMessage)

	if runErr != nil {
		r.logger.Warn("workflow execution failed",
			zap.String("workflow_id", workflow.ID.String()),
			zap.String("execution_id", execution.ID.String()),
			zap.Error(runErr))
		return
	}
	r.logger.Info("workflow execution succeeded",
		zap.String("workflow_id", workflow.ID.String()),
		zap.String("execution_id", execution.ID.String()),
		zap.Int64("duration_ms", completedAt.Sub(execution.StartedAt).Milliseconds()))
}

// recordSkip writes an observable skipped execution instead of letting a
// second running row exist for the workflow.
func (r *Runner) recordSkip(ctx context.Context, workflow *model.Workflow, runningID uuid.UUID) {
	now := time.Now().UTC()
	skip := &model.Execution{
		ID:           uuid.New(),
		WorkflowID:   workflow.ID,
		Status:       model.ExecutionSkipped,
		StartedAt:    now,
		CompletedAt:  &now,
		ErrorMessage: fmt.Sprintf("skipped: execution %s is still running", runningID),
	}

	if err := r.executions.Create(ctx, skip); err != nil {
		r.logger.Error("failed to record skipped execution",
			zap.String("workflow_id", workflow.ID.String()),
			zap.Error(err))
	}

	metrics.OverlapSkipsTotal.WithLabelValues(string(workflow.Type)).Inc()
	r.publish(ctx, skip, skip.ErrorMessage)

	r.logger.Warn("skipped overlapping execution",
		zap.String("workflow_id", workflow.ID.String()),
		zap.String("running_execution_id", runningID.String()))
}

func (r *Runner) publish(ctx context.Context, execution *model.Execution, message string) {
	if r.bus == nil {
		return
	}
	payload := eventbus.ExecutionEvent{
		ExecutionID: execution.ID.String(),
		WorkflowID:  execution.WorkflowID.String(),
		Status:      string(execution.Status),
		Message:     message,
	}
	if event, err := eventbus.NewEvent("execution_status_changed", payload); err == nil {
		_ = r.bus.Publish(ctx, eventbus.ChannelExecution, event)
	}
}
