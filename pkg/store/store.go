// Package store defines the durable-store contracts the engine depends on.
// The postgres subpackage provides the production implementation; storetest
// provides in-memory fakes.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bizflow/bizflow/pkg/model"
)

var ErrNotFound = errors.New("record not found")

type WorkflowStore interface {
	Create(ctx context.Context, workflow *model.Workflow) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Workflow, error)

	// Update applies only the supplied fields, leaving the rest unchanged.
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error

	// Delete marks the workflow deleted and removes the row from normal
	// queries. Executions for the workflow are retained.
	Delete(ctx context.Context, id uuid.UUID) error

	ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]model.Workflow, error)

	// ListActiveScheduled returns every active workflow with a non-empty
	// schedule; the scheduler seeds its trigger set from this at startup.
	ListActiveScheduled(ctx context.Context) ([]model.Workflow, error)

	// RecordRun stamps last_run and increments the execution count.
	RecordRun(ctx context.Context, id uuid.UUID, at time.Time) error
}

type ExecutionStore interface {
	Create(ctx context.Context, execution *model.Execution) error

	// Update applies the supplied fields to the execution with the given id.
	// Updates always target a specific execution, never a status match.
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error

	GetByID(ctx context.Context, id uuid.UUID) (*model.Execution, error)

	// ListByWorkflow returns executions for a workflow ordered by started_at
	// descending, capped at limit.
	ListByWorkflow(ctx context.Context, workflowID uuid.UUID, limit int) ([]model.Execution, error)
}

type AnalyticsStore interface {
	ListRecent(ctx context.Context, businessID uuid.UUID, limit int) ([]model.AnalyticsMetric, error)
}
