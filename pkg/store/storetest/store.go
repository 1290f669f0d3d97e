// Package storetest provides in-memory store implementations for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bizflow/bizflow/pkg/model"
	"github.com/bizflow/bizflow/pkg/store"
)

type WorkflowStore struct {
	mu        sync.Mutex
	workflows map[uuid.UUID]*model.Workflow

	// Err, when set, is returned by every call.
	Err error
}

func NewWorkflowStore() *WorkflowStore {
	return &WorkflowStore{workflows: make(map[uuid.UUID]*model.Workflow)}
}

func (s *WorkflowStore) Create(ctx context.Context, workflow *model.Workflow) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *workflow
	s.workflows[workflow.ID] = &copied
	return nil
}

func (s *WorkflowStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Workflow, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	workflow, ok := s.workflows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *workflow
	return &copied, nil
}

func (s *WorkflowStore) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	workflow, ok := s.workflows[id]
	if !ok {
		return store.ErrNotFound
	}
	applyWorkflowUpdates(workflow, updates)
	return nil
}

func (s *WorkflowStore) Delete(ctx context.Context, id uuid.UUID) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.workflows, id)
	return nil
}

func (s *WorkflowStore) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]model.Workflow, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Workflow
	for _, workflow := range s.workflows {
		if workflow.BusinessID == businessID {
			out = append(out, *workflow)
		}
	}
	return out, nil
}

func (s *WorkflowStore) ListActiveScheduled(ctx context.Context) ([]model.Workflow, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Workflow
	for _, workflow := range s.workflows {
		if workflow.Status == model.WorkflowActive && workflow.Schedule != "" {
			out = append(out, *workflow)
		}
	}
	return out, nil
}

func (s *WorkflowStore) RecordRun(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	workflow, ok := s.workflows[id]
	if !ok {
		return store.ErrNotFound
	}
	stamped := at
	workflow.LastRun = &stamped
	workflow.ExecutionCount++
	return nil
}

func applyWorkflowUpdates(workflow *model.Workflow, updates map[string]interface{}) {
	for column, value := range updates {
		switch column {
		case "name":
			workflow.Name = value.(string)
		case "description":
			workflow.Description = value.(string)
		case "config":
			workflow.Config = value.(model.JSONB)
		case "schedule":
			workflow.Schedule = value.(string)
		case "status":
			workflow.Status = value.(model.WorkflowStatus)
		case "tags":
			workflow.Tags = value.(pq.StringArray)
		case "updated_at":
			workflow.UpdatedAt = value.(time.Time)
		}
	}
}

type ExecutionStore struct {
	mu         sync.Mutex
	executions map[uuid.UUID]*model.Execution

	Err error
}

func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{executions: make(map[uuid.UUID]*model.Execution)}
}

func (s *ExecutionStore) Create(ctx context.Context, execution *model.Execution) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *execution
	s.executions[execution.ID] = &copied
	return nil
}

func (s *ExecutionStore) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	execution, ok := s.executions[id]
	if !ok {
		return store.ErrNotFound
	}
	for column, value := range updates {
		switch column {
		case "status":
			execution.Status = value.(model.ExecutionStatus)
		case "completed_at":
			execution.CompletedAt = value.(*time.Time)
		case "duration_ms":
			execution.DurationMS = value.(int64)
		case "output":
			execution.Output = value.(model.JSONB)
		case "error_message":
			execution.ErrorMessage = value.(string)
		}
	}
	return nil
}

func (s *ExecutionStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Execution, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	execution, ok := s.executions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *execution
	return &copied, nil
}

func (s *ExecutionStore) ListByWorkflow(ctx context.Context, workflowID uuid.UUID, limit int) ([]model.Execution, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Execution
	for _, execution := range s.executions {
		if execution.WorkflowID == workflowID {
			out = append(out, *execution)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountByStatus returns how many executions for the workflow are currently in
// the given status.
func (s *ExecutionStore) CountByStatus(workflowID uuid.UUID, status model.ExecutionStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, execution := range s.executions {
		if execution.WorkflowID == workflowID && execution.Status == status {
			count++
		}
	}
	return count
}

type AnalyticsStore struct {
	Metrics []model.AnalyticsMetric
	Err     error
}

func (s *AnalyticsStore) ListRecent(ctx context.Context, businessID uuid.UUID, limit int) ([]model.AnalyticsMetric, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var out []model.AnalyticsMetric
	for _, metric := range s.Metrics {
		if metric.BusinessID == businessID {
			out = append(out, metric)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
