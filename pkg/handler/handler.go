// Package handler maps workflow types to their execution routines. The
// dispatch table is open for extension: registering a new type requires no
// change to the scheduler or runner.
package handler

import (
	"context"
	"sort"
	"sync"

	"github.com/bizflow/bizflow/pkg/model"
)

// Result is the opaque output of one handler invocation. Output carries
// whatever sub-metrics are meaningful to the workflow type.
type Result struct {
	Output model.JSONB
}

type Handler interface {
	Execute(ctx context.Context, workflow *model.Workflow) (*Result, error)
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(workflowType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[workflowType] = h
}

func (r *Registry) Resolve(workflowType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[workflowType]
	return h, ok
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for workflowType := range r.handlers {
		types = append(types, workflowType)
	}
	sort.Strings(types)
	return types
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, workflow *model.Workflow) (*Result, error)

func (f HandlerFunc) Execute(ctx context.Context, workflow *model.Workflow) (*Result, error) {
	return f(ctx, workflow)
}
