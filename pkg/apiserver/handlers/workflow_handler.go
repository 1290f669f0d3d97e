package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bizflow/bizflow/pkg/apiserver/middleware"
	"github.com/bizflow/bizflow/pkg/model"
	"github.com/bizflow/bizflow/pkg/registry"
	"github.com/bizflow/bizflow/pkg/schedule"
	"github.com/bizflow/bizflow/pkg/store"
)

type WorkflowHandler struct {
	service *registry.Service
	logger  *zap.Logger
}

func NewWorkflowHandler(service *registry.Service, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{service: service, logger: logger}
}

type workflowCreateRequest struct {
	BusinessID  string                 `json:"business_id"`
	Name        string                 `json:"name" binding:"required"`
	Type        string                 `json:"type" binding:"required"`
	Description string                 `json:"description"`
	Config      map[string]interface{} `json:"config"`
	Schedule    string                 `json:"schedule"`
	Tags        []string               `json:"tags"`
}

type workflowUpdateRequest struct {
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	Config      *map[string]interface{} `json:"config"`
	Schedule    *string                 `json:"schedule"`
	Status      *string                 `json:"status"`
	Tags        *[]string               `json:"tags"`
}

type workflowResponse struct {
	ID             string      `json:"id"`
	BusinessID     string      `json:"business_id"`
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	Type           string      `json:"type"`
	Config         model.JSONB `json:"config"`
	Schedule       string      `json:"schedule,omitempty"`
	Status         string      `json:"status"`
	Tags           []string    `json:"tags,omitempty"`
	LastRun        *string     `json:"last_run,omitempty"`
	ExecutionCount int64       `json:"execution_count"`
	CreatedAt      string      `json:"created_at"`
}

type executionResponse struct {
	ID           string      `json:"id"`
	WorkflowID   string      `json:"workflow_id"`
	Status       string      `json:"status"`
	StartedAt    string      `json:"started_at"`
	CompletedAt  *string     `json:"completed_at,omitempty"`
	DurationMS   int64       `json:"duration_ms"`
	Output       model.JSONB `json:"output,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

func (h *WorkflowHandler) Create(c *gin.Context) {
	var req workflowCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	businessID, ok := h.resolveBusinessID(c, req.BusinessID)
	if !ok {
		return
	}

	workflow, err := h.service.Create(c.Request.Context(), registry.CreateInput{
		BusinessID:  businessID,
		Name:        req.Name,
		Type:        model.WorkflowType(req.Type),
		Description: req.Description,
		Config:      model.JSONB(req.Config),
		Schedule:    req.Schedule,
		Tags:        req.Tags,
	})
	if err != nil {
		h.respondError(c, err, "create workflow")
		return
	}

	c.JSON(http.StatusCreated, mapWorkflow(workflow))
}

func (h *WorkflowHandler) List(c *gin.Context) {
	businessID, ok := h.resolveBusinessID(c, strings.TrimSpace(c.Query("business_id")))
	if !ok {
		return
	}

	workflows, err := h.service.ListByBusiness(c.Request.Context(), businessID)
	if err != nil {
		h.respondError(c, err, "list workflows")
		return
	}

	response := make([]workflowResponse, 0, len(workflows))
	for i := range workflows {
		response = append(response, mapWorkflow(&workflows[i]))
	}

	c.JSON(http.StatusOK, gin.H{"workflows": response, "count": len(response)})
}

func (h *WorkflowHandler) Get(c *gin.Context) {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	workflow, err := h.service.Get(c.Request.Context(), workflowID)
	if err != nil {
		h.respondError(c, err, "get workflow")
		return
	}

	c.JSON(http.StatusOK, mapWorkflow(workflow))
}

func (h *WorkflowHandler) Update(c *gin.Context) {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	var req workflowUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	input := registry.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Schedule:    req.Schedule,
		Tags:        req.Tags,
	}
	if req.Config != nil {
		config := model.JSONB(*req.Config)
		input.Config = &config
	}
	if req.Status != nil {
		status := model.WorkflowStatus(*req.Status)
		input.Status = &status
	}

	workflow, err := h.service.Update(c.Request.Context(), workflowID, input)
	if err != nil {
		h.respondError(c, err, "update workflow")
		return
	}

	c.JSON(http.StatusOK, mapWorkflow(workflow))
}

func (h *WorkflowHandler) Delete(c *gin.Context) {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	if err := h.service.Remove(c.Request.Context(), workflowID); err != nil {
		h.respondError(c, err, "delete workflow")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "workflow deleted"})
}

func (h *WorkflowHandler) Trigger(c *gin.Context) {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	if err := h.service.TriggerNow(c.Request.Context(), workflowID); err != nil {
		h.respondError(c, err, "trigger workflow")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "execution started"})
}

func (h *WorkflowHandler) ListExecutions(c *gin.Context) {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	// Zero lets the service apply its configured history limit.
	limit := parseLimit(c.Query("limit"), 0)

	executions, err := h.service.ListExecutions(c.Request.Context(), workflowID, limit)
	if err != nil {
		h.respondError(c, err, "list executions")
		return
	}

	response := make([]executionResponse, 0, len(executions))
	for i := range executions {
		response = append(response, mapExecution(&executions[i]))
	}

	c.JSON(http.StatusOK, gin.H{"executions": response})
}

// resolveBusinessID prefers the authenticated business claim; an explicit id
// is accepted when no claim carries one.
func (h *WorkflowHandler) resolveBusinessID(c *gin.Context, explicit string) (uuid.UUID, bool) {
	if claims, ok := middleware.Claims(c); ok && claims.BusinessID != "" {
		id, err := uuid.Parse(claims.BusinessID)
		if err == nil {
			return id, true
		}
	}

	if explicit == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "business_id is required"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(explicit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid business_id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *WorkflowHandler) respondError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
	case errors.Is(err, schedule.ErrInvalidExpression):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule", "details": err.Error()})
	default:
		h.logger.Error("failed to "+action, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + action})
	}
}

func mapWorkflow(workflow *model.Workflow) workflowResponse {
	return workflowResponse{
		ID:             workflow.ID.String(),
		BusinessID:     workflow.BusinessID.String(),
		Name:           workflow.Name,
		Description:    workflow.Description,
		Type:           string(workflow.Type),
		Config:         workflow.Config,
		Schedule:       workflow.Schedule,
		Status:         string(workflow.Status),
		Tags:           workflow.Tags,
		LastRun:        formatTime(workflow.LastRun),
		ExecutionCount: workflow.ExecutionCount,
		CreatedAt:      workflow.CreatedAt.UTC().Format(timeRFC3339Nano),
	}
}

func mapExecution(execution *model.Execution) executionResponse {
	return executionResponse{
		ID:           execution.ID.String(),
		WorkflowID:   execution.WorkflowID.String(),
		Status:       string(execution.Status),
		StartedAt:    execution.StartedAt.UTC().Format(timeRFC3339Nano),
		CompletedAt:  formatTime(execution.CompletedAt),
		DurationMS:   execution.DurationMS,
		Output:       execution.Output,
		ErrorMessage: execution.ErrorMessage,
	}
}
