package handler

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/bizflow/bizflow/pkg/ai"
	"github.com/bizflow/bizflow/pkg/model"
	"github.com/bizflow/bizflow/pkg/store/storetest"
)

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry()
	registry.Register("reporting", HandlerFunc(func(ctx context.Context, workflow *model.Workflow) (*Result, error) {
		return &Result{Output: model.JSONB{}}, nil
	}))

	if _, ok := registry.Resolve("reporting"); !ok {
		t.Fatal("expected registered type to resolve")
	}
	if _, ok := registry.Resolve("unknown-type"); ok {
		t.Fatal("expected unknown type to not resolve")
	}
}

func TestBuiltinRegistryCoversAllTypes(t *testing.T) {
	registry := NewBuiltinRegistry(Deps{})

	for _, workflowType := range []model.WorkflowType{
		model.TypeEmailMarketing,
		model.TypeInventory,
		model.TypeCustomerService,
		model.TypeSocialMedia,
		model.TypeReporting,
		model.TypeInvoicing,
	} {
		if _, ok := registry.Resolve(string(workflowType)); !ok {
			t.Fatalf("built-in type %s not registered", workflowType)
		}
	}

	if got := len(registry.Types()); got != 6 {
		t.Fatalf("expected 6 registered types, got %d", got)
	}
}

func TestInventoryHandlerFlagsLowStock(t *testing.T) {
	workflow := &model.Workflow{
		ID:   uuid.New(),
		Type: model.TypeInventory,
		Config: model.JSONB{
			"items": []interface{}{
				map[string]interface{}{"sku": "WIDGET-1", "stock": float64(2), "reorder_point": float64(10)},
				map[string]interface{}{"sku": "WIDGET-2", "stock": float64(12), "reorder_point": float64(10)},
				map[string]interface{}{"sku": "WIDGET-3", "stock": float64(100), "reorder_point": float64(10)},
			},
		},
	}

	result, err := (&InventoryHandler{}).Execute(context.Background(), workflow)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if result.Output["items_checked"] != 3 {
		t.Fatalf("expected 3 items checked, got %v", result.Output["items_checked"])
	}

	reorder := result.Output["reorder_needed"].([]string)
	if len(reorder) != 1 || reorder[0] != "WIDGET-1" {
		t.Fatalf("expected WIDGET-1 to need reorder, got %v", reorder)
	}

	low := result.Output["low_stock"].([]string)
	if len(low) != 2 {
		t.Fatalf("expected 2 low-stock items, got %v", low)
	}
}

func TestSocialMediaHandlerCountsPosts(t *testing.T) {
	workflow := &model.Workflow{
		ID:   uuid.New(),
		Type: model.TypeSocialMedia,
		Config: model.JSONB{
			"posts":     []interface{}{"a", "b", "c"},
			"platforms": []interface{}{"linkedin", "instagram"},
		},
	}

	result, err := (&SocialMediaHandler{}).Execute(context.Background(), workflow)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if result.Output["posts_scheduled"] != 3 {
		t.Fatalf("expected 3 posts scheduled, got %v", result.Output["posts_scheduled"])
	}
}

type staticAnalyzer struct{}

func (staticAnalyzer) AnalyzeMetrics(ctx context.Context, metrics []model.AnalyticsMetric) (*ai.Analysis, error) {
	return &ai.Analysis{Summary: "steady growth"}, nil
}

func TestReportingHandlerCountsMetrics(t *testing.T) {
	businessID := uuid.New()
	analytics := &storetest.AnalyticsStore{
		Metrics: []model.AnalyticsMetric{
			{BusinessID: businessID, MetricType: "revenue", MetricValue: 4200},
			{BusinessID: businessID, MetricType: "orders", MetricValue: 31},
		},
	}

	h := &ReportingHandler{analytics: analytics, analyzer: staticAnalyzer{}}
	workflow := &model.Workflow{ID: uuid.New(), BusinessID: businessID, Type: model.TypeReporting}

	result, err := h.Execute(context.Background(), workflow)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if result.Output["metric_count"] != 2 {
		t.Fatalf("expected metric_count 2, got %v", result.Output["metric_count"])
	}
	if result.Output["report_generated"] != true {
		t.Fatal("expected report_generated true")
	}
	if result.Output["report_mailed"] != false {
		t.Fatal("expected report_mailed false with no mailer configured")
	}
}
