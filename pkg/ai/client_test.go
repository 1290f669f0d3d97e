package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/bizflow/bizflow/pkg/config"
	"github.com/bizflow/bizflow/pkg/model"
)

func TestAnalyzeMetricsWithoutKeyFallsBack(t *testing.T) {
	client := NewClient(&config.AIConfig{}, zap.NewNop())

	analysis, err := client.AnalyzeMetrics(context.Background(), nil)
	if err != nil {
		t.Fatalf("AnalyzeMetrics error: %v", err)
	}
	if analysis.Summary == "" {
		t.Fatal("expected fallback summary")
	}
	if len(analysis.Recommendations) == 0 {
		t.Fatal("expected fallback recommendations")
	}
}

func TestAnalyzeMetricsUsesCompletionAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "revenue is trending up"}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(&config.AIConfig{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4"}, zap.NewNop())

	analysis, err := client.AnalyzeMetrics(context.Background(), []model.AnalyticsMetric{{MetricType: "revenue", MetricValue: 1200}})
	if err != nil {
		t.Fatalf("AnalyzeMetrics error: %v", err)
	}
	if analysis.Summary != "revenue is trending up" {
		t.Fatalf("unexpected summary %q", analysis.Summary)
	}
}

func TestAnalyzeMetricsFallsBackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(&config.AIConfig{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4"}, zap.NewNop())

	analysis, err := client.AnalyzeMetrics(context.Background(), nil)
	if err != nil {
		t.Fatalf("AnalyzeMetrics error: %v", err)
	}
	if len(analysis.Recommendations) == 0 {
		t.Fatal("expected fallback analysis on upstream failure")
	}
}
