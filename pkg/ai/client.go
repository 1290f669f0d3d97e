// Package ai produces natural-language analysis of business metrics for the
// reporting handler. When no API key is configured, or the upstream call
// fails, a static fallback analysis is returned so reports still go out.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bizflow/bizflow/pkg/config"
	"github.com/bizflow/bizflow/pkg/model"
)

type Analysis struct {
	Summary         string    `json:"summary"`
	Recommendations []string  `json:"recommendations,omitempty"`
	GeneratedAt     time.Time `json:"generated_at"`
}

type Analyzer interface {
	AnalyzeMetrics(ctx context.Context, metrics []model.AnalyticsMetric) (*Analysis, error)
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg *config.AIConfig, logger *zap.Logger) *Client {
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) AnalyzeMetrics(ctx context.Context, metrics []model.AnalyticsMetric) (*Analysis, error) {
	if c.apiKey == "" {
		return fallbackAnalysis(), nil
	}

	summary, err := c.complete(ctx, metrics)
	if err != nil {
		c.logger.Warn("metrics analysis fell back to static output", zap.Error(err))
		return fallbackAnalysis(), nil
	}

	return &Analysis{Summary: summary, GeneratedAt: time.Now().UTC()}, nil
}

func (c *Client) complete(ctx context.Context, metrics []model.AnalyticsMetric) (string, error) {
	data, err := json.Marshal(metrics)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a business analyst. Summarize trends and give actionable recommendations based on the metrics provided."},
			{Role: "user", Content: "Analyze these business metrics:\n" + string(data)},
		},
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion request failed with status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response contained no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

func fallbackAnalysis() *Analysis {
	return &Analysis{
		Summary: "Business performance analysis (offline mode): metrics were collected but no model was available for trend analysis.",
		Recommendations: []string{
			"Focus on customer retention; it is cheaper than acquisition",
			"Automate repetitive tasks to free up operator time",
			"Set up alerts for metrics that drop below thresholds",
			"Track revenue, acquisition cost, and lifetime value weekly",
		},
		GeneratedAt: time.Now().UTC(),
	}
}
