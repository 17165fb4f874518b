package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// RelationshipContext describes a newly created edge to the enricher.
type RelationshipContext struct {
	FromNodeID string
	ToNodeID   string
	FromLabel  string
	ToLabel    string
	Context    string
}

// Enricher produces an AI summary for a relationship. Callers treat it as
// best-effort: a failure is logged and the edge stays as created.
type Enricher interface {
	SummarizeRelationship(ctx context.Context, workspaceID string, rc RelationshipContext) (*Enrichment, error)
}

// EnricherConfig holds the OpenAI-compatible endpoint configuration.
type EnricherConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

func DefaultEnricherConfig() EnricherConfig {
	return EnricherConfig{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "gpt-4o-mini",
		MaxRetries: 2,
		Timeout:    15 * time.Second,
	}
}

// OpenAIEnricher implements Enricher against any OpenAI-compatible API.
type OpenAIEnricher struct {
	client *openai.Client
	config EnricherConfig
	logger *zap.Logger
}

func NewOpenAIEnricher(cfg EnricherConfig, logger *zap.Logger) *OpenAIEnricher {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIEnricher{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		logger: logger,
	}
}

const enrichSystemPrompt = `You annotate edges in a user's knowledge graph.
Given two connected nodes, respond with a JSON object containing:
"ai_summary" (one sentence describing the relationship),
"relationship_strength" (0.0-1.0),
"tags" (up to 3 short lowercase strings),
"confidence_score" (0.0-1.0).
Respond with JSON only.`

func (e *OpenAIEnricher) SummarizeRelationship(ctx context.Context, workspaceID string, rc RelationshipContext) (*Enrichment, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	user := fmt.Sprintf("Workspace: %s\nFrom node: %q\nTo node: %q", workspaceID, rc.FromLabel, rc.ToLabel)
	if rc.Context != "" {
		user += "\nContext: " + rc.Context
	}

	var content string
	err := e.doWithRetry(ctx, func() error {
		resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: e.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: enrichSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("empty completion response")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to summarize relationship")
	}
	return parseEnrichment(content)
}

func (e *OpenAIEnricher) doWithRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			e.logger.Debug("retrying enrichment call",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}

// parseEnrichment decodes the model's JSON reply, tolerating a markdown code
// fence, and clamps the numeric scores into [0, 1].
func parseEnrichment(content string) (*Enrichment, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	var enr Enrichment
	if err := json.Unmarshal([]byte(content), &enr); err != nil {
		return nil, errors.Wrap(err, "failed to parse enrichment response")
	}
	enr.RelationshipStrength = clamp01(enr.RelationshipStrength)
	enr.ConfidenceScore = clamp01(enr.ConfidenceScore)
	return &enr, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
