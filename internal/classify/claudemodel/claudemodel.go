// Package claudemodel is the learned-model variant of classify.Model,
// backed by the Anthropic Messages API. The model is asked for a strict
// JSON distribution over the fixed category set; anything else is an error
// and the caller falls back per its policy.
package claudemodel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/railtriage/internal/classify"
	"github.com/linnemanlabs/railtriage/internal/complaint"
)

const systemPrompt = `You classify citizen train-service complaints.
Respond with ONLY a JSON object mapping each of these categories to a
probability, summing to 1: "cleanliness", "maintenance", "safety",
"staff", "other". No prose, no code fences.`

const responseTokens = 256

// Model calls Claude for category distributions.
type Model struct {
	client anthropic.Client
	model  string
}

// New creates a Claude-backed model with the given API key and model name.
func New(apiKey, model string) *Model {
	return &Model{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Name implements classify.Model.
func (m *Model) Name() string { return "claude/" + m.model }

// Predict implements classify.Model.
func (m *Model) Predict(ctx context.Context, text string) (classify.Distribution, error) {
	msg, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: responseTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var raw string
	for _, block := range msg.Content {
		if block.Type == "text" {
			raw = block.Text
			break
		}
	}
	if raw == "" {
		return nil, fmt.Errorf("no text content in model response")
	}

	return parseDistribution(raw)
}

// parseDistribution decodes the model's JSON, tolerating stray code fences,
// and normalizes mass over the known categories.
func parseDistribution(raw string) (classify.Distribution, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var probs map[string]float64
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &probs); err != nil {
		return nil, fmt.Errorf("unmarshal distribution: %w", err)
	}

	dist := make(classify.Distribution, len(complaint.Categories))
	var total float64
	for _, c := range complaint.Categories {
		p := probs[string(c)]
		if p < 0 {
			p = 0
		}
		dist[c] = p
		total += p
	}
	if total <= 0 {
		return nil, fmt.Errorf("model returned empty distribution")
	}
	for c := range dist {
		dist[c] /= total
	}
	return dist, nil
}
