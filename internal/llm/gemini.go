package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"parley/agent/internal/types"
)

type Gemini struct {
	client *genai.Client
	params Params
}

// NewGemini builds a client for the Gemini API. baseURL is only set in tests.
func NewGemini(ctx context.Context, apiKey, baseURL string, p Params) (*Gemini, error) {
	if p.Model == "" {
		p.Model = "gemini-2.0-flash"
	}
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &Gemini{client: client, params: p}, nil
}

func (g *Gemini) Generate(ctx context.Context, history []types.ConversationTurn, retrieved, systemPrompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.gemini")
	defer span.End()
	start := time.Now()

	// Gemini takes system text out of band; keep it in order inside the
	// system instruction.
	var system []*genai.Part
	var contents []*genai.Content
	for _, m := range BuildMessages(history, retrieved, systemPrompt) {
		switch m.Role {
		case types.RoleSystem:
			system = append(system, genai.NewPartFromText(m.Content))
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(g.params.maxTokens()),
		Temperature:     genai.Ptr(float32(g.params.Temperature)),
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: system}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.params.Model, contents, cfg)
	if err != nil {
		metricRequests.WithLabelValues("gemini", "error").Inc()
		span.RecordError(err)
		return "", classify(ctx, fmt.Errorf("genai generate: %w", err))
	}
	metricLatencyMS.WithLabelValues("gemini").Observe(float64(time.Since(start).Milliseconds()))

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		metricRequests.WithLabelValues("gemini", "empty").Inc()
		return "", ErrEmptyReply
	}
	metricRequests.WithLabelValues("gemini", "ok").Inc()
	return text, nil
}
