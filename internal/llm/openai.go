package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"parley/agent/internal/types"
)

type OpenAI struct {
	client *openai.Client
	params Params
}

func NewOpenAI(apiKey, baseURL string, p Params) *OpenAI {
	if p.Model == "" {
		p.Model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, params: p}
}

func (o *OpenAI) Generate(ctx context.Context, history []types.ConversationTurn, retrieved, systemPrompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.openai")
	defer span.End()
	start := time.Now()

	var msgs []openai.ChatCompletionMessageParamUnion
	for _, m := range BuildMessages(history, retrieved, systemPrompt) {
		switch m.Role {
		case types.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case types.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	params := openai.ChatCompletionNewParams{
		Model:       o.params.Model,
		Messages:    msgs,
		MaxTokens:   openai.Int(int64(o.params.maxTokens())),
		Temperature: openai.Float(o.params.Temperature),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		metricRequests.WithLabelValues("openai", "error").Inc()
		span.RecordError(err)
		return "", classify(ctx, fmt.Errorf("openai chat: %w", err))
	}
	metricLatencyMS.WithLabelValues("openai").Observe(float64(time.Since(start).Milliseconds()))

	text := ""
	if len(resp.Choices) > 0 {
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if text == "" {
		metricRequests.WithLabelValues("openai", "empty").Inc()
		return "", ErrEmptyReply
	}
	metricRequests.WithLabelValues("openai", "ok").Inc()
	return text, nil
}
