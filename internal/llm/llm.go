// Package llm turns conversation history plus retrieved context into the
// assistant's next reply.
package llm

import (
	"context"
	"errors"
	"strings"

	"parley/agent/internal/types"
)

var (
	ErrEmptyReply = errors.New("llm: empty reply")
	ErrTimeout    = errors.New("llm: timeout")
)

// ContextHeader prefixes retrieved context. The model sees it, the user never
// hears it.
const ContextHeader = "Relevant context (non-user visible)\n---\n"

// Generator produces a reply. Implementations bound output length by
// tokens and honour ctx.
type Generator interface {
	Generate(ctx context.Context, history []types.ConversationTurn, retrieved, systemPrompt string) (string, error)
}

type Message struct {
	Role    types.Role
	Content string
}

// BuildMessages orders the prompt: system prompt, history, then the
// retrieved context as a trailing system message when there is any.
func BuildMessages(history []types.ConversationTurn, retrieved, systemPrompt string) []Message {
	out := make([]Message, 0, len(history)+2)
	if strings.TrimSpace(systemPrompt) != "" {
		out = append(out, Message{Role: types.RoleSystem, Content: systemPrompt})
	}
	for _, t := range history {
		if t.Content == "" {
			continue
		}
		out = append(out, Message{Role: t.Role, Content: t.Content})
	}
	if strings.TrimSpace(retrieved) != "" {
		out = append(out, Message{Role: types.RoleSystem, Content: ContextHeader + retrieved})
	}
	return out
}

// Params shared by every backend.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

func (p Params) maxTokens() int {
	if p.MaxTokens <= 0 {
		return 300
	}
	return p.MaxTokens
}

// classify maps context expiry onto ErrTimeout.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}
