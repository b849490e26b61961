package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/agent/internal/config"
	"parley/agent/internal/types"
)

func TestBuildMessagesOrder(t *testing.T) {
	hist := []types.ConversationTurn{
		{Role: types.RoleAssistant, Content: "Hello!"},
		{Role: types.RoleUser, Content: "what is parley?"},
	}
	msgs := BuildMessages(hist, "parley is a voice agent", "be brief")

	require.Len(t, msgs, 4)
	assert.Equal(t, Message{types.RoleSystem, "be brief"}, msgs[0])
	assert.Equal(t, types.RoleAssistant, msgs[1].Role)
	assert.Equal(t, types.RoleUser, msgs[2].Role)
	assert.Equal(t, types.RoleSystem, msgs[3].Role)
	assert.Equal(t, ContextHeader+"parley is a voice agent", msgs[3].Content)
}

func TestBuildMessagesSkipsEmptyContext(t *testing.T) {
	msgs := BuildMessages([]types.ConversationTurn{{Role: types.RoleUser, Content: "hi"}}, "  ", "")
	require.Len(t, msgs, 1)
	assert.Equal(t, types.RoleUser, msgs[0].Role)
}

func chatServer(t *testing.T, delay time.Duration, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			json.NewDecoder(r.Body).Decode(seen)
		}
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "c1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": []any{map[string]any{
				"index": 0, "finish_reason": "stop",
				"message": map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGenerate(t *testing.T) {
	var body map[string]any
	srv := chatServer(t, 0, " Sure thing. ", &body)
	g := NewOpenAI("sk-test", srv.URL+"/v1/", Params{MaxTokens: 300, Temperature: 0.6})

	out, err := g.Generate(context.Background(), []types.ConversationTurn{{Role: types.RoleUser, Content: "hi"}}, "", "sys")
	require.NoError(t, err)
	assert.Equal(t, "Sure thing.", out)
	assert.Equal(t, float64(300), body["max_tokens"])
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Len(t, body["messages"], 2)
}

func TestOpenAIEmptyReply(t *testing.T) {
	srv := chatServer(t, 0, "", nil)
	g := NewOpenAI("sk-test", srv.URL+"/v1/", Params{})
	_, err := g.Generate(context.Background(), nil, "", "sys")
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestOpenAITimeout(t *testing.T) {
	srv := chatServer(t, time.Second, "late", nil)
	g := NewOpenAI("sk-test", srv.URL+"/v1/", Params{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := g.Generate(ctx, nil, "", "sys")
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
}

func TestNewUnknownProvider(t *testing.T) {
	var cfg config.Config
	cfg.LLM.Provider = "nope"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
