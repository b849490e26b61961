package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"parley/agent/internal/llm"
	"parley/agent/internal/rag"
	"parley/agent/internal/types"
)

// think answers one final transcript. It runs on the control goroutine;
// audio keeps queueing meanwhile and is looked at again once it returns.
// Every path leaves the session in LISTENING or SPEAKING.
func (c *Controller) think(ctx context.Context, text string) {
	ctx, span := tracer.Start(ctx, "orchestrator.turn")
	defer span.End()
	span.SetAttributes(attribute.String("room", c.opts.Room), attribute.Int("user_chars", len(text)))

	c.finalAt = time.Now()
	c.setState(Thinking)
	// No task exists yet, so a half-counted onset has nothing to cancel.
	c.bargeIn.Reset()

	retrieved := c.retrieve(ctx, text)

	turn := append(append([]types.ConversationTurn(nil), c.history...),
		types.ConversationTurn{Role: types.RoleUser, Content: text, At: c.finalAt.UTC()})

	gctx, cancel := context.WithTimeout(ctx, c.opts.GenerationTimeout)
	reply, err := c.deps.Generator.Generate(gctx, turn, retrieved, c.opts.SystemPrompt)
	cancel()
	if ctx.Err() != nil {
		// The session is closing; nothing of this turn is kept or spoken.
		c.log.Debug("turn dropped by close", "err", ctx.Err())
		return
	}
	if err != nil {
		kind := ErrGeneration
		if errors.Is(err, llm.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			kind = ErrTimeout
		}
		span.SetStatus(codes.Error, err.Error())
		c.abortTurn(&TurnError{Kind: kind, Stage: "generation", Err: err})
		return
	}

	if err := c.persist(ctx, types.RoleUser, text); err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.abortTurn(&TurnError{Kind: ErrPersistence, Stage: "persist_user", Err: err})
		return
	}
	if err := c.persist(ctx, types.RoleAssistant, reply); err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.abortTurn(&TurnError{Kind: ErrPersistence, Stage: "persist_reply", Err: err})
		return
	}

	if ctx.Err() != nil {
		return
	}
	metricTurnLatency.Observe(float64(time.Since(c.finalAt).Milliseconds()))
	c.speak(ctx, reply)
}

// retrieve degrades to no context on any failure.
func (c *Controller) retrieve(ctx context.Context, query string) string {
	rctx, cancel := context.WithTimeout(ctx, c.opts.RetrievalTimeout)
	defer cancel()
	snips, err := c.deps.Retriever.Retrieve(rctx, query, c.opts.TopK)
	if err != nil {
		metricRetrievalDegraded.Inc()
		c.log.Warn("retrieval degraded", "err", err)
		c.emit("retrieval_degraded", map[string]any{"error": err.Error()})
		return ""
	}
	return rag.JoinContext(snips)
}

// persist appends to the store and, on success, to the in-memory history.
func (c *Controller) persist(ctx context.Context, role types.Role, content string) error {
	if err := c.deps.Store.Append(ctx, c.opts.Room, role, content); err != nil {
		return err
	}
	c.history = append(c.history, types.ConversationTurn{Role: role, Content: content, At: time.Now().UTC()})
	return nil
}

func (c *Controller) abortTurn(err *TurnError) {
	c.report(err)
	c.setState(Listening)
}
