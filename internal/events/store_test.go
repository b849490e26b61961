package events

import (
    "fmt"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "parley/agent/internal/types"
)

func TestAppendAndList(t *testing.T) {
    s := NewStore(0)
    s.Append("r1", "state_changed", map[string]any{"to": "listening"})
    s.Observe("r1", types.Event{Type: "barge_in"})
    s.Append("r2", "state_changed", nil)

    got := s.List("r1")
    require.Len(t, got, 2)
    assert.Equal(t, "state_changed", got[0].Type)
    assert.Equal(t, "barge_in", got[1].Type)
    assert.Equal(t, "r1", got[1].Room)
    assert.Len(t, s.List("r2"), 1)
    assert.Empty(t, s.List("nope"))
}

func TestCapKeepsMarkerAndNewest(t *testing.T) {
    s := NewStore(5)
    for i := 0; i < 12; i++ {
        s.Append("r", "e", map[string]any{"i": i})
    }
    got := s.List("r")
    require.Len(t, got, 5)
    assert.Equal(t, TypeTruncated, got[0].Type)
    assert.Equal(t, 8, got[0].Payload["dropped"])
    for j, e := range got[1:] {
        assert.Equal(t, 8+j, e.Payload["i"], fmt.Sprintf("event %d", j))
    }
}

func TestSinkAndForget(t *testing.T) {
    s := NewStore(0)
    sink := s.Sink("r")
    sink(types.Event{Type: "synthesis_started"})
    require.Len(t, s.List("r"), 1)
    s.Forget("r")
    assert.Empty(t, s.List("r"))
}
