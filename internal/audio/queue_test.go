package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/agent/internal/types"
)

func frame(id byte) types.AudioFrame {
	return types.AudioFrame{PCM: []byte{id, 0}, SampleRate: types.PipelineRate}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := NewQueue(2)

	assert.False(t, q.Push(frame(1)))
	assert.False(t, q.Push(frame(2)))
	assert.True(t, q.Push(frame(3)), "third push should evict F1")
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, uint64(1), q.Dropped())

	f, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, byte(2), f.PCM[0])
	f, ok = q.TryPop()
	require.True(t, ok)
	assert.Equal(t, byte(3), f.PCM[0])
	_, ok = q.TryPop()
	assert.False(t, ok)
}

func TestQueueFourthPushKeepsNewestTwo(t *testing.T) {
	q := NewQueue(2)
	for i := byte(1); i <= 4; i++ {
		q.Push(frame(i))
	}
	assert.Equal(t, uint64(2), q.Dropped())

	var got []byte
	for {
		f, ok := q.TryPop()
		if !ok {
			break
		}
		got = append(got, f.PCM[0])
	}
	assert.Equal(t, []byte{3, 4}, got)
}

func TestQueuePopWaitsForPush(t *testing.T) {
	q := NewQueue(4)
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push(frame(7))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(7), f.PCM[0])
}

func TestQueuePopReturnsClosed(t *testing.T) {
	q := NewQueue(4)
	q.Push(frame(1))
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Close()
	}()

	ctx := context.Background()
	_, err := q.Pop(ctx)
	require.NoError(t, err)
	_, err = q.Pop(ctx)
	assert.True(t, errors.Is(err, ErrClosed))

	q.Close()
	assert.False(t, q.Push(frame(2)))
	assert.Equal(t, 0, q.Len())
}

func TestQueuePopHonoursContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue(3)
	q.Push(frame(1))
	q.Push(frame(2))
	assert.Equal(t, 2, q.Drain())
	assert.Equal(t, 0, q.Len())
	q.Push(frame(3))
	f, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, byte(3), f.PCM[0])
}
