package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_AppendAndHistory(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	require.NoError(t, s.AppendTurn(ctx, "t-1", Turn{Role: "user", Text: "hi", At: time.Now()}))
	require.NoError(t, s.AppendTurn(ctx, "t-1", Turn{Role: "assistant", Text: "hello", At: time.Now()}))

	turns, err := s.History(ctx, "t-1", 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "assistant", turns[1].Role)
}

func TestMemStore_ThreadsIsolated(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	require.NoError(t, s.AppendTurn(ctx, "t-1", Turn{Role: "user", Text: "hi"}))

	turns, err := s.History(ctx, "t-2", 0)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestMemStore_CapsHistory(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		require.NoError(t, s.AppendTurn(ctx, "t-1", Turn{Role: "user", Text: fmt.Sprintf("msg %d", i)}))
	}

	turns, err := s.History(ctx, "t-1", 0)
	require.NoError(t, err)
	require.Len(t, turns, 50, "history is capped per thread")
	assert.Equal(t, "msg 10", turns[0].Text, "oldest turns are evicted first")
}

func TestMemStore_HistoryLimit(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, s.AppendTurn(ctx, "t-1", Turn{Text: fmt.Sprintf("msg %d", i)}))
	}

	turns, err := s.History(ctx, "t-1", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "msg 7", turns[0].Text, "limit returns the most recent tail")
}
