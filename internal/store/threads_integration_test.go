//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscore/nexus/internal/store"
	"github.com/nexuscore/nexus/test/dbtest"
)

func TestThreadRepository_AppendRangeAndTokenCount(t *testing.T) {
	st := dbtest.NewStore(t)
	repo := store.NewThreadRepository(st)
	ctx := context.Background()

	threadID := "thread-1"
	require.NoError(t, repo.Append(ctx, store.ThreadMessage{ThreadID: threadID, Role: "user", Content: "hello", TokenCount: 2}))
	require.NoError(t, repo.Append(ctx, store.ThreadMessage{ThreadID: threadID, Role: "assistant", Content: "hi there", TokenCount: 3}))

	messages, err := repo.Range(ctx, threadID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, "hi there", messages[1].Content)

	total, err := repo.RecentTokenCount(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestThreadRepository_SummarizeKeepsLastNAndInsertsSummary(t *testing.T) {
	st := dbtest.NewStore(t)
	repo := store.NewThreadRepository(st)
	ctx := context.Background()

	threadID := "thread-2"
	for i := 0; i < 8; i++ {
		require.NoError(t, repo.Append(ctx, store.ThreadMessage{ThreadID: threadID, Role: "user", Content: "msg", TokenCount: 1}))
	}

	require.NoError(t, repo.Summarize(ctx, threadID, 3, "summary of earlier turns"))

	messages, err := repo.Range(ctx, threadID)
	require.NoError(t, err)
	require.Len(t, messages, 4, "3 kept messages plus the synthetic summary")

	assert.True(t, messages[0].IsSummary, "summary message should sort first by creation time")
	assert.Equal(t, "summary of earlier turns", messages[0].Content)
}
