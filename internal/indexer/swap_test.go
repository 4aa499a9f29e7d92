package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSwapHarness(t *testing.T) (*harness, *SwapCoordinator) {
	t.Helper()
	h := newHarness(t)
	coordinator := NewSwapCoordinator(h.indexer, 10*time.Millisecond, zap.NewNop())
	return h, coordinator
}

func TestReindexCreatesTimestampedCollectionAndAlias(t *testing.T) {
	h, swap := newSwapHarness(t)
	h.write(t, "a.go", "package a\n")

	stats, err := swap.Reindex(context.Background(), h.options())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesProcessed)

	target, err := h.store.GetAliasTarget(context.Background(), "coll")
	require.NoError(t, err)
	assert.NotEqual(t, "coll", target, "alias must point at the timestamped collection")

	count, err := h.store.Count(context.Background(), target)
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}

func TestReindexRetiresOldCollection(t *testing.T) {
	h, swap := newSwapHarness(t)
	h.write(t, "a.go", "package a\n")

	_, err := swap.Reindex(context.Background(), h.options())
	require.NoError(t, err)
	first, err := h.store.GetAliasTarget(context.Background(), "coll")
	require.NoError(t, err)

	// Collection names carry second-resolution timestamps.
	time.Sleep(1100 * time.Millisecond)

	_, err = swap.Reindex(context.Background(), h.options())
	require.NoError(t, err)
	second, err := h.store.GetAliasTarget(context.Background(), "coll")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// The superseded collection is dropped after the grace period, which
	// already elapsed inside Reindex.
	exists, err := h.store.HasCollection(context.Background(), first)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = h.store.HasCollection(context.Background(), second)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReindexFailureLeavesAliasUntouched(t *testing.T) {
	h, swap := newSwapHarness(t)
	h.write(t, "a.go", "package a\n")

	_, err := swap.Reindex(context.Background(), h.options())
	require.NoError(t, err)
	before, err := h.store.GetAliasTarget(context.Background(), "coll")
	require.NoError(t, err)

	h.emb.permanent = assertErr("provider down")
	time.Sleep(1100 * time.Millisecond)

	_, err = swap.Reindex(context.Background(), h.options())
	require.Error(t, err)

	after, aliasErr := h.store.GetAliasTarget(context.Background(), "coll")
	require.NoError(t, aliasErr)
	assert.Equal(t, before, after, "failed rebuild must not move the alias")

	// The old collection still serves reads.
	count, err := h.store.Count(context.Background(), after)
	require.NoError(t, err)
	assert.Greater(t, count, 0)

	// The abandoned build was cleaned up.
	collections, err := h.store.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Len(t, collections, 1)
}

func TestReindexRejectsConcurrentRuns(t *testing.T) {
	h, swap := newSwapHarness(t)
	h.write(t, "a.go", "package a\n")

	release, ok := h.indexer.registry.TryAcquire(h.root)
	require.True(t, ok)
	defer release()

	_, err := swap.Reindex(context.Background(), h.options())
	assert.Error(t, err)
}

func TestReindexCommitsSnapshotForIncrementalRuns(t *testing.T) {
	h, swap := newSwapHarness(t)
	h.write(t, "a.go", "package a\n")

	_, err := swap.Reindex(context.Background(), h.options())
	require.NoError(t, err)

	embedsAfterRebuild := h.emb.embeddedCount()

	// An incremental run right after a rebuild sees no changes.
	stats, err := h.indexer.Index(context.Background(), h.options())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesProcessed)
	assert.Equal(t, embedsAfterRebuild, h.emb.embeddedCount())
}
