package pattern

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "read project configuration file", "read", true))
	require.NoError(t, store.Save(ctx, "read project configuration file", "read", true))
	require.NoError(t, store.Save(ctx, "read project configuration file", "read", false))

	matches, err := store.Query(ctx, "read project configuration file", "read")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	assert.Equal(t, "read", matches[0].ActionType)
	assert.InDelta(t, 2.0/3.0, matches[0].SuccessRate, 0.001)
	assert.Equal(t, 1.0, matches[0].RelevanceScore, "identical description should be an exact match")
}

func TestQueryScopedByActionType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "read configuration file", "read", true))
	require.NoError(t, store.Save(ctx, "write configuration file", "write", true))

	matches, err := store.Query(ctx, "read configuration file", "read")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "read", matches[0].ActionType)
}

func TestQueryPartialOverlap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "read configuration file json", "read", true))
	require.NoError(t, store.Save(ctx, "read database schema migrations", "read", true))

	matches, err := store.Query(ctx, "read json configuration", "read")
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	// Most relevant first, and both share the "read" token at minimum.
	assert.Contains(t, matches[0].Pattern, "configuration")
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].RelevanceScore, matches[i].RelevanceScore)
	}
}

func TestQueryEmptyDescription(t *testing.T) {
	store := newTestStore(t)

	matches, err := store.Query(context.Background(), "", "read")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSaveEmptyDescriptionRejected(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Save(context.Background(), "", "read", true))
}

func TestCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alpha task", "read", true))
	require.NoError(t, store.Save(ctx, "beta task", "write", false))
	require.NoError(t, store.Save(ctx, "alpha task", "read", true)) // upsert, no new row

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHasherNormalization(t *testing.T) {
	h := NewHasher()

	a := h.Hash("Read the config.json file!", "read")
	b := h.Hash("read config json file", "read")
	assert.Equal(t, a.NormalizedHash, b.NormalizedHash, "stopwords and punctuation should not affect the normalized hash")
	assert.NotEqual(t, a.FullHash, b.FullHash)
}

func TestOverlap(t *testing.T) {
	assert.Equal(t, 0.0, Overlap(nil, []string{"x"}))
	assert.Equal(t, 1.0, Overlap([]string{"a", "b"}, []string{"a", "b"}))
	assert.InDelta(t, 1.0/3.0, Overlap([]string{"a", "b"}, []string{"b", "c"}), 0.001)
}
