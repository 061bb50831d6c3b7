package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/hotswap/internal/store"
	"github.com/vk/hotswap/internal/store/storetest"
)

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.StrategySourceStore {
		return New()
	})
}

func TestStore_VersionsStartAtOne(t *testing.T) {
	t.Parallel()

	s := New()
	src, err := s.Save(context.Background(), "s1", "(s, p) -> true")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), src.UpdateVersion)
	assert.Nil(t, src.LastCompileError)
}

func TestStore_CompileErrorIsCopied(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := New()
	ctx := context.Background()
	src, err := s.Save(ctx, "s1", "x")
	require.NoError(t, err)
	require.NoError(t, s.SaveCompileError(ctx, "s1", src.UpdateVersion, "first"))

	// --- Act ---
	got, err := s.Find(ctx, "s1")
	require.NoError(t, err)
	*got.LastCompileError = "tampered"

	// --- Assert ---
	again, err := s.Find(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "first", *again.LastCompileError)
}
