// Package storetest is a behavioural test suite shared by every
// store.StrategySourceStore implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/hotswap/internal/store"
)

// Run exercises a store implementation. newStore must return an empty store
// on every call.
func Run(t *testing.T, newStore func(t *testing.T) store.StrategySourceStore) {
	t.Helper()

	t.Run("find missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Find(context.Background(), "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("save bumps version", func(t *testing.T) {
		// --- Arrange ---
		s := newStore(t)
		ctx := context.Background()

		// --- Act ---
		first, err := s.Save(ctx, "s1", "(s, p) -> true")
		require.NoError(t, err)
		second, err := s.Save(ctx, "s1", "(s, p) -> false")
		require.NoError(t, err)

		// --- Assert ---
		assert.Equal(t, "s1", second.ID)
		assert.Greater(t, second.UpdateVersion, first.UpdateVersion)
		found, err := s.Find(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "(s, p) -> false", found.SourceText)
		assert.Equal(t, second.UpdateVersion, found.UpdateVersion)
		assert.False(t, found.UpdatedAt.IsZero())
	})

	t.Run("compile error round trip", func(t *testing.T) {
		// --- Arrange ---
		s := newStore(t)
		ctx := context.Background()
		first, err := s.Save(ctx, "s1", "broken")
		require.NoError(t, err)

		// --- Act ---
		require.NoError(t, s.SaveCompileError(ctx, "s1", first.UpdateVersion, "[Full] error at 1:1: nope"))
		withErr, err := s.Find(ctx, "s1")
		require.NoError(t, err)
		_, err = s.Save(ctx, "s1", "still broken")
		require.NoError(t, err)
		afterSave, err := s.Find(ctx, "s1")
		require.NoError(t, err)
		require.NoError(t, s.ClearCompileError(ctx, "s1", afterSave.UpdateVersion))
		cleared, err := s.Find(ctx, "s1")
		require.NoError(t, err)

		// --- Assert ---
		require.NotNil(t, withErr.LastCompileError)
		assert.Equal(t, "[Full] error at 1:1: nope", *withErr.LastCompileError)
		require.NotNil(t, afterSave.LastCompileError, "saving new text keeps the last error")
		assert.Nil(t, cleared.LastCompileError)
	})

	t.Run("compile error on missing id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.ErrorIs(t, s.SaveCompileError(ctx, "missing", 1, "x"), store.ErrNotFound)
		require.ErrorIs(t, s.ClearCompileError(ctx, "missing", 1), store.ErrNotFound)
	})

	t.Run("compile error of an outdated version is refused", func(t *testing.T) {
		// --- Arrange ---
		s := newStore(t)
		ctx := context.Background()
		first, err := s.Save(ctx, "s1", "broken")
		require.NoError(t, err)
		second, err := s.Save(ctx, "s1", "broken again")
		require.NoError(t, err)
		require.NoError(t, s.SaveCompileError(ctx, "s1", second.UpdateVersion, "newer failure"))

		// --- Act ---
		saveErr := s.SaveCompileError(ctx, "s1", first.UpdateVersion, "older failure")
		clearErr := s.ClearCompileError(ctx, "s1", first.UpdateVersion)

		// --- Assert ---
		require.ErrorIs(t, saveErr, store.ErrStaleVersion)
		require.ErrorIs(t, clearErr, store.ErrStaleVersion)
		found, err := s.Find(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, found.LastCompileError)
		assert.Equal(t, "newer failure", *found.LastCompileError)
	})

	t.Run("find all skips blank sources", func(t *testing.T) {
		// --- Arrange ---
		s := newStore(t)
		ctx := context.Background()
		for id, text := range map[string]string{"b": "(s, p) -> true", "a": "entry = true", "blank": "  \n\t"} {
			_, err := s.Save(ctx, id, text)
			require.NoError(t, err)
		}

		// --- Act ---
		all, err := s.FindAllWithSource(ctx)

		// --- Assert ---
		require.NoError(t, err)
		var ids []string
		for _, src := range all {
			ids = append(ids, src.ID)
		}
		assert.Equal(t, []string{"a", "b"}, ids)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.Save(ctx, "s1", "original")
		require.NoError(t, err)

		got, err := s.Find(ctx, "s1")
		require.NoError(t, err)
		got.SourceText = "mutated"

		again, err := s.Find(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "original", again.SourceText)
	})

	t.Run("concurrent saves produce distinct versions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const n = 20
		versions := make(chan uint64, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				src, err := s.Save(ctx, "s1", fmt.Sprintf("(s, p) -> %d", i))
				if assert.NoError(t, err) {
					versions <- src.UpdateVersion
				}
			}()
		}
		wg.Wait()
		close(versions)

		seen := map[uint64]bool{}
		for v := range versions {
			assert.False(t, seen[v], "version %d handed out twice", v)
			seen[v] = true
		}
		assert.Len(t, seen, n)
	})
}
