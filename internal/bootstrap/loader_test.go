package bootstrap

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/hotswap/internal/memstore"
	"github.com/vk/hotswap/internal/model"
	"github.com/vk/hotswap/internal/orchestrator"
	"github.com/vk/hotswap/internal/registry"
)

func TestLoadAll_IsolatesFailures(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := context.Background()
	st := memstore.New()
	reg := registry.New()
	orch := orchestrator.New(reg, st, orchestrator.WithScratchDir(t.TempDir()))

	const n, broken = 10, 3
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("(s, p) -> last(s) > %d", i)
		if i < broken {
			text = fmt.Sprintf("strategy \"b%d\" {\n  entry = ", i)
		}
		_, err := st.Save(ctx, fmt.Sprintf("s%02d", i), text)
		require.NoError(t, err)
	}
	_, err := st.Save(ctx, "empty", "   ")
	require.NoError(t, err)

	sources, err := st.FindAllWithSource(ctx)
	require.NoError(t, err)

	// --- Act ---
	summary := New(CompilerFunc(orch.CompileAndRegister), 4).LoadAll(ctx, sources)

	// --- Assert ---
	assert.Len(t, summary.Succeeded, n-broken)
	assert.Len(t, summary.Failed, broken)
	assert.Equal(t, n, summary.Total())
	assert.Len(t, reg.ListIDs(), n-broken)
	for id, diags := range summary.Failed {
		assert.True(t, diags.HasErrors(), id)
		src, err := st.Find(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, src.LastCompileError, id)
	}
	_, ok := reg.Lookup("empty")
	assert.False(t, ok)
}

func TestLoadAll_PanicDoesNotStopTheBatch(t *testing.T) {
	t.Parallel()

	compiler := CompilerFunc(func(_ context.Context, id, _ string, _ uint64) model.CompileOutcome {
		if id == "bad" {
			panic("corrupt source")
		}
		return model.CompileOutcome{Success: true}
	})
	sources := []*model.StrategySource{
		{ID: "a", SourceText: "x"},
		{ID: "bad", SourceText: "x"},
		nil,
		{ID: "c", SourceText: "x"},
	}

	summary := New(compiler, 2).LoadAll(context.Background(), sources)

	assert.Equal(t, []string{"a", "c"}, summary.Succeeded)
	require.Contains(t, summary.Failed, "bad")
	assert.Contains(t, summary.Failed["bad"].Error(), "load panicked: corrupt source")
}

func TestLoadAll_RespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var running, peak atomic.Int32
	compiler := CompilerFunc(func(context.Context, string, string, uint64) model.CompileOutcome {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return model.CompileOutcome{Success: true}
	})
	var sources []*model.StrategySource
	for i := 0; i < 12; i++ {
		sources = append(sources, &model.StrategySource{ID: fmt.Sprint(i), SourceText: "x"})
	}

	// --- Act ---
	summary := New(compiler, 2).LoadAll(context.Background(), sources)

	// --- Assert ---
	assert.Len(t, summary.Succeeded, 12)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestLoadAll_Empty(t *testing.T) {
	t.Parallel()

	summary := New(CompilerFunc(func(context.Context, string, string, uint64) model.CompileOutcome {
		t.Fatal("nothing should be compiled")
		return model.CompileOutcome{}
	}), 0).LoadAll(context.Background(), nil)

	assert.Empty(t, summary.Succeeded)
	assert.Empty(t, summary.Failed)
}
