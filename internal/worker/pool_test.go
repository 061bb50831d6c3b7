package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/hotswap/internal/model"
)

func succeedWith(backend string) CompileFunc {
	return func(_ context.Context, id, _ string, version uint64) model.CompileOutcome {
		decide := func(model.Series, model.Params) (model.Decision, error) { return model.Hold, nil }
		return model.CompileOutcome{Success: true, Artifact: model.NewCompiledArtifact(id, backend, version, decide)}
	}
}

func TestPool_RunsJobs(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	p := NewPool(context.Background(), 3, 10, succeedWith("Fast"))
	t.Cleanup(p.Close)

	// --- Act ---
	out := p.Compile(context.Background(), "s1", "(s, p) -> true", 7)

	// --- Assert ---
	require.True(t, out.Success)
	assert.Equal(t, "s1", out.Artifact.SourceID())
	assert.Equal(t, uint64(7), out.Artifact.CompiledAtVersion())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	const workers = 3
	var running, peak atomic.Int32
	compile := func(ctx context.Context, id, src string, v uint64) model.CompileOutcome {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return model.CompileOutcome{Success: true}
	}
	p := NewPool(context.Background(), workers, 50, compile)
	t.Cleanup(p.Close)

	// --- Act ---
	var results []<-chan model.CompileOutcome
	for i := 0; i < 20; i++ {
		ch, err := p.Submit(context.Background(), Job{SourceID: "s"})
		require.NoError(t, err)
		results = append(results, ch)
	}
	for _, ch := range results {
		assert.True(t, (<-ch).Success)
	}

	// --- Assert ---
	assert.LessOrEqual(t, peak.Load(), int32(workers))
	assert.Positive(t, peak.Load())
}

func TestPool_PanicIsContained(t *testing.T) {
	t.Parallel()

	calls := atomic.Int32{}
	p := NewPool(context.Background(), 1, 1, func(context.Context, string, string, uint64) model.CompileOutcome {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return model.CompileOutcome{Success: true}
	})
	t.Cleanup(p.Close)

	first := p.Compile(context.Background(), "s1", "", 1)
	second := p.Compile(context.Background(), "s1", "", 2)

	assert.False(t, first.Success)
	assert.Contains(t, first.Diagnostics.Error(), "panicked: boom")
	assert.True(t, second.Success, "the worker survives a panicking job")
}

func TestPool_Close(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var done atomic.Int32
	p := NewPool(context.Background(), 2, 10, func(context.Context, string, string, uint64) model.CompileOutcome {
		time.Sleep(5 * time.Millisecond)
		done.Add(1)
		return model.CompileOutcome{Success: true}
	})
	for i := 0; i < 6; i++ {
		_, err := p.Submit(context.Background(), Job{SourceID: "s"})
		require.NoError(t, err)
	}

	// --- Act ---
	p.Close()
	p.Close()

	// --- Assert ---
	assert.Equal(t, int32(6), done.Load(), "queued jobs are drained before Close returns")
	_, err := p.Submit(context.Background(), Job{})
	assert.ErrorIs(t, err, ErrPoolClosed)
	out := p.Compile(context.Background(), "s1", "", 1)
	assert.False(t, out.Success)
}

func TestPool_SubmitRespectsContext(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	release := make(chan struct{})
	p := NewPool(context.Background(), 1, 0, func(context.Context, string, string, uint64) model.CompileOutcome {
		<-release
		return model.CompileOutcome{}
	})
	t.Cleanup(func() {
		close(release)
		p.Close()
	})
	_, err := p.Submit(context.Background(), Job{SourceID: "busy"})
	require.NoError(t, err)

	// --- Act ---
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	var submitErr error
	go func() {
		defer wg.Done()
		_, submitErr = p.Submit(ctx, Job{SourceID: "waiting"})
	}()
	wg.Wait()

	// --- Assert ---
	assert.ErrorIs(t, submitErr, context.DeadlineExceeded)
}
