// Package worker runs compile jobs on a fixed number of goroutines, apart
// from the goroutines that evaluate live trading decisions.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/vk/hotswap/internal/ctxlog"
	"github.com/vk/hotswap/internal/model"
)

// ErrPoolClosed is returned when submitting to a pool that has been closed.
var ErrPoolClosed = errors.New("worker pool is closed")

// Job is one compile request.
type Job struct {
	SourceID string
	Source   string
	Version  uint64
}

// CompileFunc performs a compile job. Orchestrator.CompileAndRegister has
// this shape.
type CompileFunc func(ctx context.Context, sourceID, source string, version uint64) model.CompileOutcome

type task struct {
	job    Job
	result chan model.CompileOutcome
}

// Pool is a bounded set of compile workers fed from a queue.
type Pool struct {
	ctx     context.Context
	compile CompileFunc
	queue   chan task
	wg      sync.WaitGroup

	// closing unblocks submitters waiting on a full queue.
	closing   chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines. Jobs run under ctx, which also carries
// the logger. queueSize bounds how many jobs may wait for a free worker.
func NewPool(ctx context.Context, workers, queueSize int, compile CompileFunc) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		ctx:     ctx,
		compile: compile,
		queue:   make(chan task, queueSize),
		closing: make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 1; i <= workers; i++ {
		go p.worker(i)
	}
	ctxlog.FromContext(ctx).Debug("Compile worker pool started.", "workers", workers, "queue", queueSize)
	return p
}

// Submit queues job and returns a channel that receives its outcome. It
// blocks while the queue is full, until ctx ends.
func (p *Pool) Submit(ctx context.Context, job Job) (<-chan model.CompileOutcome, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	t := task{job: job, result: make(chan model.CompileOutcome, 1)}
	select {
	case p.queue <- t:
		return t.result, nil
	case <-p.closing:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Compile submits a job and waits for its outcome. A job that cannot be
// queued yields a failed outcome.
func (p *Pool) Compile(ctx context.Context, sourceID, source string, version uint64) model.CompileOutcome {
	result, err := p.Submit(ctx, Job{SourceID: sourceID, Source: source, Version: version})
	if err != nil {
		return notScheduled(err)
	}
	select {
	case out := <-result:
		return out
	case <-ctx.Done():
		return notScheduled(ctx.Err())
	}
}

func notScheduled(err error) model.CompileOutcome {
	return model.CompileOutcome{
		Diagnostics: model.Diagnostics{model.Errorf("", "compile not scheduled: %v", err)},
	}
}

// Close stops accepting jobs, lets the workers drain the queue and waits for
// them to exit.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.closing) })

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the processing loop of one pool goroutine.
func (p *Pool) worker(workerID int) {
	defer p.wg.Done()
	logger := ctxlog.FromContext(p.ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for t := range p.queue {
		workerLogger := logger.With("workerID", workerID, "strategy", t.job.SourceID, "version", t.job.Version)
		workerLogger.Debug("Worker picked up compile job.")
		t.result <- p.run(ctxlog.WithLogger(p.ctx, workerLogger), t.job)
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// run shields the worker from a panicking compile.
func (p *Pool) run(ctx context.Context, job Job) (out model.CompileOutcome) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("Compile job panicked.", "panic", r)
			out = model.CompileOutcome{
				Diagnostics: model.Diagnostics{model.Errorf("", "compile job panicked: %v", r)},
			}
		}
	}()
	return p.compile(ctx, job.SourceID, job.Source, job.Version)
}
