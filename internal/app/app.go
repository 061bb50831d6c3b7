package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vk/hotswap/internal/bootstrap"
	"github.com/vk/hotswap/internal/ctxlog"
	"github.com/vk/hotswap/internal/memstore"
	"github.com/vk/hotswap/internal/model"
	"github.com/vk/hotswap/internal/orchestrator"
	"github.com/vk/hotswap/internal/pgstore"
	"github.com/vk/hotswap/internal/registry"
	"github.com/vk/hotswap/internal/store"
	"github.com/vk/hotswap/internal/worker"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	config *Config

	store        store.StrategySourceStore
	registry     *registry.Registry
	orchestrator *orchestrator.Orchestrator
	pool         *worker.Pool
	loader       *bootstrap.Loader
	status       *statusTracker

	httpServer *http.Server
	closeOnce  sync.Once
	closeErr   error
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and registry. When st
// is nil the store is chosen from the config: postgres if a DSN is set,
// memory otherwise. A store that cannot be opened is a fatal startup error.
func NewApp(outW io.Writer, cfg *Config, st store.StrategySourceStore) *App {
	logger := newLogger(cfg, outW)
	ctx, cancel := context.WithCancel(ctxlog.WithLogger(context.Background(), logger))
	logger.Debug("Logger configured successfully.")

	if st == nil {
		var err error
		st, err = openStore(ctx, cfg, logger)
		if err != nil {
			cancel()
			panic(fmt.Errorf("failed to open strategy store: %w", err))
		}
	}

	reg := registry.New()
	orch := orchestrator.New(reg, st,
		orchestrator.WithTimeout(cfg.CompileTimeout),
		orchestrator.WithScratchDir(cfg.ScratchDir),
	)
	logger.Debug("Orchestrator configured.", "backends", orch.Backends(), "timeout", cfg.CompileTimeout)

	a := &App{
		outW:         outW,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		config:       cfg,
		store:        st,
		registry:     reg,
		orchestrator: orch,
		status:       newStatusTracker(),
	}
	a.pool = worker.NewPool(ctx, cfg.WorkerCount, cfg.QueueSize, a.compile)
	a.loader = bootstrap.New(bootstrap.CompilerFunc(a.compileNow), cfg.WorkerCount)

	return a
}

func openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (store.StrategySourceStore, error) {
	if cfg.DSN == "" {
		logger.Debug("Using in-memory strategy store.")
		return memstore.New(), nil
	}
	logger.Debug("Using postgres strategy store.")
	return pgstore.Open(ctx, pgstore.Option{
		ConnString: cfg.DSN,
		Migrate:    true,
		Logger:     logger,
	})
}

// compile runs on a pool worker.
func (a *App) compile(ctx context.Context, sourceID, source string, version uint64) model.CompileOutcome {
	out := a.orchestrator.CompileAndRegister(ctx, sourceID, source, version)
	a.status.finish(sourceID, version, out)
	return out
}

// compileNow queues a compile and waits for it.
func (a *App) compileNow(ctx context.Context, sourceID, source string, version uint64) model.CompileOutcome {
	a.status.compiling(sourceID, version)
	out := a.pool.Compile(ctx, sourceID, source, version)
	if !out.Success && len(out.AttemptedBackends) == 0 {
		// Never reached a worker.
		a.status.finish(sourceID, version, out)
	}
	return out
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Store returns the application's source store.
func (a *App) Store() store.StrategySourceStore {
	return a.store
}

// Close stops the health server and the worker pool, waiting for running
// compiles, then closes the store. It is safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if err := a.closeHealthCheckServer(); err != nil {
			errs = append(errs, err)
		}
		a.pool.Close()
		a.cancel()
		if c, ok := a.store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close strategy store: %w", err))
			}
		}
		a.closeErr = errors.Join(errs...)
		a.logger.Debug("App closed.")
	})
	return a.closeErr
}
