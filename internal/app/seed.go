package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/vk/hotswap/internal/bootstrap"
	"github.com/vk/hotswap/internal/ctxlog"
	"github.com/vk/hotswap/internal/fsutil"
)

// strategyExtensions are the file types picked up when seeding.
var strategyExtensions = []string{".strat", ".hcl"}

// Seed saves every strategy file under the configured StrategiesPath into the
// store, keyed by file name without extension. Blank files are skipped. It
// returns the number of sources saved.
func (a *App) Seed(ctx context.Context) (int, error) {
	path := a.config.StrategiesPath
	if path == "" {
		return 0, nil
	}
	a.logger.Debug("Seeding strategies...", "strategies_path", path)

	files, err := fsutil.FindFilesByExtension(path, strategyExtensions...)
	if err != nil {
		return 0, fmt.Errorf("failed to find strategy files in %s: %w", path, err)
	}

	seen := make(map[string]string, len(files))
	saved := 0
	for _, file := range files {
		id := fsutil.StemOf(file)
		if prev, ok := seen[id]; ok {
			a.logger.Warn("Duplicate strategy id, later file wins.", "strategy", id, "file", file, "previous", prev)
		}
		seen[id] = file

		data, err := os.ReadFile(file)
		if err != nil {
			return saved, fmt.Errorf("failed to read strategy file %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			a.logger.Warn("Skipping empty strategy file.", "file", file)
			continue
		}
		if _, err := a.store.Save(ctx, id, string(data)); err != nil {
			return saved, fmt.Errorf("failed to save strategy %q: %w", id, err)
		}
		saved++
	}

	a.logger.Info("Strategies seeded.", "files", len(files), "saved", saved)
	return saved, nil
}

// Bootstrap compiles every stored strategy that has source text. One broken
// strategy never stops the others from loading.
func (a *App) Bootstrap(ctx context.Context) (bootstrap.Summary, error) {
	sources, err := a.store.FindAllWithSource(ctx)
	if err != nil {
		return bootstrap.Summary{}, fmt.Errorf("failed to list strategies: %w", err)
	}
	a.logger.Debug("Bootstrapping strategies...", "count", len(sources))

	summary := a.loader.LoadAll(ctxlog.WithLogger(ctx, a.logger), sources)
	for id, diags := range summary.Failed {
		a.logger.Warn("Strategy not loaded.", "strategy", id, "error", diags.Error(), "serving_previous", a.hasArtifact(id))
	}
	return summary, nil
}

func (a *App) hasArtifact(id string) bool {
	_, ok := a.registry.Lookup(id)
	return ok
}
