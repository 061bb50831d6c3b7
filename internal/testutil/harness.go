// Package testutil runs the whole application against strategy files written
// to a temporary directory.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vk/hotswap/internal/app"
	"github.com/vk/hotswap/internal/bootstrap"
	"github.com/vk/hotswap/internal/model"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	App     *app.App
	Logs    *app.SafeBuffer
	Summary bootstrap.Summary
	Err     error
}

// LogOutput returns everything the app logged so far.
func (r *HarnessResult) LogOutput() string {
	return r.Logs.String()
}

// RunIntegrationTest provides a standardized harness for integration tests
// using a default background context.
func RunIntegrationTest(t *testing.T, files map[string]string) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, files)
}

// RunIntegrationTestWithContext writes files under a temporary strategies
// directory, then seeds and bootstraps a fresh app from it. The app is closed
// when the test ends.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, files map[string]string) *HarnessResult {
	t.Helper()

	// 1. Write the strategy files. Relative paths create subdirectories.
	strategiesDir := filepath.Join(t.TempDir(), "strategies")
	require.NoError(t, os.MkdirAll(strategiesDir, 0o755))
	for name, content := range files {
		filePath := filepath.Join(strategiesDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}

	// 2. Configure the app with its own scratch directory.
	cfg := app.TestConfig(t)
	cfg.StrategiesPath = strategiesDir
	cfg.WorkerCount = 4
	cfg.QueueSize = 64

	testApp, logBuffer := app.SetupAppTest(t, cfg, nil)
	result := &HarnessResult{App: testApp, Logs: logBuffer}

	// 3. Seed and load, the same way Run does before serving.
	if _, err := testApp.Seed(ctx); err != nil {
		result.Err = fmt.Errorf("seed failed: %w", err)
		return result
	}
	result.Summary, result.Err = testApp.Bootstrap(ctx)
	return result
}

// Await waits for a queued compile to finish.
func Await(t *testing.T, result <-chan model.CompileOutcome) model.CompileOutcome {
	t.Helper()
	select {
	case out := <-result:
		return out
	case <-time.After(15 * time.Second):
		t.Fatal("compile did not finish in time")
		return model.CompileOutcome{}
	}
}
