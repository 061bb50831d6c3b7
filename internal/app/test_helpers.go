package app

import (
	"bytes"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/vk/hotswap/internal/memstore"
	"github.com/vk/hotswap/internal/store"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// TestConfig returns a valid configuration for tests, writing compile
// workspaces under a per-test directory.
func TestConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		WorkerCount:    2,
		QueueSize:      8,
		CompileTimeout: 5 * time.Second,
		ScratchDir:     t.TempDir(),
		LogFormat:      "text",
		LogLevel:       "debug",
	}
}

// SetupAppTest creates a new app instance backed by an in-memory store unless
// st is given. The app is closed when the test ends.
func SetupAppTest(t *testing.T, cfg *Config, st store.StrategySourceStore) (*App, *SafeBuffer) {
	t.Helper()

	if st == nil {
		st = memstore.New()
	}
	logBuffer := &SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp := NewApp(logBuffer, cfg, st)

	t.Cleanup(func() {
		_ = testApp.Close()
		if os.Getenv("HOTSWAP_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
