package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vk/hotswap/internal/app"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		args       []string
		want       *app.Config
		wantExit   bool
		wantErr    string
		wantOutput string
	}{
		{
			name: "positional path with defaults",
			args: []string{"./strategies"},
			want: &app.Config{
				StrategiesPath: "./strategies",
				WorkerCount:    app.DefaultWorkerCount,
				QueueSize:      app.DefaultWorkerCount * 4,
				CompileTimeout: app.DefaultCompileTimeout,
				LogFormat:      "json",
				LogLevel:       "info",
			},
		},
		{
			name: "all flags",
			args: []string{
				"-strategies", "/srv/strat", "-dsn", "postgres://db/hotswap",
				"-workers", "8", "-queue-size", "3", "-compile-timeout", "2s",
				"-scratch-dir", "/tmp/scratch", "-healthcheck-port", "8080",
				"-log-format", "TEXT", "-log-level", "Debug",
			},
			want: &app.Config{
				StrategiesPath:  "/srv/strat",
				DSN:             "postgres://db/hotswap",
				WorkerCount:     8,
				QueueSize:       3,
				CompileTimeout:  2 * time.Second,
				ScratchDir:      "/tmp/scratch",
				HealthcheckPort: 8080,
				LogFormat:       "text",
				LogLevel:        "debug",
			},
		},
		{
			name: "shorthand path",
			args: []string{"-s", "one.strat", "other.strat"},
			want: &app.Config{
				StrategiesPath: "one.strat",
				WorkerCount:    app.DefaultWorkerCount,
				QueueSize:      app.DefaultWorkerCount * 4,
				CompileTimeout: app.DefaultCompileTimeout,
				LogFormat:      "json",
				LogLevel:       "info",
			},
		},
		{
			name: "dsn alone is enough",
			args: []string{"-dsn", "postgres://db/hotswap"},
			want: &app.Config{
				DSN:            "postgres://db/hotswap",
				WorkerCount:    app.DefaultWorkerCount,
				QueueSize:      app.DefaultWorkerCount * 4,
				CompileTimeout: app.DefaultCompileTimeout,
				LogFormat:      "json",
				LogLevel:       "info",
			},
		},
		{
			name:       "nothing to load prints usage",
			args:       nil,
			wantExit:   true,
			wantOutput: "Usage:",
		},
		{
			name:       "help",
			args:       []string{"-h"},
			wantExit:   true,
			wantOutput: "STRATEGIES_PATH",
		},
		{
			name:    "unknown flag",
			args:    []string{"-nope"},
			wantErr: "flag provided but not defined: -nope",
		},
		{
			name:    "bad log format",
			args:    []string{"-log-format", "xml", "dir"},
			wantErr: "invalid log-format",
		},
		{
			name:    "bad log level",
			args:    []string{"-log-level", "trace", "dir"},
			wantErr: "invalid log-level",
		},
		{
			name:    "config validation",
			args:    []string{"-workers", "0", "dir"},
			wantErr: "WorkerCount",
		},
		{
			name:    "bad duration",
			args:    []string{"-compile-timeout", "soon", "dir"},
			wantErr: "invalid value",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			out := &bytes.Buffer{}

			// --- Act ---
			cfg, shouldExit, err := Parse(tc.args, out)

			// --- Assert ---
			if tc.wantErr != "" {
				require.Error(t, err)
				var exitErr *ExitError
				require.ErrorAs(t, err, &exitErr)
				require.Equal(t, 2, exitErr.Code)
				require.Contains(t, exitErr.Message, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantExit, shouldExit)
			if tc.wantOutput != "" {
				require.Contains(t, out.String(), tc.wantOutput)
			}
			if diff := cmp.Diff(tc.want, cfg); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
