package app

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()

	valid := Config{WorkerCount: 3, CompileTimeout: time.Second}

	testCases := []struct {
		name    string
		modify  func(c *Config)
		want    *Config
		wantErr string
	}{
		{
			name:   "queue size defaults from workers",
			modify: func(c *Config) {},
			want:   &Config{WorkerCount: 3, QueueSize: 12, CompileTimeout: time.Second},
		},
		{
			name:   "explicit queue size kept",
			modify: func(c *Config) { c.QueueSize = 1 },
			want:   &Config{WorkerCount: 3, QueueSize: 1, CompileTimeout: time.Second},
		},
		{
			name:    "no workers",
			modify:  func(c *Config) { c.WorkerCount = 0 },
			wantErr: "WorkerCount",
		},
		{
			name:    "negative queue",
			modify:  func(c *Config) { c.QueueSize = -1 },
			wantErr: "QueueSize",
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.CompileTimeout = 0 },
			wantErr: "CompileTimeout",
		},
		{
			name:    "port out of range",
			modify:  func(c *Config) { c.HealthcheckPort = 70000 },
			wantErr: "HealthcheckPort",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			cfg := valid
			tc.modify(&cfg)

			// --- Act ---
			got, err := NewConfig(cfg)

			// --- Assert ---
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("NewConfig() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
