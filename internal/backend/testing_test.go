package backend

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/hotswap/internal/model"
)

// flat returns n bars at price followed by the given closing prices.
func flat(n int, price float64, tail ...float64) model.Series {
	closes := make([]float64, 0, n+len(tail))
	for i := 0; i < n; i++ {
		closes = append(closes, price)
	}
	return model.SeriesFromCloses(append(closes, tail...)...)
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "scratch workspaces were not released")
}
