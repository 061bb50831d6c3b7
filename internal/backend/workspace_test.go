package backend

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspace_Lifecycle(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := t.TempDir()

	// --- Act ---
	ws, err := NewWorkspace(root, "golden/cross v2")
	require.NoError(t, err)
	path, err := ws.WriteFile("strategy.hcl", []byte("entry = true"))
	require.NoError(t, err)

	// --- Assert ---
	assert.Equal(t, root, filepath.Dir(ws.Dir()))
	assert.True(t, strings.HasPrefix(filepath.Base(ws.Dir()), "golden_cross_v2-"))
	assert.True(t, strings.HasSuffix(ws.Dir(), ws.Namespace()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "entry = true", string(data))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ws.Release())
		}()
	}
	wg.Wait()
	_, err = os.Stat(ws.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestWorkspace_NamespacesAreUnique(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a, err := NewWorkspace(root, "same")
	require.NoError(t, err)
	b, err := NewWorkspace(root, "same")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Release()
		_ = b.Release()
	})

	assert.NotEqual(t, a.Namespace(), b.Namespace())
	assert.NotEqual(t, a.Dir(), b.Dir())
}
