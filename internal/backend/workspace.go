package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/google/uuid"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Workspace is a scratch directory owned by exactly one compile call. Its
// name carries a fresh namespace so concurrent compiles, even of the same
// strategy id, never share files.
type Workspace struct {
	dir       string
	namespace string

	once       sync.Once
	releaseErr error
}

// NewWorkspace creates <root>/<sourceID>-<namespace>. An empty root means the
// system temp directory.
func NewWorkspace(root, sourceID string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch root %s: %w", root, err)
	}

	namespace := uuid.NewString()
	dir := filepath.Join(root, unsafeNameChars.ReplaceAllString(sourceID, "_")+"-"+namespace)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create scratch workspace: %w", err)
	}
	return &Workspace{dir: dir, namespace: namespace}, nil
}

func (w *Workspace) Dir() string       { return w.dir }
func (w *Workspace) Namespace() string { return w.namespace }

// WriteFile stores data under name inside the workspace and returns its path.
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}

// Release removes the workspace. It is safe to call more than once and from
// several goroutines; only the first call does any work.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		w.releaseErr = os.RemoveAll(w.dir)
	})
	return w.releaseErr
}
