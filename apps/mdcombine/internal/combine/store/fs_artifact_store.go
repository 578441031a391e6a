package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine"
)

// Compile-time check: *FSArtifactStore implements combine.ArtifactStore.
var _ combine.ArtifactStore = (*FSArtifactStore)(nil)

// FSArtifactStore writes artifacts into a directory on the local filesystem.
// Writes replace the target atomically so readers never see a partial file.
type FSArtifactStore struct {
	dir string
}

// NewFSArtifactStore creates a store rooted at dir. The directory is created
// on first write.
func NewFSArtifactStore(dir string) *FSArtifactStore {
	return &FSArtifactStore{dir: dir}
}

// Dir returns the output directory.
func (s *FSArtifactStore) Dir() string {
	return s.dir
}

// Write stores body under name, overwriting any previous artifact, and returns
// the path written.
func (s *FSArtifactStore) Write(ctx context.Context, name string, body []byte) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", s.dir, err)
	}

	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(body); err != nil {
		return "", fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("rename to %s: %w", target, err)
	}
	committed = true
	return target, nil
}
