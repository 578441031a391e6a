package adapters

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine"
)

// InMem is an in-memory combine.RepoClient for tests and local runs without
// network access. Directories are implied by the paths of seeded files.
type InMem struct {
	mu     sync.Mutex
	files  map[string]string // "owner/repo/path" -> content
	errors map[string]error  // "owner/repo/path" -> injected failure
}

// NewInMem creates an empty InMem client.
func NewInMem() *InMem {
	return &InMem{
		files:  make(map[string]string),
		errors: make(map[string]error),
	}
}

// SetFile seeds a file in the in-memory store.
func (m *InMem) SetFile(repo combine.Repo, path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key(repo, path)] = content
}

// SetError makes every call touching path fail with err. A nil err clears it.
func (m *InMem) SetError(repo combine.Repo, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, key(repo, path))
		return
	}
	m.errors[key(repo, path)] = err
}

// GetFileContent returns the content at path, "" when path is a directory,
// and a 404 RemoteError when nothing lives there.
func (m *InMem) GetFileContent(_ context.Context, repo combine.Repo, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors[key(repo, path)]; err != nil {
		return "", err
	}
	if content, ok := m.files[key(repo, path)]; ok {
		return content, nil
	}
	if m.isDir(repo, path) {
		return "", nil
	}
	return "", combine.RemoteError{Status: 404, Message: fmt.Sprintf("%s: Not Found", path)}
}

// ListDirectory returns the immediate children of dir sorted by name, the
// way the contents API orders them.
func (m *InMem) ListDirectory(_ context.Context, repo combine.Repo, dir string) ([]combine.TreeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors[key(repo, dir)]; err != nil {
		return nil, err
	}
	if dir != "" && !m.isDir(repo, dir) {
		if _, ok := m.files[key(repo, dir)]; ok {
			return []combine.TreeEntry{}, nil
		}
		return nil, combine.RemoteError{Status: 404, Message: fmt.Sprintf("%s: Not Found", dir)}
	}

	prefix := dirPrefix(repo, dir)
	seen := make(map[string]bool)
	entries := []combine.TreeEntry{}
	for k := range m.files {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		parts := strings.SplitN(rest, "/", 2)
		name := parts[0]
		if seen[name] {
			continue
		}
		seen[name] = true

		entryType := combine.EntryFile
		if len(parts) > 1 {
			entryType = combine.EntryDir
		}
		p := name
		if dir != "" {
			p = dir + "/" + name
		}
		entries = append(entries, combine.TreeEntry{Name: name, Path: p, Type: entryType})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (m *InMem) isDir(repo combine.Repo, dir string) bool {
	prefix := dirPrefix(repo, dir)
	for k := range m.files {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func key(repo combine.Repo, path string) string {
	return repo.Owner + "/" + repo.Name + "/" + path
}

func dirPrefix(repo combine.Repo, dir string) string {
	if dir == "" {
		return repo.Owner + "/" + repo.Name + "/"
	}
	return key(repo, dir) + "/"
}
