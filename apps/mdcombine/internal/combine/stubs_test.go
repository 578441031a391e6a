package combine_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine"
)

// Compile-time interface compliance checks.
var (
	_ combine.RepoClient       = (*treeClient)(nil)
	_ combine.MarkdownRenderer = (*stubRenderer)(nil)
	_ combine.PDFConverter     = (*stubPDF)(nil)
	_ combine.ArtifactStore    = (*memArtifacts)(nil)
	_ combine.Locker           = (*stubLocker)(nil)
)

// ─── treeClient ───────────────────────────────────────────────────────────────

// treeClient serves a fixed tree. dirs maps a directory path ("" is the root)
// to its listing; files maps a file path to its content.
type treeClient struct {
	dirs  map[string][]combine.TreeEntry
	files map[string]string

	listFn func(ctx context.Context, dir string) ([]combine.TreeEntry, error)
	getFn  func(ctx context.Context, path string) (string, error)

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	listCalls   atomic.Int32
	getCalls    atomic.Int32
}

func (c *treeClient) track() func() {
	n := c.inFlight.Add(1)
	for {
		m := c.maxInFlight.Load()
		if n <= m || c.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	return func() { c.inFlight.Add(-1) }
}

func (c *treeClient) ListDirectory(ctx context.Context, _ combine.Repo, dir string) ([]combine.TreeEntry, error) {
	defer c.track()()
	c.listCalls.Add(1)
	if c.listFn != nil {
		return c.listFn(ctx, dir)
	}
	entries, ok := c.dirs[dir]
	if !ok {
		return nil, combine.RemoteError{Status: 404, Message: fmt.Sprintf("%s: Not Found", dir)}
	}
	return entries, nil
}

func (c *treeClient) GetFileContent(ctx context.Context, _ combine.Repo, path string) (string, error) {
	defer c.track()()
	c.getCalls.Add(1)
	if c.getFn != nil {
		return c.getFn(ctx, path)
	}
	if _, isDir := c.dirs[path]; isDir {
		return "", nil
	}
	content, ok := c.files[path]
	if !ok {
		return "", combine.RemoteError{Status: 404, Message: fmt.Sprintf("%s: Not Found", path)}
	}
	return content, nil
}

func file(path string) combine.TreeEntry {
	return combine.TreeEntry{Name: baseName(path), Path: path, Type: combine.EntryFile}
}

func dir(path string) combine.TreeEntry {
	return combine.TreeEntry{Name: baseName(path), Path: path, Type: combine.EntryDir}
}

func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

// aliceDocs is the README.md + notes/a.md repository used across tests.
func aliceDocs() *treeClient {
	return &treeClient{
		dirs: map[string][]combine.TreeEntry{
			"":      {file("README.md"), dir("notes"), file("logo.png")},
			"notes": {file("notes/a.md")},
		},
		files: map[string]string{
			"README.md":  "# Docs",
			"notes/a.md": "hello",
			"logo.png":   "\x89PNG\r\n\x1a\n\x00\xff",
		},
	}
}

// ─── stubRenderer ─────────────────────────────────────────────────────────────

type stubRenderer struct {
	renderFn func(markdown string) (string, error)
}

func (r *stubRenderer) Render(markdown string) (string, error) {
	if r.renderFn != nil {
		return r.renderFn(markdown)
	}
	return "<html>" + markdown + "</html>", nil
}

// ─── stubPDF ──────────────────────────────────────────────────────────────────

type stubPDF struct {
	convertFn func(ctx context.Context, html string) ([]byte, error)
	lastHTML  string
}

func (p *stubPDF) Convert(ctx context.Context, html string) ([]byte, error) {
	p.lastHTML = html
	if p.convertFn != nil {
		return p.convertFn(ctx, html)
	}
	return append([]byte("%PDF-1.4\n"), html...), nil
}

// ─── memArtifacts ─────────────────────────────────────────────────────────────

type memArtifacts struct {
	mu      sync.Mutex
	written map[string][]byte
	writes  int
	err     error
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{written: map[string][]byte{}}
}

func (m *memArtifacts) Write(_ context.Context, name string, body []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.writes++
	m.written[name] = append([]byte(nil), body...)
	return "out/" + name, nil
}

// ─── stubLocker ───────────────────────────────────────────────────────────────

type stubLocker struct {
	mu       sync.Mutex
	keys     []string
	released int
	err      error
}

func (l *stubLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

// ─── helpers ──────────────────────────────────────────────────────────────────

type fixture struct {
	client    *treeClient
	renderer  *stubRenderer
	pdf       *stubPDF
	artifacts *memArtifacts
	locker    *stubLocker
	svc       *combine.Service
}

func newFixture(client *treeClient, concurrency int) *fixture {
	f := &fixture{
		client:    client,
		renderer:  &stubRenderer{},
		pdf:       &stubPDF{},
		artifacts: newMemArtifacts(),
		locker:    &stubLocker{},
	}
	f.svc = combine.NewService(combine.Deps{
		Client:      f.client,
		Renderer:    f.renderer,
		PDF:         f.pdf,
		Artifacts:   f.artifacts,
		Locker:      f.locker,
		Concurrency: concurrency,
	})
	return f
}

var alice = combine.Repo{Owner: "alice", Name: "docs"}
