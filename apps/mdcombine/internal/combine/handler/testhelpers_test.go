package handler_test

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine/adapters"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine/handler"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine/store"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/platform/validation"
	"github.com/tilsley/mdcombine/schemas"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var alice = combine.Repo{Owner: "alice", Name: "docs"}

// ─── Stubs ────────────────────────────────────────────────────────────────────

type stubPDF struct {
	convertFn func(ctx context.Context, html string) ([]byte, error)
}

func (p *stubPDF) Convert(ctx context.Context, html string) ([]byte, error) {
	if p.convertFn != nil {
		return p.convertFn(ctx, html)
	}
	return append([]byte("%PDF-1.7\n"), html...), nil
}

// ─── Test server builder ──────────────────────────────────────────────────────

type testServer struct {
	router    *gin.Engine
	client    *adapters.InMem
	pdf       *stubPDF
	outputDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		client:    adapters.NewInMem(),
		pdf:       &stubPDF{},
		outputDir: t.TempDir(),
	}
	ts.client.SetFile(alice, "README.md", "# Docs")
	ts.client.SetFile(alice, "notes/a.md", "hello")
	ts.client.SetFile(alice, "logo.png", "\x89PNG\r\n\x1a\n\x00\xff")

	ts.router = gin.New()
	handler.RegisterRoutes(ts.router, ts.service(), slog.Default())
	return ts
}

func newTestServerWithValidation(t *testing.T) *testServer {
	t.Helper()
	ts := newTestServer(t)
	mw, err := validation.New(schemas.OpenAPISpec)
	require.NoError(t, err)
	r := gin.New()
	r.Use(mw)
	handler.RegisterRoutes(r, ts.service(), slog.Default())
	ts.router = r
	return ts
}

func (ts *testServer) service() *combine.Service {
	return combine.NewService(combine.Deps{
		Client:      ts.client,
		Renderer:    adapters.NewGoldmarkRenderer(),
		PDF:         ts.pdf,
		Artifacts:   store.NewFSArtifactStore(ts.outputDir),
		Locker:      store.NewLocalLocker(),
		Log:         slog.Default(),
		Concurrency: 4,
	})
}

func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}
