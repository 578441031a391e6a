package combine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine"
)

// ─── ListMarkdownFiles ────────────────────────────────────────────────────────

func TestListMarkdownFiles_AliceDocs(t *testing.T) {
	f := newFixture(aliceDocs(), 4)

	files, err := f.svc.ListMarkdownFiles(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "notes/a.md"}, files)
}

func TestListMarkdownFiles_NoMarkdownIsNotFound(t *testing.T) {
	client := &treeClient{dirs: map[string][]combine.TreeEntry{"": {file("main.go")}}}
	f := newFixture(client, 4)

	_, err := f.svc.ListMarkdownFiles(context.Background(), alice)

	var nf combine.NotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestListMarkdownFiles_MissingParams(t *testing.T) {
	f := newFixture(aliceDocs(), 4)

	for _, repo := range []combine.Repo{
		{Owner: "", Name: "docs"},
		{Owner: "alice", Name: ""},
		{Owner: "  ", Name: "docs"},
	} {
		_, err := f.svc.ListMarkdownFiles(context.Background(), repo)
		var br combine.BadRequestError
		require.True(t, errors.As(err, &br), "repo %+v", repo)
		assert.Equal(t, "Missing required parameters: owner, repo.", br.Message)
	}
	assert.Zero(t, f.client.listCalls.Load())
}

func TestListMarkdownFiles_InvalidCoordinates(t *testing.T) {
	f := newFixture(aliceDocs(), 4)

	for _, repo := range []combine.Repo{
		{Owner: "alice", Name: ".."},
		{Owner: ".", Name: "docs"},
		{Owner: "alice/evil", Name: "docs"},
		{Owner: "alice", Name: "docs?ref=x"},
	} {
		_, err := f.svc.ListMarkdownFiles(context.Background(), repo)
		assert.True(t, errors.As(err, new(combine.BadRequestError)), "repo %+v", repo)
	}
}

func TestListMarkdownFiles_RemoteErrorPropagates(t *testing.T) {
	client := aliceDocs()
	client.listFn = func(context.Context, string) ([]combine.TreeEntry, error) {
		return nil, combine.RemoteError{Status: 502, Message: "Bad Gateway"}
	}
	f := newFixture(client, 4)

	_, err := f.svc.ListMarkdownFiles(context.Background(), alice)

	var remote combine.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 502, remote.Status)
}

// ─── ExportCombined ───────────────────────────────────────────────────────────

func TestExportCombined_SingleFileMarkdown(t *testing.T) {
	client := &treeClient{
		dirs:  map[string][]combine.TreeEntry{"": {file("a.md")}},
		files: map[string]string{"a.md": "hello"},
	}
	f := newFixture(client, 4)

	art, err := f.svc.ExportCombined(context.Background(), alice, combine.FormatMarkdown)
	require.NoError(t, err)

	assert.Equal(t, "\n\n# a.md\n\nhello", string(art.Body))
	assert.Equal(t, "alice-docs-combined.markdown", art.Filename)
	assert.Equal(t, "out/alice-docs-combined.markdown", art.Path)
	assert.Equal(t, combine.FormatMarkdown, art.Format)
	assert.Equal(t, art.Body, f.artifacts.written[art.Filename])
}

func TestExportCombined_AliceDocsMarkdown(t *testing.T) {
	f := newFixture(aliceDocs(), 4)

	art, err := f.svc.ExportCombined(context.Background(), alice, combine.FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "\n\n# README.md\n\n# Docs\n\n# notes/a.md\n\nhello", string(art.Body))
}

func TestExportCombined_HTMLEqualsRenderedMarkdown(t *testing.T) {
	f := newFixture(aliceDocs(), 4)

	md, err := f.svc.ExportCombined(context.Background(), alice, combine.FormatMarkdown)
	require.NoError(t, err)
	html, err := f.svc.ExportCombined(context.Background(), alice, combine.FormatHTML)
	require.NoError(t, err)

	want, err := f.renderer.Render(string(md.Body))
	require.NoError(t, err)
	assert.Equal(t, want, string(html.Body))
	assert.Equal(t, "alice-docs-combined.html", html.Filename)
}

func TestExportCombined_PDFConvertsRenderedHTML(t *testing.T) {
	f := newFixture(aliceDocs(), 4)

	art, err := f.svc.ExportCombined(context.Background(), alice, combine.FormatPDF)
	require.NoError(t, err)

	assert.Equal(t, "alice-docs-combined.pdf", art.Filename)
	assert.Contains(t, f.pdf.lastHTML, "<html>")
	assert.Contains(t, f.pdf.lastHTML, "# notes/a.md")
	assert.True(t, len(art.Body) > 0)
	assert.Equal(t, "%PDF", string(art.Body[:4]))
}

func TestExportCombined_Idempotent(t *testing.T) {
	f := newFixture(aliceDocs(), 4)

	first, err := f.svc.ExportCombined(context.Background(), alice, combine.FormatHTML)
	require.NoError(t, err)
	second, err := f.svc.ExportCombined(context.Background(), alice, combine.FormatHTML)
	require.NoError(t, err)

	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, first.Path, second.Path)
	assert.Len(t, f.artifacts.written, 1)
	assert.Equal(t, 2, f.artifacts.writes)
}

func TestExportCombined_HoldsArtifactLock(t *testing.T) {
	f := newFixture(aliceDocs(), 4)

	_, err := f.svc.ExportCombined(context.Background(), alice, combine.FormatMarkdown)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice-docs-combined.markdown"}, f.locker.keys)
	assert.Equal(t, 1, f.locker.released)
}

func TestExportCombined_SkipsEmptyFiles(t *testing.T) {
	client := &treeClient{
		dirs:  map[string][]combine.TreeEntry{"": {file("a.md"), file("empty.md"), file("b.md")}},
		files: map[string]string{"a.md": "A", "empty.md": "", "b.md": "B"},
	}
	f := newFixture(client, 4)

	art, err := f.svc.ExportCombined(context.Background(), alice, combine.FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "\n\n# a.md\n\nA\n\n# b.md\n\nB", string(art.Body))
}

func TestExportCombined_Stages(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		repo    combine.Repo
		format  combine.Format
		stage   combine.Stage
		matches func(error) bool
	}{
		{
			name:    "blank owner",
			repo:    combine.Repo{Name: "docs"},
			format:  combine.FormatMarkdown,
			stage:   combine.StageValidating,
			matches: func(err error) bool { return errors.As(err, new(combine.BadRequestError)) },
		},
		{
			name:    "unknown format",
			repo:    alice,
			format:  combine.Format("docx"),
			stage:   combine.StageValidating,
			matches: func(err error) bool { return errors.As(err, new(combine.BadRequestError)) },
		},
		{
			name: "zero markdown files",
			setup: func(f *fixture) {
				f.client.dirs[""] = []combine.TreeEntry{file("main.go")}
			},
			repo:    alice,
			format:  combine.FormatMarkdown,
			stage:   combine.StageListing,
			matches: func(err error) bool { return errors.As(err, new(combine.NotFoundError)) },
		},
		{
			name: "listing fails",
			setup: func(f *fixture) {
				f.client.listFn = func(context.Context, string) ([]combine.TreeEntry, error) {
					return nil, combine.RemoteError{Status: 500, Message: "boom"}
				}
			},
			repo:    alice,
			format:  combine.FormatMarkdown,
			stage:   combine.StageListing,
			matches: func(err error) bool { return errors.As(err, new(combine.RemoteError)) },
		},
		{
			name: "fetch fails",
			setup: func(f *fixture) {
				f.client.getFn = func(context.Context, string) (string, error) {
					return "", combine.RemoteError{Status: 403, Message: "Forbidden"}
				}
			},
			repo:    alice,
			format:  combine.FormatMarkdown,
			stage:   combine.StageFetching,
			matches: func(err error) bool { return errors.As(err, new(combine.RemoteError)) },
		},
		{
			name: "html render fails",
			setup: func(f *fixture) {
				f.renderer.renderFn = func(string) (string, error) { return "", errors.New("bad markdown") }
			},
			repo:    alice,
			format:  combine.FormatHTML,
			stage:   combine.StageConverting,
			matches: func(err error) bool { return errors.As(err, new(combine.RenderError)) },
		},
		{
			name: "pdf conversion fails",
			setup: func(f *fixture) {
				f.pdf.convertFn = func(context.Context, string) ([]byte, error) { return nil, errors.New("chrome crashed") }
			},
			repo:   alice,
			format: combine.FormatPDF,
			stage:  combine.StageConverting,
			matches: func(err error) bool {
				var re combine.RenderError
				return errors.As(err, &re) && re.Format == combine.FormatPDF
			},
		},
		{
			name: "write fails",
			setup: func(f *fixture) {
				f.artifacts.err = errors.New("disk full")
			},
			repo:    alice,
			format:  combine.FormatMarkdown,
			stage:   combine.StageWriting,
			matches: func(err error) bool { return err != nil },
		},
		{
			name: "lock fails",
			setup: func(f *fixture) {
				f.locker.err = context.DeadlineExceeded
			},
			repo:    alice,
			format:  combine.FormatMarkdown,
			stage:   combine.StageWriting,
			matches: func(err error) bool { return errors.Is(err, context.DeadlineExceeded) },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(aliceDocs(), 4)
			if tc.setup != nil {
				tc.setup(f)
			}

			art, err := f.svc.ExportCombined(context.Background(), tc.repo, tc.format)
			require.Error(t, err)
			assert.Nil(t, art)

			var ee combine.ExportError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, tc.stage, ee.Stage)
			assert.True(t, tc.matches(err), "unexpected error kind: %v", err)
			assert.Zero(t, f.artifacts.writes)
		})
	}
}

// ─── PreviewFile ──────────────────────────────────────────────────────────────

func TestPreviewFile_RendersMarkdown(t *testing.T) {
	f := newFixture(aliceDocs(), 4)

	html, err := f.svc.PreviewFile(context.Background(), alice, "notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, "<html>hello</html>", html)
	assert.Zero(t, f.client.listCalls.Load(), "preview must not walk the tree")
	assert.Empty(t, f.artifacts.written)
}

func TestPreviewFile_DirectoryIsNotFound(t *testing.T) {
	f := newFixture(aliceDocs(), 4)

	_, err := f.svc.PreviewFile(context.Background(), alice, "notes")

	var nf combine.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "File not found or empty content.", nf.Message)
}

func TestPreviewFile_BinaryIsNotFound(t *testing.T) {
	client := aliceDocs()
	client.files["diagram.md"] = "\xff\xfe\x00binary"
	f := newFixture(client, 4)

	_, err := f.svc.PreviewFile(context.Background(), alice, "diagram.md")
	assert.True(t, errors.As(err, new(combine.NotFoundError)))
}

func TestPreviewFile_NonMarkdownIsBadRequest(t *testing.T) {
	client := aliceDocs()
	client.files["main.go"] = "package main"
	f := newFixture(client, 4)

	_, err := f.svc.PreviewFile(context.Background(), alice, "main.go")
	assert.True(t, errors.As(err, new(combine.BadRequestError)))
}

func TestPreviewFile_RejectsBadInput(t *testing.T) {
	f := newFixture(aliceDocs(), 4)

	for _, tc := range []struct {
		repo combine.Repo
		path string
	}{
		{alice, ""},
		{combine.Repo{Name: "docs"}, "README.md"},
		{alice, "../secrets.md"},
		{alice, "notes/../../x.md"},
	} {
		_, err := f.svc.PreviewFile(context.Background(), tc.repo, tc.path)
		assert.True(t, errors.As(err, new(combine.BadRequestError)), "%+v", tc)
	}
	assert.Zero(t, f.client.getCalls.Load())
}

func TestPreviewFile_RemoteError(t *testing.T) {
	f := newFixture(aliceDocs(), 4)

	_, err := f.svc.PreviewFile(context.Background(), alice, "missing.md")

	var remote combine.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 404, remote.Status)
}

// ─── ParseFormat ──────────────────────────────────────────────────────────────

func TestParseFormat(t *testing.T) {
	cases := map[string]combine.Format{
		"":         combine.FormatMarkdown,
		"markdown": combine.FormatMarkdown,
		"HTML":     combine.FormatHTML,
		" pdf ":    combine.FormatPDF,
	}
	for in, want := range cases {
		got, err := combine.ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := combine.ParseFormat("docx")
	assert.True(t, errors.As(err, new(combine.BadRequestError)))
}

func TestRemoteError_Retryable(t *testing.T) {
	assert.True(t, combine.RemoteError{Status: 0}.Retryable())
	assert.True(t, combine.RemoteError{Status: 500}.Retryable())
	assert.True(t, combine.RemoteError{Status: 503}.Retryable())
	assert.True(t, combine.RemoteError{Status: 429}.Retryable())
	assert.True(t, combine.RemoteError{Status: 403, RateLimited: true}.Retryable())
	assert.False(t, combine.RemoteError{Status: 403}.Retryable())
	assert.False(t, combine.RemoteError{Status: 404}.Retryable())
	assert.False(t, combine.IsRetryable(errors.New("plain")))
}
