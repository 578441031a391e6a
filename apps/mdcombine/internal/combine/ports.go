package combine

import "context"

// RepoClient reads directory listings and file contents from a remote
// repository host. Implementations own their retry policy.
type RepoClient interface {
	// ListDirectory returns the entries directly under dir ("" is the root).
	ListDirectory(ctx context.Context, repo Repo, dir string) ([]TreeEntry, error)
	// GetFileContent returns the decoded text of one file. A path with no
	// content (a directory, an empty file) yields "" and no error.
	GetFileContent(ctx context.Context, repo Repo, path string) (string, error)
}

// MarkdownRenderer converts Markdown source to an HTML fragment.
type MarkdownRenderer interface {
	Render(markdown string) (string, error)
}

// PDFConverter converts an HTML fragment to a PDF document.
type PDFConverter interface {
	Convert(ctx context.Context, html string) ([]byte, error)
}

// ArtifactStore persists export artifacts by file name and returns the
// location written.
type ArtifactStore interface {
	Write(ctx context.Context, name string, body []byte) (string, error)
}

// Locker serializes work on a shared key. The returned function releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
