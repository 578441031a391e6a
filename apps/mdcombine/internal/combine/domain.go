package combine

import (
	"fmt"
	"strings"
)

// MarkdownExt is the suffix a file name must carry to be collected.
const MarkdownExt = ".md"

// Repo identifies a remote repository. Supplied per request.
type Repo struct {
	Owner string
	Name  string
}

// String returns the owner/name form.
func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// EntryType is the kind of a directory listing entry as reported by the remote host.
type EntryType string

// Entry types the collector acts on. Others (symlink, submodule) are ignored.
const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// TreeEntry is one entry of a single directory level.
type TreeEntry struct {
	Name string
	Path string
	Type EntryType
}

// IsMarkdown reports whether the entry is a file whose name ends in .md.
func (e TreeEntry) IsMarkdown() bool {
	return e.Type == EntryFile && strings.HasSuffix(e.Name, MarkdownExt)
}

// Format is the output format of an export.
type Format string

// Supported export formats.
const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

// ParseFormat resolves a caller-supplied format name. Empty means markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatMarkdown, nil
	case FormatMarkdown, FormatHTML, FormatPDF:
		return f, nil
	default:
		return "", BadRequestError{Message: fmt.Sprintf("unsupported output format %q: expected markdown, html or pdf", s)}
	}
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	switch f {
	case FormatMarkdown, FormatHTML, FormatPDF:
		return true
	}
	return false
}

// ContentType is the MIME type an artifact of this format is served with.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Artifact is the result of an export: the converted body and where it was written.
type Artifact struct {
	Format   Format
	Filename string
	Path     string
	Body     []byte
}

// ArtifactName returns "{owner}-{repo}-combined.{format}".
func ArtifactName(repo Repo, format Format) string {
	return fmt.Sprintf("%s-%s-combined.%s", repo.Owner, repo.Name, format)
}

// Section formats one file of the combined document.
func Section(path, content string) string {
	return "\n\n# " + path + "\n\n" + content
}

// Stage is a step of the export pipeline.
type Stage string

// Export pipeline stages, in order.
const (
	StageValidating Stage = "validating"
	StageListing    Stage = "listing"
	StageFetching   Stage = "fetching"
	StageConverting Stage = "converting"
	StageWriting    Stage = "writing"
	StageDone       Stage = "done"
)
