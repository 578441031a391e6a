package combine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrName = "github.com/tilsley/mdcombine"

// missingParams is the message HTTP clients display verbatim.
const missingParams = "Missing required parameters: owner, repo."

var validName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Deps are the collaborators of a Service.
type Deps struct {
	Client      RepoClient
	Renderer    MarkdownRenderer
	PDF         PDFConverter
	Artifacts   ArtifactStore
	Locker      Locker
	Log         *slog.Logger
	Concurrency int
}

// Service is the use-case orchestrator for listing, exporting and previewing
// Markdown. It depends only on port interfaces.
type Service struct {
	client    RepoClient
	collector *Collector
	renderer  MarkdownRenderer
	pdf       PDFConverter
	artifacts ArtifactStore
	locker    Locker
	log       *slog.Logger

	exports        metric.Int64Counter
	exportDuration metric.Float64Histogram
}

// NewService creates a new Service.
func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	m := otel.Meter(instrName)
	exports, _ := m.Int64Counter("mdcombine.exports",
		metric.WithDescription("Number of export requests by format and outcome"))
	exportDuration, _ := m.Float64Histogram("mdcombine.export.duration",
		metric.WithDescription("Export duration in milliseconds"),
		metric.WithUnit("ms"))

	return &Service{
		client:         d.Client,
		collector:      NewCollector(d.Client, d.Concurrency, log),
		renderer:       d.Renderer,
		pdf:            d.PDF,
		artifacts:      d.Artifacts,
		locker:         d.Locker,
		log:            log,
		exports:        exports,
		exportDuration: exportDuration,
	}
}

// ListMarkdownFiles returns every Markdown path in the repository in pre-order.
func (s *Service) ListMarkdownFiles(ctx context.Context, repo Repo) ([]string, error) {
	ctx, span := otel.Tracer(instrName).Start(ctx, "ListMarkdownFiles", repoAttrs(repo))
	defer span.End()

	if err := validateRepo(repo); err != nil {
		return nil, err
	}
	files, err := s.collector.CollectMarkdownPaths(ctx, repo, "")
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list markdown files in %s: %w", repo, err)
	}
	if len(files) == 0 {
		return nil, NotFoundError{Message: "No Markdown files found in the repository."}
	}
	return files, nil
}

// ExportCombined combines every Markdown file of the repository, converts the
// result to format and writes it as an artifact. Failures are reported as an
// ExportError naming the stage that failed.
func (s *Service) ExportCombined(ctx context.Context, repo Repo, format Format) (*Artifact, error) {
	ctx, span := otel.Tracer(instrName).Start(ctx, "ExportCombined",
		repoAttrs(repo),
		trace.WithAttributes(attribute.String("format", string(format))),
	)
	defer span.End()

	start := time.Now()
	art, stage, err := s.export(ctx, repo, format)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		span.RecordError(err)
		err = ExportError{Stage: stage, Err: err}
	}
	attrs := metric.WithAttributes(
		attribute.String("format", string(format)),
		attribute.String("outcome", outcome),
	)
	s.exports.Add(ctx, 1, attrs)
	s.exportDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	if err != nil {
		return nil, err
	}
	s.log.Info("export written",
		"owner", repo.Owner,
		"repo", repo.Name,
		"format", format,
		"path", art.Path,
		"bytes", len(art.Body),
	)
	return art, nil
}

func (s *Service) export(ctx context.Context, repo Repo, format Format) (*Artifact, Stage, error) {
	if err := validateRepo(repo); err != nil {
		return nil, StageValidating, err
	}
	if !format.Valid() {
		return nil, StageValidating, BadRequestError{Message: fmt.Sprintf("unsupported output format %q", format)}
	}

	paths, err := s.collector.CollectMarkdownPaths(ctx, repo, "")
	if err != nil {
		return nil, StageListing, fmt.Errorf("list markdown files: %w", err)
	}
	if len(paths) == 0 {
		return nil, StageListing, NotFoundError{Message: "No Markdown files found in the repository."}
	}

	combined, err := s.collector.FetchCombinedContent(ctx, repo, paths)
	if err != nil {
		return nil, StageFetching, fmt.Errorf("fetch markdown content: %w", err)
	}

	body, err := s.convert(ctx, combined, format)
	if err != nil {
		return nil, StageConverting, err
	}

	name := ArtifactName(repo, format)
	unlock, err := s.locker.Lock(ctx, name)
	if err != nil {
		return nil, StageWriting, fmt.Errorf("lock artifact %s: %w", name, err)
	}
	defer unlock()

	p, err := s.artifacts.Write(ctx, name, body)
	if err != nil {
		return nil, StageWriting, fmt.Errorf("write artifact %s: %w", name, err)
	}

	return &Artifact{Format: format, Filename: name, Path: p, Body: body}, StageDone, nil
}

func (s *Service) convert(ctx context.Context, markdown string, format Format) ([]byte, error) {
	if format == FormatMarkdown {
		return []byte(markdown), nil
	}

	html, err := s.renderer.Render(markdown)
	if err != nil {
		return nil, RenderError{Format: FormatHTML, Err: err}
	}
	if format == FormatHTML {
		return []byte(html), nil
	}

	pdf, err := s.pdf.Convert(ctx, html)
	if err != nil {
		// A cancelled request is not a rendering fault.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, RenderError{Format: FormatPDF, Err: err}
	}
	return pdf, nil
}

// PreviewFile renders a single Markdown file of the repository as HTML.
func (s *Service) PreviewFile(ctx context.Context, repo Repo, filePath string) (string, error) {
	ctx, span := otel.Tracer(instrName).Start(ctx, "PreviewFile",
		repoAttrs(repo),
		trace.WithAttributes(attribute.String("path", filePath)),
	)
	defer span.End()

	if strings.TrimSpace(filePath) == "" {
		return "", BadRequestError{Message: "Missing required parameters: owner, repo, filePath."}
	}
	if err := validateRepo(repo); err != nil {
		return "", err
	}
	if hasParentSegment(filePath) {
		return "", BadRequestError{Message: fmt.Sprintf("invalid file path %q", filePath)}
	}

	content, err := s.client.GetFileContent(ctx, repo, filePath)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("fetch %s: %w", filePath, err)
	}
	// Directories come back without content, as do empty files.
	if content == "" || !utf8.ValidString(content) {
		return "", NotFoundError{Message: "File not found or empty content."}
	}
	if path.Ext(filePath) != MarkdownExt {
		return "", BadRequestError{Message: fmt.Sprintf("only Markdown files can be previewed: %q", filePath)}
	}

	html, err := s.renderer.Render(content)
	if err != nil {
		span.RecordError(err)
		return "", RenderError{Format: FormatHTML, Err: err}
	}
	return html, nil
}

func validateRepo(repo Repo) error {
	owner, name := strings.TrimSpace(repo.Owner), strings.TrimSpace(repo.Name)
	if owner == "" || name == "" {
		return BadRequestError{Message: missingParams}
	}
	for _, v := range []string{repo.Owner, repo.Name} {
		if v == "." || v == ".." || !validName.MatchString(v) {
			return BadRequestError{Message: fmt.Sprintf("invalid repository coordinate %q", v)}
		}
	}
	return nil
}

func hasParentSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

func repoAttrs(repo Repo) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("repo.owner", repo.Owner),
		attribute.String("repo.name", repo.Name),
	)
}
