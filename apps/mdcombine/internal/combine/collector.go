package combine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Collector walks a repository tree and gathers Markdown content through a RepoClient.
type Collector struct {
	client      RepoClient
	concurrency int
	log         *slog.Logger
}

// NewCollector creates a Collector. concurrency bounds the number of remote
// calls in flight per operation; values below 1 are treated as 1.
func NewCollector(client RepoClient, concurrency int, log *slog.Logger) *Collector {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Collector{client: client, concurrency: concurrency, log: log}
}

// CollectMarkdownPaths returns the path of every Markdown file under dir in
// depth-first pre-order: a directory's files are spliced in right where the
// directory appears in its parent's listing.
func (c *Collector) CollectMarkdownPaths(ctx context.Context, repo Repo, dir string) ([]string, error) {
	ctx, span := otel.Tracer(instrName).Start(ctx, "CollectMarkdownPaths",
		trace.WithAttributes(
			attribute.String("repo", repo.String()),
			attribute.String("dir", dir),
		),
	)
	defer span.End()

	w := &walker{
		client: c.client,
		repo:   repo,
		sem:    semaphore.NewWeighted(int64(c.concurrency)),
	}
	paths, err := w.walk(ctx, dir)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("files", len(paths)))
	c.log.Debug("collected markdown paths", "owner", repo.Owner, "repo", repo.Name, "count", len(paths))
	return paths, nil
}

// walker holds the state of one tree walk. The semaphore is taken only for
// the duration of a remote call, never while waiting on children.
type walker struct {
	client RepoClient
	repo   Repo
	sem    *semaphore.Weighted
}

func (w *walker) walk(ctx context.Context, dir string) ([]string, error) {
	entries, err := w.list(ctx, dir)
	if err != nil {
		return nil, err
	}

	// One slot per entry; children fill their own slot so the flattened
	// result follows listing order regardless of completion order.
	slots := make([][]string, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		switch {
		case e.IsMarkdown():
			slots[i] = []string{e.Path}
		case e.Type == EntryDir:
			g.Go(func() error {
				sub, err := w.walk(gctx, e.Path)
				if err != nil {
					return err
				}
				slots[i] = sub
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	paths := []string{}
	for _, s := range slots {
		paths = append(paths, s...)
	}
	return paths, nil
}

func (w *walker) list(ctx context.Context, dir string) ([]TreeEntry, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer w.sem.Release(1)
	return w.client.ListDirectory(ctx, w.repo, dir)
}

// FetchCombinedContent fetches every path and concatenates them into one
// document in the order given. Files with no content are skipped.
func (c *Collector) FetchCombinedContent(ctx context.Context, repo Repo, paths []string) (string, error) {
	ctx, span := otel.Tracer(instrName).Start(ctx, "FetchCombinedContent",
		trace.WithAttributes(
			attribute.String("repo", repo.String()),
			attribute.Int("files", len(paths)),
		),
	)
	defer span.End()

	contents := make([]string, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, p := range paths {
		g.Go(func() error {
			content, err := c.client.GetFileContent(gctx, repo, p)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", p, err)
			}
			contents[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return "", err
	}

	var b strings.Builder
	for i, p := range paths {
		if contents[i] == "" {
			c.log.Debug("skipping file with no content", "owner", repo.Owner, "repo", repo.Name, "path", p)
			continue
		}
		b.WriteString(Section(p, contents[i]))
	}
	return b.String(), nil
}
