// Package adapters implements the combine ports: the go-github backed
// RepoClient, an in-memory RepoClient, the Goldmark renderer and the
// headless-Chrome PDF converter.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v75/github"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/platform/retry"
)

const instrName = "github.com/tilsley/mdcombine"

// encodingNone is reported for files over 1 MB; their content is left empty.
const encodingNone = "none"

// GitHubClient reads repository contents through the GitHub contents API,
// retrying transient failures with a fixed delay.
type GitHubClient struct {
	gh      *gogithub.Client
	policy  retry.Policy
	log     *slog.Logger
	retries metric.Int64Counter
}

// NewGitHubClient wraps an authenticated *github.Client. attempts is the total
// number of tries per request and delay the wait between them.
func NewGitHubClient(gh *gogithub.Client, attempts int, delay time.Duration, log *slog.Logger) *GitHubClient {
	retries, _ := otel.Meter(instrName).Int64Counter("mdcombine.remote.retries",
		metric.WithDescription("Number of GitHub requests retried after a transient failure"))

	c := &GitHubClient{gh: gh, log: log, retries: retries}
	c.policy = retry.Policy{
		Attempts:  attempts,
		Delay:     delay,
		Retryable: combine.IsRetryable,
	}
	return c
}

// ListDirectory returns the entries directly under dir. Listing a file path
// returns no entries.
func (c *GitHubClient) ListDirectory(ctx context.Context, repo combine.Repo, dir string) ([]combine.TreeEntry, error) {
	return retry.Do(ctx, c.policyFor("list", repo, dir), func(ctx context.Context) ([]combine.TreeEntry, error) {
		_, contents, _, err := c.gh.Repositories.GetContents(ctx, repo.Owner, repo.Name, dir, nil)
		if err != nil {
			return nil, classify(ctx, err)
		}
		entries := make([]combine.TreeEntry, 0, len(contents))
		for _, rc := range contents {
			entries = append(entries, combine.TreeEntry{
				Name: rc.GetName(),
				Path: rc.GetPath(),
				Type: combine.EntryType(rc.GetType()),
			})
		}
		return entries, nil
	})
}

// GetFileContent returns the decoded content of path. Directories and files
// without content yield "". Files too large for the contents API (encoding
// "none") are fetched from their download URL.
func (c *GitHubClient) GetFileContent(ctx context.Context, repo combine.Repo, path string) (string, error) {
	return retry.Do(ctx, c.policyFor("get", repo, path), func(ctx context.Context) (string, error) {
		fc, _, _, err := c.gh.Repositories.GetContents(ctx, repo.Owner, repo.Name, path, nil)
		if err != nil {
			return "", classify(ctx, err)
		}
		if fc == nil {
			return "", nil
		}
		if fc.GetEncoding() == encodingNone {
			return c.download(ctx, fc.GetDownloadURL())
		}
		content, err := fc.GetContent()
		if err != nil {
			return "", fmt.Errorf("decode content %s: %w", path, err)
		}
		return content, nil
	})
}

// download reads a raw file body. An empty URL means the host offers no
// content for the file.
func (c *GitHubClient) download(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", nil
	}
	req, err := c.gh.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	var body strings.Builder
	if _, err := c.gh.Do(ctx, req, &body); err != nil {
		return "", classify(ctx, err)
	}
	return body.String(), nil
}

func (c *GitHubClient) policyFor(op string, repo combine.Repo, path string) retry.Policy {
	p := c.policy
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.retries.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", op)))
		c.log.Warn("github request failed, retrying",
			"op", op,
			"owner", repo.Owner,
			"repo", repo.Name,
			"path", path,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}
	return p
}

// classify maps go-github failures onto combine.RemoteError. Context errors
// are returned as-is so cancellation is never retried.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rateErr *gogithub.RateLimitError
	if errors.As(err, &rateErr) {
		return combine.RemoteError{Status: statusOf(rateErr.Response), Message: rateErr.Message, RateLimited: true}
	}
	var abuseErr *gogithub.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return combine.RemoteError{Status: statusOf(abuseErr.Response), Message: abuseErr.Message, RateLimited: true}
	}
	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) {
		msg := ghErr.Message
		if msg == "" {
			msg = "request failed"
		}
		return combine.RemoteError{Status: statusOf(ghErr.Response), Message: msg}
	}
	if errors.Is(err, gogithub.ErrPathForbidden) {
		return combine.BadRequestError{Message: err.Error()}
	}
	return combine.RemoteError{Message: err.Error()}
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
