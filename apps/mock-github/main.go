// Command mock-github serves a subset of the GitHub contents API from an
// in-memory set of repositories, for local runs and end-to-end tests of
// mdcombine without network access or a token.
package main

import (
	"encoding/base64"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/mdcombine/pkg/logging"
)

// DirEntry is one element of a directory listing.
type DirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "dir"
	Size int    `json:"size"`
}

// FileContent is the body returned for a file path.
type FileContent struct {
	DirEntry
	Encoding    string `json:"encoding"`
	Content     string `json:"content"`
	DownloadURL string `json:"download_url"`
}

// options tune the failure modes the mock reproduces.
type options struct {
	// FailEvery makes every FailEvery-th contents request answer 502.
	FailEvery int
	// LargeFileBytes makes files larger than this many bytes come back with
	// encoding "none" and empty content, like GitHub does above 1 MB.
	LargeFileBytes int
}

// loadOptions reads FAIL_EVERY and LARGE_FILE_BYTES. Unset means disabled.
func loadOptions(lookup func(string) (string, bool)) (options, error) {
	var opts options
	for _, v := range []struct {
		key string
		dst *int
	}{
		{"FAIL_EVERY", &opts.FailEvery},
		{"LARGE_FILE_BYTES", &opts.LargeFileBytes},
	} {
		raw, ok := lookup(v.key)
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return options{}, fmt.Errorf("%s: %q is not a non-negative integer", v.key, raw)
		}
		*v.dst = n
	}
	return opts, nil
}

// store holds file content keyed by "owner/repo", then path.
type store struct {
	mu    sync.RWMutex
	files map[string]map[string]string
}

func newStore() *store {
	return &store{files: make(map[string]map[string]string)}
}

func (s *store) put(repoKey, path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files[repoKey] == nil {
		s.files[repoKey] = make(map[string]string)
	}
	s.files[repoKey][strings.Trim(path, "/")] = content
}

func (s *store) repos() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.files))
	for k := range s.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// listDir returns the immediate children of dirPath, the way GitHub's
// GET /repos/:owner/:repo/contents/:path does when :path is a directory.
// ok is false when no file lives under dirPath.
func (s *store) listDir(repoKey, dirPath string) (entries []DirEntry, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, exists := s.files[repoKey]
	if !exists {
		return nil, false
	}

	prefix := dirPath
	if prefix != "" {
		prefix += "/"
	}

	seen := map[string]bool{}
	entries = []DirEntry{}
	for filePath, content := range files {
		if !strings.HasPrefix(filePath, prefix) {
			continue
		}
		rest := filePath[len(prefix):]
		entry := DirEntry{Type: "file", Size: len(content)}
		if idx := strings.Index(rest, "/"); idx == -1 {
			entry.Name = rest
		} else {
			entry.Name, entry.Type, entry.Size = rest[:idx], "dir", 0
		}
		if seen[entry.Name] {
			continue
		}
		seen[entry.Name] = true
		entry.Path = prefix + entry.Name
		entries = append(entries, entry)
	}
	if len(entries) == 0 && dirPath != "" {
		return nil, false
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, true
}

func (s *store) getFile(repoKey, path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.files[repoKey][path]
	return content, ok
}

func main() {
	log := logging.New()
	s := newStore()

	if err := seedRepos(s, os.Getenv("SEED_FILE")); err != nil {
		log.Error("seed failed", "error", err)
		os.Exit(1)
	}
	log.Info("seeded repos", "repos", s.repos())

	opts, err := loadOptions(os.LookupEnv)
	if err != nil {
		log.Error("invalid options", "error", err)
		os.Exit(1)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	registerRoutes(r, s, log, opts)

	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}

	log.Info("mock-github starting", "port", port, "failEvery", opts.FailEvery, "largeFileBytes", opts.LargeFileBytes)
	if err := r.Run(":" + port); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// registerRoutes mounts the contents API and the raw download route that
// file download URLs point at.
func registerRoutes(r *gin.Engine, s *store, log *slog.Logger, opts options) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, renderIndex(s))
	})

	var requests atomic.Int64
	r.GET("/repos/:owner/:repo/contents/*path", func(c *gin.Context) {
		if opts.FailEvery > 0 && requests.Add(1)%int64(opts.FailEvery) == 0 {
			log.Info("injecting failure", "path", c.Request.URL.Path)
			c.JSON(http.StatusBadGateway, gin.H{"message": "Server Error"})
			return
		}

		repoKey := c.Param("owner") + "/" + c.Param("repo")
		path := strings.Trim(c.Param("path"), "/")

		if content, ok := s.getFile(repoKey, path); ok {
			name := path[strings.LastIndex(path, "/")+1:]
			fc := FileContent{
				DirEntry:    DirEntry{Name: name, Path: path, Type: "file", Size: len(content)},
				Encoding:    "base64",
				Content:     base64.StdEncoding.EncodeToString([]byte(content)),
				DownloadURL: fmt.Sprintf("http://%s/raw/%s/%s", c.Request.Host, repoKey, path),
			}
			if opts.LargeFileBytes > 0 && len(content) > opts.LargeFileBytes {
				fc.Encoding, fc.Content = "none", ""
			}
			c.JSON(http.StatusOK, fc)
			return
		}

		if entries, ok := s.listDir(repoKey, path); ok {
			c.JSON(http.StatusOK, entries)
			return
		}

		c.JSON(http.StatusNotFound, gin.H{
			"message":           "Not Found",
			"documentation_url": "https://docs.github.com/rest/repos/contents#get-repository-content",
		})
	})

	registerRawRoute(r, s)
}

func registerRawRoute(r *gin.Engine, s *store) {
	r.GET("/raw/:owner/:repo/*path", func(c *gin.Context) {
		repoKey := c.Param("owner") + "/" + c.Param("repo")
		content, ok := s.getFile(repoKey, strings.Trim(c.Param("path"), "/"))
		if !ok {
			c.String(http.StatusNotFound, "404: Not Found")
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
	})
}

func renderIndex(s *store) string {
	var rows strings.Builder
	for _, key := range s.repos() {
		fmt.Fprintf(&rows, `
      <li style="padding:8px 0;border-bottom:1px solid #21262d;">
        <code style="color:#79c0ff;">%s</code>
        <a href="/repos/%s/contents/" style="color:#58a6ff;margin-left:12px;">contents</a>
      </li>`, html.EscapeString(key), html.EscapeString(key))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <title>Mock GitHub</title>
  <style>
    * { margin:0; padding:0; box-sizing:border-box; }
    body { background:#0d1117; color:#c9d1d9; font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Helvetica,Arial,sans-serif; }
  </style>
</head>
<body>
  <div style="max-width:860px;margin:0 auto;padding:32px 16px;">
    <h1 style="font-size:20px;font-weight:600;margin-bottom:24px;">Repositories</h1>
    <ul style="list-style:none;">%s
    </ul>
  </div>
</body>
</html>`, rows.String())
}
