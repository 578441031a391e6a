package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ErrNoBrowser is returned when no Chrome or Chromium binary can be found.
var ErrNoBrowser = errors.New("no chrome or chromium binary found: set CHROME_BIN")

const documentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; font-size: 12pt; line-height: 1.5; margin: 2em; }
pre, code { font-family: "SFMono-Regular", Consolas, monospace; font-size: 10pt; }
pre { background: #f6f8fa; padding: 0.75em; overflow-x: auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: 0.3em 0.6em; }
img { max-width: 100%%; }
</style>
</head>
<body>
%s
</body>
</html>`

// RodPDFConverter prints HTML to PDF with a headless Chrome driven by go-rod.
// The browser is started on first use and shared; every conversion opens its
// own page.
type RodPDFConverter struct {
	bin string
	log *slog.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRodPDFConverter creates a converter. bin is the browser executable; when
// empty, the usual install locations are searched.
func NewRodPDFConverter(bin string, log *slog.Logger) *RodPDFConverter {
	return &RodPDFConverter{bin: bin, log: log}
}

// Convert implements combine.PDFConverter.
func (c *RodPDFConverter) Convert(ctx context.Context, html string) ([]byte, error) {
	browser, err := c.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }() //nolint:errcheck // page is discarded either way

	if err := page.SetDocumentContent(wrapDocument(html)); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for load: %w", err)
	}

	stream, err := page.PDF(&proto.PagePrintToPDF{PrintBackground: true})
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	out, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read pdf stream: %w", err)
	}
	return out, nil
}

// Close shuts the browser down if it was started.
func (c *RodPDFConverter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	c.launcher.Cleanup()
	c.browser, c.launcher = nil, nil
	return err
}

func (c *RodPDFConverter) ensureBrowser() (*rod.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser != nil {
		return c.browser, nil
	}

	bin := c.bin
	if bin == "" {
		found, ok := launcher.LookPath()
		if !ok {
			return nil, ErrNoBrowser
		}
		bin = found
	}

	l := launcher.New().Bin(bin).Headless(true).NoSandbox(true)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser %s: %w", bin, err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	c.log.Info("headless browser started", "bin", bin)
	c.launcher, c.browser = l, browser
	return browser, nil
}

func wrapDocument(body string) string {
	return fmt.Sprintf(documentTemplate, body)
}
