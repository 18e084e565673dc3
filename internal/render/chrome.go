package render

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ChromeExporter prints the HTML surface to a single page PDF with a
// headless Chrome. The browser is launched on first use and shared.
type ChromeExporter struct {
	bin string

	mu      sync.Mutex
	browser *rod.Browser
}

// NewChromeExporter creates an exporter. An empty bin lets the launcher
// find or download a browser.
func NewChromeExporter(bin string) *ChromeExporter {
	return &ChromeExporter{bin: bin}
}

// ContentType returns the MIME type of exported documents
func (e *ChromeExporter) ContentType() string {
	return "application/pdf"
}

// Export renders html and prints it to PDF
func (e *ChromeExporter) Export(ctx context.Context, html []byte) ([]byte, error) {
	browser, err := e.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	page = page.Context(ctx)
	if err := page.SetDocumentContent(string(html)); err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for document: %w", err)
	}

	stream, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}

	pdf, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if len(pdf) == 0 {
		return nil, ErrEmptyDocument
	}

	return pdf, nil
}

func (e *ChromeExporter) ensureBrowser() (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil {
		if _, err := e.browser.Version(); err == nil {
			return e.browser, nil
		}
		_ = e.browser.Close()
		e.browser = nil
	}

	l := launcher.New().Headless(true)
	if e.bin != "" {
		l = l.Bin(e.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	e.browser = browser
	return browser, nil
}

// Close shuts the browser down if one was launched
func (e *ChromeExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser == nil {
		return nil
	}
	err := e.browser.Close()
	e.browser = nil
	return err
}
