package render

import (
	"context"
	"errors"
)

// ErrEmptyDocument is returned when an exporter produced no bytes
var ErrEmptyDocument = errors.New("exporter produced an empty document")

// Exporter converts a rendered HTML surface into the stored document format
type Exporter interface {
	Export(ctx context.Context, html []byte) ([]byte, error)
	ContentType() string
}

// HTMLExporter stores the HTML surface as is
type HTMLExporter struct{}

// Export returns html unchanged
func (HTMLExporter) Export(ctx context.Context, html []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(html) == 0 {
		return nil, ErrEmptyDocument
	}
	return html, nil
}

// ContentType returns the MIME type of exported documents
func (HTMLExporter) ContentType() string {
	return "text/html; charset=utf-8"
}
