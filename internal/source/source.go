// Package source adapts heterogeneous document inputs (local PDF files, web
// page URLs) into the uniform page representation the extraction gateway
// consumes.
package source

import (
	"context"
	"fmt"

	"github.com/sells-group/catalog-cli/internal/model"
)

// Kind identifies the type of a document source.
type Kind string

const (
	KindPDF Kind = "pdf"
	KindURL Kind = "url"
)

// Source is a single document to extract from. Read acquires the raw
// material (file bytes or remote content); Render turns it into pages for
// the gateway. Read must be called before Render.
type Source interface {
	Kind() Kind

	// Label is a short human-readable identifier for the source, used as
	// the catalog record's source label.
	Label() string

	Read(ctx context.Context) error
	Render(ctx context.Context) ([]model.Page, error)
}

// ReadError indicates the source material could not be loaded or decoded.
type ReadError struct {
	Label string
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read document %q: %v", e.Label, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// FetchError indicates a URL source could not be fetched, including the
// pre-network case of a malformed URL.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch URL %q: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
