package source

import (
	"bytes"
	"context"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/model"
)

// RenderOptions controls how PDF pages are rasterized before being sent to
// the extraction gateway.
type RenderOptions struct {
	DPI         float64
	JPEGQuality int
	MaxPages    int // 0 = all pages
}

// DefaultRenderOptions are used when a zero RenderOptions is supplied.
var DefaultRenderOptions = RenderOptions{
	DPI:         144,
	JPEGQuality: 70,
}

// PDFSource reads a PDF file from disk and renders each page to a JPEG.
type PDFSource struct {
	path  string
	label string
	opts  RenderOptions
	data  []byte
}

// NewPDF creates a PDF source for the given file path.
func NewPDF(path string, opts RenderOptions) *PDFSource {
	if opts.DPI <= 0 {
		opts.DPI = DefaultRenderOptions.DPI
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = DefaultRenderOptions.JPEGQuality
	}
	return &PDFSource{path: path, opts: opts}
}

// WithLabel overrides the source label. Uploaded documents land in temp
// files, so the label carries the original filename instead.
func (s *PDFSource) WithLabel(label string) *PDFSource {
	s.label = label
	return s
}

func (s *PDFSource) Kind() Kind { return KindPDF }

func (s *PDFSource) Label() string {
	if s.label != "" {
		return s.label
	}
	return filepath.Base(s.path)
}

// Read loads the PDF bytes from disk.
func (s *PDFSource) Read(_ context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return &ReadError{Label: s.Label(), Err: err}
	}
	s.data = data
	return nil
}

// Render rasterizes each PDF page to a JPEG image page.
func (s *PDFSource) Render(ctx context.Context) ([]model.Page, error) {
	if s.data == nil {
		return nil, eris.New("source: Render called before Read")
	}

	doc, err := fitz.NewFromMemory(s.data)
	if err != nil {
		return nil, &ReadError{Label: s.Label(), Err: eris.Wrap(err, "open pdf")}
	}
	defer doc.Close()

	total := doc.NumPage()
	limit := total
	if s.opts.MaxPages > 0 && s.opts.MaxPages < total {
		limit = s.opts.MaxPages
		zap.L().Warn("truncating document",
			zap.String("source", s.Label()),
			zap.Int("pages", total),
			zap.Int("limit", limit))
	}

	pages := make([]model.Page, 0, limit)
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "source: render canceled")
		}

		img, err := doc.ImageDPI(i, s.opts.DPI)
		if err != nil {
			return nil, &ReadError{Label: s.Label(), Err: eris.Wrapf(err, "render page %d", i+1)}
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.opts.JPEGQuality}); err != nil {
			return nil, &ReadError{Label: s.Label(), Err: eris.Wrapf(err, "encode page %d", i+1)}
		}

		pages = append(pages, model.Page{
			Number:    i + 1,
			MediaType: "image/jpeg",
			Data:      buf.Bytes(),
		})
	}

	zap.L().Info("rendered pdf",
		zap.String("source", s.Label()),
		zap.Int("pages", len(pages)),
		zap.Float64("dpi", s.opts.DPI))

	return pages, nil
}
