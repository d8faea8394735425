package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/model"
)

// Fetcher retrieves readable content for a URL. The production implementation
// goes through the Jina AI Reader proxy.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, target string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, target string) (string, error) {
	return f(ctx, target)
}

// URLSource fetches a web page and presents its content as a single text page.
type URLSource struct {
	raw     string
	parsed  *url.URL
	fetcher Fetcher
	content string
	fetched bool
}

// NewURL creates a URL source. The URL is validated up front so malformed
// input fails before any network traffic.
func NewURL(raw string, fetcher Fetcher) (*URLSource, error) {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, &FetchError{URL: raw, Err: eris.Wrap(err, "parse url")}
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &FetchError{URL: raw, Err: eris.Errorf("unsupported scheme %q, expected http or https", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &FetchError{URL: raw, Err: eris.New("missing host")}
	}
	return &URLSource{raw: trimmed, parsed: u, fetcher: fetcher}, nil
}

func (s *URLSource) Kind() Kind { return KindURL }

func (s *URLSource) Label() string { return s.parsed.Host }

// Read fetches the page content through the fetcher.
func (s *URLSource) Read(ctx context.Context) error {
	content, err := s.fetcher.Fetch(ctx, s.raw)
	if err != nil {
		return &FetchError{URL: s.raw, Err: err}
	}
	if strings.TrimSpace(content) == "" {
		return &FetchError{URL: s.raw, Err: eris.New("fetched page has no readable content")}
	}
	s.content = content
	s.fetched = true

	zap.L().Info("fetched url",
		zap.String("host", s.parsed.Host),
		zap.Int("content_bytes", len(content)))

	return nil
}

// Render returns the fetched content as a single text page.
func (s *URLSource) Render(_ context.Context) ([]model.Page, error) {
	if !s.fetched {
		return nil, eris.New("source: Render called before Read")
	}
	return []model.Page{{Number: 1, Text: s.content}}, nil
}
