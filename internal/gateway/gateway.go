// Package gateway is the extraction boundary: it turns document pages into
// transcribed text, structured car records, summaries, and chat sessions via
// the Anthropic API, and classifies every failure into a stable error kind.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/resilience"
	"github.com/sells-group/catalog-cli/pkg/anthropic"
)

// Gateway defines the extraction operations.
type Gateway interface {
	// ExtractText transcribes the full text content of the document pages.
	ExtractText(ctx context.Context, pages []model.Page) (string, error)

	// ExtractRecords extracts structured car specifications from the pages.
	// The second return value is the model's raw JSON payload, kept verbatim
	// for audit views.
	ExtractRecords(ctx context.Context, pages []model.Page) ([]model.CarSpecification, string, error)

	// Summarize produces a short prose summary of extracted text.
	Summarize(ctx context.Context, text string) (string, error)

	// NewChatSession starts a chat session seeded with the given records.
	NewChatSession(specs []model.CarSpecification) (*ChatSession, error)
}

// Config holds gateway tuning knobs.
type Config struct {
	Model               string
	MaxTokens           int64
	ExtractTimeout      time.Duration
	SummaryTimeout      time.Duration
	ChatTimeout         time.Duration
	RateLimitPerMinute  int
	RateLimitedAttempts int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "claude-sonnet-4-5-20250929"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 8192
	}
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = 5 * time.Minute
	}
	if c.SummaryTimeout <= 0 {
		c.SummaryTimeout = 2 * time.Minute
	}
	if c.ChatTimeout <= 0 {
		c.ChatTimeout = time.Minute
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = 30
	}
	if c.RateLimitedAttempts <= 0 {
		c.RateLimitedAttempts = 3
	}
	return c
}

type anthropicGateway struct {
	client  anthropic.Client
	cfg     Config
	limiter *rate.Limiter
}

// New creates a Gateway backed by the Anthropic API.
func New(client anthropic.Client, cfg Config) Gateway {
	cfg = cfg.withDefaults()
	return &anthropicGateway{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60.0), 1),
	}
}

// call runs one message request under the local rate limiter and a per-op
// timeout, retrying only rate-limited failures.
func (g *anthropicGateway) call(ctx context.Context, op string, timeout time.Duration, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	retryCfg := resilience.RetryConfig{
		MaxAttempts:    g.cfg.RateLimitedAttempts,
		InitialBackoff: 2 * time.Second,
		ShouldRetry: func(err error) bool {
			return KindOf(err) == KindRateLimited
		},
		OnRetry: resilience.RetryLogger("anthropic", op),
	}

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "gateway: rate limiter wait")
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		resp, err := g.client.CreateMessage(callCtx, req)
		if err != nil {
			return nil, classify(op, err)
		}
		return resp, nil
	})
	if err != nil {
		var gwErr *Error
		if !errors.As(err, &gwErr) {
			return nil, classify(op, err)
		}
		return nil, err
	}

	resp.Usage.LogCost(g.cfg.Model, op)
	return resp, nil
}

// pageMessage packs document pages plus an instruction into one user message.
func pageMessage(pages []model.Page, instruction string) anthropic.Message {
	blocks := make([]anthropic.Block, 0, len(pages)+1)
	for _, p := range pages {
		if p.IsImage() {
			blocks = append(blocks, anthropic.Block{
				Type:      "image",
				MediaType: p.MediaType,
				Data:      p.Data,
			})
		} else if p.Text != "" {
			blocks = append(blocks, anthropic.Block{Type: "text", Text: p.Text})
		}
	}
	blocks = append(blocks, anthropic.Block{Type: "text", Text: instruction})
	return anthropic.Message{Role: "user", Blocks: blocks}
}

func (g *anthropicGateway) ExtractText(ctx context.Context, pages []model.Page) (string, error) {
	resp, err := g.call(ctx, "extract_text", g.cfg.ExtractTimeout, anthropic.MessageRequest{
		Model:     g.cfg.Model,
		MaxTokens: g.cfg.MaxTokens,
		Messages:  []anthropic.Message{pageMessage(pages, extractTextPrompt)},
	})
	if err != nil {
		return "", err
	}

	// Catalogs mix full-width and half-width glyphs freely. Normalizing to
	// NFKC keeps downstream search and comparison sane.
	text := norm.NFKC.String(strings.TrimSpace(resp.Text()))

	zap.L().Info("extracted text",
		zap.Int("pages", len(pages)),
		zap.Int("chars", len(text)))

	return text, nil
}

func (g *anthropicGateway) ExtractRecords(ctx context.Context, pages []model.Page) ([]model.CarSpecification, string, error) {
	resp, err := g.call(ctx, "extract_records", g.cfg.ExtractTimeout, anthropic.MessageRequest{
		Model:     g.cfg.Model,
		MaxTokens: g.cfg.MaxTokens,
		Messages:  []anthropic.Message{pageMessage(pages, extractRecordsPrompt)},
	})
	if err != nil {
		return nil, "", err
	}

	raw := strings.TrimSpace(resp.Text())

	specs, err := parseSpecifications(raw)
	if err != nil {
		return nil, "", &Error{Kind: KindGeneric, Op: "extract_records", Err: err}
	}

	zap.L().Info("extracted records",
		zap.Int("pages", len(pages)),
		zap.Int("records", len(specs)))

	return specs, raw, nil
}

func (g *anthropicGateway) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := g.call(ctx, "summarize", g.cfg.SummaryTimeout, anthropic.MessageRequest{
		Model:     g.cfg.Model,
		MaxTokens: 1024,
		Messages:  []anthropic.Message{anthropic.TextMessage("user", summarizePrompt+text)},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// parseSpecifications decodes the model's JSON payload and validates each
// record. Records missing a required field are dropped with a warning rather
// than failing the whole extraction.
func parseSpecifications(raw string) ([]model.CarSpecification, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, eris.New("empty extraction payload")
	}

	var decoded []model.CarSpecification
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, eris.Wrap(err, "parse extraction payload")
	}

	specs := make([]model.CarSpecification, 0, len(decoded))
	for i, s := range decoded {
		if missing := missingRequired(s); missing != "" {
			zap.L().Warn("dropping incomplete record",
				zap.Int("index", i),
				zap.String("missing", missing))
			continue
		}
		s.ID = uuid.NewString()
		specs = append(specs, s)
	}
	return specs, nil
}

func missingRequired(s model.CarSpecification) string {
	switch {
	case s.Manufacturer == nil || *s.Manufacturer == "":
		return "manufacturer"
	case s.ModelName == nil || *s.ModelName == "":
		return "model_name"
	case s.Grade == nil || *s.Grade == "":
		return "grade"
	case s.Price == nil:
		return "price"
	}
	return ""
}

// stripFences removes a surrounding markdown code fence, which models emit
// despite instructions not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
