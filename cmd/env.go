package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-cli/internal/gateway"
	"github.com/sells-group/catalog-cli/internal/pipeline"
	"github.com/sells-group/catalog-cli/internal/source"
	"github.com/sells-group/catalog-cli/internal/store"
	"github.com/sells-group/catalog-cli/pkg/anthropic"
	"github.com/sells-group/catalog-cli/pkg/jina"
)

// appEnv holds the initialized store, gateway, and pipeline shared by the
// ingest/serve/chat commands.
type appEnv struct {
	Store    store.Store
	Gateway  gateway.Gateway
	Pipeline *pipeline.Pipeline
	Fetcher  source.Fetcher
	Render   source.RenderOptions
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured persistence backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return store.NewSQLite(cfg.Store.Path)
	}
}

// initEnv sets up the store, the API clients, and the pipeline. Callers
// should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	anthropicClient := anthropic.NewClient(cfg.Anthropic.Key)
	gw := gateway.New(anthropicClient, gateway.Config{
		Model:               cfg.Anthropic.Model,
		MaxTokens:           cfg.Anthropic.MaxTokens,
		ExtractTimeout:      time.Duration(cfg.Anthropic.ExtractTimeoutSecs) * time.Second,
		SummaryTimeout:      time.Duration(cfg.Anthropic.SummaryTimeoutSecs) * time.Second,
		ChatTimeout:         time.Duration(cfg.Anthropic.ChatTimeoutSecs) * time.Second,
		RateLimitPerMinute:  cfg.Anthropic.RateLimitPerMinute,
		RateLimitedAttempts: cfg.Anthropic.RateLimitedAttempts,
	})

	jinaClient := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))
	fetcher := source.FetcherFunc(func(ctx context.Context, target string) (string, error) {
		resp, err := jinaClient.Read(ctx, target)
		if err != nil {
			return "", err
		}
		return resp.Data.Content, nil
	})

	return &appEnv{
		Store:    st,
		Gateway:  gw,
		Pipeline: pipeline.New(st, gw),
		Fetcher:  fetcher,
		Render: source.RenderOptions{
			DPI:         cfg.Render.DPI,
			JPEGQuality: cfg.Render.JPEGQuality,
			MaxPages:    cfg.Render.MaxPages,
		},
	}, nil
}

// newSource builds a document source from an ingest request: a local PDF
// path or a web page URL.
func (e *appEnv) newSource(path, url string) (source.Source, error) {
	switch {
	case url != "" && path != "":
		return nil, eris.New("provide a file or a URL, not both")
	case url != "":
		return source.NewURL(url, e.Fetcher)
	case path != "":
		return source.NewPDF(path, e.Render), nil
	default:
		return nil, eris.New("provide a PDF file or a --url")
	}
}
