// Package pipeline orchestrates an extraction run: read the source, render
// it to pages, run the text and record extractions concurrently, summarize,
// and persist the result.
package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catalog-cli/internal/gateway"
	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/source"
	"github.com/sells-group/catalog-cli/internal/store"
)

// Pipeline runs extraction jobs. One run at a time; overlapping Run calls
// are rejected via the tracker.
type Pipeline struct {
	store   store.Store
	gw      gateway.Gateway
	tracker *Tracker
}

// New creates a pipeline.
func New(st store.Store, gw gateway.Gateway) *Pipeline {
	return &Pipeline{store: st, gw: gw, tracker: NewTracker()}
}

// Tracker exposes run progress for observers.
func (p *Pipeline) Tracker() *Tracker { return p.tracker }

// RunResult is the outcome of a successful run.
type RunResult struct {
	Record *model.CatalogRecord
	Chat   *gateway.ChatSession
}

// Run executes one extraction run against src.
//
// The two extraction calls run concurrently and are joined all-settled: one
// branch failing does not cancel the other, and the run proceeds if either
// produced output. Summarization failures never fail the run.
func (p *Pipeline) Run(ctx context.Context, src source.Source) (*RunResult, error) {
	if !p.tracker.Begin() {
		return nil, eris.New("a run is already in progress")
	}

	res, err := p.run(ctx, src)
	if err != nil {
		p.tracker.Fail(UserMessage(err))
		return nil, err
	}
	p.tracker.Done()
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, src source.Source) (*RunResult, error) {
	log := zap.L().With(zap.String("source", src.Label()), zap.String("kind", string(src.Kind())))
	log.Info("run started")

	if err := src.Read(ctx); err != nil {
		return nil, err
	}
	p.tracker.Complete(StageReading)

	if src.Kind() == source.KindPDF {
		p.tracker.Advance(StageConverting)
	}
	pages, err := src.Render(ctx)
	if err != nil {
		return nil, err
	}
	if src.Kind() == source.KindPDF {
		p.tracker.Complete(StageConverting)
	}

	p.tracker.Advance(StageExtractingText)

	// Both branches always return nil so that one failing never cancels
	// the other; errors are joined below.
	var (
		text    string
		textErr error
		specs   []model.CarSpecification
		rawJSON string
		recErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, textErr = p.gw.ExtractText(gctx, pages)
		if textErr == nil {
			p.tracker.Complete(StageExtractingText)
		}
		return nil
	})
	g.Go(func() error {
		specs, rawJSON, recErr = p.gw.ExtractRecords(gctx, pages)
		if recErr == nil {
			p.tracker.Complete(StageExtractingRecords)
		}
		return nil
	})
	_ = g.Wait()

	if textErr != nil && recErr != nil {
		return nil, eris.New(strings.Join([]string{
			UserMessage(textErr),
			UserMessage(recErr),
		}, "\n"))
	}
	if textErr != nil {
		log.Warn("text extraction failed, continuing with records only", zap.Error(textErr))
	}
	if recErr != nil {
		log.Warn("record extraction failed, continuing with text only", zap.Error(recErr))
	}

	if text == "" && len(specs) == 0 {
		return nil, ErrExtractionEmpty
	}

	// A failed record branch persists as an empty list, never null.
	if specs == nil {
		specs = []model.CarSpecification{}
	}

	rec := &model.CatalogRecord{
		SourceLabel: src.Label(),
		Specs:       specs,
		RawJSON:     rawJSON,
		RawText:     text,
		Pages:       pagePreviews(pages),
	}

	if text != "" {
		summary, err := p.gw.Summarize(ctx, text)
		if err != nil {
			// Summaries can be regenerated later; never fail the run here.
			log.Warn("summarization failed", zap.Error(err))
		} else {
			rec.Summary = &summary
		}
	}

	var chat *gateway.ChatSession
	if len(specs) > 0 {
		chat, err = p.gw.NewChatSession(specs)
		if err != nil {
			log.Warn("chat session unavailable", zap.Error(err))
		}
	}

	p.tracker.Advance(StageSaving)
	if err := p.store.CreateCatalog(ctx, rec); err != nil {
		return nil, &SaveError{Err: err}
	}
	p.tracker.Complete(StageSaving)

	log.Info("run finished",
		zap.String("catalog_id", rec.ID),
		zap.Int("records", len(rec.Specs)),
		zap.Bool("has_text", rec.RawText != ""),
		zap.Bool("has_summary", rec.Summary != nil))

	return &RunResult{Record: rec, Chat: chat}, nil
}

// EnsureSummary returns the catalog's summary, generating and persisting one
// on first request.
func (p *Pipeline) EnsureSummary(ctx context.Context, id string) (string, error) {
	rec, err := p.store.GetCatalog(ctx, id)
	if err != nil {
		return "", err
	}
	if rec.Summary != nil && *rec.Summary != "" {
		return *rec.Summary, nil
	}

	content := rec.RawText
	if content == "" {
		content = rec.RawJSON
	}
	if content == "" {
		return "", ErrExtractionEmpty
	}

	summary, err := p.gw.Summarize(ctx, content)
	if err != nil {
		return "", err
	}

	if err := p.store.UpdateSummary(ctx, id, summary); err != nil {
		// The summary is still usable; a concurrent delete is not fatal.
		zap.L().Warn("could not persist summary", zap.String("catalog_id", id), zap.Error(err))
	}
	return summary, nil
}

// pagePreviews keeps only image pages for the stored preview set.
func pagePreviews(pages []model.Page) []model.PagePreview {
	var previews []model.PagePreview
	for _, p := range pages {
		if p.IsImage() {
			previews = append(previews, model.PagePreview{
				Number:    p.Number,
				MediaType: p.MediaType,
				Data:      p.Data,
			})
		}
	}
	return previews
}
