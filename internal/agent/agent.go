// Package agent implements the dialogue decision engine: intent-dispatched
// resolvers for part lookup, compatibility, installation guidance,
// troubleshooting and cart operations, behind one ProcessTurn entry point.
package agent

import (
	"context"
	"log/slog"

	"github.com/partpilot/partpilot/internal/extract"
	"github.com/partpilot/partpilot/internal/intent"
	"github.com/partpilot/partpilot/internal/models"
	"github.com/partpilot/partpilot/internal/scrape"
	"github.com/partpilot/partpilot/internal/store"
)

// historyScanLimit bounds how many recent user turns are scanned when
// recovering a part or model number the current turn omitted.
const historyScanLimit = 10

// llm is the narrow language-model surface the engine needs. genai.Client
// satisfies it; tests substitute fakes.
type llm interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Classify(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Opts holds the optional collaborators an Engine can be built with.
type Opts struct {
	// LLM enables intent tie-breaking, compatibility judgement and
	// guidance composition. Nil disables all LLM stages.
	LLM llm
	// Scraper enables live product and model page reads. Nil means those
	// stages produce no verdict.
	Scraper scrape.Scraper
}

// Option configures an Engine.
type Option func(*Opts)

// WithLLM attaches a language-model client.
func WithLLM(l llm) Option {
	return func(o *Opts) { o.LLM = l }
}

// WithScraper attaches a live-page scraper.
func WithScraper(s scrape.Scraper) Option {
	return func(o *Opts) { o.Scraper = s }
}

// Engine is the dialogue decision core. It owns no cross-turn state: every
// fact that must survive a turn lives in the store or the caller's Context.
type Engine struct {
	store      store.Store
	llm        llm
	scraper    scrape.Scraper
	classifier *intent.Classifier
}

// NewEngine creates an engine over a store with optional collaborators.
func NewEngine(st store.Store, opts ...Option) *Engine {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Engine created", "hasLLM", cfg.LLM != nil, "hasScraper", cfg.Scraper != nil)
	return &Engine{
		store:      st,
		llm:        cfg.LLM,
		scraper:    cfg.Scraper,
		classifier: intent.NewClassifier(cfg.LLM),
	}
}

// historyEntities walks recent user messages newest-first and returns the
// entities of the first message satisfying keep. Recovers identifiers the
// current turn omitted ("is it compatible?" after naming a part earlier).
func (e *Engine) historyEntities(sessionID string, keep func(models.Entities) bool) (models.Entities, bool) {
	if sessionID == "" {
		return models.Entities{}, false
	}
	contents, err := e.store.RecentUserMessages(sessionID, historyScanLimit)
	if err != nil {
		slog.Error("Engine.historyEntities: history read failed", "error", err, "sessionID", sessionID)
		return models.Entities{}, false
	}
	for _, content := range contents {
		if len(content) < 5 {
			continue
		}
		ents := extract.Extract(content)
		if keep(ents) {
			slog.Debug("Engine.historyEntities: recovered entities from history", "sessionID", sessionID)
			return ents, true
		}
	}
	return models.Entities{}, false
}

// recoverPartNumber finds the most recent part number mentioned in the
// session when the current entities carry none.
func (e *Engine) recoverPartNumber(sessionID string, entities models.Entities) string {
	if entities.PartNumber != "" {
		return entities.PartNumber
	}
	ents, ok := e.historyEntities(sessionID, func(h models.Entities) bool { return h.PartNumber != "" })
	if !ok {
		return ""
	}
	return ents.PartNumber
}

// refreshPriceStock fetches live price and availability for a part whose
// price is missing or stock unknown, persists the result and updates the
// in-memory copy. Best-effort: failures are logged and the part is returned
// unchanged.
func (e *Engine) refreshPriceStock(ctx context.Context, part *models.Part) {
	if part == nil || e.scraper == nil || part.ProductURL == "" {
		return
	}
	if part.PriceCents != nil && part.StockStatus != models.StockUnknown && part.StockStatus != "" {
		return
	}
	slog.Debug("Engine.refreshPriceStock: fetching live price", "partNumber", part.PartSelectNumber)
	ps, err := e.scraper.FetchPriceStock(ctx, part.ProductURL)
	if err != nil {
		slog.Debug("Engine.refreshPriceStock: fetch failed", "error", err, "partNumber", part.PartSelectNumber)
		return
	}
	stockKnown := ps.Availability != "" && ps.Availability != models.StockUnknown
	if ps.PriceCents == nil && !stockKnown {
		return
	}
	if ps.PriceCents != nil {
		part.PriceCents = ps.PriceCents
	}
	if stockKnown {
		part.StockStatus = ps.Availability
	}
	if err := e.store.UpdatePartPriceStock(part.PartSelectNumber, part.PriceCents, part.StockStatus); err != nil {
		slog.Error("Engine.refreshPriceStock: persist failed", "error", err, "partNumber", part.PartSelectNumber)
	}
}
