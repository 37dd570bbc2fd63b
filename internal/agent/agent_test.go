package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/partpilot/partpilot/internal/models"
	"github.com/partpilot/partpilot/internal/scrape"
	"github.com/partpilot/partpilot/internal/store"
)

// fakeLLM substitutes the language model with canned behavior. Unset
// functions return an error, which every caller treats as "no LLM answer".
type fakeLLM struct {
	classifyFn func(systemPrompt, userPrompt string) (string, error)
	generateFn func(systemPrompt, userPrompt string) (string, error)
}

func (f *fakeLLM) Classify(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	if f.classifyFn == nil {
		return "", errors.New("classify unavailable")
	}
	return f.classifyFn(systemPrompt, userPrompt)
}

func (f *fakeLLM) Generate(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	if f.generateFn == nil {
		return "", errors.New("generate unavailable")
	}
	return f.generateFn(systemPrompt, userPrompt)
}

// fakeScraper substitutes the live-page scraper. Unset functions fail, which
// the engine treats as "no live data".
type fakeScraper struct {
	priceStockFn   func(productURL string) (scrape.PriceStock, error)
	installFn      func(productURL string) (scrape.InstallSignals, error)
	compatFn       func(productURL string) (scrape.CompatibilitySignals, error)
	modelListingFn func(modelNumber string) (scrape.ModelListing, error)
}

func (f *fakeScraper) FetchPriceStock(_ context.Context, productURL string) (scrape.PriceStock, error) {
	if f.priceStockFn == nil {
		return scrape.PriceStock{}, errors.New("price fetch unavailable")
	}
	return f.priceStockFn(productURL)
}

func (f *fakeScraper) FetchInstallSignals(_ context.Context, productURL string) (scrape.InstallSignals, error) {
	if f.installFn == nil {
		return scrape.InstallSignals{}, errors.New("install fetch unavailable")
	}
	return f.installFn(productURL)
}

func (f *fakeScraper) FetchCompatibilitySignals(_ context.Context, productURL string) (scrape.CompatibilitySignals, error) {
	if f.compatFn == nil {
		return scrape.CompatibilitySignals{}, errors.New("compat fetch unavailable")
	}
	return f.compatFn(productURL)
}

func (f *fakeScraper) FetchModelListing(_ context.Context, modelNumber string) (scrape.ModelListing, error) {
	if f.modelListingFn == nil {
		return scrape.ModelListing{}, errors.New("listing fetch unavailable")
	}
	return f.modelListingFn(modelNumber)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	return NewEngine(st, opts...), st
}

func seedPart(t *testing.T, st *store.InMemoryStore, p models.Part) {
	t.Helper()
	if err := st.UpsertPart(p); err != nil {
		t.Fatalf("UpsertPart(%s): %v", p.PartSelectNumber, err)
	}
}

func intPtr(v int) *int { return &v }

func compatCardData(t *testing.T, reply models.Reply) models.CompatibilityCardData {
	t.Helper()
	for _, card := range reply.Cards {
		if data, ok := card.Data.(models.CompatibilityCardData); ok {
			return data
		}
	}
	t.Fatalf("reply has no compatibility card, cards=%v", reply.Cards)
	return models.CompatibilityCardData{}
}

func stepCardData(t *testing.T, reply models.Reply) models.TroubleshootStepCardData {
	t.Helper()
	for _, card := range reply.Cards {
		if data, ok := card.Data.(models.TroubleshootStepCardData); ok {
			return data
		}
	}
	t.Fatalf("reply has no troubleshoot step card, cards=%v", reply.Cards)
	return models.TroubleshootStepCardData{}
}

func hasQuickReply(reply models.Reply, want string) bool {
	for _, qr := range reply.QuickReplies {
		if qr == want {
			return true
		}
	}
	return false
}
