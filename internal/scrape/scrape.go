// Package scrape provides live product-page data for the dialogue engine.
//
// The Scraper interface is the collaborator boundary: the engine only ever
// calls these four fetches, all best-effort, and treats any error as
// "no live data". The rod-backed Browser implements it against real pages.
package scrape

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/partpilot/partpilot/internal/models"
)

// PriceStock is a live price/availability reading for one part.
type PriceStock struct {
	PriceCents   *int
	Availability models.StockStatus
}

// InstallSignals is the raw install-related content scraped from a product
// page, before any LLM summarization.
type InstallSignals struct {
	Steps    string
	Warnings string
	Tools    string
}

// CompatibilitySignals is the fit-related evidence scraped from a product
// page.
type CompatibilitySignals struct {
	// Replaces lists part numbers this part supersedes.
	Replaces []string
	// WorksWith is the free-text "works with" description, when present.
	WorksWith string
	// CompatibleModels lists model numbers named on the page.
	CompatibleModels []string
}

// ModelListing is the part listing scraped from a model's parts page.
type ModelListing struct {
	ModelNumber string
	ModelURL    string
	PartNumbers []string
}

// Scraper is the live-page collaborator the engine depends on.
type Scraper interface {
	FetchPriceStock(ctx context.Context, productURL string) (PriceStock, error)
	FetchInstallSignals(ctx context.Context, productURL string) (InstallSignals, error)
	FetchCompatibilitySignals(ctx context.Context, productURL string) (CompatibilitySignals, error)
	FetchModelListing(ctx context.Context, modelNumber string) (ModelListing, error)
}

var (
	pricePattern      = regexp.MustCompile(`\$?\s*(\d+)(?:\.(\d{2}))?`)
	partNumberHarvest = regexp.MustCompile(`PS\d{6,9}`)
)

// ParsePriceCents converts a scraped price string like "$54.99" to integer
// cents. Returns nil when no price is present.
func ParsePriceCents(raw string) *int {
	m := pricePattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	dollars, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	cents := dollars * 100
	if m[2] != "" {
		fraction, err := strconv.Atoi(m[2])
		if err != nil {
			return nil
		}
		cents += fraction
	}
	return &cents
}

// NormalizeAvailability maps scraped availability text onto the stock
// status enum.
func NormalizeAvailability(raw string) models.StockStatus {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "in stock"), strings.Contains(lower, "ships today"):
		return models.StockInStock
	case strings.Contains(lower, "out of stock"), strings.Contains(lower, "no longer available"), strings.Contains(lower, "discontinued"):
		return models.StockOutOfStock
	case strings.Contains(lower, "backorder"), strings.Contains(lower, "back order"), strings.Contains(lower, "special order"):
		return models.StockBackorder
	default:
		return models.StockUnknown
	}
}

// HarvestPartNumbers extracts deduplicated PartSelect numbers from page
// text, preserving first-seen order.
func HarvestPartNumbers(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, num := range partNumberHarvest.FindAllString(text, -1) {
		if seen[num] {
			continue
		}
		seen[num] = true
		out = append(out, num)
	}
	return out
}
