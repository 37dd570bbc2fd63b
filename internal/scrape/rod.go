// Package scrape provides live product-page data for the dialogue engine.
//
// This file implements the Scraper interface with a go-rod headless browser.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/partpilot/partpilot/internal/models"
)

const (
	// DefaultNavigationTimeout bounds a single page navigation.
	DefaultNavigationTimeout = 20 * time.Second
	// modelPartsURLFormat is the parts listing page for one model.
	modelPartsURLFormat = "https://www.partselect.com/Models/%s/Parts/"
	// lazyLoadScrolls is how many times a model page is scrolled to force
	// its lazy-loaded part sections to render.
	lazyLoadScrolls = 3
)

var modelNumberHarvest = regexp.MustCompile(`\b[A-Z]{2,}[0-9]{3,}[A-Z0-9]*\b`)

// BrowserOpts holds configuration options for the rod-backed scraper.
type BrowserOpts struct {
	// Headless controls whether the browser renders a window.
	Headless bool
	// NavigationTimeout bounds each page load.
	NavigationTimeout time.Duration
}

// BrowserOption configures the rod-backed scraper.
type BrowserOption func(*BrowserOpts)

// WithHeadless toggles headless operation (on by default).
func WithHeadless(headless bool) BrowserOption {
	return func(o *BrowserOpts) { o.Headless = headless }
}

// WithNavigationTimeout overrides the per-navigation timeout.
func WithNavigationTimeout(d time.Duration) BrowserOption {
	return func(o *BrowserOpts) { o.NavigationTimeout = d }
}

// Browser implements Scraper with a shared headless browser instance.
// Each fetch opens its own page and closes it when done.
type Browser struct {
	browser *rod.Browser
	timeout time.Duration
}

// NewBrowser launches a headless browser and connects to it.
func NewBrowser(opts ...BrowserOption) (*Browser, error) {
	cfg := BrowserOpts{Headless: true, NavigationTimeout: DefaultNavigationTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	controlURL, err := launcher.New().Headless(cfg.Headless).Launch()
	if err != nil {
		slog.Error("Browser launch failed", "error", err)
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		slog.Error("Browser connect failed", "error", err)
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	slog.Debug("Browser launched and connected", "headless", cfg.Headless)
	return &Browser{browser: browser, timeout: cfg.NavigationTimeout}, nil
}

// Close shuts down the underlying browser.
func (b *Browser) Close() error {
	slog.Debug("Closing browser")
	return b.browser.Close()
}

// openPage navigates a fresh page to a URL and waits for it to load.
// The caller must close the returned page.
func (b *Browser) openPage(ctx context.Context, url string) (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if err := page.Context(ctx).Timeout(b.timeout).Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.Context(ctx).Timeout(b.timeout).WaitLoad(); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("page load timed out for %s: %w", url, err)
	}
	return page, nil
}

// FetchPriceStock reads the current price and availability off a product
// page.
func (b *Browser) FetchPriceStock(ctx context.Context, productURL string) (PriceStock, error) {
	slog.Debug("Browser.FetchPriceStock: fetching", "url", productURL)
	page, err := b.openPage(ctx, productURL)
	if err != nil {
		slog.Error("Browser.FetchPriceStock: navigation failed", "error", err, "url", productURL)
		return PriceStock{Availability: models.StockUnknown}, err
	}
	defer page.Close()

	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{JS: `
		() => {
			const text = (sel) => {
				const el = document.querySelector(sel);
				return el ? el.textContent.trim() : '';
			};
			return {
				price: text('[itemprop="price"]') || text('.price') || text('.js-partPrice'),
				availability: text('[itemprop="availability"]') || text('.availability') || text('.js-partAvailability'),
			};
		}`})
	if err != nil {
		slog.Error("Browser.FetchPriceStock: evaluate failed", "error", err, "url", productURL)
		return PriceStock{Availability: models.StockUnknown}, fmt.Errorf("failed to read price/stock: %w", err)
	}

	out := PriceStock{
		PriceCents:   ParsePriceCents(res.Value.Get("price").Str()),
		Availability: NormalizeAvailability(res.Value.Get("availability").Str()),
	}
	slog.Debug("Browser.FetchPriceStock: fetched", "url", productURL,
		"priceFound", out.PriceCents != nil, "availability", out.Availability)
	return out, nil
}

// FetchInstallSignals reads install steps, safety warnings and required
// tools off a product page.
func (b *Browser) FetchInstallSignals(ctx context.Context, productURL string) (InstallSignals, error) {
	slog.Debug("Browser.FetchInstallSignals: fetching", "url", productURL)
	page, err := b.openPage(ctx, productURL)
	if err != nil {
		slog.Error("Browser.FetchInstallSignals: navigation failed", "error", err, "url", productURL)
		return InstallSignals{}, err
	}
	defer page.Close()

	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{JS: `
		() => {
			const sectionText = (needle) => {
				const headings = Array.from(document.querySelectorAll('h2, h3, h4'));
				const heading = headings.find(h => h.textContent.toLowerCase().includes(needle));
				if (!heading) return '';
				let text = '';
				let node = heading.nextElementSibling;
				while (node && !/^H[2-4]$/.test(node.tagName)) {
					text += node.textContent.trim() + '\n';
					node = node.nextElementSibling;
				}
				return text.trim();
			};
			return {
				steps: sectionText('installation') || sectionText('install'),
				warnings: sectionText('warning') || sectionText('safety'),
				tools: sectionText('tools'),
			};
		}`})
	if err != nil {
		slog.Error("Browser.FetchInstallSignals: evaluate failed", "error", err, "url", productURL)
		return InstallSignals{}, fmt.Errorf("failed to read install content: %w", err)
	}

	out := InstallSignals{
		Steps:    res.Value.Get("steps").Str(),
		Warnings: res.Value.Get("warnings").Str(),
		Tools:    res.Value.Get("tools").Str(),
	}
	slog.Debug("Browser.FetchInstallSignals: fetched", "url", productURL, "stepsLen", len(out.Steps))
	return out, nil
}

// FetchCompatibilitySignals reads the replaces list, works-with text and
// named compatible models off a product page.
func (b *Browser) FetchCompatibilitySignals(ctx context.Context, productURL string) (CompatibilitySignals, error) {
	slog.Debug("Browser.FetchCompatibilitySignals: fetching", "url", productURL)
	page, err := b.openPage(ctx, productURL)
	if err != nil {
		slog.Error("Browser.FetchCompatibilitySignals: navigation failed", "error", err, "url", productURL)
		return CompatibilitySignals{}, err
	}
	defer page.Close()

	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{JS: `
		() => {
			const sectionText = (needle) => {
				const headings = Array.from(document.querySelectorAll('h2, h3, h4, strong'));
				const heading = headings.find(h => h.textContent.toLowerCase().includes(needle));
				if (!heading) return '';
				const container = heading.closest('section, div') || heading.parentElement;
				return container ? container.textContent.trim() : '';
			};
			return {
				replaces: sectionText('replaces'),
				worksWith: sectionText('works with'),
				compatibleModels: sectionText('compatible models') || sectionText('model cross reference'),
			};
		}`})
	if err != nil {
		slog.Error("Browser.FetchCompatibilitySignals: evaluate failed", "error", err, "url", productURL)
		return CompatibilitySignals{}, fmt.Errorf("failed to read compatibility content: %w", err)
	}

	out := CompatibilitySignals{
		Replaces:         HarvestPartNumbers(res.Value.Get("replaces").Str()),
		WorksWith:        res.Value.Get("worksWith").Str(),
		CompatibleModels: harvestModelNumbers(res.Value.Get("compatibleModels").Str()),
	}
	slog.Debug("Browser.FetchCompatibilitySignals: fetched", "url", productURL,
		"replaces", len(out.Replaces), "models", len(out.CompatibleModels))
	return out, nil
}

// FetchModelListing loads a model's parts page, forces the lazy-loaded
// sections to render, and harvests every listed part number.
func (b *Browser) FetchModelListing(ctx context.Context, modelNumber string) (ModelListing, error) {
	url := fmt.Sprintf(modelPartsURLFormat, modelNumber)
	slog.Debug("Browser.FetchModelListing: fetching", "modelNumber", modelNumber, "url", url)

	page, err := b.openPage(ctx, url)
	if err != nil {
		slog.Error("Browser.FetchModelListing: navigation failed", "error", err, "modelNumber", modelNumber)
		return ModelListing{ModelNumber: modelNumber, ModelURL: url}, err
	}
	defer page.Close()

	for i := 0; i < lazyLoadScrolls; i++ {
		if _, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
			JS: `() => window.scrollTo(0, document.body.scrollHeight)`,
		}); err != nil {
			break
		}
		if err := page.Context(ctx).WaitIdle(2 * time.Second); err != nil {
			break
		}
	}

	html, err := page.Context(ctx).HTML()
	if err != nil {
		slog.Error("Browser.FetchModelListing: HTML read failed", "error", err, "modelNumber", modelNumber)
		return ModelListing{ModelNumber: modelNumber, ModelURL: url}, fmt.Errorf("failed to read model page: %w", err)
	}

	listing := ModelListing{
		ModelNumber: modelNumber,
		ModelURL:    url,
		PartNumbers: HarvestPartNumbers(html),
	}
	slog.Debug("Browser.FetchModelListing: fetched", "modelNumber", modelNumber, "parts", len(listing.PartNumbers))
	return listing, nil
}

// harvestModelNumbers extracts deduplicated model-number-shaped tokens.
func harvestModelNumbers(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, num := range modelNumberHarvest.FindAllString(text, -1) {
		if seen[num] {
			continue
		}
		seen[num] = true
		out = append(out, num)
	}
	return out
}
