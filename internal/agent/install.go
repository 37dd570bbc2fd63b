package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/partpilot/partpilot/internal/models"
	"github.com/partpilot/partpilot/internal/scrape"
)

// simplePartKeywords name parts whose installation is typically snap-in and
// tool-free, so the link-out can skip the safety emphasis.
var simplePartKeywords = []string{
	"shelf", "bin", "drawer", "rack", "knob", "handle", "cover", "cap", "trim",
}

const installSummarySystemPrompt = "You are a helpful assistant providing appliance repair guidance."

// resolveInstall produces installation guidance for a part: live-scraped
// instructions first, then the stored summary, then a safety-based link-out.
func (e *Engine) resolveInstall(ctx context.Context, sessionID string, entities models.Entities) models.Reply {
	partNumber := e.recoverPartNumber(sessionID, entities)
	if partNumber == "" {
		reply := models.NewReply(
			"Which part do you need installation help with? Please provide the PartSelect number (PS####) or product link.",
			models.IntentInstallHelp, models.SourceRules)
		reply.QuickReplies = []string{"Example: PS11701542", "Share product link"}
		return reply
	}

	part, err := e.store.GetPartByNumber(partNumber)
	if err != nil {
		slog.Error("Engine.resolveInstall: part lookup failed", "error", err, "partNumber", partNumber)
		part = nil
	}
	if part == nil {
		return models.NewReply(
			fmt.Sprintf("I couldn't find part %s.", partNumber),
			models.IntentInstallHelp, models.SourceDB)
	}

	if instructions := e.scrapeInstructions(ctx, part); instructions != "" {
		e.refreshPriceStock(ctx, part)
		reply := models.NewReply(
			fmt.Sprintf("Here's how to install %s:\n\n%s", part.Name, instructions),
			models.IntentInstallHelp, models.SourceScraperLLM)
		reply.Cards = append(reply.Cards, models.NewProductCard(*part))
		reply.QuickReplies = []string{"View full instructions on PartSelect", "Add to cart", "Check compatibility"}
		return reply
	}

	if part.InstallSummary != "" {
		e.refreshPriceStock(ctx, part)
		reply := models.NewReply(
			fmt.Sprintf("Here's how to install %s:\n\n%s", part.Name, part.InstallSummary),
			models.IntentInstallHelp, models.SourceDB)
		reply.Cards = append(reply.Cards, models.NewProductCard(*part))
		reply.QuickReplies = []string{"View full instructions on PartSelect", "Add to cart", "Check compatibility"}
		return reply
	}

	// No product-specific instructions anywhere: link out rather than
	// invent steps, with wording split on how risky the part is.
	return e.installLinkOut(part)
}

// scrapeInstructions fetches install content off the product page and, when
// an LLM is available, composes it into step-by-step guidance. Returns the
// raw scraped steps when no LLM is configured.
func (e *Engine) scrapeInstructions(ctx context.Context, part *models.Part) string {
	if e.scraper == nil || part.ProductURL == "" {
		return ""
	}
	signals, err := e.scraper.FetchInstallSignals(ctx, part.ProductURL)
	if err != nil {
		slog.Debug("Engine.scrapeInstructions: scrape failed", "error", err, "partNumber", part.PartSelectNumber)
		return ""
	}
	if signals.Steps == "" && signals.Warnings == "" && signals.Tools == "" {
		return ""
	}

	if e.llm == nil {
		return signals.Steps
	}

	composed, err := e.llm.Generate(ctx, installSummarySystemPrompt, buildInstallPrompt(part, signals))
	if err != nil || strings.TrimSpace(composed) == "" {
		slog.Debug("Engine.scrapeInstructions: LLM composition failed, using raw steps",
			"error", err, "partNumber", part.PartSelectNumber)
		return signals.Steps
	}
	return strings.TrimSpace(composed)
}

func buildInstallPrompt(part *models.Part, signals scrape.InstallSignals) string {
	var content []string
	if signals.Steps != "" {
		content = append(content, "Installation content:\n"+signals.Steps)
	}
	if signals.Warnings != "" {
		content = append(content, "Safety:\n"+signals.Warnings)
	}
	if signals.Tools != "" {
		content = append(content, "Tools:\n"+signals.Tools)
	}
	extracted := "(No specific content extracted from page. Generate instructions based on part type.)"
	if len(content) > 0 {
		extracted = strings.Join(content, "\n\n")
	}

	return fmt.Sprintf(`Provide clear, step-by-step installation instructions for an appliance part.

Part Information:
- Part Name: %s
- Part Number: %s

Content extracted from the product page:
%s

Requirements:
1. Start with any safety warnings (disconnect power, turn off water). Simple accessory parts need no power disconnection; electrical or mechanical parts require it.
2. List any tools required, or state "No tools required".
3. Provide 3-5 clear installation steps based on the part type.
4. Always end with a note about visiting PartSelect for diagrams and videos.

Format your response as:
**Safety First:**
[safety steps]

**Tools Needed:**
[tools]

**Installation Steps:**
1. [step]
2. [step]
3. [step]

Keep the response under 250 words and very practical.`,
		part.Name, part.PartSelectNumber, extracted)
}

func (e *Engine) installLinkOut(part *models.Part) models.Reply {
	lowerName := strings.ToLower(part.Name)
	simple := false
	for _, kw := range simplePartKeywords {
		if strings.Contains(lowerName, kw) {
			simple = true
			break
		}
	}

	var text string
	if simple {
		text = fmt.Sprintf(
			"%s is typically a simple snap-in or tool-free installation. For product-specific instructions, diagrams, and videos, please visit the PartSelect product page.",
			part.Name)
	} else {
		text = fmt.Sprintf(
			"%s installation requires careful attention to safety and proper procedures. For detailed product-specific instructions, safety warnings, diagrams, and videos, please visit the PartSelect product page.",
			part.Name)
	}
	slog.Debug("Engine.installLinkOut: no stored or scraped guidance",
		"partNumber", part.PartSelectNumber, "simple", simple)

	reply := models.NewReply(text, models.IntentInstallHelp, models.SourceRules)
	reply.Cards = append(reply.Cards, models.NewProductCard(*part))
	reply.QuickReplies = []string{"View on PartSelect", "Add to cart", "Check compatibility"}
	return reply
}
