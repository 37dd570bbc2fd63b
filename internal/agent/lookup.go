package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/partpilot/partpilot/internal/extract"
	"github.com/partpilot/partpilot/internal/models"
)

const partSearchURLFormat = "https://www.partselect.com/Search.aspx?SearchTerm=%s"

var lookupPhrasePattern = regexp.MustCompile(`\b(find a part|find part|search parts|lookup part|part lookup)\b`)

// fallbackSearchTerms drive a keyword search when no part component could be
// recovered from the turn or its history.
var fallbackSearchTerms = []string{
	"ice maker", "water filter", "door shelf", "crisper drawer",
	"spray arm", "dishrack wheel", "rack adjuster", "heating element",
}

// handlePartLookup answers part requests: direct by PartSelect number, or a
// keyword search recovered from the conversation.
func (e *Engine) handlePartLookup(ctx context.Context, sessionID, utterance string, entities models.Entities, cctx *models.Context) models.Reply {
	if entities.PartNumber != "" {
		return e.lookupByNumber(ctx, entities.PartNumber)
	}
	return e.searchParts(ctx, sessionID, utterance, entities, cctx)
}

func (e *Engine) lookupByNumber(ctx context.Context, partNumber string) models.Reply {
	part, err := e.store.GetPartByNumber(partNumber)
	if err != nil {
		slog.Error("Engine.lookupByNumber: lookup failed", "error", err, "partNumber", partNumber)
		part = nil
	}

	if part == nil {
		searchURL := fmt.Sprintf(partSearchURLFormat, partNumber)
		reply := models.NewReply(
			fmt.Sprintf("I don't have %s in the catalog yet. You can verify it directly on PartSelect, and I can still help with fit checks.", partNumber),
			models.IntentPartLookup, models.SourceDB)
		reply.Cards = append(reply.Cards, models.NewProductCard(models.Part{
			PartSelectNumber: partNumber,
			Name:             "PartSelect result for " + partNumber,
			ProductURL:       searchURL,
		}))
		reply.QuickReplies = []string{"Check compatibility", "Search another part"}
		return reply
	}

	e.refreshPriceStock(ctx, part)

	reply := models.NewReply(
		fmt.Sprintf("Here's the information for %s:", part.Name),
		models.IntentPartLookup, models.SourceDB)
	reply.Cards = append(reply.Cards, models.NewProductCard(*part))
	reply.QuickReplies = []string{"Check compatibility", "Installation instructions", "Add to cart"}
	return reply
}

// searchParts finds parts by keyword, recovering the search subject from
// conversation history when the current turn is only a bare lookup phrase.
func (e *Engine) searchParts(ctx context.Context, sessionID, utterance string, entities models.Entities, cctx *models.Context) models.Reply {
	searchText := utterance
	component := entities.PartComponent
	appliance := cctx.Appliance

	if lookupPhrasePattern.MatchString(strings.ToLower(utterance)) {
		if historical, ok := e.historySearchContext(sessionID); ok {
			searchText = historical.text
			if component == "" {
				component = historical.entities.PartComponent
			}
			if appliance == "" {
				appliance = historical.entities.ApplianceType
			}
		}
	}

	var terms []string
	if component != "" {
		terms = []string{component}
	} else {
		lower := strings.ToLower(searchText)
		for _, term := range fallbackSearchTerms {
			if strings.Contains(lower, term) {
				terms = append(terms, term)
			}
		}
		if len(terms) == 0 {
			terms = fallbackSearchTerms[:3]
		}
	}

	slog.Debug("Engine.searchParts: searching", "terms", terms, "appliance", appliance)

	seen := make(map[string]bool)
	var found []models.Part
	for _, term := range terms {
		parts, err := e.store.SearchPartsByName([]string{term}, appliance, 5)
		if err != nil {
			slog.Error("Engine.searchParts: search failed", "error", err, "term", term)
			continue
		}
		for _, p := range parts {
			if seen[p.PartSelectNumber] {
				continue
			}
			seen[p.PartSelectNumber] = true
			found = append(found, p)
		}
	}
	if len(found) > 5 {
		found = found[:5]
	}

	if len(found) == 0 {
		return models.NewReply(
			"I couldn't find any parts matching your search. Could you provide more details or a specific part number?",
			models.IntentPartLookup, models.SourceDB)
	}

	reply := models.NewReply(
		fmt.Sprintf("I found %d parts matching your search:", len(found)),
		models.IntentPartLookup, models.SourceDB)
	for _, p := range found {
		reply.Cards = append(reply.Cards, models.NewProductCard(p))
	}
	reply.QuickReplies = []string{"Check fit", "More details"}
	return reply
}

type searchContext struct {
	text     string
	entities models.Entities
}

// historySearchContext finds the most recent substantive user message to
// search from, skipping flow answers and bare lookup phrases.
func (e *Engine) historySearchContext(sessionID string) (searchContext, bool) {
	if sessionID == "" {
		return searchContext{}, false
	}
	contents, err := e.store.RecentUserMessages(sessionID, historyScanLimit)
	if err != nil {
		slog.Error("Engine.historySearchContext: history read failed", "error", err, "sessionID", sessionID)
		return searchContext{}, false
	}
	for _, content := range contents {
		trimmed := strings.TrimSpace(content)
		lower := strings.ToLower(trimmed)
		if len(trimmed) < 8 {
			continue
		}
		if strings.HasPrefix(lower, "answer:") {
			continue
		}
		if lookupPhrasePattern.MatchString(lower) {
			continue
		}
		slog.Debug("Engine.historySearchContext: recovered search subject", "sessionID", sessionID)
		return searchContext{text: trimmed, entities: extract.Extract(trimmed)}, true
	}
	return searchContext{}, false
}
