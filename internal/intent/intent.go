// Package intent classifies user utterances into the closed intent set.
//
// Detection is a strictly ordered rule cascade over the utterance and its
// extracted entities. An optional LLM refines the two intents the rules most
// often confuse (install_help vs troubleshoot); LLM failures never surface.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/partpilot/partpilot/internal/extract"
	"github.com/partpilot/partpilot/internal/models"
)

// outOfScopeAppliances are appliance mentions the assistant rejects. The
// rejection is suppressed when a supported appliance is named in the same
// utterance, so comparisons like "fridge vs freezer" stay in scope.
var outOfScopeAppliances = []string{
	"oven", "stove", "range", "microwave", "washer", "washing machine",
	"dryer", "clothes dryer", "freezer", "wine cooler", "ice maker",
}

var inScopeAppliances = []string{"refrigerator", "fridge", "dishwasher"}

// inScopeKeywords accept an utterance into the supported domain when no
// appliance was extracted.
var inScopeKeywords = []string{
	"refrigerator", "fridge", "dishwasher", "part", "model",
	"ice maker", "water filter", "door seal", "pump", "motor",
	"spray arm", "crisper", "shelf", "rack", "heating element",
}

var (
	installPattern      = regexp.MustCompile(`\b(install|installation|replace|replacement|how do i|how can i|how to)\b`)
	compatPattern       = regexp.MustCompile(`\b(compatible|compatibility|check compatibility|check fit|fit|fits|work with)\b`)
	partNumberPhrase    = regexp.MustCompile(`\bpart number\b`)
	partLookupPhrase    = regexp.MustCompile(`\b(find a part|find part|search parts|lookup part|part lookup)\b`)
	troubleshootPattern = regexp.MustCompile(`\b(troubleshoot|not working|broken|problem|issue|fix|repair)\b`)
	returnsPattern      = regexp.MustCompile(`\b(return|refund|policy)\b`)
	cartUpdatePattern   = regexp.MustCompile(`\b(make that|change to|update to|change quantity|update quantity)\s*(\d+)\b`)
	cartRemovePattern   = regexp.MustCompile(`\b(remove|delete|take out).*(from cart|from my cart)\b`)
	cartCheckoutPattern = regexp.MustCompile(`\b(checkout|check out|purchase|buy now|proceed to checkout)\b`)
	cartViewPattern     = regexp.MustCompile(`\b(view cart|show cart|my cart|what.*in.*cart)\b`)
)

// Detect runs the rule cascade over one utterance. It always returns a
// valid intent plus the entities extracted along the way.
func Detect(utterance string) (models.Intent, models.Entities) {
	lower := strings.ToLower(utterance)

	// Out-of-scope gate runs before extraction so unsupported appliances
	// short-circuit everything else.
	for _, appliance := range outOfScopeAppliances {
		if !strings.Contains(lower, appliance) {
			continue
		}
		inScope := false
		for _, kw := range inScopeAppliances {
			if strings.Contains(lower, kw) {
				inScope = true
				break
			}
		}
		if !inScope {
			slog.Debug("intent.Detect: out-of-scope appliance", "appliance", appliance)
			return models.IntentOutOfScope, models.Entities{DetectedAppliance: appliance}
		}
		break
	}

	entities := extract.Extract(utterance)

	// Ordered cascade: the first matching rule wins. Install is checked
	// before part lookup so "how to install PS123456" routes to install.
	switch {
	case installPattern.MatchString(lower):
		return models.IntentInstallHelp, entities
	case compatPattern.MatchString(lower):
		return models.IntentCompatibilityCheck, entities
	case entities.PartNumber != "" || partNumberPhrase.MatchString(lower):
		return models.IntentPartLookup, entities
	case partLookupPhrase.MatchString(lower):
		return models.IntentPartLookup, entities
	case troubleshootPattern.MatchString(lower):
		return models.IntentTroubleshoot, entities
	}

	// A bare appliance name is an answer to "which appliance?" in a
	// troubleshooting exchange.
	trimmed := strings.TrimSpace(lower)
	if (trimmed == "refrigerator" || trimmed == "dishwasher" || trimmed == "fridge") && entities.ApplianceType != "" {
		return models.IntentTroubleshoot, entities
	}

	switch {
	case returnsPattern.MatchString(lower):
		return models.IntentReturnsPolicy, entities
	case cartUpdatePattern.MatchString(lower):
		return models.IntentCartUpdate, entities
	case cartRemovePattern.MatchString(lower):
		return models.IntentCartRemove, entities
	case cartCheckoutPattern.MatchString(lower):
		return models.IntentCartCheckout, entities
	case cartViewPattern.MatchString(lower):
		return models.IntentCartView, entities
	}

	inScope := models.IsValidApplianceType(entities.ApplianceType)
	if !inScope {
		for _, kw := range inScopeKeywords {
			if strings.Contains(lower, kw) {
				inScope = true
				break
			}
		}
	}
	// A model number on its own is almost always the answer to a
	// compatibility question.
	if !inScope && entities.ModelNumber != "" {
		slog.Debug("intent.Detect: in-scope via model number", "modelNumber", entities.ModelNumber)
		return models.IntentCompatibilityCheck, entities
	}
	if !inScope {
		return models.IntentOutOfScope, entities
	}
	return models.IntentGeneral, entities
}

// llm is the narrow LLM surface the classifier needs.
type llm interface {
	Classify(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Classifier combines the rule cascade with an optional LLM tie-break.
type Classifier struct {
	llm llm
}

// NewClassifier creates a classifier. A nil LLM disables the tie-break and
// leaves the cascade result untouched.
func NewClassifier(l llm) *Classifier {
	return &Classifier{llm: l}
}

// refinableIntents are the cascade outcomes worth a second LLM opinion.
var refinableIntents = map[models.Intent]bool{
	models.IntentInstallHelp:  true,
	models.IntentTroubleshoot: true,
}

// acceptableLLMIntents are the only answers the tie-break may substitute.
var acceptableLLMIntents = map[models.Intent]bool{
	models.IntentInstallHelp:        true,
	models.IntentTroubleshoot:       true,
	models.IntentPartLookup:         true,
	models.IntentCompatibilityCheck: true,
}

const classifierSystemPrompt = "You are an intent classifier for an appliance parts assistant. Respond with only the intent name."

// Detect classifies one utterance, consulting the LLM when the cascade
// lands on an ambiguous intent. Never returns an error: any LLM failure
// keeps the cascade result.
func (c *Classifier) Detect(ctx context.Context, utterance string) (models.Intent, models.Entities) {
	detected, entities := Detect(utterance)
	if c.llm == nil || !refinableIntents[detected] {
		return detected, entities
	}

	answer, err := c.llm.Classify(ctx, classifierSystemPrompt, buildClassifierPrompt(utterance, entities))
	if err != nil {
		slog.Debug("Classifier.Detect: LLM tie-break failed, keeping cascade result",
			"intent", detected, "error", err)
		return detected, entities
	}
	refined := models.Intent(strings.ToLower(strings.TrimSpace(answer)))
	if !acceptableLLMIntents[refined] {
		slog.Debug("Classifier.Detect: LLM answer outside accepted set, keeping cascade result",
			"intent", detected, "llmAnswer", refined)
		return detected, entities
	}
	if refined != detected {
		slog.Debug("Classifier.Detect: LLM refined intent", "from", detected, "to", refined)
	}
	return refined, entities
}

func buildClassifierPrompt(utterance string, entities models.Entities) string {
	return fmt.Sprintf(`Classify the user's intent into ONE of these categories:
1. "install_help" - User wants installation instructions (e.g., "how do I install", "how to replace")
2. "troubleshoot" - User has a problem and needs help fixing it (e.g., "not working", "won't start", "leaking")
3. "part_lookup" - User wants to find or learn about a part (e.g., "what is PS####", "find a part")
4. "compatibility_check" - User wants to verify if a part fits their model (e.g., "compatible with", "will it fit")

User message: %q
Detected part number: %q
Detected symptoms: %s

Respond with ONLY the intent name, nothing else.`,
		utterance, entities.PartNumber, strings.Join(entities.Symptoms, ", "))
}
