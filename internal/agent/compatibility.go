package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/partpilot/partpilot/internal/crossbrand"
	"github.com/partpilot/partpilot/internal/extract"
	"github.com/partpilot/partpilot/internal/models"
	"github.com/partpilot/partpilot/internal/scrape"
)

const (
	modelPageURLFormat = "https://www.partselect.com/Models/%s"
	modelHelpURL       = "https://www.partselect.com/FixModelNumber.aspx"

	maxModelSuggestions = 5
	maxAlternatesShown  = 10
)

// resolveCompatibility runs the staged compatibility pipeline for a
// (part, model) pair. Preconditions short-circuit with clarification
// replies; each verdict stage is tried only when earlier stages produced no
// verdict.
func (e *Engine) resolveCompatibility(ctx context.Context, sessionID string, entities models.Entities, cctx *models.Context) models.Reply {
	partNumber := e.recoverPartNumber(sessionID, entities)
	if partNumber == "" {
		reply := models.NewReply(
			"To check compatibility, I need the part number. Please provide the PartSelect number (PS####) or share the product link.",
			models.IntentCompatibilityCheck, models.SourceRules)
		reply.QuickReplies = []string{"Example: PS11701542", "Share PartSelect link"}
		return reply
	}

	modelNumber := entities.ModelNumber
	if modelNumber == "" {
		modelNumber = cctx.ModelNumber
	}
	if modelNumber == "" {
		reply := models.NewReply(
			"To be sure, I need your appliance model number.",
			models.IntentCompatibilityCheck, models.SourceRules)
		reply.Cards = append(reply.Cards, models.NewModelCaptureCard(models.ModelCaptureCardData{
			Prompt: "You can usually find this on a sticker inside the door or on the frame.",
		}))
		reply.QuickReplies = []string{"I don't know", "Where do I find my model number?"}
		return reply
	}

	// A truncated model number is disambiguated, never guessed from.
	if !extract.IsCompleteModelNumber(modelNumber) {
		return e.disambiguateModel(modelNumber)
	}
	normalized := extract.NormalizeModelNumber(modelNumber)

	// Stage 1: the model's own parts listing is the strongest evidence.
	if reply, done := e.checkModelListing(ctx, partNumber, normalized); done {
		return reply
	}

	part, err := e.store.GetPartByNumber(partNumber)
	if err != nil {
		slog.Error("Engine.resolveCompatibility: part lookup failed", "error", err, "partNumber", partNumber)
		part = nil
	}
	if part == nil {
		reply := models.NewReply(
			fmt.Sprintf("I don't have part %s in my catalog. Please verify the part number or share the PartSelect product link.", partNumber),
			models.IntentCompatibilityCheck, models.SourceDB)
		reply.QuickReplies = []string{"Search for parts"}
		return reply
	}

	// Stage 2: category guard. An appliance-type mismatch is decisive no
	// matter what any later stage would say.
	if reply, done := e.checkCategoryGuard(part, normalized, entities, cctx); done {
		return reply
	}

	// Stage 3: a prior verified record.
	if reply, done := e.checkStoredRecord(part, partNumber, normalized); done {
		return reply
	}

	// Stage 4: cross-brand manufacturing rules.
	if reply, done := e.checkCrossBrand(part, normalized, entities, cctx); done {
		return reply
	}

	// Stage 5: live product-page signals judged by the LLM.
	if reply, done := e.checkScrapedSignals(ctx, part, partNumber, normalized); done {
		return reply
	}

	// Stage 6: honest uncertainty with a manual verification link.
	return e.needInfoReply(partNumber, normalized,
		"Compatibility data not available in our database. Manual verification required.", nil)
}

// disambiguateModel asks the user to complete a partial model number,
// offering known models sharing the prefix when any exist.
func (e *Engine) disambiguateModel(modelNumber string) models.Reply {
	prefix := extract.ModelPrefix(modelNumber)
	if prefix == "" {
		prefix = extract.NormalizeModelNumber(modelNumber)
	}

	var suggestions []string
	if prefix != "" {
		var err error
		suggestions, err = e.store.SuggestModelsByPrefix(prefix, maxModelSuggestions)
		if err != nil {
			slog.Error("Engine.disambiguateModel: suggestion query failed", "error", err, "prefix", prefix)
			suggestions = nil
		}
	}

	if len(suggestions) > 0 {
		slog.Debug("Engine.disambiguateModel: offering suggestions", "prefix", prefix, "count", len(suggestions))
		reply := models.NewReply(
			fmt.Sprintf("I found your model prefix %s, but I need the full model number to verify compatibility. Did you mean one of these?", prefix),
			models.IntentCompatibilityCheck, models.SourceDB)
		reply.Cards = append(reply.Cards, models.NewModelCaptureCard(models.ModelCaptureCardData{
			Prompt:      "Pick your full model number, or check the label on your appliance.",
			Partial:     prefix,
			Suggestions: suggestions,
		}))
		if len(suggestions) > 3 {
			suggestions = suggestions[:3]
		}
		reply.QuickReplies = append(suggestions, "I'll check my appliance label")
		return reply
	}

	reply := models.NewReply(
		fmt.Sprintf("The model number %s looks incomplete. Can you check the full model number on your appliance? It's usually 8-12 characters (e.g., WDT780SAEM1).", modelNumber),
		models.IntentCompatibilityCheck, models.SourceRules)
	reply.QuickReplies = []string{"Where's my model number?"}
	return reply
}

// checkModelListing scrapes the model's parts page. A listed part is an
// exact fit; a successfully fetched listing without the part is a
// does-not-fit; a fetch failure produces no verdict.
func (e *Engine) checkModelListing(ctx context.Context, partNumber, modelNumber string) (models.Reply, bool) {
	if e.scraper == nil {
		return models.Reply{}, false
	}
	listing, err := e.scraper.FetchModelListing(ctx, modelNumber)
	if err != nil {
		slog.Debug("Engine.checkModelListing: listing fetch failed, falling through",
			"error", err, "modelNumber", modelNumber)
		return models.Reply{}, false
	}

	listed := false
	for _, num := range listing.PartNumbers {
		if num == partNumber {
			listed = true
			break
		}
	}

	partName := partNumber
	if part, err := e.store.GetPartByNumber(partNumber); err == nil && part != nil {
		partName = fmt.Sprintf("%s (%s)", partNumber, part.Name)
	}

	if listed {
		slog.Debug("Engine.checkModelListing: part listed on model page",
			"partNumber", partNumber, "modelNumber", modelNumber)
		rec := models.CompatibilityRecord{
			PartNumber:      partNumber,
			ModelNumber:     modelNumber,
			Confidence:      models.ConfidenceExact,
			EvidenceURL:     listing.ModelURL,
			EvidenceSnippet: fmt.Sprintf("Found on model page with %d total parts", len(listing.PartNumbers)),
		}
		if err := e.store.SaveCompatibility(rec); err != nil {
			slog.Error("Engine.checkModelListing: cache write failed", "error", err, "partNumber", partNumber)
		}

		reply := models.NewReply(
			fmt.Sprintf("Part %s is confirmed compatible with model %s. It is listed on the model's parts page.", partName, modelNumber),
			models.IntentCompatibilityCheck, models.SourceScraperLLM)
		reply.Cards = append(reply.Cards, models.NewCompatibilityCard(models.CompatibilityCardData{
			PartNumber:  partNumber,
			ModelNumber: modelNumber,
			Status:      models.CompatibilityFits,
			Confidence:  models.ConfidenceExact,
			Reason:      fmt.Sprintf("This part is listed on the model %s parts page, confirming compatibility.", modelNumber),
			EvidenceURL: listing.ModelURL,
		}))
		reply.QuickReplies = []string{"Add to cart", "Installation help", "View all parts for this model"}
		return reply, true
	}

	slog.Debug("Engine.checkModelListing: part absent from model page",
		"partNumber", partNumber, "modelNumber", modelNumber, "partsChecked", len(listing.PartNumbers))
	reply := models.NewReply(
		fmt.Sprintf("Part %s does not appear to be compatible with model %s. It is not listed on the model's parts page.", partName, modelNumber),
		models.IntentCompatibilityCheck, models.SourceScraperLLM)
	reply.Cards = append(reply.Cards, models.NewCompatibilityCard(models.CompatibilityCardData{
		PartNumber:  partNumber,
		ModelNumber: modelNumber,
		Status:      models.CompatibilityDoesNotFit,
		Confidence:  models.ConfidenceHigh,
		Reason:      fmt.Sprintf("This part is not listed on the model %s parts page.", modelNumber),
		EvidenceURL: listing.ModelURL,
	}))
	reply.QuickReplies = []string{"Search for compatible parts", "Verify model number"}
	return reply, true
}

func (e *Engine) checkCategoryGuard(part *models.Part, modelNumber string, entities models.Entities, cctx *models.Context) (models.Reply, bool) {
	inferred := entities.ApplianceType
	if inferred == "" {
		inferred = cctx.Appliance
	}
	if inferred == "" {
		inferred = extract.InferApplianceFromModel(modelNumber)
	}
	if part.ApplianceType == "" || inferred == "" || part.ApplianceType == inferred {
		return models.Reply{}, false
	}

	slog.Debug("Engine.checkCategoryGuard: appliance mismatch",
		"partAppliance", part.ApplianceType, "modelAppliance", inferred)
	reply := models.NewReply(
		fmt.Sprintf("Part %s (%s) is a %s part, but your model %s is a %s. This part is not designed for that appliance type.",
			part.PartSelectNumber, part.Name, applianceLabel(part.ApplianceType), modelNumber, applianceLabel(inferred)),
		models.IntentCompatibilityCheck, models.SourceRules)
	reply.Cards = append(reply.Cards, models.NewCompatibilityCard(models.CompatibilityCardData{
		PartNumber:  part.PartSelectNumber,
		ModelNumber: modelNumber,
		Status:      models.CompatibilityDoesNotFit,
		Confidence:  models.ConfidenceHigh,
		Reason:      fmt.Sprintf("Appliance type mismatch: part=%s, model=%s", part.ApplianceType, inferred),
	}))
	reply.QuickReplies = []string{"Search other parts"}
	return reply, true
}

func (e *Engine) checkStoredRecord(part *models.Part, partNumber, modelNumber string) (models.Reply, bool) {
	rec, err := e.store.GetCompatibility(partNumber, modelNumber)
	if err != nil {
		slog.Error("Engine.checkStoredRecord: record lookup failed", "error", err, "partNumber", partNumber)
		return models.Reply{}, false
	}
	if rec == nil || rec.Confidence != models.ConfidenceExact {
		return models.Reply{}, false
	}

	slog.Debug("Engine.checkStoredRecord: verified record found", "partNumber", partNumber, "modelNumber", modelNumber)
	reply := models.NewReply(
		fmt.Sprintf("Verified: part %s (%s) is confirmed compatible with model %s.", partNumber, part.Name, modelNumber),
		models.IntentCompatibilityCheck, models.SourceDB)
	reply.Cards = append(reply.Cards, models.NewCompatibilityCard(models.CompatibilityCardData{
		PartNumber:  partNumber,
		ModelNumber: modelNumber,
		Status:      models.CompatibilityFits,
		Confidence:  models.ConfidenceExact,
		Reason:      fmt.Sprintf("This part is confirmed compatible with model %s.", modelNumber),
		EvidenceURL: rec.EvidenceURL,
		VerifyURL:   fmt.Sprintf(modelPageURLFormat, modelNumber),
	}))
	reply.QuickReplies = []string{"Add to cart", "Installation help", "View all parts for this model"}
	return reply, true
}

func (e *Engine) checkCrossBrand(part *models.Part, modelNumber string, entities models.Entities, cctx *models.Context) (models.Reply, bool) {
	detectedBrand := entities.Brand
	if detectedBrand == "" {
		detectedBrand = cctx.Brand
	}
	if part.Brand == "" || detectedBrand == "" {
		return models.Reply{}, false
	}

	verdict := crossbrand.Check(part.Brand, modelNumber, detectedBrand)
	if verdict.Compatible == nil {
		slog.Debug("Engine.checkCrossBrand: inconclusive", "reason", verdict.Reason)
		return models.Reply{}, false
	}

	status := models.CompatibilityFits
	quickReplies := []string{"Add to cart", "Installation help", "View on PartSelect"}
	if !*verdict.Compatible {
		status = models.CompatibilityDoesNotFit
		quickReplies = []string{"Search for compatible parts"}
	}

	reply := models.NewReply(
		fmt.Sprintf("%s (confidence %d%%)", verdict.Reason, int(verdict.Confidence*100)),
		models.IntentCompatibilityCheck, models.SourceRules)
	reply.Cards = append(reply.Cards, models.NewCompatibilityCard(models.CompatibilityCardData{
		PartNumber:  part.PartSelectNumber,
		ModelNumber: modelNumber,
		Status:      status,
		Confidence:  models.ConfidenceHigh,
		Reason:      verdict.Reason,
	}))
	reply.QuickReplies = quickReplies
	return reply, true
}

// compatJudgement is the structured verdict the LLM returns for scraped
// compatibility signals. A nil Compatible means the model could not decide.
type compatJudgement struct {
	Compatible *bool  `json:"compatible"`
	Confidence string `json:"confidence"`
	Reason     string `json:"reason"`
}

const compatJudgementSystemPrompt = "You are a helpful assistant for appliance part compatibility. Always respond with valid JSON."

func (e *Engine) checkScrapedSignals(ctx context.Context, part *models.Part, partNumber, modelNumber string) (models.Reply, bool) {
	if e.scraper == nil || part.ProductURL == "" {
		return models.Reply{}, false
	}
	signals, err := e.scraper.FetchCompatibilitySignals(ctx, part.ProductURL)
	if err != nil {
		slog.Debug("Engine.checkScrapedSignals: scrape failed, falling through", "error", err, "partNumber", partNumber)
		return models.Reply{}, false
	}

	judgement := e.judgeCompatibility(ctx, part, modelNumber, signals)

	if judgement.Compatible != nil {
		status := models.CompatibilityFits
		quickReplies := []string{"Add to cart", "Installation help", "Verify on PartSelect"}
		verb := "appears to be"
		if !*judgement.Compatible {
			status = models.CompatibilityDoesNotFit
			quickReplies = []string{"Search for compatible parts", "Verify on PartSelect"}
			verb = "does not appear to be"
		}

		reply := models.NewReply(
			fmt.Sprintf("Part %s (%s) %s compatible with model %s. %s", partNumber, part.Name, verb, modelNumber, judgement.Reason),
			models.IntentCompatibilityCheck, models.SourceScraperLLM)
		reply.Cards = append(reply.Cards, models.NewCompatibilityCard(models.CompatibilityCardData{
			PartNumber:  partNumber,
			ModelNumber: modelNumber,
			Status:      status,
			Confidence:  parseConfidence(judgement.Confidence),
			Reason:      judgement.Reason,
			EvidenceURL: part.ProductURL,
		}))
		reply.QuickReplies = quickReplies
		return reply, true
	}

	// No verdict, but the replaces list is actionable evidence on its own.
	if len(signals.Replaces) > 0 {
		alternates := signals.Replaces
		if len(alternates) > maxAlternatesShown {
			alternates = alternates[:maxAlternatesShown]
		}
		text := fmt.Sprintf(
			"I cannot definitively verify compatibility for part %s with model %s based on available data. "+
				"This part replaces these part numbers: %s. "+
				"If your appliance uses any of them, this part is very likely compatible. Otherwise, please verify on PartSelect.",
			partNumber, modelNumber, strings.Join(alternates, ", "))
		if signals.WorksWith != "" {
			text = fmt.Sprintf(
				"I cannot definitively verify compatibility for part %s with model %s based on available data. "+
					"This part is designed for: %s. It replaces these part numbers: %s. "+
					"If your appliance uses any of them, this part is very likely compatible. Otherwise, please verify on PartSelect.",
				partNumber, modelNumber, signals.WorksWith, strings.Join(alternates, ", "))
		}

		reply := models.NewReply(text, models.IntentCompatibilityCheck, models.SourceScraperLLM)
		reply.Cards = append(reply.Cards, models.NewCompatibilityCard(models.CompatibilityCardData{
			PartNumber:  partNumber,
			ModelNumber: modelNumber,
			Status:      models.CompatibilityNeedInfo,
			Confidence:  models.ConfidenceUnknown,
			Reason:      fmt.Sprintf("This part replaces: %s", strings.Join(alternates, ", ")),
			VerifyURL:   part.ProductURL,
			Alternates:  alternates,
		}))
		reply.QuickReplies = []string{"Verify on PartSelect", "Search other parts"}
		return reply, true
	}

	return models.Reply{}, false
}

// judgeCompatibility asks the LLM for a structured verdict over the scraped
// signals. Any failure yields the undecided judgement.
func (e *Engine) judgeCompatibility(ctx context.Context, part *models.Part, modelNumber string, signals scrape.CompatibilitySignals) compatJudgement {
	undecided := compatJudgement{Confidence: "unknown"}
	if e.llm == nil {
		return undecided
	}

	answer, err := e.llm.Classify(ctx, compatJudgementSystemPrompt,
		buildJudgementPrompt(part, modelNumber, signals))
	if err != nil {
		slog.Debug("Engine.judgeCompatibility: LLM call failed", "error", err, "partNumber", part.PartSelectNumber)
		return undecided
	}

	var judgement compatJudgement
	if err := json.Unmarshal([]byte(stripCodeFences(answer)), &judgement); err != nil {
		slog.Debug("Engine.judgeCompatibility: malformed LLM answer", "error", err, "partNumber", part.PartSelectNumber)
		return undecided
	}
	slog.Debug("Engine.judgeCompatibility: verdict received",
		"decided", judgement.Compatible != nil, "confidence", judgement.Confidence)
	return judgement
}

func buildJudgementPrompt(part *models.Part, modelNumber string, signals scrape.CompatibilitySignals) string {
	var context []string
	if len(signals.Replaces) > 0 {
		context = append(context, "Replacement part numbers: "+strings.Join(signals.Replaces, ", "))
	}
	if signals.WorksWith != "" {
		context = append(context, "Works with: "+signals.WorksWith)
	}
	if len(signals.CompatibleModels) > 0 {
		listed := signals.CompatibleModels
		if len(listed) > 10 {
			listed = listed[:10]
		}
		context = append(context, "Compatible models found: "+strings.Join(listed, ", "))
	}
	evidence := "(No compatibility data extracted from page)"
	if len(context) > 0 {
		evidence = strings.Join(context, "\n")
	}

	return fmt.Sprintf(`Determine whether an appliance part is compatible with a model number.

Part Information:
- PartSelect Number: %s
- Manufacturer Part Number: %s
- User's Model Number: %s

Extracted Compatibility Data:
%s

Rules:
1. If the user's model number appears in the compatible models list, it is compatible (high confidence).
2. If the user's model is for a different appliance type than the part, it is not compatible (high confidence).
3. If there is no usable data, answer null (unknown confidence).

Respond in EXACTLY this JSON format:
{"compatible": true/false/null, "confidence": "high" or "medium" or "low" or "unknown", "reason": "Clear explanation in 1-2 sentences"}

Your response (JSON only):`,
		part.PartSelectNumber, part.ManufacturerNumber, modelNumber, evidence)
}

func (e *Engine) needInfoReply(partNumber, modelNumber, reason string, alternates []string) models.Reply {
	verifyURL := fmt.Sprintf(partSearchURLFormat, partNumber)
	reply := models.NewReply(
		fmt.Sprintf("I cannot verify compatibility for part %s with model %s. Please verify directly on PartSelect using their model lookup tool to ensure this part fits your specific appliance.",
			partNumber, modelNumber),
		models.IntentCompatibilityCheck, models.SourceMixed)
	reply.Cards = append(reply.Cards, models.NewCompatibilityCard(models.CompatibilityCardData{
		PartNumber:  partNumber,
		ModelNumber: modelNumber,
		Status:      models.CompatibilityNeedInfo,
		Confidence:  models.ConfidenceUnknown,
		Reason:      reason,
		VerifyURL:   verifyURL,
		Alternates:  alternates,
	}))
	reply.QuickReplies = []string{"Verify on PartSelect", "Search other parts"}
	return reply
}

// parseConfidence maps an LLM confidence label onto the closed enum.
func parseConfidence(s string) models.Confidence {
	switch models.Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case models.ConfidenceExact:
		return models.ConfidenceExact
	case models.ConfidenceHigh:
		return models.ConfidenceHigh
	case models.ConfidenceMedium:
		return models.ConfidenceMedium
	case models.ConfidenceLow:
		return models.ConfidenceLow
	default:
		return models.ConfidenceUnknown
	}
}

// stripCodeFences removes a markdown code fence wrapper from an LLM answer.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
