package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/partpilot/partpilot/internal/models"
	"github.com/partpilot/partpilot/internal/scrape"
)

// Flow identifiers for the deterministic troubleshooting trees. The flow ID
// and step number round-trip through the caller so the engine can resume
// without any server-side flow state.
const (
	flowIceMaker     = "ice_maker_flow"
	flowWater        = "water_flow"
	flowCooling      = "cooling_flow"
	flowCleaning     = "cleaning_flow"
	flowDrain        = "drain_flow"
	flowGenericPower = "generic_power"
)

// symptomFlow is one entry of the deterministic symptom map: keyword
// triggers, the flow it starts and the parts it may end up recommending.
type symptomFlow struct {
	keywords        []string
	flowID          string
	initialQuestion string
	parts           []string
}

// symptomFlows is checked in order; the first keyword match wins.
var symptomFlows = []symptomFlow{
	{
		keywords:        []string{"ice maker", "icemaker", "ice machine", "ice dispenser"},
		flowID:          flowIceMaker,
		initialQuestion: "Is the ice maker receiving water?",
		parts:           []string{"PS11701542", "PS11752778"},
	},
	{
		keywords:        []string{"water dispenser", "water not dispensing", "no water"},
		flowID:          flowWater,
		initialQuestion: "Is the water line connected and valve open?",
		parts:           []string{"PS11701542"},
	},
	{
		keywords:        []string{"not cooling", "warm", "not cold", "temperature"},
		flowID:          flowCooling,
		initialQuestion: "Is the compressor running (humming sound)?",
		parts:           []string{"PS12364199"},
	},
	{
		keywords:        []string{"not cleaning", "dishes dirty", "not washing"},
		flowID:          flowCleaning,
		initialQuestion: "Is water spraying from both spray arms?",
		parts:           []string{"PS429868"},
	},
	{
		keywords:        []string{"not draining", "water in bottom", "standing water"},
		flowID:          flowDrain,
		initialQuestion: "Can you hear the drain pump running?",
		parts:           []string{"PS429868"},
	},
}

var (
	yesNoOptions = []string{"Yes", "No"}

	// doubledPrefixPattern fixes a recurring LLM glitch where the PS prefix
	// gets doubled ("PSPS11701542").
	doubledPrefixPattern = regexp.MustCompile(`\bPSPS(\d{6,9})\b`)
)

const triageSystemPrompt = "You are a helpful appliance repair assistant. Provide practical troubleshooting advice."

// startTroubleshoot begins a diagnostic exchange: appliance guardrail, issue
// menu for bare appliance turns, LLM triage, then the deterministic symptom
// map.
func (e *Engine) startTroubleshoot(ctx context.Context, utterance string, entities models.Entities, cctx *models.Context) models.Reply {
	appliance := entities.ApplianceType
	if appliance == "" {
		appliance = cctx.Appliance
	}
	if appliance == "" {
		reply := models.NewReply(
			"What type of appliance are you troubleshooting? Please mention if it's a refrigerator or dishwasher.",
			models.IntentTroubleshoot, models.SourceRules)
		reply.QuickReplies = []string{"Refrigerator", "Dishwasher"}
		return reply
	}

	lower := strings.ToLower(utterance)
	trimmed := strings.TrimSpace(lower)

	// A bare appliance name is an answer to "which appliance?", so the next
	// question is which issue.
	if len(entities.Symptoms) == 0 && (trimmed == "refrigerator" || trimmed == "dishwasher" || trimmed == "fridge") {
		return applianceIssueMenu(appliance)
	}

	if reply, ok := e.triageWithLLM(ctx, utterance, appliance, entities.Symptoms); ok {
		return reply
	}

	// Database symptom search, hard-filtered by appliance type.
	if len(entities.Symptoms) > 0 {
		if reply, ok := e.symptomPartSearch(entities, appliance, cctx); ok {
			return reply
		}
	}

	for _, flow := range symptomFlows {
		for _, kw := range flow.keywords {
			if strings.Contains(lower, kw) {
				slog.Debug("Engine.startTroubleshoot: symptom flow matched", "flowID", flow.flowID)
				reply := models.NewReply(
					"Let me help you troubleshoot. I'll ask a few targeted questions.",
					models.IntentTroubleshoot, models.SourceRules)
				reply.Cards = append(reply.Cards, models.NewTroubleshootStepCard(models.TroubleshootStepCardData{
					FlowID:           flow.flowID,
					Step:             1,
					Question:         flow.initialQuestion,
					Options:          yesNoOptions,
					RecommendedParts: flow.parts,
				}))
				reply.QuickReplies = []string{"Skip to parts"}
				return reply
			}
		}
	}

	reply := models.NewReply(
		"Let me help you troubleshoot. I'll ask a few questions to narrow down the problem.",
		models.IntentTroubleshoot, models.SourceRules)
	reply.Cards = append(reply.Cards, models.NewTroubleshootStepCard(models.TroubleshootStepCardData{
		FlowID:   flowGenericPower,
		Step:     1,
		Question: "Is the appliance receiving power?",
		Options:  yesNoOptions,
	}))
	reply.QuickReplies = []string{"Need a part"}
	return reply
}

func applianceIssueMenu(appliance models.ApplianceType) models.Reply {
	if appliance == models.ApplianceRefrigerator {
		reply := models.NewReply(
			"What issue are you experiencing with your refrigerator?",
			models.IntentTroubleshoot, models.SourceRules)
		reply.QuickReplies = []string{
			"Ice maker not working", "Not cooling properly",
			"Water dispenser issue", "Leaking water", "Other issue",
		}
		return reply
	}
	reply := models.NewReply(
		"What issue are you experiencing with your dishwasher?",
		models.IntentTroubleshoot, models.SourceRules)
	reply.QuickReplies = []string{
		"Not cleaning dishes", "Not draining", "Not drying", "Leaking", "Other issue",
	}
	return reply
}

// triageWithLLM asks the LLM for diagnostic steps plus part recommendations
// over symptom-matched (or top-of-catalog) parts. Part numbers mentioned in
// the answer become cards, at most two, hard-filtered by appliance type.
func (e *Engine) triageWithLLM(ctx context.Context, utterance string, appliance models.ApplianceType, symptoms []string) (models.Reply, bool) {
	if e.llm == nil {
		return models.Reply{}, false
	}

	var candidates []models.Part
	seen := make(map[string]bool)
	limit := 3
	if len(symptoms) < limit {
		limit = len(symptoms)
	}
	for _, symptom := range symptoms[:limit] {
		parts, err := e.store.GetPartsBySymptom(symptom, appliance, 5)
		if err != nil {
			slog.Error("Engine.triageWithLLM: symptom query failed", "error", err, "symptom", symptom)
			continue
		}
		for _, p := range parts {
			if !seen[p.PartSelectNumber] {
				seen[p.PartSelectNumber] = true
				candidates = append(candidates, p)
			}
		}
	}
	if len(candidates) == 0 {
		parts, err := e.store.ListPartsByAppliance(appliance, 10)
		if err != nil {
			slog.Error("Engine.triageWithLLM: catalog sample failed", "error", err, "appliance", appliance)
			return models.Reply{}, false
		}
		candidates = parts
	}
	if len(candidates) == 0 {
		return models.Reply{}, false
	}

	guidance, err := e.llm.Generate(ctx, triageSystemPrompt,
		buildTriagePrompt(utterance, appliance, symptoms, candidates))
	if err != nil || strings.TrimSpace(guidance) == "" {
		slog.Debug("Engine.triageWithLLM: LLM triage failed, using symptom map", "error", err)
		return models.Reply{}, false
	}

	guidance = doubledPrefixPattern.ReplaceAllString(guidance, "PS$1")

	reply := models.NewReply(strings.TrimSpace(guidance), models.IntentTroubleshoot, models.SourceScraperLLM)
	for _, num := range scrape.HarvestPartNumbers(guidance) {
		if len(reply.Cards) >= 2 {
			break
		}
		part, err := e.store.GetPartByNumber(num)
		if err != nil || part == nil {
			continue
		}
		if part.ApplianceType != appliance {
			slog.Debug("Engine.triageWithLLM: dropped recommendation with wrong appliance type",
				"partNumber", num, "partAppliance", part.ApplianceType, "appliance", appliance)
			continue
		}
		e.refreshPriceStock(ctx, part)
		reply.Cards = append(reply.Cards, models.NewProductCard(*part))
	}
	reply.QuickReplies = []string{"Check compatibility", "Installation help", "Other issues"}
	return reply, true
}

func buildTriagePrompt(utterance string, appliance models.ApplianceType, symptoms []string, candidates []models.Part) string {
	var lines []string
	for i, part := range candidates {
		if i >= 5 {
			break
		}
		descriptor := "general issues"
		if len(part.CommonSymptoms) > 0 {
			shown := part.CommonSymptoms
			if len(shown) > 3 {
				shown = shown[:3]
			}
			descriptor = strings.Join(shown, ", ")
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): Fixes symptoms like %s", part.Name, part.PartSelectNumber, descriptor))
	}

	symptomText := "general issue"
	if len(symptoms) > 0 {
		symptomText = strings.Join(symptoms, ", ")
	}

	return fmt.Sprintf(`User's Issue: %q
Appliance Type: %s
Detected Symptoms: %s

Relevant Parts from Database:
%s

Task:
1. Provide 2-3 diagnostic steps the user can check themselves
2. Recommend 1-2 specific parts that are most likely to fix the issue
3. Explain WHY those parts would help
4. Keep it concise (under 200 words)

Format your response as:
**Diagnostic Steps:**
1. [Check something]
2. [Check something else]

**Likely Cause & Solution:**
[Brief explanation]

**Recommended Parts:**
- [Part Name] (PS####): [Why this helps]

Keep it practical and specific to the user's issue.`,
		utterance, appliance, symptomText, strings.Join(lines, "\n"))
}

// symptomPartSearch surfaces parts matching the detected symptoms, dropping
// any part whose appliance type disagrees with the session's.
func (e *Engine) symptomPartSearch(entities models.Entities, appliance models.ApplianceType, cctx *models.Context) (models.Reply, bool) {
	seen := make(map[string]bool)
	var matched []models.Part
	for _, symptom := range entities.Symptoms {
		parts, err := e.store.GetPartsBySymptom(symptom, appliance, 5)
		if err != nil {
			slog.Error("Engine.symptomPartSearch: query failed", "error", err, "symptom", symptom)
			continue
		}
		for _, p := range parts {
			if p.ApplianceType != appliance {
				slog.Debug("Engine.symptomPartSearch: filtered wrong appliance type",
					"partNumber", p.PartSelectNumber, "partAppliance", p.ApplianceType)
				continue
			}
			if !seen[p.PartSelectNumber] {
				seen[p.PartSelectNumber] = true
				matched = append(matched, p)
			}
		}
	}
	if len(matched) == 0 {
		return models.Reply{}, false
	}
	if len(matched) > 5 {
		matched = matched[:5]
	}

	modelNumber := entities.ModelNumber
	if modelNumber == "" {
		modelNumber = cctx.ModelNumber
	}
	symptomText := strings.Join(entities.Symptoms, ", ")

	var reply models.Reply
	if modelNumber == "" {
		reply = models.NewReply(
			fmt.Sprintf("Based on the symptom '%s', here are parts that commonly fix this issue. To verify fit, please share your appliance's model number (found on a label inside the door or on the back).", symptomText),
			models.IntentTroubleshoot, models.SourceDB)
		reply.QuickReplies = []string{"Share model number", "Where to find model number"}
	} else {
		reply = models.NewReply(
			fmt.Sprintf("Based on the symptom '%s', here are parts that commonly fix this issue for %ss. I'll verify compatibility with your model %s.", symptomText, applianceLabel(appliance), modelNumber),
			models.IntentTroubleshoot, models.SourceDB)
		reply.QuickReplies = []string{fmt.Sprintf("Check fit for %s", modelNumber), "Troubleshoot step-by-step"}
	}
	for _, p := range matched {
		reply.Cards = append(reply.Cards, models.NewProductCard(p))
	}
	return reply, true
}

// AnswerTroubleshootStep resumes a diagnostic flow from an echoed
// (flowID, step) pair and the user's answer. It is fully determined by its
// inputs; unknown combinations fall through to a generic next-checks reply.
func (e *Engine) AnswerTroubleshootStep(ctx context.Context, flowID string, step int, answer string, cctx *models.Context) models.Reply {
	if cctx == nil {
		cctx = &models.Context{}
	}
	normalized := strings.ToLower(strings.TrimSpace(answer))
	slog.Debug("Engine.AnswerTroubleshootStep", "flowID", flowID, "step", step, "answer", normalized)

	switch {
	case strings.Contains(flowID, "ice_maker"):
		if reply, ok := e.answerIceMakerStep(ctx, flowID, step, normalized, cctx); ok {
			return reply
		}
	case strings.Contains(flowID, "cooling"):
		if reply, ok := answerCoolingStep(flowID, step, normalized); ok {
			return reply
		}
	}

	reply := models.NewReply(
		"Based on your responses, I recommend checking these parts. Would you like me to search for specific components?",
		models.IntentTroubleshoot, models.SourceRules)
	reply.QuickReplies = []string{"Find a part", "Start over"}
	return reply
}

func (e *Engine) answerIceMakerStep(ctx context.Context, flowID string, step int, answer string, cctx *models.Context) (models.Reply, bool) {
	switch step {
	case 1:
		if answer == "no" {
			reply := models.NewReply(
				"The water supply is likely the issue. Let's check further.",
				models.IntentTroubleshoot, models.SourceRules)
			reply.Cards = append(reply.Cards, models.NewTroubleshootStepCard(models.TroubleshootStepCardData{
				FlowID:   flowID,
				Step:     2,
				Question: "Is the water filter more than 6 months old?",
				Options:  []string{"Yes", "No", "Don't know"},
			}))
			return reply, true
		}
		reply := models.NewReply(
			"Since water is available, the ice maker assembly itself may be faulty.",
			models.IntentTroubleshoot, models.SourceRules)
		reply.Cards = append(reply.Cards, models.NewTroubleshootStepCard(models.TroubleshootStepCardData{
			FlowID:   flowID,
			Step:     2,
			Question: "Is the ice maker making any noise at all?",
			Options:  yesNoOptions,
		}))
		return reply, true

	case 2:
		appliance := cctx.Appliance
		if appliance == "" {
			appliance = models.ApplianceRefrigerator
		}
		modelNumber := cctx.ModelNumber

		if answer == "yes" {
			// An old filter (or a noisy ice maker) points at the filter.
			part, err := e.store.GetPartByNumber("PS11701542")
			if err != nil || part == nil || part.ApplianceType != appliance {
				return models.Reply{}, false
			}
			e.refreshPriceStock(ctx, part)
			var reply models.Reply
			if modelNumber == "" {
				reply = models.NewReply(
					"Based on your answers, the water filter is likely clogged. To verify fit, please share your refrigerator's model number (found on a label inside the door).",
					models.IntentTroubleshoot, models.SourceDB)
				reply.QuickReplies = []string{"Share model number", "Where to find model number"}
			} else {
				reply = models.NewReply(
					fmt.Sprintf("Based on your answers, the water filter is likely clogged. Here's a replacement (I'll verify fit for %s):", modelNumber),
					models.IntentTroubleshoot, models.SourceDB)
				reply.QuickReplies = []string{fmt.Sprintf("Check fit for %s", modelNumber), "Add to cart"}
			}
			reply.Cards = append(reply.Cards, models.NewProductCard(*part))
			if modelNumber == "" {
				reply.Cards = append(reply.Cards, models.NewAskModelNumberCard(models.AskModelNumberCardData{
					PartNumber: part.PartSelectNumber,
					Prompt:     "Share your refrigerator's model number so I can confirm this filter fits.",
				}))
			}
			return reply, true
		}

		// A silent ice maker points at the assembly itself.
		parts, err := e.store.SearchPartsByName([]string{"ice maker"}, appliance, 3)
		if err != nil || len(parts) == 0 {
			return models.Reply{}, false
		}
		var reply models.Reply
		if modelNumber == "" {
			reply = models.NewReply(
				"The ice maker assembly may need replacement. Here are compatible parts. To verify fit, please share your model number.",
				models.IntentTroubleshoot, models.SourceDB)
			reply.QuickReplies = []string{"Share model number", "Where to find model number"}
		} else {
			reply = models.NewReply(
				fmt.Sprintf("The ice maker assembly may need replacement. Here are parts (I'll verify fit for %s):", modelNumber),
				models.IntentTroubleshoot, models.SourceDB)
			reply.QuickReplies = []string{fmt.Sprintf("Check compatibility for %s", modelNumber)}
		}
		for _, p := range parts {
			reply.Cards = append(reply.Cards, models.NewProductCard(p))
		}
		if modelNumber == "" {
			reply.Cards = append(reply.Cards, models.NewAskModelNumberCard(models.AskModelNumberCardData{
				Prompt: "Share your model number so I can confirm which assembly fits.",
			}))
		}
		return reply, true
	}
	return models.Reply{}, false
}

func answerCoolingStep(flowID string, step int, answer string) (models.Reply, bool) {
	switch step {
	case 1:
		if answer == "no" {
			reply := models.NewReply(
				"If the compressor isn't running, it could be a start relay or compressor issue. This usually requires a technician.",
				models.IntentTroubleshoot, models.SourceRules)
			reply.Cards = append(reply.Cards, models.NewOutOfScopeCard(models.OutOfScopeCardData{
				SupportedAppliances: supportedAppliances,
				ExampleQueries:      []string{"Compressor repairs typically require professional service."},
			}))
			reply.QuickReplies = []string{"Find a technician", "Other issues"}
			return reply, true
		}
		reply := models.NewReply(
			"The compressor is running. Let's check airflow.",
			models.IntentTroubleshoot, models.SourceRules)
		reply.Cards = append(reply.Cards, models.NewTroubleshootStepCard(models.TroubleshootStepCardData{
			FlowID:   flowID,
			Step:     2,
			Question: "Are the vents inside the fridge blocked by food?",
			Options:  yesNoOptions,
		}))
		return reply, true

	case 2:
		if answer == "yes" {
			reply := models.NewReply(
				"Clear the vents to allow proper airflow. If that doesn't help, the evaporator fan or defrost system may need attention.",
				models.IntentTroubleshoot, models.SourceRules)
			reply.QuickReplies = []string{"Find parts", "More help"}
			return reply, true
		}
	}
	return models.Reply{}, false
}
