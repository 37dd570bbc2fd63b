package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/partpilot/partpilot/internal/models"
)

var supportedAppliances = []string{
	string(models.ApplianceRefrigerator),
	string(models.ApplianceDishwasher),
}

// outOfScopeExampleQueries shows callers what the assistant can do.
var outOfScopeExampleQueries = []string{
	"The ice maker on my Whirlpool fridge is not working",
	"Is PS11752778 compatible with WDT780SAEM1?",
	"How can I install part PS11752778?",
}

// ProcessTurn runs one full dialogue turn: extraction, classification,
// guardrails, context merge and dispatch. It never fails outward; panics
// and resolver errors become a generic retry reply.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, utterance string, cctx *models.Context) (reply models.Reply) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Engine.ProcessTurn: recovered from panic", "panic", r, "sessionID", sessionID)
			reply = models.NewReply(
				"Sorry, something went wrong on my end. Please try again.",
				models.IntentGeneral, models.SourceRules)
			reply.QuickReplies = []string{"Find a part", "Troubleshoot an issue"}
		}
	}()

	if cctx == nil {
		cctx = &models.Context{}
	}

	detected, entities := e.classifier.Detect(ctx, utterance)
	slog.Debug("Engine.ProcessTurn: classified", "sessionID", sessionID, "intent", detected,
		"appliance", entities.ApplianceType, "partNumber", entities.PartNumber, "modelNumber", entities.ModelNumber)

	if detected == models.IntentOutOfScope {
		return e.handleOutOfScope(entities)
	}

	// Appliance recovery: a session that already established its appliance
	// keeps it even when the current turn never names one.
	if entities.ApplianceType == "" && cctx.Appliance == "" && sessionID != "" {
		session, err := e.store.GetSession(sessionID)
		if err != nil {
			slog.Error("Engine.ProcessTurn: session read failed", "error", err, "sessionID", sessionID)
		} else if session != nil && session.ApplianceType != "" {
			entities.ApplianceType = session.ApplianceType
			slog.Debug("Engine.ProcessTurn: recovered appliance from session",
				"sessionID", sessionID, "appliance", session.ApplianceType)
		}
	}

	cctx.Merge(entities)

	// Persist newly established appliance/model so later turns can recover
	// them. Write failures degrade to in-context state only.
	if sessionID != "" && (entities.ApplianceType != "" || entities.ModelNumber != "") {
		e.persistSessionContext(sessionID, cctx)
	}

	switch detected {
	case models.IntentPartLookup:
		return e.handlePartLookup(ctx, sessionID, utterance, entities, cctx)
	case models.IntentCompatibilityCheck:
		return e.resolveCompatibility(ctx, sessionID, entities, cctx)
	case models.IntentInstallHelp:
		return e.resolveInstall(ctx, sessionID, entities)
	case models.IntentTroubleshoot:
		return e.startTroubleshoot(ctx, utterance, entities, cctx)
	case models.IntentReturnsPolicy:
		return e.handleReturnsPolicy()
	case models.IntentCartUpdate, models.IntentCartRemove, models.IntentCartCheckout, models.IntentCartView:
		return e.handleCartOperation(detected, utterance, entities, cctx)
	default:
		return e.handleGeneral(ctx, utterance, entities, cctx)
	}
}

func (e *Engine) persistSessionContext(sessionID string, cctx *models.Context) {
	session, err := e.store.GetSession(sessionID)
	if err != nil {
		slog.Error("Engine.persistSessionContext: session read failed", "error", err, "sessionID", sessionID)
		return
	}
	if session == nil {
		session = &models.ChatSession{ID: sessionID}
	}
	if cctx.Appliance != "" {
		session.ApplianceType = cctx.Appliance
	}
	if cctx.ModelNumber != "" {
		session.ModelNumber = cctx.ModelNumber
	}
	if err := e.store.SaveSession(*session); err != nil {
		slog.Error("Engine.persistSessionContext: session write failed", "error", err, "sessionID", sessionID)
	}
}

// handleOutOfScope rejects requests about unsupported appliances, naming the
// detected appliance when extraction surfaced one.
func (e *Engine) handleOutOfScope(entities models.Entities) models.Reply {
	text := "I'm focused on refrigerator and dishwasher parts right now."
	if entities.DetectedAppliance != "" {
		text = "I'm focused on refrigerator and dishwasher parts right now. " +
			"I can't help with " + entities.DetectedAppliance + " parts or issues."
	}

	reply := models.NewReply(text, models.IntentOutOfScope, models.SourceRules)
	reply.Cards = append(reply.Cards, models.NewOutOfScopeCard(models.OutOfScopeCardData{
		DetectedAppliance:   entities.DetectedAppliance,
		SupportedAppliances: supportedAppliances,
		ExampleQueries:      outOfScopeExampleQueries,
	}))
	reply.QuickReplies = []string{"Find refrigerator parts", "Find dishwasher parts", "Troubleshoot issue"}
	return reply
}

// applianceLabel renders the appliance type for user-facing text.
func applianceLabel(a models.ApplianceType) string {
	return strings.ReplaceAll(string(a), "_", " ")
}
