package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/partpilot/partpilot/internal/models"
)

var ambiguousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(need|want|looking for|replace|replacement)\b`),
	regexp.MustCompile(`\b(broke|broken|damaged|cracked|not working)\b`),
	regexp.MustCompile(`\b(help|assist|support)\b`),
}

var resetPhrases = []string{"start over", "main menu", "what can you do", "hello", "hi"}

const modelNumberLocationHelp = `Your appliance's model number is typically located:

For Refrigerators:
• Inside the fresh food compartment, on the upper left or right wall
• On a label inside the door
• On the back of the unit

For Dishwashers:
• On the door frame (visible when door is open)
• On the top or side of the door panel
• Inside on the door or tub edge

The model number is usually a combination of letters and numbers, like WRF555SDFZ or WDT780SAEM1.`

// handleGeneral clarifies turns no other intent claimed. Ambiguous requests
// ("I need a replacement shelf") get steered toward an appliance, component
// or symptom; everything else gets the capability menu.
func (e *Engine) handleGeneral(ctx context.Context, utterance string, entities models.Entities, cctx *models.Context) models.Reply {
	lower := strings.ToLower(utterance)

	if strings.Contains(lower, "where") && strings.Contains(lower, "model number") {
		reply := models.NewReply(modelNumberLocationHelp, models.IntentGeneral, models.SourceRules)
		reply.QuickReplies = []string{"I have my model number", "Check compatibility"}
		return reply
	}

	ambiguous := false
	for _, pattern := range ambiguousPatterns {
		if pattern.MatchString(lower) {
			ambiguous = true
			break
		}
	}

	if ambiguous && entities.ApplianceType == "" && cctx.Appliance == "" {
		slog.Debug("Engine.handleGeneral: ambiguous request without appliance")
		reply := models.NewReply(
			"I can help with that! To find the right part, is this for a refrigerator or dishwasher?",
			models.IntentGeneral, models.SourceRules)
		reply.QuickReplies = []string{"Refrigerator", "Dishwasher", "I have a part number"}
		return reply
	}

	appliance := entities.ApplianceType
	if appliance == "" {
		appliance = cctx.Appliance
	}

	if ambiguous && appliance != "" {
		switch {
		case entities.PartComponent != "":
			slog.Debug("Engine.handleGeneral: component in ambiguous request",
				"component", entities.PartComponent, "appliance", appliance)
			reply := models.NewReply(
				fmt.Sprintf("I'll help you find %s parts for your %s. Do you have your model number? (Found on a label inside the door)",
					entities.PartComponent, applianceLabel(appliance)),
				models.IntentGeneral, models.SourceRules)
			reply.QuickReplies = []string{
				fmt.Sprintf("Search %s parts", entities.PartComponent),
				"I have my model number",
				"Where's my model number?",
			}
			return reply
		case len(entities.Symptoms) > 0:
			// A described problem is a troubleshooting request in disguise.
			return e.startTroubleshoot(ctx, utterance, entities, cctx)
		default:
			reply := models.NewReply(
				fmt.Sprintf("I can help with your %s! What specifically are you looking for?", applianceLabel(appliance)),
				models.IntentGeneral, models.SourceRules)
			reply.QuickReplies = []string{"Find a specific part", "Troubleshoot a problem", "Check compatibility"}
			return reply
		}
	}

	explicitReset := false
	for _, phrase := range resetPhrases {
		if strings.Contains(lower, phrase) {
			explicitReset = true
			break
		}
	}

	if explicitReset || (*cctx == models.Context{}) {
		reply := models.NewReply(
			"I can help you find refrigerator and dishwasher parts, check compatibility, troubleshoot issues, or assist with orders. What do you need help with?",
			models.IntentGeneral, models.SourceRules)
		reply.QuickReplies = []string{"Find a part", "Check compatibility", "Troubleshoot an issue", "Order support"}
		return reply
	}

	if appliance != "" {
		reply := models.NewReply(
			fmt.Sprintf("I'm here to help with your %s. What would you like to do?", applianceLabel(appliance)),
			models.IntentGeneral, models.SourceRules)
		reply.QuickReplies = []string{"Find a part", "Troubleshoot an issue", "Check compatibility"}
		return reply
	}

	reply := models.NewReply(
		"I didn't quite understand that. I can help you find parts, troubleshoot issues, or check compatibility for refrigerators and dishwashers.",
		models.IntentGeneral, models.SourceRules)
	reply.QuickReplies = []string{"Find a part", "Troubleshoot an issue"}
	return reply
}
