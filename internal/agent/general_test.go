package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/partpilot/partpilot/internal/models"
)

func TestHandleGeneralModelNumberLocation(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.handleGeneral(context.Background(), "where do I find my model number",
		models.Entities{}, &models.Context{})

	if !strings.Contains(reply.AssistantText, "For Refrigerators") ||
		!strings.Contains(reply.AssistantText, "For Dishwashers") {
		t.Errorf("AssistantText = %q, want location help for both appliances", reply.AssistantText)
	}
}

func TestHandleGeneralAmbiguousWithoutAppliance(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.handleGeneral(context.Background(), "I need a replacement part",
		models.Entities{}, &models.Context{})

	if !strings.Contains(reply.AssistantText, "refrigerator or dishwasher") {
		t.Errorf("AssistantText = %q, want appliance question", reply.AssistantText)
	}
}

func TestHandleGeneralAmbiguousComponent(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.handleGeneral(context.Background(), "I need a replacement shelf for my fridge",
		models.Entities{ApplianceType: models.ApplianceRefrigerator, PartComponent: "door shelf"},
		&models.Context{})

	if !strings.Contains(reply.AssistantText, "door shelf parts for your refrigerator") {
		t.Errorf("AssistantText = %q", reply.AssistantText)
	}
	if !hasQuickReply(reply, "Search door shelf parts") {
		t.Errorf("QuickReplies = %v", reply.QuickReplies)
	}
}

func TestHandleGeneralAmbiguousSymptomRoutesToTroubleshoot(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.handleGeneral(context.Background(), "my fridge is broken and too warm",
		models.Entities{ApplianceType: models.ApplianceRefrigerator, Symptoms: []string{"not cooling"}},
		&models.Context{})

	if reply.Intent != models.IntentTroubleshoot {
		t.Errorf("Intent = %q, want troubleshoot routing for symptoms", reply.Intent)
	}
}

func TestHandleGeneralFreshStartMenu(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.handleGeneral(context.Background(), "what can you do",
		models.Entities{}, &models.Context{})

	if !strings.Contains(reply.AssistantText, "find refrigerator and dishwasher parts") {
		t.Errorf("AssistantText = %q, want capability menu", reply.AssistantText)
	}
	if !hasQuickReply(reply, "Order support") {
		t.Errorf("QuickReplies = %v", reply.QuickReplies)
	}
}

func TestHandleGeneralEstablishedApplianceClarification(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.handleGeneral(context.Background(), "okay then",
		models.Entities{}, &models.Context{Appliance: models.ApplianceDishwasher})

	if !strings.Contains(reply.AssistantText, "help with your dishwasher") {
		t.Errorf("AssistantText = %q", reply.AssistantText)
	}
}
