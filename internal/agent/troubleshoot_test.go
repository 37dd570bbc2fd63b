package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/partpilot/partpilot/internal/models"
)

func TestStartTroubleshootAsksForAppliance(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.startTroubleshoot(context.Background(), "it stopped working", models.Entities{}, &models.Context{})

	if !strings.Contains(reply.AssistantText, "refrigerator or dishwasher") {
		t.Errorf("AssistantText = %q, want appliance question", reply.AssistantText)
	}
	if !hasQuickReply(reply, "Refrigerator") || !hasQuickReply(reply, "Dishwasher") {
		t.Errorf("QuickReplies = %v, want both appliances", reply.QuickReplies)
	}
}

func TestStartTroubleshootBareApplianceShowsIssueMenu(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.startTroubleshoot(context.Background(), "refrigerator",
		models.Entities{ApplianceType: models.ApplianceRefrigerator}, &models.Context{})

	if !strings.Contains(reply.AssistantText, "What issue") {
		t.Errorf("AssistantText = %q, want issue menu", reply.AssistantText)
	}
	if !hasQuickReply(reply, "Ice maker not working") {
		t.Errorf("QuickReplies = %v, want refrigerator issues", reply.QuickReplies)
	}

	reply = e.startTroubleshoot(context.Background(), "dishwasher",
		models.Entities{ApplianceType: models.ApplianceDishwasher}, &models.Context{})
	if !hasQuickReply(reply, "Not draining") {
		t.Errorf("QuickReplies = %v, want dishwasher issues", reply.QuickReplies)
	}
}

func TestStartTroubleshootMatchesSymptomFlow(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.startTroubleshoot(context.Background(), "the ice maker in my fridge quit",
		models.Entities{ApplianceType: models.ApplianceRefrigerator}, &models.Context{})

	data := stepCardData(t, reply)
	if data.FlowID != "ice_maker_flow" {
		t.Fatalf("FlowID = %q, want ice_maker_flow", data.FlowID)
	}
	if data.Step != 1 {
		t.Errorf("Step = %d, want 1", data.Step)
	}
	if data.Question != "Is the ice maker receiving water?" {
		t.Errorf("Question = %q", data.Question)
	}
	if len(data.RecommendedParts) == 0 {
		t.Error("flow card must seed recommended parts")
	}
}

func TestStartTroubleshootGenericFlowFallback(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.startTroubleshoot(context.Background(), "something seems off with my fridge lately",
		models.Entities{ApplianceType: models.ApplianceRefrigerator}, &models.Context{})

	data := stepCardData(t, reply)
	if data.FlowID != "generic_power" {
		t.Fatalf("FlowID = %q, want generic_power", data.FlowID)
	}
	if data.Question != "Is the appliance receiving power?" {
		t.Errorf("Question = %q", data.Question)
	}
}

func TestStartTroubleshootLLMTriageCardsFilteredByAppliance(t *testing.T) {
	llm := &fakeLLM{
		generateFn: func(_, _ string) (string, error) {
			// PSPS11701542 exercises the doubled-prefix cleanup; the drain
			// pump is a dishwasher part and must be dropped.
			return "Check the filter first. Replace PSPS11701542 or PS429868 if needed.", nil
		},
	}
	e, st := newTestEngine(t, WithLLM(llm))
	seedPart(t, st, models.Part{
		PartSelectNumber: "PS11701542",
		Name:             "Water Filter",
		ApplianceType:    models.ApplianceRefrigerator,
		CommonSymptoms:   []string{"not making ice"},
	})
	seedPart(t, st, models.Part{
		PartSelectNumber: "PS429868",
		Name:             "Drain Pump",
		ApplianceType:    models.ApplianceDishwasher,
	})

	reply := e.startTroubleshoot(context.Background(), "my fridge is not making ice",
		models.Entities{ApplianceType: models.ApplianceRefrigerator, Symptoms: []string{"not making ice"}},
		&models.Context{})

	if reply.Source != models.SourceScraperLLM {
		t.Fatalf("Source = %q, want scraper+llm", reply.Source)
	}
	if strings.Contains(reply.AssistantText, "PSPS") {
		t.Errorf("doubled prefix must be cleaned, got %q", reply.AssistantText)
	}
	if len(reply.Cards) != 1 {
		t.Fatalf("Cards = %d, want only the refrigerator part", len(reply.Cards))
	}
	data, ok := reply.Cards[0].Data.(models.ProductCardData)
	if !ok {
		t.Fatalf("card data = %T, want ProductCardData", reply.Cards[0].Data)
	}
	if data.PartNumber != "PS11701542" {
		t.Errorf("PartNumber = %q, want PS11701542", data.PartNumber)
	}
}

func TestStartTroubleshootSymptomSearchAsksForModel(t *testing.T) {
	e, st := newTestEngine(t)
	seedPart(t, st, models.Part{
		PartSelectNumber: "PS12364199",
		Name:             "Evaporator Fan Motor",
		ApplianceType:    models.ApplianceRefrigerator,
		CommonSymptoms:   []string{"not cooling"},
	})

	reply := e.startTroubleshoot(context.Background(), "my fridge is too warm inside",
		models.Entities{ApplianceType: models.ApplianceRefrigerator, Symptoms: []string{"not cooling"}},
		&models.Context{})

	if len(reply.Cards) == 0 {
		t.Fatal("expected part cards from symptom search")
	}
	if !hasQuickReply(reply, "Share model number") {
		t.Errorf("QuickReplies = %v, want model request without a known model", reply.QuickReplies)
	}
}

func TestAnswerIceMakerStepOne(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.AnswerTroubleshootStep(context.Background(), "ice_maker_flow", 1, "No", &models.Context{})
	data := stepCardData(t, reply)
	if data.Step != 2 {
		t.Fatalf("Step = %d, want 2", data.Step)
	}
	if data.Question != "Is the water filter more than 6 months old?" {
		t.Errorf("Question = %q", data.Question)
	}

	reply = e.AnswerTroubleshootStep(context.Background(), "ice_maker_flow", 1, "Yes", &models.Context{})
	data = stepCardData(t, reply)
	if data.Question != "Is the ice maker making any noise at all?" {
		t.Errorf("Question = %q", data.Question)
	}
}

func TestAnswerIceMakerStepTwoRecommendsFilter(t *testing.T) {
	e, st := newTestEngine(t)
	seedPart(t, st, models.Part{
		PartSelectNumber: "PS11701542",
		Name:             "Water Filter",
		ApplianceType:    models.ApplianceRefrigerator,
	})

	reply := e.AnswerTroubleshootStep(context.Background(), "ice_maker_flow", 2, "Yes", &models.Context{})

	if !strings.Contains(reply.AssistantText, "water filter is likely clogged") {
		t.Errorf("AssistantText = %q", reply.AssistantText)
	}
	if !hasQuickReply(reply, "Share model number") {
		t.Errorf("QuickReplies = %v, want model request", reply.QuickReplies)
	}
	if len(reply.Cards) != 2 {
		t.Fatalf("Cards = %d, want the filter card and the model request card", len(reply.Cards))
	}
	ask, ok := reply.Cards[1].Data.(models.AskModelNumberCardData)
	if !ok {
		t.Fatalf("card data = %T, want AskModelNumberCardData", reply.Cards[1].Data)
	}
	if reply.Cards[1].Type != models.CardAskModelNumber {
		t.Errorf("card type = %q, want ask_model_number", reply.Cards[1].Type)
	}
	if ask.PartNumber != "PS11701542" {
		t.Errorf("PartNumber = %q, want the recommended filter", ask.PartNumber)
	}
}

func TestAnswerIceMakerStepTwoSilentAsksForModel(t *testing.T) {
	e, st := newTestEngine(t)
	seedPart(t, st, models.Part{
		PartSelectNumber: "PS11752778",
		Name:             "Ice Maker Assembly",
		ApplianceType:    models.ApplianceRefrigerator,
	})

	reply := e.AnswerTroubleshootStep(context.Background(), "ice_maker_flow", 2, "No", &models.Context{})

	if len(reply.Cards) < 2 {
		t.Fatalf("Cards = %d, want assembly cards plus a model request card", len(reply.Cards))
	}
	last := reply.Cards[len(reply.Cards)-1]
	if last.Type != models.CardAskModelNumber {
		t.Errorf("last card type = %q, want ask_model_number", last.Type)
	}
}

func TestAnswerIceMakerStepTwoWithModelOffersFitCheck(t *testing.T) {
	e, st := newTestEngine(t)
	seedPart(t, st, models.Part{
		PartSelectNumber: "PS11701542",
		Name:             "Water Filter",
		ApplianceType:    models.ApplianceRefrigerator,
	})

	reply := e.AnswerTroubleshootStep(context.Background(), "ice_maker_flow", 2, "Yes",
		&models.Context{Appliance: models.ApplianceRefrigerator, ModelNumber: "WRF535SWHZ"})

	if !strings.Contains(reply.AssistantText, "WRF535SWHZ") {
		t.Errorf("AssistantText = %q, want the model named", reply.AssistantText)
	}
	if !hasQuickReply(reply, "Check fit for WRF535SWHZ") {
		t.Errorf("QuickReplies = %v, want fit check", reply.QuickReplies)
	}
	for _, card := range reply.Cards {
		if card.Type == models.CardAskModelNumber {
			t.Error("model is already known, must not ask for it")
		}
	}
}

func TestAnswerCoolingStepOneNoEscalates(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.AnswerTroubleshootStep(context.Background(), "cooling_flow", 1, "no", &models.Context{})

	if !strings.Contains(reply.AssistantText, "technician") {
		t.Errorf("AssistantText = %q, want technician escalation", reply.AssistantText)
	}
	if !hasQuickReply(reply, "Find a technician") {
		t.Errorf("QuickReplies = %v", reply.QuickReplies)
	}
}

func TestAnswerUnknownFlowFallsBack(t *testing.T) {
	e, _ := newTestEngine(t)

	reply := e.AnswerTroubleshootStep(context.Background(), "generic_power", 3, "maybe", nil)

	if !strings.Contains(reply.AssistantText, "recommend checking") {
		t.Errorf("AssistantText = %q, want generic fallback", reply.AssistantText)
	}
	if !hasQuickReply(reply, "Start over") {
		t.Errorf("QuickReplies = %v", reply.QuickReplies)
	}
}
