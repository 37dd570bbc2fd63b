package models

import (
	"encoding/json"
	"testing"
)

func TestIsValidIntent(t *testing.T) {
	valid := []Intent{
		IntentPartLookup, IntentCompatibilityCheck, IntentInstallHelp,
		IntentTroubleshoot, IntentReturnsPolicy, IntentCartUpdate,
		IntentCartRemove, IntentCartCheckout, IntentCartView,
		IntentOutOfScope, IntentGeneral,
	}
	for _, in := range valid {
		if !IsValidIntent(in) {
			t.Errorf("IsValidIntent(%q) = false, want true", in)
		}
	}
	for _, in := range []Intent{"", "chitchat", "PART_LOOKUP"} {
		if IsValidIntent(in) {
			t.Errorf("IsValidIntent(%q) = true, want false", in)
		}
	}
}

func TestContextMergeKeepsEstablishedValues(t *testing.T) {
	ctx := Context{Appliance: ApplianceRefrigerator, ModelNumber: "WRF535SWHZ"}

	// An utterance with no appliance or model must not clear either.
	ctx.Merge(Entities{Brand: "Whirlpool"})

	if ctx.Appliance != ApplianceRefrigerator {
		t.Errorf("Appliance = %q, want %q", ctx.Appliance, ApplianceRefrigerator)
	}
	if ctx.ModelNumber != "WRF535SWHZ" {
		t.Errorf("ModelNumber = %q, want WRF535SWHZ", ctx.ModelNumber)
	}
	if ctx.Brand != "Whirlpool" {
		t.Errorf("Brand = %q, want Whirlpool", ctx.Brand)
	}
}

func TestContextMergeOverwritesWithNewValues(t *testing.T) {
	ctx := Context{Appliance: ApplianceRefrigerator}
	ctx.Merge(Entities{ApplianceType: ApplianceDishwasher, ModelNumber: "KDTM354DSS"})

	if ctx.Appliance != ApplianceDishwasher {
		t.Errorf("Appliance = %q, want %q", ctx.Appliance, ApplianceDishwasher)
	}
	if ctx.ModelNumber != "KDTM354DSS" {
		t.Errorf("ModelNumber = %q, want KDTM354DSS", ctx.ModelNumber)
	}
}

func TestNewReplyEnvelope(t *testing.T) {
	r := NewReply("hello", IntentGeneral, SourceRules)

	if r.Version != ReplyVersion {
		t.Errorf("Version = %q, want %q", r.Version, ReplyVersion)
	}
	if r.Cards == nil || r.QuickReplies == nil {
		t.Error("Cards and QuickReplies must be non-nil so they serialize as arrays")
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, ok := decoded["cards"].([]interface{}); !ok {
		t.Error("cards did not serialize as a JSON array")
	}
}

func TestNewProductCardCarriesNilPrice(t *testing.T) {
	p := Part{PartSelectNumber: "PS11752778", Name: "Door Shelf Bin", StockStatus: StockInStock}
	card := NewProductCard(p)

	if card.Type != CardProduct {
		t.Errorf("Type = %q, want %q", card.Type, CardProduct)
	}
	data, ok := card.Data.(ProductCardData)
	if !ok {
		t.Fatalf("Data is %T, want ProductCardData", card.Data)
	}
	if data.PriceCents != nil {
		t.Error("PriceCents should stay nil when the part has no captured price")
	}
}

func TestIsValidCardType(t *testing.T) {
	for _, ct := range []CardType{CardProduct, CardCompatibility, CardTroubleshootStep, CardModelCapture, CardCheckout, CardOutOfScope, CardAskModelNumber} {
		if !IsValidCardType(ct) {
			t.Errorf("IsValidCardType(%q) = false, want true", ct)
		}
	}
	if IsValidCardType("banner") {
		t.Error("IsValidCardType(banner) = true, want false")
	}
}
