package extract

import (
	"testing"

	"github.com/partpilot/partpilot/internal/models"
)

func TestExtractPartNumber(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		want      string
	}{
		{"canonical", "Is PS11752778 compatible with my fridge?", "PS11752778"},
		{"lowercase", "how do I install ps11752778", "PS11752778"},
		{"six digits", "looking for PS123456", "PS123456"},
		{"too few digits", "looking for PS12345", ""},
		{"too many digits", "looking for PS1234567890", ""},
		{"embedded in word", "XPS11752778Y is not a part", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.utterance).PartNumber
			if got != tt.want {
				t.Errorf("Extract(%q).PartNumber = %q, want %q", tt.utterance, got, tt.want)
			}
		})
	}
}

func TestExtractApplianceType(t *testing.T) {
	tests := []struct {
		utterance string
		want      models.ApplianceType
	}{
		{"my fridge is warm", models.ApplianceRefrigerator},
		{"the ice maker stopped", models.ApplianceRefrigerator},
		{"dishwasher won't drain", models.ApplianceDishwasher},
		{"spray arm is cracked", models.ApplianceDishwasher},
		// Refrigerator signals are checked first when both appear.
		{"fridge and dishwasher", models.ApplianceRefrigerator},
		{"hello there", ""},
	}
	for _, tt := range tests {
		got := Extract(tt.utterance).ApplianceType
		if got != tt.want {
			t.Errorf("Extract(%q).ApplianceType = %q, want %q", tt.utterance, got, tt.want)
		}
	}
}

func TestExtractBrandCanonicalization(t *testing.T) {
	tests := []struct {
		utterance string
		want      string
	}{
		{"my whirlpool fridge", "Whirlpool"},
		{"a ge dishwasher", "GE"},
		{"KENMORE refrigerator", "Kenmore"},
		{"generic fridge", ""}, // "ge" inside "generic" must not match
	}
	for _, tt := range tests {
		got := Extract(tt.utterance).Brand
		if got != tt.want {
			t.Errorf("Extract(%q).Brand = %q, want %q", tt.utterance, got, tt.want)
		}
	}
}

func TestExtractModelNumber(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		want      string
	}{
		{"typical model", "will it fit WDT780SAEM1", "WDT780SAEM1"},
		{"lowercased input", "model wdt780saem1 please", "WDT780SAEM1"},
		{"no digits rejected", "HELLO WORLD", ""},
		{"stop word rejected", "ERROR on my fridge", ""},
		{"ps number rejected as model", "tell me about PS11752778", ""},
		{"model beside ps number", "does PS11752778 fit WRF535SWHZ", "WRF535SWHZ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.utterance).ModelNumber
			if got != tt.want {
				t.Errorf("Extract(%q).ModelNumber = %q, want %q", tt.utterance, got, tt.want)
			}
		})
	}
}

func TestExtractSymptomsOrderedAndDeduplicated(t *testing.T) {
	e := Extract("fridge not cooling, it's warm and leaking water on floor")
	want := []string{"not cooling", "leaking"}
	if len(e.Symptoms) != len(want) {
		t.Fatalf("Symptoms = %v, want %v", e.Symptoms, want)
	}
	for i := range want {
		if e.Symptoms[i] != want[i] {
			t.Errorf("Symptoms[%d] = %q, want %q", i, e.Symptoms[i], want[i])
		}
	}
}

func TestExtractPartComponentFirstMatchWins(t *testing.T) {
	// "filter" alone maps to water filter; "ice maker" is checked first.
	if got := Extract("ice maker and water filter").PartComponent; got != "ice maker" {
		t.Errorf("PartComponent = %q, want ice maker", got)
	}
	if got := Extract("need a new filter").PartComponent; got != "water filter" {
		t.Errorf("PartComponent = %q, want water filter", got)
	}
}

func TestNormalizeModelNumberIdempotent(t *testing.T) {
	inputs := []string{"wdt 780-saem1", "WDT780SAEM1", "wdt780…saem1", " wdt780saem1 "}
	for _, in := range inputs {
		once := NormalizeModelNumber(in)
		twice := NormalizeModelNumber(once)
		if once != twice {
			t.Errorf("NormalizeModelNumber not idempotent for %q: %q != %q", in, once, twice)
		}
	}
	if got := NormalizeModelNumber("wdt 780-saem1"); got != "WDT780SAEM1" {
		t.Errorf("NormalizeModelNumber = %q, want WDT780SAEM1", got)
	}
}

func TestIsCompleteModelNumber(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"WDT780SAEM1", true},
		{"WRF535SWHZ", true},
		{"WDT780", false},  // truncated, no suffix
		{"W1234567", false}, // single leading letter
		{"", false},
	}
	for _, tt := range tests {
		if got := IsCompleteModelNumber(tt.in); got != tt.want {
			t.Errorf("IsCompleteModelNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInferApplianceFromModel(t *testing.T) {
	tests := []struct {
		model string
		want  models.ApplianceType
	}{
		{"WDT780SAEM1", models.ApplianceDishwasher},
		{"KDTM354DSS", models.ApplianceDishwasher},
		{"WRF535SWHZ", models.ApplianceRefrigerator},
		{"EDR1RXD1", models.ApplianceRefrigerator},
		{"ZZZ123456", ""},
	}
	for _, tt := range tests {
		if got := InferApplianceFromModel(tt.model); got != tt.want {
			t.Errorf("InferApplianceFromModel(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}
