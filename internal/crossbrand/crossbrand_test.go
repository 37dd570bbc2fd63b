package crossbrand

import (
	"strings"
	"testing"
)

func TestCheckDirectBrandMatch(t *testing.T) {
	v := Check("Whirlpool", "WDT780SAEM1", "whirlpool")
	if v.Compatible == nil || !*v.Compatible {
		t.Fatalf("direct match verdict = %+v, want compatible", v)
	}
	if v.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", v.Confidence)
	}
}

func TestCheckKenmorePrefixFits(t *testing.T) {
	v := Check("Whirlpool", "66513402K900", "kenmore")
	if v.Compatible == nil || !*v.Compatible {
		t.Fatalf("665-prefix Kenmore verdict = %+v, want compatible", v)
	}
	if v.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", v.Confidence)
	}
	if !strings.Contains(v.Reason, "Whirlpool") {
		t.Errorf("Reason = %q, want manufacturer named", v.Reason)
	}
}

func TestCheckKenmoreLGPrefixRejectsWhirlpoolPart(t *testing.T) {
	v := Check("Whirlpool", "79571053010", "kenmore")
	if v.Compatible == nil || *v.Compatible {
		t.Fatalf("795-prefix Kenmore verdict = %+v, want not compatible", v)
	}
	if !strings.Contains(v.Reason, "Lg") && !strings.Contains(v.Reason, "LG") {
		t.Errorf("Reason = %q, want LG named as manufacturer", v.Reason)
	}
}

func TestCheckKenmoreUnknownPrefixInconclusive(t *testing.T) {
	v := Check("Whirlpool", "11021302011", "kenmore")
	if v.Compatible != nil {
		t.Fatalf("unmatched-prefix verdict = %+v, want inconclusive", v)
	}
	if v.Confidence != 0.3 {
		t.Errorf("Confidence = %v, want 0.3", v.Confidence)
	}
}

func TestCheckParentBrandWithoutPrefixRules(t *testing.T) {
	v := Check("Whirlpool", "KDTM354DSS", "kitchenaid")
	if v.Compatible == nil || !*v.Compatible {
		t.Fatalf("KitchenAid verdict = %+v, want compatible", v)
	}
	if v.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want 0.95", v.Confidence)
	}
}

func TestCheckUnknownBrand(t *testing.T) {
	v := Check("Whirlpool", "RF28R7351SG", "samsung")
	if v.Compatible != nil {
		t.Fatalf("unknown-brand verdict = %+v, want undecided", v)
	}
	if v.Confidence != 0.0 {
		t.Errorf("Confidence = %v, want 0.0", v.Confidence)
	}
}

func TestCheckUnrelatedParentBrand(t *testing.T) {
	v := Check("GE", "KDTM354DSS", "kitchenaid")
	if v.Compatible != nil {
		t.Fatalf("unrelated-parent verdict = %+v, want undecided", v)
	}
	if !strings.Contains(v.Reason, "No cross-brand relationship") {
		t.Errorf("Reason = %q, want relationship miss explained", v.Reason)
	}
}

func TestSupportedBrands(t *testing.T) {
	brands := SupportedBrands()
	if len(brands) != 6 {
		t.Fatalf("SupportedBrands = %v, want 6 entries", brands)
	}
	var hasKenmore bool
	for _, b := range brands {
		if b == "kenmore" {
			hasKenmore = true
		}
	}
	if !hasKenmore {
		t.Error("SupportedBrands missing kenmore")
	}
}
