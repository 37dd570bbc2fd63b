// Package crossbrand resolves part/model fit across appliance brands that
// share a parent manufacturer. Many store brands are built by another
// maker, so a parent-brand part often fits a store-brand model.
package crossbrand

import (
	"fmt"
	"log/slog"
	"strings"
)

// Verdict is the outcome of a cross-brand check. A nil Compatible means the
// tables cannot decide either way.
type Verdict struct {
	Compatible *bool
	Reason     string
	Confidence float64
}

// prefixRule maps a leading model-number digit sequence to the actual
// manufacturer of those models.
type prefixRule struct {
	prefix       string
	manufacturer string
}

// brandMapping describes one store brand's manufacturing relationship.
type brandMapping struct {
	parent      string
	prefixRules []prefixRule
	confidence  float64
}

// brandMappings is the fixed relationship table. Kenmore is the only brand
// whose models split across manufacturers, keyed by model-number prefix.
var brandMappings = map[string]brandMapping{
	"kenmore": {
		parent: "whirlpool",
		prefixRules: []prefixRule{
			{"253", "whirlpool"}, // refrigerators
			{"596", "whirlpool"}, // refrigerators
			{"795", "lg"},        // refrigerators, LG-made
			{"665", "whirlpool"}, // dishwashers
			{"630", "whirlpool"}, // dishwashers
		},
		confidence: 0.85,
	},
	"kitchenaid": {parent: "whirlpool", confidence: 0.95},
	"maytag":     {parent: "whirlpool", confidence: 0.90},
	"amana":      {parent: "whirlpool", confidence: 0.90},
	"jenn-air":   {parent: "whirlpool", confidence: 0.95},
	"roper":      {parent: "whirlpool", confidence: 0.85},
}

func boolPtr(v bool) *bool { return &v }

// title upper-cases the first letter of a lowercase brand name.
func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Check decides whether a part from partBrand can fit a model sold under
// detectedBrand, using the parent-manufacturer table and model-number
// prefix rules.
func Check(partBrand, modelNumber, detectedBrand string) Verdict {
	if detectedBrand == "" {
		return Verdict{Reason: "No model brand detected"}
	}

	modelBrand := strings.ToLower(strings.TrimSpace(detectedBrand))
	partBrandLower := strings.ToLower(strings.TrimSpace(partBrand))

	if modelBrand == partBrandLower {
		return Verdict{
			Compatible: boolPtr(true),
			Reason:     fmt.Sprintf("Direct brand match: %s", detectedBrand),
			Confidence: 1.0,
		}
	}

	mapping, ok := brandMappings[modelBrand]
	if !ok {
		return Verdict{Reason: fmt.Sprintf("No cross-brand data for %s", detectedBrand)}
	}
	if mapping.parent != partBrandLower {
		return Verdict{Reason: fmt.Sprintf("No cross-brand relationship found between %s and %s", detectedBrand, partBrand)}
	}

	if len(mapping.prefixRules) > 0 {
		for _, rule := range mapping.prefixRules {
			if !strings.HasPrefix(modelNumber, rule.prefix) {
				continue
			}
			if rule.manufacturer == partBrandLower {
				slog.Debug("crossbrand.Check: prefix rule confirmed fit",
					"modelBrand", modelBrand, "prefix", rule.prefix, "manufacturer", rule.manufacturer)
				return Verdict{
					Compatible: boolPtr(true),
					Reason: fmt.Sprintf("Your %s model %s is manufactured by %s. This %s part should be compatible.",
						detectedBrand, modelNumber, title(partBrandLower), title(partBrandLower)),
					Confidence: mapping.confidence,
				}
			}
			return Verdict{
				Compatible: boolPtr(false),
				Reason: fmt.Sprintf("Your %s model %s appears to be manufactured by %s, not %s.",
					detectedBrand, modelNumber, title(rule.manufacturer), title(partBrandLower)),
				Confidence: mapping.confidence,
			}
		}
		return Verdict{
			Reason: fmt.Sprintf("Cannot determine if your %s model %s is compatible with %s parts. Please verify on PartSelect.",
				detectedBrand, modelNumber, title(partBrandLower)),
			Confidence: 0.3,
		}
	}

	return Verdict{
		Compatible: boolPtr(true),
		Reason: fmt.Sprintf("%s appliances are manufactured by %s. This %s part should be compatible.",
			detectedBrand, title(mapping.parent), title(partBrandLower)),
		Confidence: mapping.confidence,
	}
}

// SupportedBrands returns the store brands with cross-brand mappings.
func SupportedBrands() []string {
	out := make([]string, 0, len(brandMappings))
	for brand := range brandMappings {
		out = append(out, brand)
	}
	return out
}
