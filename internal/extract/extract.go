// Package extract performs deterministic entity extraction over user
// utterances. All functions are pure and total: any string input yields a
// result without errors or external calls.
package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/partpilot/partpilot/internal/models"
)

// appliancePatterns maps each supported appliance to its signal phrases.
// Order matters: the first group with any match wins, so refrigerator
// signals are checked before dishwasher signals.
var appliancePatterns = []struct {
	appliance models.ApplianceType
	patterns  []*regexp.Regexp
}{
	{models.ApplianceRefrigerator, compileAll(
		`\brefrigerator\b`, `\bfridge\b`, `\bfreezer\b`,
		`\bice maker\b`, `\bwater filter\b`, `\bcrisper\b`,
		`\bdoor shelf\b`, `\bcooling\b`, `\bice\b`,
	)},
	{models.ApplianceDishwasher, compileAll(
		`\bdishwasher\b`, `\bspray arm\b`, `\brack\b`,
		`\bdetergent dispenser\b`, `\bdrain pump\b`, `\bheating element\b`,
		`\bdishes\b`, `\bwashing\b`,
	)},
}

// brandPattern matches supported brands as whole words, first match wins.
var brandPattern = regexp.MustCompile(`\b(whirlpool|ge|frigidaire|samsung|lg|kenmore|maytag|kitchenaid|bosch|amana|electrolux)\b`)

// partComponents maps canonical component names to trigger phrases, checked
// in order with the first matching component winning.
var partComponents = []struct {
	name     string
	keywords []string
}{
	{"ice maker", []string{"ice maker", "icemaker", "ice machine", "ice dispenser"}},
	{"water filter", []string{"water filter", "filter", "water filtration"}},
	{"door shelf", []string{"door shelf", "door bin", "shelf bin", "door bucket"}},
	{"crisper drawer", []string{"crisper", "crisper drawer", "vegetable drawer", "produce drawer"}},
	{"door seal", []string{"door seal", "door gasket", "gasket"}},
	{"heating element", []string{"heating element", "heater", "heat element"}},
	{"spray arm", []string{"spray arm", "wash arm", "sprayer"}},
	{"drain pump", []string{"drain pump", "pump", "drainage pump"}},
	{"motor", []string{"motor", "fan motor"}},
	{"compressor", []string{"compressor"}},
	{"thermostat", []string{"thermostat"}},
	{"defrost", []string{"defrost", "defrost timer", "defrost heater"}},
}

// symptomPatterns maps symptom names to their phrasings. Every matching
// symptom is collected, in this order, without duplicates.
var symptomPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"not working", regexp.MustCompile(`\b(not working|won't work|doesn't work|stopped working)\b`)},
	{"not cooling", regexp.MustCompile(`\b(not cooling|warm|not cold|too warm)\b`)},
	{"not making ice", regexp.MustCompile(`\b(not making ice|no ice|ice maker not working)\b`)},
	{"leaking", regexp.MustCompile(`\b(leak|leaking|dripping|water on floor)\b`)},
	{"not draining", regexp.MustCompile(`\b(not draining|won't drain|standing water|water in bottom)\b`)},
	{"not cleaning", regexp.MustCompile(`\b(not cleaning|dishes dirty|not washing|won't clean)\b`)},
	{"not drying", regexp.MustCompile(`\b(not drying|wet dishes|won't dry)\b`)},
	{"noisy", regexp.MustCompile(`\b(noisy|loud|grinding|squeaking)\b`)},
	{"not starting", regexp.MustCompile(`\b(won't start|not starting|doesn't start)\b`)},
}

var (
	partNumberPattern     = regexp.MustCompile(`(?i)\bPS(\d{6,9})\b`)
	partNumberExact       = regexp.MustCompile(`^PS\d{6,9}`)
	modelCandidatePattern = regexp.MustCompile(`(?i)\b([A-Z0-9]{5,15})\b`)
	hasDigitPattern       = regexp.MustCompile(`\d`)
	modelJunkPattern      = regexp.MustCompile(`[.\s…-]+`)
	modelCorePattern      = regexp.MustCompile(`([A-Z]{2,}[0-9]{3,}[A-Z0-9]*)`)
	completeModelPattern  = regexp.MustCompile(`^[A-Z]{2,}[0-9]{3,}[A-Z0-9]{2,}$`)
)

// modelStopWords are short all-caps tokens that look like model candidates
// but never are.
var modelStopWords = map[string]bool{
	"YES": true, "NO": true, "HELP": true, "TRUE": true, "FALSE": true, "ERROR": true,
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// Extract recognizes appliance type, brand, part component, PartSelect
// number, model number and symptoms in an utterance.
func Extract(utterance string) models.Entities {
	lower := strings.ToLower(utterance)
	var e models.Entities

	for _, group := range appliancePatterns {
		for _, p := range group.patterns {
			if p.MatchString(lower) {
				e.ApplianceType = group.appliance
				break
			}
		}
		if e.ApplianceType != "" {
			break
		}
	}

	if m := brandPattern.FindStringSubmatch(lower); m != nil {
		e.Brand = canonicalBrand(m[1])
	}

	for _, pc := range partComponents {
		for _, kw := range pc.keywords {
			if strings.Contains(lower, kw) {
				e.PartComponent = pc.name
				break
			}
		}
		if e.PartComponent != "" {
			break
		}
	}

	if m := partNumberPattern.FindStringSubmatch(utterance); m != nil {
		e.PartNumber = "PS" + m[1]
	}

	e.ModelNumber = firstModelCandidate(utterance)

	for _, sp := range symptomPatterns {
		if sp.pattern.MatchString(lower) {
			e.Symptoms = append(e.Symptoms, sp.name)
		}
	}

	slog.Debug("extract.Extract completed", "appliance", e.ApplianceType, "brand", e.Brand,
		"partNumber", e.PartNumber, "modelNumber", e.ModelNumber, "symptoms", len(e.Symptoms))
	return e
}

// firstModelCandidate returns the first token that plausibly is a model
// number: 5-15 alphanumeric chars with at least one digit, excluding stop
// words and PartSelect numbers.
func firstModelCandidate(utterance string) string {
	for _, m := range modelCandidatePattern.FindAllStringSubmatch(utterance, -1) {
		candidate := strings.ToUpper(m[1])
		if !hasDigitPattern.MatchString(candidate) {
			continue
		}
		if modelStopWords[candidate] {
			continue
		}
		if partNumberExact.MatchString(candidate) {
			continue
		}
		return candidate
	}
	return ""
}

func canonicalBrand(b string) string {
	if b == "ge" {
		return "GE"
	}
	return strings.ToUpper(b[:1]) + b[1:]
}

// NormalizeModelNumber upper-cases a model identifier and strips whitespace,
// dots, hyphens and ellipses. It is idempotent.
func NormalizeModelNumber(s string) string {
	return strings.ToUpper(modelJunkPattern.ReplaceAllString(s, ""))
}

// ModelPrefix extracts the letters-then-digits core from a normalized model
// identifier, or returns the empty string when none is present.
func ModelPrefix(s string) string {
	return modelCorePattern.FindString(NormalizeModelNumber(s))
}

// IsCompleteModelNumber reports whether a normalized identifier looks like a
// full model number rather than a truncated prefix: two or more letters,
// three or more digits, then at least two more characters.
func IsCompleteModelNumber(s string) bool {
	return completeModelPattern.MatchString(NormalizeModelNumber(s))
}

// modelPrefixAppliances maps leading model-number letters to an appliance
// category. The table is deliberately small; unknown prefixes yield no
// inference.
var modelPrefixAppliances = []struct {
	prefix    string
	appliance models.ApplianceType
}{
	{"WDT", models.ApplianceDishwasher},
	{"KDT", models.ApplianceDishwasher},
	{"MDB", models.ApplianceDishwasher},
	{"GU", models.ApplianceDishwasher},
	{"DU", models.ApplianceDishwasher},
	{"WRF", models.ApplianceRefrigerator},
	{"WRS", models.ApplianceRefrigerator},
	{"MFI", models.ApplianceRefrigerator},
	{"EDR", models.ApplianceRefrigerator},
	{"KRFF", models.ApplianceRefrigerator},
	{"GX", models.ApplianceRefrigerator},
	{"GS", models.ApplianceRefrigerator},
}

// InferApplianceFromModel guesses the appliance category from a model
// number prefix. Returns the empty appliance type when no prefix matches.
func InferApplianceFromModel(modelNumber string) models.ApplianceType {
	normalized := NormalizeModelNumber(modelNumber)
	for _, entry := range modelPrefixAppliances {
		if strings.HasPrefix(normalized, entry.prefix) {
			return entry.appliance
		}
	}
	return ""
}
