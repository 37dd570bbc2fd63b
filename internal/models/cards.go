package models

import "fmt"

// CardType identifies the kind of structured card attached to a reply.
type CardType string

const (
	// CardProduct presents one part with price and availability.
	CardProduct CardType = "product"
	// CardCompatibility presents a part/model fit verdict.
	CardCompatibility CardType = "compatibility"
	// CardTroubleshootStep presents one resumable diagnostic question.
	CardTroubleshootStep CardType = "troubleshoot_step"
	// CardModelCapture asks the user to supply or confirm a model number.
	CardModelCapture CardType = "model_capture"
	// CardCheckout presents an order summary with a checkout link.
	CardCheckout CardType = "checkout"
	// CardOutOfScope explains that a request is outside the supported domain.
	CardOutOfScope CardType = "out_of_scope"
	// CardAskModelNumber requests a model number before recommending a part.
	CardAskModelNumber CardType = "ask_model_number"
)

// IsValidCardType checks if the given card type is supported.
func IsValidCardType(ct CardType) bool {
	switch ct {
	case CardProduct, CardCompatibility, CardTroubleshootStep,
		CardModelCapture, CardCheckout, CardOutOfScope, CardAskModelNumber:
		return true
	default:
		return false
	}
}

// Card is a typed reply attachment. Data holds the payload struct matching
// Type, so consumers can switch on Type and assert the concrete payload.
type Card struct {
	Type CardType    `json:"type"`
	ID   string      `json:"id"`
	Data interface{} `json:"data"`
}

// ProductCardData is the payload for CardProduct.
type ProductCardData struct {
	PartNumber  string      `json:"partselect_number"`
	Name        string      `json:"name"`
	Brand       string      `json:"brand,omitempty"`
	PriceCents  *int        `json:"price_cents,omitempty"`
	StockStatus StockStatus `json:"stock_status,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	ProductURL  string      `json:"product_url,omitempty"`
	Rating      *float64    `json:"rating,omitempty"`
	ReviewCount int         `json:"review_count,omitempty"`
}

// CompatibilityCardData is the payload for CardCompatibility.
type CompatibilityCardData struct {
	PartNumber  string              `json:"part_number"`
	ModelNumber string              `json:"model_number"`
	Status      CompatibilityStatus `json:"status"`
	Confidence  Confidence          `json:"confidence"`
	Reason      string              `json:"reason,omitempty"`
	EvidenceURL string              `json:"evidence_url,omitempty"`
	VerifyURL   string              `json:"verify_url,omitempty"`
	Alternates  []string            `json:"alternates,omitempty"`
}

// TroubleshootStepCardData is the payload for CardTroubleshootStep. FlowID
// and Step are the resume token a caller echoes back with the answer.
type TroubleshootStepCardData struct {
	FlowID   string   `json:"flow_id"`
	Step     int      `json:"step"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	// RecommendedParts seeds the parts the flow may surface at its end.
	RecommendedParts []string `json:"recommended_parts,omitempty"`
}

// ModelCaptureCardData is the payload for CardModelCapture.
type ModelCaptureCardData struct {
	Prompt      string   `json:"prompt"`
	Partial     string   `json:"partial,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// CheckoutCardData is the payload for CardCheckout.
type CheckoutCardData struct {
	Items       int    `json:"items"`
	TotalCents  int    `json:"total_cents"`
	CheckoutURL string `json:"checkout_url"`
}

// OutOfScopeCardData is the payload for CardOutOfScope.
type OutOfScopeCardData struct {
	DetectedAppliance   string   `json:"detected_appliance,omitempty"`
	SupportedAppliances []string `json:"supported_appliances"`
	ExampleQueries      []string `json:"example_queries,omitempty"`
}

// AskModelNumberCardData is the payload for CardAskModelNumber.
type AskModelNumberCardData struct {
	PartNumber string `json:"part_number,omitempty"`
	Prompt     string `json:"prompt"`
}

// NewProductCard builds a product card from a catalog part.
func NewProductCard(p Part) Card {
	return Card{
		Type: CardProduct,
		ID:   "product_" + p.PartSelectNumber,
		Data: ProductCardData{
			PartNumber:  p.PartSelectNumber,
			Name:        p.Name,
			Brand:       p.Brand,
			PriceCents:  p.PriceCents,
			StockStatus: p.StockStatus,
			ImageURL:    p.ImageURL,
			ProductURL:  p.ProductURL,
			Rating:      p.Rating,
			ReviewCount: p.ReviewCount,
		},
	}
}

// NewCompatibilityCard builds a compatibility verdict card.
func NewCompatibilityCard(data CompatibilityCardData) Card {
	return Card{
		Type: CardCompatibility,
		ID:   "compat_" + data.PartNumber + "_" + data.ModelNumber,
		Data: data,
	}
}

// NewTroubleshootStepCard builds a diagnostic step card. The card ID carries
// the flow and step so a caller can echo them back with the user's answer.
func NewTroubleshootStepCard(data TroubleshootStepCardData) Card {
	return Card{
		Type: CardTroubleshootStep,
		ID:   fmt.Sprintf("ts_%s_%d", data.FlowID, data.Step),
		Data: data,
	}
}

// NewModelCaptureCard builds a model capture card.
func NewModelCaptureCard(data ModelCaptureCardData) Card {
	return Card{Type: CardModelCapture, ID: "model_capture", Data: data}
}

// NewCheckoutCard builds a checkout summary card.
func NewCheckoutCard(data CheckoutCardData) Card {
	return Card{Type: CardCheckout, ID: "checkout_ready", Data: data}
}

// NewOutOfScopeCard builds an out-of-scope explanation card.
func NewOutOfScopeCard(data OutOfScopeCardData) Card {
	return Card{Type: CardOutOfScope, ID: "out_of_scope", Data: data}
}

// NewAskModelNumberCard builds a model number request card.
func NewAskModelNumberCard(data AskModelNumberCardData) Card {
	return Card{Type: CardAskModelNumber, ID: "ask_model_number", Data: data}
}
