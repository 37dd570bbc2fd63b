// Package models defines the core data structures for PartPilot.
//
// It includes the intent taxonomy, extracted-entity and conversation-context
// types, catalog records, and the reply envelope shared across modules.
package models

import (
	"errors"
	"time"
)

// Intent identifies what a user turn is asking the assistant to do.
type Intent string

const (
	// IntentPartLookup asks for a specific part by number or description.
	IntentPartLookup Intent = "part_lookup"
	// IntentCompatibilityCheck asks whether a part fits a model.
	IntentCompatibilityCheck Intent = "compatibility_check"
	// IntentInstallHelp asks how to install a part.
	IntentInstallHelp Intent = "install_help"
	// IntentTroubleshoot reports a symptom and asks for a diagnosis.
	IntentTroubleshoot Intent = "troubleshoot"
	// IntentReturnsPolicy asks about returns or refunds.
	IntentReturnsPolicy Intent = "returns_policy"
	// IntentCartUpdate changes the quantity of a cart item.
	IntentCartUpdate Intent = "cart_update"
	// IntentCartRemove removes an item from the cart.
	IntentCartRemove Intent = "cart_remove"
	// IntentCartCheckout starts checkout.
	IntentCartCheckout Intent = "cart_checkout"
	// IntentCartView shows the cart contents.
	IntentCartView Intent = "cart_view"
	// IntentOutOfScope is a request about an unsupported appliance or topic.
	IntentOutOfScope Intent = "out_of_scope"
	// IntentGeneral is an in-scope turn with no sharper classification.
	IntentGeneral Intent = "general"
)

// IsValidIntent checks if the given intent is part of the closed set.
func IsValidIntent(i Intent) bool {
	switch i {
	case IntentPartLookup, IntentCompatibilityCheck, IntentInstallHelp,
		IntentTroubleshoot, IntentReturnsPolicy, IntentCartUpdate,
		IntentCartRemove, IntentCartCheckout, IntentCartView,
		IntentOutOfScope, IntentGeneral:
		return true
	default:
		return false
	}
}

// ApplianceType identifies a supported appliance category.
type ApplianceType string

const (
	// ApplianceRefrigerator covers refrigerators and fridges.
	ApplianceRefrigerator ApplianceType = "refrigerator"
	// ApplianceDishwasher covers dishwashers.
	ApplianceDishwasher ApplianceType = "dishwasher"
)

// IsValidApplianceType checks if the given appliance type is supported.
func IsValidApplianceType(a ApplianceType) bool {
	switch a {
	case ApplianceRefrigerator, ApplianceDishwasher:
		return true
	default:
		return false
	}
}

// StockStatus represents the availability of a part.
type StockStatus string

const (
	// StockInStock indicates the part ships now.
	StockInStock StockStatus = "in_stock"
	// StockOutOfStock indicates the part cannot be ordered.
	StockOutOfStock StockStatus = "out_of_stock"
	// StockBackorder indicates the part ships later.
	StockBackorder StockStatus = "backorder"
	// StockUnknown indicates availability has not been determined.
	StockUnknown StockStatus = "unknown"
)

// Source labels which subsystems produced a reply.
type Source string

const (
	// SourceDB means the reply came from stored catalog data.
	SourceDB Source = "db"
	// SourceScraperLLM means the reply used live page data plus the LLM.
	SourceScraperLLM Source = "scraper+llm"
	// SourceRules means the reply came from fixed rule tables.
	SourceRules Source = "rules"
	// SourceMixed means multiple subsystems contributed.
	SourceMixed Source = "mixed"
)

// CompatibilityStatus is the outcome of a part/model compatibility check.
type CompatibilityStatus string

const (
	// CompatibilityFits means the part is confirmed to fit the model.
	CompatibilityFits CompatibilityStatus = "fits"
	// CompatibilityDoesNotFit means the part is confirmed not to fit.
	CompatibilityDoesNotFit CompatibilityStatus = "does_not_fit"
	// CompatibilityNeedInfo means no confirmation either way was reached.
	CompatibilityNeedInfo CompatibilityStatus = "need_info"
)

// Confidence grades how strong a compatibility verdict is.
type Confidence string

const (
	ConfidenceExact   Confidence = "exact"
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceUnknown Confidence = "unknown"
)

// Message roles for persisted chat history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ReplyVersion is the reply envelope schema version.
const ReplyVersion = "1.1"

// Error variables for better error handling and testability
var (
	ErrEmptyUtterance   = errors.New("utterance cannot be empty")
	ErrEmptySessionID   = errors.New("session_id cannot be empty")
	ErrEmptyPartNumber  = errors.New("part number cannot be empty")
	ErrEmptyModelNumber = errors.New("model number cannot be empty")
	ErrInvalidIntent    = errors.New("invalid intent")
)

// Entities holds everything the extractor recognized in one utterance.
type Entities struct {
	ApplianceType ApplianceType `json:"appliance_type,omitempty"`
	Brand         string        `json:"brand,omitempty"`
	PartNumber    string        `json:"part_number,omitempty"`
	ModelNumber   string        `json:"model_number,omitempty"`
	PartComponent string        `json:"part_component,omitempty"`
	// DetectedAppliance names an unsupported appliance that triggered the
	// out-of-scope gate, e.g. "oven".
	DetectedAppliance string   `json:"detected_appliance,omitempty"`
	Symptoms          []string `json:"symptoms,omitempty"`
}

// Context carries conversation state across turns. All fields are optional;
// absent values are empty strings.
type Context struct {
	Appliance     ApplianceType `json:"appliance,omitempty"`
	Brand         string        `json:"brand,omitempty"`
	ModelNumber   string        `json:"model_number,omitempty"`
	CartID        string        `json:"cart_id,omitempty"`
	LastAddedPart string        `json:"last_added_part,omitempty"`
}

// Merge folds newly extracted entities into the context. Only non-empty
// values are applied, so an utterance that omits the appliance never clears
// a previously established one.
func (c *Context) Merge(e Entities) {
	if e.ApplianceType != "" {
		c.Appliance = e.ApplianceType
	}
	if e.Brand != "" {
		c.Brand = e.Brand
	}
	if e.ModelNumber != "" {
		c.ModelNumber = e.ModelNumber
	}
}

// Part is a catalog part record. Price is integer cents; a nil PriceCents
// means the price has not been captured yet.
type Part struct {
	ID                     string        `json:"id,omitempty"`
	ApplianceType          ApplianceType `json:"appliance_type"`
	PartSelectNumber       string        `json:"partselect_number"`
	ManufacturerNumber     string        `json:"manufacturer_number,omitempty"`
	Name                   string        `json:"name"`
	Brand                  string        `json:"brand,omitempty"`
	PriceCents             *int          `json:"price_cents,omitempty"`
	StockStatus            StockStatus   `json:"stock_status,omitempty"`
	ImageURL               string        `json:"image_url,omitempty"`
	ProductURL             string        `json:"product_url,omitempty"`
	Description            string        `json:"description,omitempty"`
	Rating                 *float64      `json:"rating,omitempty"`
	ReviewCount            int           `json:"review_count,omitempty"`
	HasInstallInstructions bool          `json:"has_install_instructions,omitempty"`
	InstallLinks           []string      `json:"install_links,omitempty"`
	InstallSummary         string        `json:"install_summary,omitempty"`
	CommonSymptoms         []string      `json:"common_symptoms,omitempty"`
	CreatedAt              time.Time     `json:"created_at,omitempty"`
	UpdatedAt              time.Time     `json:"updated_at,omitempty"`
}

// Model is an appliance model record.
type Model struct {
	ID            string        `json:"id,omitempty"`
	ApplianceType ApplianceType `json:"appliance_type"`
	ModelNumber   string        `json:"model_number"`
	Brand         string        `json:"brand,omitempty"`
	ModelURL      string        `json:"model_url,omitempty"`
	CreatedAt     time.Time     `json:"created_at,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at,omitempty"`
}

// CompatibilityRecord is a stored part/model fit confirmation with its
// provenance.
type CompatibilityRecord struct {
	PartNumber      string     `json:"part_number"`
	ModelNumber     string     `json:"model_number"`
	Confidence      Confidence `json:"confidence"`
	EvidenceURL     string     `json:"evidence_url,omitempty"`
	EvidenceSnippet string     `json:"evidence_snippet,omitempty"`
	CheckedAt       time.Time  `json:"checked_at,omitempty"`
}

// ChatSession is one conversation, carrying the appliance and model the
// user has established.
type ChatSession struct {
	ID            string        `json:"id"`
	ApplianceType ApplianceType `json:"appliance_type,omitempty"`
	ModelNumber   string        `json:"model_number,omitempty"`
	CreatedAt     time.Time     `json:"created_at,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at,omitempty"`
}

// ChatMessage is one persisted turn of a conversation.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// CartItem is one row of a shopping cart.
type CartItem struct {
	CartID     string    `json:"cart_id"`
	PartNumber string    `json:"partselect_number"`
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Reply is the versioned envelope every turn produces.
type Reply struct {
	Version       string   `json:"version"`
	AssistantText string   `json:"assistant_text"`
	Intent        Intent   `json:"intent,omitempty"`
	Source        Source   `json:"source,omitempty"`
	Cards         []Card   `json:"cards"`
	QuickReplies  []string `json:"quick_replies"`
}

// NewReply creates a reply envelope at the current schema version with
// non-nil card and quick-reply slices.
func NewReply(text string, intent Intent, source Source) Reply {
	return Reply{
		Version:       ReplyVersion,
		AssistantText: text,
		Intent:        intent,
		Source:        source,
		Cards:         []Card{},
		QuickReplies:  []string{},
	}
}
