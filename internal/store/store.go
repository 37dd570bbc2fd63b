// Package store provides storage backends for PartPilot.
//
// It defines the Store interface over the parts catalog, model registry,
// compatibility records, chat sessions/messages and shopping carts, with
// SQLite, PostgreSQL and in-memory implementations.
package store

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/partpilot/partpilot/internal/models"
)

// Opts holds configuration options for store implementations.
type Opts struct {
	// DSN is the database connection string.
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". Anything that
// does not look like a Postgres URL or key-value connection string is
// treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// Store is the persistence interface the dialogue engine depends on.
// Lookup methods return (nil, nil) when no row matches.
type Store interface {
	// Parts
	UpsertPart(p models.Part) error
	GetPartByNumber(partNumber string) (*models.Part, error)
	SearchPartsByName(terms []string, appliance models.ApplianceType, limit int) ([]models.Part, error)
	ListPartsByAppliance(appliance models.ApplianceType, limit int) ([]models.Part, error)
	UpdatePartPriceStock(partNumber string, priceCents *int, stock models.StockStatus) error

	// Models
	UpsertModel(m models.Model) error
	GetModelByNumber(modelNumber string) (*models.Model, error)
	SuggestModelsByPrefix(prefix string, limit int) ([]string, error)

	// Compatibility records
	GetCompatibility(partNumber, modelNumber string) (*models.CompatibilityRecord, error)
	SaveCompatibility(rec models.CompatibilityRecord) error

	// Symptom index
	GetPartsBySymptom(symptom string, appliance models.ApplianceType, limit int) ([]models.Part, error)

	// Sessions and messages
	GetSession(id string) (*models.ChatSession, error)
	SaveSession(session models.ChatSession) error
	AddMessage(msg models.ChatMessage) error
	RecentUserMessages(sessionID string, limit int) ([]string, error)

	// Cart
	AddCartItem(item models.CartItem) error
	GetCartItems(cartID string) ([]models.CartItem, error)
	LatestCartItem(cartID string) (*models.CartItem, error)
	UpdateCartQuantity(cartID, partNumber string, quantity int) error
	RemoveCartItem(cartID, partNumber string) error

	Close() error
}

// InMemoryStore keeps everything in process memory. It backs tests and
// DSN-less runs.
type InMemoryStore struct {
	mu            sync.RWMutex
	parts         map[string]models.Part
	modelsByNum   map[string]models.Model
	compat        map[string]models.CompatibilityRecord // key part|model
	symptoms      map[string][]string                   // symptom -> part numbers
	sessions      map[string]models.ChatSession
	messages      map[string][]models.ChatMessage
	cartItems     map[string][]models.CartItem // cartID -> items, append order
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		parts:       make(map[string]models.Part),
		modelsByNum: make(map[string]models.Model),
		compat:      make(map[string]models.CompatibilityRecord),
		symptoms:    make(map[string][]string),
		sessions:    make(map[string]models.ChatSession),
		messages:    make(map[string][]models.ChatMessage),
		cartItems:   make(map[string][]models.CartItem),
	}
}

// UpsertPart inserts or replaces a catalog part and its symptom index rows.
func (s *InMemoryStore) UpsertPart(p models.Part) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parts[p.PartSelectNumber] = p
	for _, symptom := range p.CommonSymptoms {
		s.symptoms[symptom] = append(s.symptoms[symptom], p.PartSelectNumber)
	}
	return nil
}

// UpsertModel inserts or replaces a model record.
func (s *InMemoryStore) UpsertModel(m models.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelsByNum[m.ModelNumber] = m
	return nil
}

// AddCartItem appends a cart row, mirroring the add-to-cart write path the
// web frontend performs.
func (s *InMemoryStore) AddCartItem(item models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	s.cartItems[item.CartID] = append(s.cartItems[item.CartID], item)
	return nil
}

func (s *InMemoryStore) GetPartByNumber(partNumber string) (*models.Part, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parts[partNumber]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *InMemoryStore) SearchPartsByName(terms []string, appliance models.ApplianceType, limit int) ([]models.Part, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Part
	for _, p := range s.parts {
		if appliance != "" && p.ApplianceType != appliance {
			continue
		}
		name := strings.ToLower(p.Name)
		matched := true
		for _, term := range terms {
			if !strings.Contains(name, strings.ToLower(term)) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartSelectNumber < out[j].PartSelectNumber })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) ListPartsByAppliance(appliance models.ApplianceType, limit int) ([]models.Part, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Part
	for _, p := range s.parts {
		if p.ApplianceType == appliance {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartSelectNumber < out[j].PartSelectNumber })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) UpdatePartPriceStock(partNumber string, priceCents *int, stock models.StockStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[partNumber]
	if !ok {
		return nil
	}
	p.PriceCents = priceCents
	p.StockStatus = stock
	p.UpdatedAt = time.Now()
	s.parts[partNumber] = p
	return nil
}

func (s *InMemoryStore) GetModelByNumber(modelNumber string) (*models.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.modelsByNum[modelNumber]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *InMemoryStore) SuggestModelsByPrefix(prefix string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for num := range s.modelsByNum {
		if strings.HasPrefix(num, prefix) {
			out = append(out, num)
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func compatKey(partNumber, modelNumber string) string {
	return partNumber + "|" + modelNumber
}

func (s *InMemoryStore) GetCompatibility(partNumber, modelNumber string) (*models.CompatibilityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.compat[compatKey(partNumber, modelNumber)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *InMemoryStore) SaveCompatibility(rec models.CompatibilityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CheckedAt.IsZero() {
		rec.CheckedAt = time.Now()
	}
	s.compat[compatKey(rec.PartNumber, rec.ModelNumber)] = rec
	return nil
}

func (s *InMemoryStore) GetPartsBySymptom(symptom string, appliance models.ApplianceType, limit int) ([]models.Part, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(symptom)
	seen := make(map[string]bool)
	var out []models.Part
	for stored, partNumbers := range s.symptoms {
		if !strings.Contains(strings.ToLower(stored), needle) {
			continue
		}
		for _, num := range partNumbers {
			if seen[num] {
				continue
			}
			p, ok := s.parts[num]
			if !ok {
				continue
			}
			if appliance != "" && p.ApplianceType != appliance {
				continue
			}
			seen[num] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartSelectNumber < out[j].PartSelectNumber })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) GetSession(id string) (*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *InMemoryStore) SaveSession(session models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if session.CreatedAt.IsZero() {
		if existing, ok := s.sessions[session.ID]; ok {
			session.CreatedAt = existing.CreatedAt
		} else {
			session.CreatedAt = now
		}
	}
	session.UpdatedAt = now
	s.sessions[session.ID] = session
	return nil
}

func (s *InMemoryStore) AddMessage(msg models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	return nil
}

func (s *InMemoryStore) RecentUserMessages(sessionID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[sessionID]
	var out []string
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != models.RoleUser {
			continue
		}
		out = append(out, msgs[i].Content)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) GetCartItems(cartID string) ([]models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.CartItem, len(s.cartItems[cartID]))
	copy(items, s.cartItems[cartID])
	return items, nil
}

func (s *InMemoryStore) LatestCartItem(cartID string) (*models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.cartItems[cartID]
	if len(items) == 0 {
		return nil, nil
	}
	latest := items[0]
	for _, item := range items[1:] {
		if item.CreatedAt.After(latest.CreatedAt) {
			latest = item
		}
	}
	return &latest, nil
}

func (s *InMemoryStore) UpdateCartQuantity(cartID, partNumber string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.cartItems[cartID]
	for i := range items {
		if items[i].PartNumber == partNumber {
			items[i].Quantity = quantity
		}
	}
	return nil
}

func (s *InMemoryStore) RemoveCartItem(cartID, partNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.cartItems[cartID]
	out := items[:0]
	for _, item := range items {
		if item.PartNumber != partNumber {
			out = append(out, item)
		}
	}
	s.cartItems[cartID] = out
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	slog.Debug("InMemoryStore closed")
	return nil
}
