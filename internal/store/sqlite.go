// Package store provides storage backends for PartPilot.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/partpilot/partpilot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLite ping successful")

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// UpsertPart inserts or replaces a catalog part and refreshes its symptom
// index rows.
func (s *SQLiteStore) UpsertPart(p models.Part) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO parts (partselect_number, appliance_type, manufacturer_number, name, brand,
			price_cents, stock_status, image_url, product_url, description, rating,
			review_count, has_install_instructions, install_links, install_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PartSelectNumber, p.ApplianceType, nilIfEmpty(p.ManufacturerNumber), p.Name, nilIfEmpty(p.Brand),
		nilIfNoPrice(p.PriceCents), nilIfEmpty(string(p.StockStatus)), nilIfEmpty(p.ImageURL),
		nilIfEmpty(p.ProductURL), nilIfEmpty(p.Description), p.Rating,
		p.ReviewCount, p.HasInstallInstructions, joinLinks(p.InstallLinks), nilIfEmpty(p.InstallSummary))
	if err != nil {
		slog.Error("SQLiteStore UpsertPart failed", "error", err, "partNumber", p.PartSelectNumber)
		return fmt.Errorf("failed to upsert part %s: %w", p.PartSelectNumber, err)
	}
	if _, err := s.db.Exec(`DELETE FROM part_symptoms WHERE partselect_number = ?`, p.PartSelectNumber); err != nil {
		slog.Error("SQLiteStore UpsertPart symptom cleanup failed", "error", err, "partNumber", p.PartSelectNumber)
		return err
	}
	for _, symptom := range p.CommonSymptoms {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO part_symptoms (partselect_number, symptom) VALUES (?, ?)`,
			p.PartSelectNumber, symptom); err != nil {
			slog.Error("SQLiteStore UpsertPart symptom insert failed", "error", err, "partNumber", p.PartSelectNumber)
			return err
		}
	}
	slog.Debug("SQLiteStore UpsertPart succeeded", "partNumber", p.PartSelectNumber)
	return nil
}

// GetPartByNumber retrieves a part by its PartSelect number. Returns
// (nil, nil) when the part is not in the catalog.
func (s *SQLiteStore) GetPartByNumber(partNumber string) (*models.Part, error) {
	row := s.db.QueryRow(`SELECT `+partColumns+` FROM parts WHERE partselect_number = ?`, partNumber)
	p, err := scanPart(row)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("SQLiteStore GetPartByNumber not found", "partNumber", partNumber)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetPartByNumber failed", "error", err, "partNumber", partNumber)
		return nil, err
	}
	slog.Debug("SQLiteStore GetPartByNumber found", "partNumber", partNumber)
	return &p, nil
}

// SearchPartsByName finds parts whose name contains every search term,
// optionally filtered by appliance type.
func (s *SQLiteStore) SearchPartsByName(terms []string, appliance models.ApplianceType, limit int) ([]models.Part, error) {
	query := `SELECT ` + partColumns + ` FROM parts WHERE 1=1`
	var args []interface{}
	for _, term := range terms {
		query += ` AND name LIKE ?`
		args = append(args, "%"+term+"%")
	}
	if appliance != "" {
		query += ` AND appliance_type = ?`
		args = append(args, appliance)
	}
	query += ` ORDER BY partselect_number LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore SearchPartsByName query failed", "error", err)
		return nil, fmt.Errorf("failed to search parts: %w", err)
	}
	parts, err := collectParts(rows)
	if err != nil {
		slog.Error("SQLiteStore SearchPartsByName scan failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLiteStore SearchPartsByName succeeded", "terms", terms, "count", len(parts))
	return parts, nil
}

// ListPartsByAppliance returns parts for one appliance category.
func (s *SQLiteStore) ListPartsByAppliance(appliance models.ApplianceType, limit int) ([]models.Part, error) {
	rows, err := s.db.Query(`SELECT `+partColumns+` FROM parts WHERE appliance_type = ? ORDER BY partselect_number LIMIT ?`,
		appliance, limit)
	if err != nil {
		slog.Error("SQLiteStore ListPartsByAppliance query failed", "error", err, "appliance", appliance)
		return nil, fmt.Errorf("failed to list parts: %w", err)
	}
	parts, err := collectParts(rows)
	if err != nil {
		slog.Error("SQLiteStore ListPartsByAppliance scan failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLiteStore ListPartsByAppliance succeeded", "appliance", appliance, "count", len(parts))
	return parts, nil
}

// UpdatePartPriceStock persists freshly scraped price and availability.
func (s *SQLiteStore) UpdatePartPriceStock(partNumber string, priceCents *int, stock models.StockStatus) error {
	_, err := s.db.Exec(`UPDATE parts SET price_cents = ?, stock_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE partselect_number = ?`, nilIfNoPrice(priceCents), stock, partNumber)
	if err != nil {
		slog.Error("SQLiteStore UpdatePartPriceStock failed", "error", err, "partNumber", partNumber)
		return fmt.Errorf("failed to update price/stock for %s: %w", partNumber, err)
	}
	slog.Debug("SQLiteStore UpdatePartPriceStock succeeded", "partNumber", partNumber, "stock", stock)
	return nil
}

// UpsertModel inserts or replaces a model record.
func (s *SQLiteStore) UpsertModel(m models.Model) error {
	_, err := s.db.Exec(`
		INSERT INTO models (model_number, appliance_type, brand, model_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(model_number) DO UPDATE SET
			appliance_type = excluded.appliance_type,
			brand = excluded.brand,
			model_url = excluded.model_url,
			updated_at = CURRENT_TIMESTAMP`,
		m.ModelNumber, m.ApplianceType, nilIfEmpty(m.Brand), nilIfEmpty(m.ModelURL))
	if err != nil {
		slog.Error("SQLiteStore UpsertModel failed", "error", err, "modelNumber", m.ModelNumber)
		return fmt.Errorf("failed to upsert model %s: %w", m.ModelNumber, err)
	}
	slog.Debug("SQLiteStore UpsertModel succeeded", "modelNumber", m.ModelNumber)
	return nil
}

// GetModelByNumber retrieves a model record. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetModelByNumber(modelNumber string) (*models.Model, error) {
	row := s.db.QueryRow(`SELECT model_number, appliance_type, brand, model_url, created_at, updated_at
		FROM models WHERE model_number = ?`, modelNumber)
	m, err := scanModel(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetModelByNumber not found", "modelNumber", modelNumber)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetModelByNumber failed", "error", err, "modelNumber", modelNumber)
		return nil, err
	}
	return &m, nil
}

// SuggestModelsByPrefix returns model numbers beginning with a prefix, for
// partial-identifier disambiguation.
func (s *SQLiteStore) SuggestModelsByPrefix(prefix string, limit int) ([]string, error) {
	rows, err := s.db.Query(`SELECT model_number FROM models WHERE model_number LIKE ? ORDER BY model_number LIMIT ?`,
		prefix+"%", limit)
	if err != nil {
		slog.Error("SQLiteStore SuggestModelsByPrefix query failed", "error", err, "prefix", prefix)
		return nil, fmt.Errorf("failed to suggest models: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var num string
		if err := rows.Scan(&num); err != nil {
			slog.Error("SQLiteStore SuggestModelsByPrefix scan failed", "error", err)
			return nil, err
		}
		out = append(out, num)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slog.Debug("SQLiteStore SuggestModelsByPrefix succeeded", "prefix", prefix, "count", len(out))
	return out, nil
}

// GetCompatibility retrieves a stored part/model fit record. Returns
// (nil, nil) when no record exists.
func (s *SQLiteStore) GetCompatibility(partNumber, modelNumber string) (*models.CompatibilityRecord, error) {
	row := s.db.QueryRow(`SELECT partselect_number, model_number, confidence, evidence_url, evidence_snippet, checked_at
		FROM model_parts WHERE partselect_number = ? AND model_number = ?`, partNumber, modelNumber)
	rec, err := scanCompatibility(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetCompatibility not found", "partNumber", partNumber, "modelNumber", modelNumber)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetCompatibility failed", "error", err, "partNumber", partNumber, "modelNumber", modelNumber)
		return nil, err
	}
	return &rec, nil
}

// SaveCompatibility stores or refreshes a part/model fit record.
func (s *SQLiteStore) SaveCompatibility(rec models.CompatibilityRecord) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO model_parts (partselect_number, model_number, confidence, evidence_url, evidence_snippet, checked_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		rec.PartNumber, rec.ModelNumber, rec.Confidence,
		nilIfEmpty(rec.EvidenceURL), nilIfEmpty(rec.EvidenceSnippet))
	if err != nil {
		slog.Error("SQLiteStore SaveCompatibility failed", "error", err, "partNumber", rec.PartNumber, "modelNumber", rec.ModelNumber)
		return fmt.Errorf("failed to save compatibility %s/%s: %w", rec.PartNumber, rec.ModelNumber, err)
	}
	slog.Debug("SQLiteStore SaveCompatibility succeeded", "partNumber", rec.PartNumber, "modelNumber", rec.ModelNumber)
	return nil
}

// GetPartsBySymptom finds parts indexed under symptoms containing the given
// phrase, hard-filtered by appliance type when one is known.
func (s *SQLiteStore) GetPartsBySymptom(symptom string, appliance models.ApplianceType, limit int) ([]models.Part, error) {
	query := `SELECT DISTINCT ` + prefixColumns("p.", partColumns) + `
		FROM parts p JOIN part_symptoms ps ON ps.partselect_number = p.partselect_number
		WHERE ps.symptom LIKE ?`
	args := []interface{}{"%" + symptom + "%"}
	if appliance != "" {
		query += ` AND p.appliance_type = ?`
		args = append(args, appliance)
	}
	query += ` ORDER BY p.partselect_number LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore GetPartsBySymptom query failed", "error", err, "symptom", symptom)
		return nil, fmt.Errorf("failed to query parts by symptom: %w", err)
	}
	parts, err := collectParts(rows)
	if err != nil {
		slog.Error("SQLiteStore GetPartsBySymptom scan failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLiteStore GetPartsBySymptom succeeded", "symptom", symptom, "count", len(parts))
	return parts, nil
}

// GetSession retrieves a chat session. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetSession(id string) (*models.ChatSession, error) {
	var session models.ChatSession
	var appliance, modelNumber sql.NullString
	err := s.db.QueryRow(`SELECT id, appliance_type, model_number, created_at, updated_at
		FROM chat_sessions WHERE id = ?`, id).Scan(
		&session.ID, &appliance, &modelNumber, &session.CreatedAt, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSession not found", "sessionID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "sessionID", id)
		return nil, err
	}
	session.ApplianceType = models.ApplianceType(appliance.String)
	session.ModelNumber = modelNumber.String
	return &session, nil
}

// SaveSession stores or updates a chat session.
func (s *SQLiteStore) SaveSession(session models.ChatSession) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_sessions (id, appliance_type, model_number)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			appliance_type = excluded.appliance_type,
			model_number = excluded.model_number,
			updated_at = CURRENT_TIMESTAMP`,
		session.ID, nilIfEmpty(string(session.ApplianceType)), nilIfEmpty(session.ModelNumber))
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "sessionID", session.ID)
	return nil
}

// AddMessage appends one chat message.
func (s *SQLiteStore) AddMessage(msg models.ChatMessage) error {
	_, err := s.db.Exec(`INSERT INTO chat_messages (id, session_id, role, content) VALUES (?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "sessionID", msg.SessionID)
		return fmt.Errorf("failed to insert message for session %s: %w", msg.SessionID, err)
	}
	slog.Debug("SQLiteStore AddMessage succeeded", "sessionID", msg.SessionID, "role", msg.Role)
	return nil
}

// RecentUserMessages returns the newest user-authored messages for a
// session, newest first.
func (s *SQLiteStore) RecentUserMessages(sessionID string, limit int) ([]string, error) {
	rows, err := s.db.Query(`SELECT content FROM chat_messages
		WHERE session_id = ? AND role = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		sessionID, models.RoleUser, limit)
	if err != nil {
		slog.Error("SQLiteStore RecentUserMessages query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			slog.Error("SQLiteStore RecentUserMessages scan failed", "error", err)
			return nil, err
		}
		out = append(out, content)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AddCartItem appends a cart row.
func (s *SQLiteStore) AddCartItem(item models.CartItem) error {
	quantity := item.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO cart_items (cart_id, partselect_number, quantity)
		VALUES (?, ?, ?)
		ON CONFLICT(cart_id, partselect_number) DO UPDATE SET quantity = cart_items.quantity + excluded.quantity`,
		item.CartID, item.PartNumber, quantity)
	if err != nil {
		slog.Error("SQLiteStore AddCartItem failed", "error", err, "cartID", item.CartID, "partNumber", item.PartNumber)
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	slog.Debug("SQLiteStore AddCartItem succeeded", "cartID", item.CartID, "partNumber", item.PartNumber)
	return nil
}

// GetCartItems returns all rows of a cart in insertion order.
func (s *SQLiteStore) GetCartItems(cartID string) ([]models.CartItem, error) {
	rows, err := s.db.Query(`SELECT cart_id, partselect_number, quantity, created_at
		FROM cart_items WHERE cart_id = ? ORDER BY created_at`, cartID)
	if err != nil {
		slog.Error("SQLiteStore GetCartItems query failed", "error", err, "cartID", cartID)
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()
	var items []models.CartItem
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.CartID, &item.PartNumber, &item.Quantity, &item.CreatedAt); err != nil {
			slog.Error("SQLiteStore GetCartItems scan failed", "error", err)
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slog.Debug("SQLiteStore GetCartItems succeeded", "cartID", cartID, "count", len(items))
	return items, nil
}

// LatestCartItem returns the most recently added row of a cart, or
// (nil, nil) when the cart is empty.
func (s *SQLiteStore) LatestCartItem(cartID string) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.QueryRow(`SELECT cart_id, partselect_number, quantity, created_at
		FROM cart_items WHERE cart_id = ? ORDER BY created_at DESC LIMIT 1`, cartID).Scan(
		&item.CartID, &item.PartNumber, &item.Quantity, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore LatestCartItem failed", "error", err, "cartID", cartID)
		return nil, err
	}
	return &item, nil
}

// UpdateCartQuantity sets the quantity of one cart row.
func (s *SQLiteStore) UpdateCartQuantity(cartID, partNumber string, quantity int) error {
	_, err := s.db.Exec(`UPDATE cart_items SET quantity = ? WHERE cart_id = ? AND partselect_number = ?`,
		quantity, cartID, partNumber)
	if err != nil {
		slog.Error("SQLiteStore UpdateCartQuantity failed", "error", err, "cartID", cartID, "partNumber", partNumber)
		return fmt.Errorf("failed to update cart quantity: %w", err)
	}
	slog.Debug("SQLiteStore UpdateCartQuantity succeeded", "cartID", cartID, "partNumber", partNumber, "quantity", quantity)
	return nil
}

// RemoveCartItem deletes one cart row.
func (s *SQLiteStore) RemoveCartItem(cartID, partNumber string) error {
	_, err := s.db.Exec(`DELETE FROM cart_items WHERE cart_id = ? AND partselect_number = ?`, cartID, partNumber)
	if err != nil {
		slog.Error("SQLiteStore RemoveCartItem failed", "error", err, "cartID", cartID, "partNumber", partNumber)
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	slog.Debug("SQLiteStore RemoveCartItem succeeded", "cartID", cartID, "partNumber", partNumber)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
