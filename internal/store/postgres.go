// Package store provides storage backends for PartPilot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/lib/pq"
	"github.com/partpilot/partpilot/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Postgres ping successful")

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// UpsertPart inserts or replaces a catalog part and refreshes its symptom
// index rows.
func (s *PostgresStore) UpsertPart(p models.Part) error {
	_, err := s.db.Exec(`
		INSERT INTO parts (partselect_number, appliance_type, manufacturer_number, name, brand,
			price_cents, stock_status, image_url, product_url, description, rating,
			review_count, has_install_instructions, install_links, install_summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (partselect_number) DO UPDATE SET
			appliance_type = EXCLUDED.appliance_type,
			manufacturer_number = EXCLUDED.manufacturer_number,
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			price_cents = EXCLUDED.price_cents,
			stock_status = EXCLUDED.stock_status,
			image_url = EXCLUDED.image_url,
			product_url = EXCLUDED.product_url,
			description = EXCLUDED.description,
			rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count,
			has_install_instructions = EXCLUDED.has_install_instructions,
			install_links = EXCLUDED.install_links,
			install_summary = EXCLUDED.install_summary,
			updated_at = NOW()`,
		p.PartSelectNumber, p.ApplianceType, nilIfEmpty(p.ManufacturerNumber), p.Name, nilIfEmpty(p.Brand),
		nilIfNoPrice(p.PriceCents), nilIfEmpty(string(p.StockStatus)), nilIfEmpty(p.ImageURL),
		nilIfEmpty(p.ProductURL), nilIfEmpty(p.Description), p.Rating,
		p.ReviewCount, p.HasInstallInstructions, joinLinks(p.InstallLinks), nilIfEmpty(p.InstallSummary))
	if err != nil {
		slog.Error("PostgresStore UpsertPart failed", "error", err, "partNumber", p.PartSelectNumber)
		return fmt.Errorf("failed to upsert part %s: %w", p.PartSelectNumber, err)
	}
	if _, err := s.db.Exec(`DELETE FROM part_symptoms WHERE partselect_number = $1`, p.PartSelectNumber); err != nil {
		slog.Error("PostgresStore UpsertPart symptom cleanup failed", "error", err, "partNumber", p.PartSelectNumber)
		return err
	}
	if len(p.CommonSymptoms) > 0 {
		_, err := s.db.Exec(`
			INSERT INTO part_symptoms (partselect_number, symptom)
			SELECT $1, unnest($2::text[])
			ON CONFLICT DO NOTHING`,
			p.PartSelectNumber, pq.Array(p.CommonSymptoms))
		if err != nil {
			slog.Error("PostgresStore UpsertPart symptom insert failed", "error", err, "partNumber", p.PartSelectNumber)
			return err
		}
	}
	slog.Debug("PostgresStore UpsertPart succeeded", "partNumber", p.PartSelectNumber)
	return nil
}

// GetPartByNumber retrieves a part by its PartSelect number. Returns
// (nil, nil) when the part is not in the catalog.
func (s *PostgresStore) GetPartByNumber(partNumber string) (*models.Part, error) {
	row := s.db.QueryRow(`SELECT `+partColumns+` FROM parts WHERE partselect_number = $1`, partNumber)
	p, err := scanPart(row)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("PostgresStore GetPartByNumber not found", "partNumber", partNumber)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetPartByNumber failed", "error", err, "partNumber", partNumber)
		return nil, err
	}
	return &p, nil
}

// SearchPartsByName finds parts whose name contains every search term,
// optionally filtered by appliance type.
func (s *PostgresStore) SearchPartsByName(terms []string, appliance models.ApplianceType, limit int) ([]models.Part, error) {
	query := `SELECT ` + partColumns + ` FROM parts WHERE TRUE`
	var args []interface{}
	for _, term := range terms {
		args = append(args, "%"+term+"%")
		query += fmt.Sprintf(` AND name ILIKE $%d`, len(args))
	}
	if appliance != "" {
		args = append(args, appliance)
		query += fmt.Sprintf(` AND appliance_type = $%d`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY partselect_number LIMIT $%d`, len(args))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore SearchPartsByName query failed", "error", err)
		return nil, fmt.Errorf("failed to search parts: %w", err)
	}
	parts, err := collectParts(rows)
	if err != nil {
		slog.Error("PostgresStore SearchPartsByName scan failed", "error", err)
		return nil, err
	}
	slog.Debug("PostgresStore SearchPartsByName succeeded", "terms", terms, "count", len(parts))
	return parts, nil
}

// ListPartsByAppliance returns parts for one appliance category.
func (s *PostgresStore) ListPartsByAppliance(appliance models.ApplianceType, limit int) ([]models.Part, error) {
	rows, err := s.db.Query(`SELECT `+partColumns+` FROM parts WHERE appliance_type = $1 ORDER BY partselect_number LIMIT $2`,
		appliance, limit)
	if err != nil {
		slog.Error("PostgresStore ListPartsByAppliance query failed", "error", err, "appliance", appliance)
		return nil, fmt.Errorf("failed to list parts: %w", err)
	}
	parts, err := collectParts(rows)
	if err != nil {
		slog.Error("PostgresStore ListPartsByAppliance scan failed", "error", err)
		return nil, err
	}
	return parts, nil
}

// UpdatePartPriceStock persists freshly scraped price and availability.
func (s *PostgresStore) UpdatePartPriceStock(partNumber string, priceCents *int, stock models.StockStatus) error {
	_, err := s.db.Exec(`UPDATE parts SET price_cents = $1, stock_status = $2, updated_at = NOW()
		WHERE partselect_number = $3`, nilIfNoPrice(priceCents), stock, partNumber)
	if err != nil {
		slog.Error("PostgresStore UpdatePartPriceStock failed", "error", err, "partNumber", partNumber)
		return fmt.Errorf("failed to update price/stock for %s: %w", partNumber, err)
	}
	slog.Debug("PostgresStore UpdatePartPriceStock succeeded", "partNumber", partNumber, "stock", stock)
	return nil
}

// UpsertModel inserts or replaces a model record.
func (s *PostgresStore) UpsertModel(m models.Model) error {
	_, err := s.db.Exec(`
		INSERT INTO models (model_number, appliance_type, brand, model_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (model_number) DO UPDATE SET
			appliance_type = EXCLUDED.appliance_type,
			brand = EXCLUDED.brand,
			model_url = EXCLUDED.model_url,
			updated_at = NOW()`,
		m.ModelNumber, m.ApplianceType, nilIfEmpty(m.Brand), nilIfEmpty(m.ModelURL))
	if err != nil {
		slog.Error("PostgresStore UpsertModel failed", "error", err, "modelNumber", m.ModelNumber)
		return fmt.Errorf("failed to upsert model %s: %w", m.ModelNumber, err)
	}
	return nil
}

// GetModelByNumber retrieves a model record. Returns (nil, nil) when absent.
func (s *PostgresStore) GetModelByNumber(modelNumber string) (*models.Model, error) {
	row := s.db.QueryRow(`SELECT model_number, appliance_type, brand, model_url, created_at, updated_at
		FROM models WHERE model_number = $1`, modelNumber)
	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("PostgresStore GetModelByNumber not found", "modelNumber", modelNumber)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetModelByNumber failed", "error", err, "modelNumber", modelNumber)
		return nil, err
	}
	return &m, nil
}

// SuggestModelsByPrefix returns model numbers beginning with a prefix.
func (s *PostgresStore) SuggestModelsByPrefix(prefix string, limit int) ([]string, error) {
	rows, err := s.db.Query(`SELECT model_number FROM models WHERE model_number LIKE $1 ORDER BY model_number LIMIT $2`,
		prefix+"%", limit)
	if err != nil {
		slog.Error("PostgresStore SuggestModelsByPrefix query failed", "error", err, "prefix", prefix)
		return nil, fmt.Errorf("failed to suggest models: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var num string
		if err := rows.Scan(&num); err != nil {
			slog.Error("PostgresStore SuggestModelsByPrefix scan failed", "error", err)
			return nil, err
		}
		out = append(out, num)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCompatibility retrieves a stored part/model fit record. Returns
// (nil, nil) when no record exists.
func (s *PostgresStore) GetCompatibility(partNumber, modelNumber string) (*models.CompatibilityRecord, error) {
	row := s.db.QueryRow(`SELECT partselect_number, model_number, confidence, evidence_url, evidence_snippet, checked_at
		FROM model_parts WHERE partselect_number = $1 AND model_number = $2`, partNumber, modelNumber)
	rec, err := scanCompatibility(row)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("PostgresStore GetCompatibility not found", "partNumber", partNumber, "modelNumber", modelNumber)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetCompatibility failed", "error", err, "partNumber", partNumber, "modelNumber", modelNumber)
		return nil, err
	}
	return &rec, nil
}

// SaveCompatibility stores or refreshes a part/model fit record.
func (s *PostgresStore) SaveCompatibility(rec models.CompatibilityRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO model_parts (partselect_number, model_number, confidence, evidence_url, evidence_snippet, checked_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (partselect_number, model_number) DO UPDATE SET
			confidence = EXCLUDED.confidence,
			evidence_url = EXCLUDED.evidence_url,
			evidence_snippet = EXCLUDED.evidence_snippet,
			checked_at = NOW()`,
		rec.PartNumber, rec.ModelNumber, rec.Confidence,
		nilIfEmpty(rec.EvidenceURL), nilIfEmpty(rec.EvidenceSnippet))
	if err != nil {
		slog.Error("PostgresStore SaveCompatibility failed", "error", err, "partNumber", rec.PartNumber, "modelNumber", rec.ModelNumber)
		return fmt.Errorf("failed to save compatibility %s/%s: %w", rec.PartNumber, rec.ModelNumber, err)
	}
	return nil
}

// GetPartsBySymptom finds parts indexed under symptoms containing the given
// phrase, hard-filtered by appliance type when one is known.
func (s *PostgresStore) GetPartsBySymptom(symptom string, appliance models.ApplianceType, limit int) ([]models.Part, error) {
	query := `SELECT DISTINCT ` + prefixColumns("p.", partColumns) + `
		FROM parts p JOIN part_symptoms ps ON ps.partselect_number = p.partselect_number
		WHERE ps.symptom ILIKE $1`
	args := []interface{}{"%" + symptom + "%"}
	if appliance != "" {
		args = append(args, appliance)
		query += fmt.Sprintf(` AND p.appliance_type = $%d`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY p.partselect_number LIMIT $%d`, len(args))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore GetPartsBySymptom query failed", "error", err, "symptom", symptom)
		return nil, fmt.Errorf("failed to query parts by symptom: %w", err)
	}
	parts, err := collectParts(rows)
	if err != nil {
		slog.Error("PostgresStore GetPartsBySymptom scan failed", "error", err)
		return nil, err
	}
	slog.Debug("PostgresStore GetPartsBySymptom succeeded", "symptom", symptom, "count", len(parts))
	return parts, nil
}

// GetSession retrieves a chat session. Returns (nil, nil) when absent.
func (s *PostgresStore) GetSession(id string) (*models.ChatSession, error) {
	var session models.ChatSession
	var appliance, modelNumber sql.NullString
	err := s.db.QueryRow(`SELECT id, appliance_type, model_number, created_at, updated_at
		FROM chat_sessions WHERE id = $1`, id).Scan(
		&session.ID, &appliance, &modelNumber, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("PostgresStore GetSession not found", "sessionID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", id)
		return nil, err
	}
	session.ApplianceType = models.ApplianceType(appliance.String)
	session.ModelNumber = modelNumber.String
	return &session, nil
}

// SaveSession stores or updates a chat session.
func (s *PostgresStore) SaveSession(session models.ChatSession) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_sessions (id, appliance_type, model_number)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			appliance_type = EXCLUDED.appliance_type,
			model_number = EXCLUDED.model_number,
			updated_at = NOW()`,
		session.ID, nilIfEmpty(string(session.ApplianceType)), nilIfEmpty(session.ModelNumber))
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	return nil
}

// AddMessage appends one chat message.
func (s *PostgresStore) AddMessage(msg models.ChatMessage) error {
	_, err := s.db.Exec(`INSERT INTO chat_messages (id, session_id, role, content) VALUES ($1, $2, $3, $4)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "sessionID", msg.SessionID)
		return fmt.Errorf("failed to insert message for session %s: %w", msg.SessionID, err)
	}
	return nil
}

// RecentUserMessages returns the newest user-authored messages for a
// session, newest first.
func (s *PostgresStore) RecentUserMessages(sessionID string, limit int) ([]string, error) {
	rows, err := s.db.Query(`SELECT content FROM chat_messages
		WHERE session_id = $1 AND role = $2 ORDER BY created_at DESC, id DESC LIMIT $3`,
		sessionID, models.RoleUser, limit)
	if err != nil {
		slog.Error("PostgresStore RecentUserMessages query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			slog.Error("PostgresStore RecentUserMessages scan failed", "error", err)
			return nil, err
		}
		out = append(out, content)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AddCartItem appends a cart row, accumulating quantity when the part is
// already in the cart.
func (s *PostgresStore) AddCartItem(item models.CartItem) error {
	quantity := item.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO cart_items (cart_id, partselect_number, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, partselect_number) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		item.CartID, item.PartNumber, quantity)
	if err != nil {
		slog.Error("PostgresStore AddCartItem failed", "error", err, "cartID", item.CartID, "partNumber", item.PartNumber)
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	return nil
}

// GetCartItems returns all rows of a cart in insertion order.
func (s *PostgresStore) GetCartItems(cartID string) ([]models.CartItem, error) {
	rows, err := s.db.Query(`SELECT cart_id, partselect_number, quantity, created_at
		FROM cart_items WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		slog.Error("PostgresStore GetCartItems query failed", "error", err, "cartID", cartID)
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()
	var items []models.CartItem
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.CartID, &item.PartNumber, &item.Quantity, &item.CreatedAt); err != nil {
			slog.Error("PostgresStore GetCartItems scan failed", "error", err)
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// LatestCartItem returns the most recently added row of a cart, or
// (nil, nil) when the cart is empty.
func (s *PostgresStore) LatestCartItem(cartID string) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.QueryRow(`SELECT cart_id, partselect_number, quantity, created_at
		FROM cart_items WHERE cart_id = $1 ORDER BY created_at DESC LIMIT 1`, cartID).Scan(
		&item.CartID, &item.PartNumber, &item.Quantity, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore LatestCartItem failed", "error", err, "cartID", cartID)
		return nil, err
	}
	return &item, nil
}

// UpdateCartQuantity sets the quantity of one cart row.
func (s *PostgresStore) UpdateCartQuantity(cartID, partNumber string, quantity int) error {
	_, err := s.db.Exec(`UPDATE cart_items SET quantity = $1 WHERE cart_id = $2 AND partselect_number = $3`,
		quantity, cartID, partNumber)
	if err != nil {
		slog.Error("PostgresStore UpdateCartQuantity failed", "error", err, "cartID", cartID, "partNumber", partNumber)
		return fmt.Errorf("failed to update cart quantity: %w", err)
	}
	return nil
}

// RemoveCartItem deletes one cart row.
func (s *PostgresStore) RemoveCartItem(cartID, partNumber string) error {
	_, err := s.db.Exec(`DELETE FROM cart_items WHERE cart_id = $1 AND partselect_number = $2`, cartID, partNumber)
	if err != nil {
		slog.Error("PostgresStore RemoveCartItem failed", "error", err, "cartID", cartID, "partNumber", partNumber)
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
