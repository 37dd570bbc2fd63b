package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/partpilot/partpilot/internal/models"
)

// splitLinks decodes the newline-joined install_links column.
func splitLinks(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// joinLinks encodes install links for the install_links column.
func joinLinks(links []string) interface{} {
	if len(links) == 0 {
		return nil
	}
	return strings.Join(links, "\n")
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nilIfNoPrice converts an optional price to a nullable column value.
func nilIfNoPrice(priceCents *int) interface{} {
	if priceCents == nil {
		return nil
	}
	return *priceCents
}

// partColumns is the shared SELECT column list for part rows.
const partColumns = `partselect_number, appliance_type, manufacturer_number, name, brand,
	price_cents, stock_status, image_url, product_url, description, rating,
	review_count, has_install_instructions, install_links, install_summary,
	created_at, updated_at`

// prefixColumns qualifies each column in a comma-separated list with a
// table alias, for queries that join the parts table.
func prefixColumns(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = alias + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanPart scans one part row in partColumns order.
func scanPart(row rowScanner) (models.Part, error) {
	var p models.Part
	var manufacturerNumber, brand, stockStatus, imageURL, productURL, description sql.NullString
	var installLinks, installSummary sql.NullString
	var priceCents sql.NullInt64
	var rating sql.NullFloat64
	err := row.Scan(
		&p.PartSelectNumber, &p.ApplianceType, &manufacturerNumber, &p.Name, &brand,
		&priceCents, &stockStatus, &imageURL, &productURL, &description, &rating,
		&p.ReviewCount, &p.HasInstallInstructions, &installLinks, &installSummary,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, fmt.Errorf("scan part failed: %w", err)
	}
	p.ManufacturerNumber = manufacturerNumber.String
	p.Brand = brand.String
	p.StockStatus = models.StockStatus(stockStatus.String)
	p.ImageURL = imageURL.String
	p.ProductURL = productURL.String
	p.Description = description.String
	p.InstallSummary = installSummary.String
	if priceCents.Valid {
		cents := int(priceCents.Int64)
		p.PriceCents = &cents
	}
	if rating.Valid {
		r := rating.Float64
		p.Rating = &r
	}
	if installLinks.Valid {
		p.InstallLinks = splitLinks(installLinks.String)
	}
	return p, nil
}

// collectParts drains a result set of part rows.
func collectParts(rows *sql.Rows) ([]models.Part, error) {
	defer rows.Close()
	var parts []models.Part
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate part rows: %w", err)
	}
	return parts, nil
}

// scanModel scans one model row.
func scanModel(row rowScanner) (models.Model, error) {
	var m models.Model
	var brand, modelURL sql.NullString
	err := row.Scan(&m.ModelNumber, &m.ApplianceType, &brand, &modelURL, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}
	m.Brand = brand.String
	m.ModelURL = modelURL.String
	return m, nil
}

// scanCompatibility scans one model_parts row.
func scanCompatibility(row rowScanner) (models.CompatibilityRecord, error) {
	var rec models.CompatibilityRecord
	var evidenceURL, evidenceSnippet sql.NullString
	err := row.Scan(&rec.PartNumber, &rec.ModelNumber, &rec.Confidence,
		&evidenceURL, &evidenceSnippet, &rec.CheckedAt)
	if err != nil {
		return rec, err
	}
	rec.EvidenceURL = evidenceURL.String
	rec.EvidenceSnippet = evidenceSnippet.String
	return rec, nil
}
