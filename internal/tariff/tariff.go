// Package tariff keeps the HS-code classification registry used to resolve
// per-line tariff percentages.
package tariff

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the referenced HS code does not exist.
var ErrNotFound = errors.New("hs code not found")

var oneHundred = decimal.NewFromInt(100)

// HSCode represents one Harmonized System classification and its tariff.
type HSCode struct {
	ID            int64
	Code          string
	Description   string
	TariffPercent decimal.Decimal
}

// Registry resolves and administers HS codes.
type Registry struct {
	db *sql.DB
}

func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// Resolve returns the tariff percent for a classification code. Products
// without a classification (empty or unknown code) use 0%; flagging those
// lines to the user is the UI's job, not ours.
func (r *Registry) Resolve(ctx context.Context, code string) (decimal.Decimal, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return decimal.Zero, nil
	}

	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT tariff_percent FROM hs_codes WHERE code = ?`, code).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("query hs code %s: %w", code, err)
	}

	percent, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("hs code %s holds non-numeric tariff %q: %w", code, raw, err)
	}

	return percent, nil
}

// List returns all registered HS codes ordered by code.
func (r *Registry) List(ctx context.Context) ([]HSCode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, code, description, tariff_percent
		FROM hs_codes
		ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("query hs codes: %w", err)
	}
	defer rows.Close()

	codes := make([]HSCode, 0)
	for rows.Next() {
		var hc HSCode
		var raw string
		if err := rows.Scan(&hc.ID, &hc.Code, &hc.Description, &raw); err != nil {
			return nil, fmt.Errorf("scan hs code: %w", err)
		}
		if hc.TariffPercent, err = decimal.NewFromString(raw); err != nil {
			return nil, fmt.Errorf("hs code %s holds non-numeric tariff %q: %w", hc.Code, raw, err)
		}
		codes = append(codes, hc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hs codes: %w", err)
	}

	return codes, nil
}

// Create registers a new HS code and returns its id.
func (r *Registry) Create(ctx context.Context, hc HSCode) (int64, error) {
	if err := validate(hc); err != nil {
		return 0, err
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO hs_codes (code, description, tariff_percent)
		VALUES (?, ?, ?)
	`, strings.TrimSpace(hc.Code), hc.Description, hc.TariffPercent.String())
	if err != nil {
		return 0, fmt.Errorf("insert hs code: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read hs code id: %w", err)
	}
	return id, nil
}

// Update modifies an existing HS code.
func (r *Registry) Update(ctx context.Context, hc HSCode) error {
	if err := validate(hc); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE hs_codes
		SET code = ?, description = ?, tariff_percent = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, strings.TrimSpace(hc.Code), hc.Description, hc.TariffPercent.String(), hc.ID)
	if err != nil {
		return fmt.Errorf("update hs code: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update hs code: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func validate(hc HSCode) error {
	if strings.TrimSpace(hc.Code) == "" {
		return fmt.Errorf("code es requerido")
	}
	if hc.TariffPercent.IsNegative() || hc.TariffPercent.GreaterThan(oneHundred) {
		return fmt.Errorf("tariff_percent debe estar entre 0 y 100")
	}
	return nil
}
