// Package settings persists the pricing parameters as key-value rows and
// materializes them into immutable snapshots. The pricing engine never reads
// this store directly: callers take one snapshot per calculation so
// concurrent quotations can never mix two configuration versions.
package settings

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kompass-app/kompass/internal/pricing"
)

const (
	keyExchangeRate        = "exchange_rate"
	keyMarginPercent       = "margin_percent"
	keyInsurancePercent    = "insurance_percent"
	keyInspectionCost      = "inspection_cost_usd"
	keyNationalizationCost = "nationalization_cost_cop"
)

// Store reads and writes pricing parameters.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Snapshot loads the stored parameters into a pricing.Config. Keys that were
// never saved fall back to the defaults; freight fields stay zero because
// freight is resolved per quotation, not globally.
func (s *Store) Snapshot(ctx context.Context) (pricing.Config, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return pricing.Config{}, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	cfg := pricing.DefaultConfig()
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return pricing.Config{}, fmt.Errorf("scan setting: %w", err)
		}

		value, err := decimal.NewFromString(raw)
		if err != nil {
			return pricing.Config{}, fmt.Errorf("setting %s holds non-numeric value %q: %w", key, raw, err)
		}

		switch key {
		case keyExchangeRate:
			cfg.ExchangeRate = value
		case keyMarginPercent:
			cfg.MarginPercent = value
		case keyInsurancePercent:
			cfg.InsurancePercent = value
		case keyInspectionCost:
			cfg.InspectionCostUSD = value
		case keyNationalizationCost:
			cfg.NationalizationCostCOP = value
		default:
			// Unknown keys belong to other subsystems, skip them.
		}
	}
	if err := rows.Err(); err != nil {
		return pricing.Config{}, fmt.Errorf("iterate settings: %w", err)
	}

	return cfg, nil
}

// Save validates and upserts the pricing parameters in one transaction.
// Freight fields on the argument are ignored.
func (s *Store) Save(ctx context.Context, cfg pricing.Config) error {
	// Freight is per quotation; neutralize it so Validate checks only the
	// stored fields.
	cfg.FreightIntlUSD = decimal.Zero
	cfg.FreightNationalCOP = decimal.Zero
	if err := cfg.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings transaction: %w", err)
	}

	pairs := []struct {
		key   string
		value decimal.Decimal
	}{
		{keyExchangeRate, cfg.ExchangeRate},
		{keyMarginPercent, cfg.MarginPercent},
		{keyInsurancePercent, cfg.InsurancePercent},
		{keyInspectionCost, cfg.InspectionCostUSD},
		{keyNationalizationCost, cfg.NationalizationCostCOP},
	}
	for _, pair := range pairs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
		`, pair.key, pair.value.String()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert setting %s: %w", pair.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings transaction: %w", err)
	}

	return nil
}
