package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LineItem represents one quotation line as priced FOB at origin.
type LineItem struct {
	// ProductRef is the catalog reference; empty for freeform items.
	ProductRef    string
	Quantity      int64
	UnitCostFOB   decimal.Decimal
	TariffPercent decimal.Decimal
}

// Config is an immutable snapshot of the pricing parameters active for one
// calculation. Percent fields are whole-number percentages (20 means 20%).
type Config struct {
	ExchangeRate           decimal.Decimal
	MarginPercent          decimal.Decimal
	InsurancePercent       decimal.Decimal
	InspectionCostUSD      decimal.Decimal
	NationalizationCostCOP decimal.Decimal
	FreightIntlUSD         decimal.Decimal
	FreightNationalCOP     decimal.Decimal
}

// DefaultConfig returns the standard pricing parameters used when the
// settings store has no overrides.
func DefaultConfig() Config {
	return Config{
		ExchangeRate:           decimal.NewFromInt(4200),
		MarginPercent:          decimal.NewFromInt(20),
		InsurancePercent:       decimal.NewFromFloat(1.5),
		InspectionCostUSD:      decimal.NewFromInt(150),
		NationalizationCostCOP: decimal.NewFromInt(200000),
		FreightIntlUSD:         decimal.Zero,
		FreightNationalCOP:     decimal.Zero,
	}
}

// Quote contains every intermediate and final value of the landed-cost
// calculation, at full precision. Rounding for display is the caller's job.
type Quote struct {
	SubtotalFOBUSD       decimal.Decimal
	TariffTotalUSD       decimal.Decimal
	FreightIntlUSD       decimal.Decimal
	InspectionUSD        decimal.Decimal
	InsuranceUSD         decimal.Decimal
	SubtotalUSD          decimal.Decimal
	SubtotalCOP          decimal.Decimal
	TotalBeforeMarginCOP decimal.Decimal
	MarginCOP            decimal.Decimal
	TotalCOP             decimal.Decimal
}

// LineItemError reports the first invalid line item found during validation.
type LineItemError struct {
	Index int
	Field string
}

func (e *LineItemError) Error() string {
	return fmt.Sprintf("item %d: %s inválido", e.Index, e.Field)
}

// ConfigError reports an out-of-range pricing parameter.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuración inválida: %s", e.Field)
}

var oneHundred = decimal.NewFromInt(100)

// Calculate computes the full landed-cost breakdown for a quotation.
//
// All inputs are validated before any arithmetic runs; there are no partial
// results. The summation over items follows input order so repeated runs are
// bit-for-bit identical. An empty item slice is valid: the flat fees still
// apply because a quotation represents one shipment.
func Calculate(items []LineItem, cfg Config) (Quote, error) {
	if err := cfg.Validate(); err != nil {
		return Quote{}, err
	}
	for i, item := range items {
		if err := validateItem(i, item); err != nil {
			return Quote{}, err
		}
	}

	subtotalFOB := decimal.Zero
	tariffTotal := decimal.Zero
	for _, item := range items {
		lineSubtotal := decimal.NewFromInt(item.Quantity).Mul(item.UnitCostFOB)
		lineTariff := lineSubtotal.Mul(item.TariffPercent).Div(oneHundred)
		subtotalFOB = subtotalFOB.Add(lineSubtotal)
		tariffTotal = tariffTotal.Add(lineTariff)
	}

	// Insurance covers FOB value plus international freight, not the CIF
	// total; the basis must not include the insurance itself.
	insurance := subtotalFOB.Add(cfg.FreightIntlUSD).Mul(cfg.InsurancePercent).Div(oneHundred)

	subtotalUSD := subtotalFOB.
		Add(tariffTotal).
		Add(cfg.FreightIntlUSD).
		Add(cfg.InspectionCostUSD).
		Add(insurance)

	subtotalCOP := subtotalUSD.Mul(cfg.ExchangeRate)
	beforeMargin := subtotalCOP.Add(cfg.FreightNationalCOP).Add(cfg.NationalizationCostCOP)
	margin := beforeMargin.Mul(cfg.MarginPercent).Div(oneHundred)

	return Quote{
		SubtotalFOBUSD:       subtotalFOB,
		TariffTotalUSD:       tariffTotal,
		FreightIntlUSD:       cfg.FreightIntlUSD,
		InspectionUSD:        cfg.InspectionCostUSD,
		InsuranceUSD:         insurance,
		SubtotalUSD:          subtotalUSD,
		SubtotalCOP:          subtotalCOP,
		TotalBeforeMarginCOP: beforeMargin,
		MarginCOP:            margin,
		TotalCOP:             beforeMargin.Add(margin),
	}, nil
}

func validateItem(index int, item LineItem) error {
	if item.Quantity < 1 {
		return &LineItemError{Index: index, Field: "quantity"}
	}
	if item.UnitCostFOB.IsNegative() {
		return &LineItemError{Index: index, Field: "unit_cost_fob"}
	}
	if item.TariffPercent.IsNegative() || item.TariffPercent.GreaterThan(oneHundred) {
		return &LineItemError{Index: index, Field: "tariff_percent"}
	}
	return nil
}

// Validate checks the parameter bounds: a positive exchange rate, percents
// within [0, 100], and non-negative flat fees. The settings store applies the
// same rules before persisting, so a stored snapshot is always calculable.
func (cfg Config) Validate() error {
	if !cfg.ExchangeRate.IsPositive() {
		return &ConfigError{Field: "exchange_rate"}
	}
	percents := []struct {
		name  string
		value decimal.Decimal
	}{
		{"margin_percent", cfg.MarginPercent},
		{"insurance_percent", cfg.InsurancePercent},
	}
	for _, pct := range percents {
		if pct.value.IsNegative() || pct.value.GreaterThan(oneHundred) {
			return &ConfigError{Field: pct.name}
		}
	}
	fees := []struct {
		name  string
		value decimal.Decimal
	}{
		{"inspection_cost_usd", cfg.InspectionCostUSD},
		{"nationalization_cost_cop", cfg.NationalizationCostCOP},
		{"freight_intl_usd", cfg.FreightIntlUSD},
		{"freight_national_cop", cfg.FreightNationalCOP},
	}
	for _, fee := range fees {
		if fee.value.IsNegative() {
			return &ConfigError{Field: fee.name}
		}
	}
	return nil
}
