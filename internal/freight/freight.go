// Package freight keeps the freight-rate table keyed by route and validity
// window. A missing rate is an error distinct from a configured zero rate:
// the pricing engine must never receive a made-up number for a route nobody
// priced.
package freight

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoRate indicates no rate covers the route on the reference date.
var ErrNoRate = errors.New("no freight rate configured for route")

// ErrNotFound indicates the referenced rate does not exist.
var ErrNotFound = errors.New("freight rate not found")

// Rate is one freight tariff for a route, active inside its validity window.
type Rate struct {
	ID          int64
	Origin      string
	Destination string
	IntlUSD     decimal.Decimal
	NationalCOP decimal.Decimal
	ValidFrom   time.Time
	// ValidUntil nil means open-ended.
	ValidUntil *time.Time
	Active     bool
	Notes      string
}

// Table administers and resolves freight rates.
type Table struct {
	db *sql.DB
}

func NewTable(db *sql.DB) *Table {
	return &Table{db: db}
}

const dateLayout = "2006-01-02"

// Resolve returns the rate active for the route on the reference date
// (valid_from <= date, and date <= valid_until when an upper bound exists).
// When several windows overlap, the most recently started one wins.
func (t *Table) Resolve(ctx context.Context, origin, destination string, date time.Time) (Rate, error) {
	day := date.Format(dateLayout)
	row := t.db.QueryRowContext(ctx, `
		SELECT id, origin, destination, intl_usd, national_cop, valid_from, valid_until, active, notes
		FROM freight_rates
		WHERE origin = ? AND destination = ?
		  AND active
		  AND valid_from <= ?
		  AND (valid_until IS NULL OR valid_until >= ?)
		ORDER BY valid_from DESC, id DESC
		LIMIT 1
	`, origin, destination, day, day)

	rate, err := scanRate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Rate{}, fmt.Errorf("%s -> %s on %s: %w", origin, destination, day, ErrNoRate)
	}
	if err != nil {
		return Rate{}, fmt.Errorf("query freight rate: %w", err)
	}

	return rate, nil
}

// List returns all rates for the admin screens, newest window first.
func (t *Table) List(ctx context.Context) ([]Rate, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT id, origin, destination, intl_usd, national_cop, valid_from, valid_until, active, notes
		FROM freight_rates
		ORDER BY origin, destination, valid_from DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query freight rates: %w", err)
	}
	defer rows.Close()

	rates := make([]Rate, 0)
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan freight rate: %w", err)
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate freight rates: %w", err)
	}

	return rates, nil
}

// Create stores a new rate and returns its id.
func (t *Table) Create(ctx context.Context, rate Rate) (int64, error) {
	if err := validate(rate); err != nil {
		return 0, err
	}

	var until any
	if rate.ValidUntil != nil {
		until = rate.ValidUntil.Format(dateLayout)
	}

	result, err := t.db.ExecContext(ctx, `
		INSERT INTO freight_rates (origin, destination, intl_usd, national_cop, valid_from, valid_until, active, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		strings.TrimSpace(rate.Origin),
		strings.TrimSpace(rate.Destination),
		rate.IntlUSD.String(),
		rate.NationalCOP.String(),
		rate.ValidFrom.Format(dateLayout),
		until,
		rate.Active,
		rate.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("insert freight rate: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read freight rate id: %w", err)
	}
	return id, nil
}

// Deactivate retires a rate without deleting its history.
func (t *Table) Deactivate(ctx context.Context, id int64) error {
	result, err := t.db.ExecContext(ctx, `
		UPDATE freight_rates
		SET active = FALSE, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate freight rate: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate freight rate: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("freight rate %d: %w", id, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRate(row rowScanner) (Rate, error) {
	var rate Rate
	var intlRaw, nationalRaw, fromRaw string
	var untilRaw sql.NullString

	if err := row.Scan(&rate.ID, &rate.Origin, &rate.Destination, &intlRaw, &nationalRaw, &fromRaw, &untilRaw, &rate.Active, &rate.Notes); err != nil {
		return Rate{}, err
	}

	var err error
	if rate.IntlUSD, err = decimal.NewFromString(intlRaw); err != nil {
		return Rate{}, fmt.Errorf("non-numeric intl_usd %q: %w", intlRaw, err)
	}
	if rate.NationalCOP, err = decimal.NewFromString(nationalRaw); err != nil {
		return Rate{}, fmt.Errorf("non-numeric national_cop %q: %w", nationalRaw, err)
	}
	if rate.ValidFrom, err = parseDay(fromRaw); err != nil {
		return Rate{}, fmt.Errorf("bad valid_from %q: %w", fromRaw, err)
	}
	if untilRaw.Valid {
		until, err := parseDay(untilRaw.String)
		if err != nil {
			return Rate{}, fmt.Errorf("bad valid_until %q: %w", untilRaw.String, err)
		}
		rate.ValidUntil = &until
	}

	return rate, nil
}

// parseDay accepts both plain dates and the datetime form sqlite may hand back.
func parseDay(raw string) (time.Time, error) {
	if len(raw) >= len(dateLayout) {
		raw = raw[:len(dateLayout)]
	}
	return time.Parse(dateLayout, raw)
}

func validate(rate Rate) error {
	if strings.TrimSpace(rate.Origin) == "" {
		return fmt.Errorf("origin es requerido")
	}
	if strings.TrimSpace(rate.Destination) == "" {
		return fmt.Errorf("destination es requerido")
	}
	if rate.IntlUSD.IsNegative() || rate.NationalCOP.IsNegative() {
		return fmt.Errorf("la tarifa debe ser mayor o igual a 0")
	}
	if rate.ValidFrom.IsZero() {
		return fmt.Errorf("valid_from es requerido")
	}
	if rate.ValidUntil != nil && rate.ValidUntil.Before(rate.ValidFrom) {
		return fmt.Errorf("valid_until debe ser posterior a valid_from")
	}
	return nil
}
