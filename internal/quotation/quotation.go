// Package quotation persists quotations and their line items, and drives the
// pricing calculation that fills in the landed-cost breakdown.
package quotation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kompass-app/kompass/internal/pricing"
)

// Quotation statuses.
const (
	StatusBorrador  = "borrador"
	StatusEnviada   = "enviada"
	StatusAceptada  = "aceptada"
	StatusRechazada = "rechazada"
)

var validStatus = map[string]bool{
	StatusBorrador:  true,
	StatusEnviada:   true,
	StatusAceptada:  true,
	StatusRechazada: true,
}

// ErrNotFound indicates the quotation does not exist.
var ErrNotFound = errors.New("quotation not found")

// Quotation is one commercial offer for a client. Pricing is nil until the
// quotation has been priced at least once.
type Quotation struct {
	ID          int64
	Reference   string
	ClientID    *int64
	Origin      string
	Destination string
	Status      string
	Pricing     *pricing.Quote
	PricedAt    *time.Time
	Notes       string
	CreatedAt   string
}

// Item is one stored quotation line. TariffPercent is the rate used for
// freeform lines; product-linked lines are re-resolved from the HS registry
// at pricing time.
type Item struct {
	ID             int64
	QuotationID    int64
	ProductRef     string
	Description    string
	Quantity       int64
	UnitCostFOBUSD decimal.Decimal
	TariffPercent  decimal.Decimal
	Position       int64
}

// Repository persists quotations and items.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create stores an empty draft quotation and returns it with its generated
// reference.
func (r *Repository) Create(ctx context.Context, q Quotation) (Quotation, error) {
	if strings.TrimSpace(q.Origin) == "" {
		return Quotation{}, fmt.Errorf("origin es requerido")
	}
	if strings.TrimSpace(q.Destination) == "" {
		return Quotation{}, fmt.Errorf("destination es requerido")
	}

	q.Reference = uuid.NewString()
	q.Status = StatusBorrador

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO quotations (reference, client_id, origin, destination, status, notes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, q.Reference, q.ClientID, strings.TrimSpace(q.Origin), strings.TrimSpace(q.Destination), q.Status, q.Notes)
	if err != nil {
		return Quotation{}, fmt.Errorf("insert quotation: %w", err)
	}

	if q.ID, err = result.LastInsertId(); err != nil {
		return Quotation{}, fmt.Errorf("read quotation id: %w", err)
	}
	return q, nil
}

const quotationColumns = `
	id, reference, client_id, origin, destination, status,
	subtotal_fob_usd, tariff_total_usd, freight_intl_usd, inspection_usd, insurance_usd,
	subtotal_usd, subtotal_cop, total_before_margin_cop, margin_cop, total_cop,
	priced_at, notes, created_at
`

// Get loads one quotation with its persisted pricing snapshot, if any.
func (r *Repository) Get(ctx context.Context, id int64) (Quotation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id = ?`, id)

	q, err := scanQuotation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Quotation{}, ErrNotFound
	}
	if err != nil {
		return Quotation{}, err
	}
	return q, nil
}

// List returns quotations newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status string) ([]Quotation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+quotationColumns+`
		FROM quotations
		WHERE (? = '' OR status = ?)
		ORDER BY datetime(created_at) DESC, id DESC
	`, status, status)
	if err != nil {
		return nil, fmt.Errorf("query quotations: %w", err)
	}
	defer rows.Close()

	quotations := make([]Quotation, 0)
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, err
		}
		quotations = append(quotations, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotations: %w", err)
	}

	return quotations, nil
}

// UpdateStatus moves the quotation through its lifecycle.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status string) error {
	if !validStatus[status] {
		return fmt.Errorf("estado inválido: %s", status)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE quotations
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, id)
	if err != nil {
		return fmt.Errorf("update quotation status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update quotation status: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// AddItem appends a line to a quotation. The same bounds the engine enforces
// apply here so invalid lines never reach the database.
func (r *Repository) AddItem(ctx context.Context, item Item) (int64, error) {
	if item.Quantity < 1 {
		return 0, fmt.Errorf("quantity debe ser mayor o igual a 1")
	}
	if item.UnitCostFOBUSD.IsNegative() {
		return 0, fmt.Errorf("unit_cost_fob_usd debe ser mayor o igual a 0")
	}
	if item.TariffPercent.IsNegative() || item.TariffPercent.GreaterThan(decimal.NewFromInt(100)) {
		return 0, fmt.Errorf("tariff_percent debe estar entre 0 y 100")
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM quotations WHERE id = ?)`, item.QuotationID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check quotation existence: %w", err)
	}
	if !exists {
		return 0, ErrNotFound
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO quotation_items (quotation_id, product_ref, description, quantity, unit_cost_fob_usd, tariff_percent, position)
		VALUES (?, ?, ?, ?, ?, ?, COALESCE((SELECT MAX(position) + 1 FROM quotation_items WHERE quotation_id = ?), 0))
	`, item.QuotationID, item.ProductRef, item.Description, item.Quantity, item.UnitCostFOBUSD.String(), item.TariffPercent.String(), item.QuotationID)
	if err != nil {
		return 0, fmt.Errorf("insert quotation item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read quotation item id: %w", err)
	}
	return id, nil
}

// RemoveItem deletes one line from a quotation.
func (r *Repository) RemoveItem(ctx context.Context, itemID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM quotation_items WHERE id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("delete quotation item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete quotation item: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Items returns the lines of a quotation in stable position order.
func (r *Repository) Items(ctx context.Context, quotationID int64) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, quotation_id, product_ref, description, quantity, unit_cost_fob_usd, tariff_percent, position
		FROM quotation_items
		WHERE quotation_id = ?
		ORDER BY position, id
	`, quotationID)
	if err != nil {
		return nil, fmt.Errorf("query quotation items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		var costRaw, tariffRaw string
		if err := rows.Scan(&item.ID, &item.QuotationID, &item.ProductRef, &item.Description, &item.Quantity, &costRaw, &tariffRaw, &item.Position); err != nil {
			return nil, fmt.Errorf("scan quotation item: %w", err)
		}
		if item.UnitCostFOBUSD, err = decimal.NewFromString(costRaw); err != nil {
			return nil, fmt.Errorf("item %d holds non-numeric cost %q: %w", item.ID, costRaw, err)
		}
		if item.TariffPercent, err = decimal.NewFromString(tariffRaw); err != nil {
			return nil, fmt.Errorf("item %d holds non-numeric tariff %q: %w", item.ID, tariffRaw, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotation items: %w", err)
	}

	return items, nil
}

// savePricing writes the full breakdown. Every engine output maps one-to-one
// to a column, stored as text so the round trip is exact.
func (r *Repository) savePricing(ctx context.Context, id int64, quote pricing.Quote, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE quotations
		SET subtotal_fob_usd = ?, tariff_total_usd = ?, freight_intl_usd = ?, inspection_usd = ?, insurance_usd = ?,
		    subtotal_usd = ?, subtotal_cop = ?, total_before_margin_cop = ?, margin_cop = ?, total_cop = ?,
		    priced_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`,
		quote.SubtotalFOBUSD.String(),
		quote.TariffTotalUSD.String(),
		quote.FreightIntlUSD.String(),
		quote.InspectionUSD.String(),
		quote.InsuranceUSD.String(),
		quote.SubtotalUSD.String(),
		quote.SubtotalCOP.String(),
		quote.TotalBeforeMarginCOP.String(),
		quote.MarginCOP.String(),
		quote.TotalCOP.String(),
		at.UTC().Format(time.DateTime),
		id,
	)
	if err != nil {
		return fmt.Errorf("save quotation pricing: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save quotation pricing: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func scanQuotation(row interface{ Scan(dest ...any) error }) (Quotation, error) {
	var q Quotation
	var clientID sql.NullInt64
	var priced [10]sql.NullString
	var pricedAt sql.NullString

	err := row.Scan(
		&q.ID, &q.Reference, &clientID, &q.Origin, &q.Destination, &q.Status,
		&priced[0], &priced[1], &priced[2], &priced[3], &priced[4],
		&priced[5], &priced[6], &priced[7], &priced[8], &priced[9],
		&pricedAt, &q.Notes, &q.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quotation{}, err
		}
		return Quotation{}, fmt.Errorf("scan quotation: %w", err)
	}

	if clientID.Valid {
		q.ClientID = &clientID.Int64
	}

	if priced[0].Valid {
		values := make([]decimal.Decimal, len(priced))
		for i, raw := range priced {
			if values[i], err = decimal.NewFromString(raw.String); err != nil {
				return Quotation{}, fmt.Errorf("quotation %d holds non-numeric pricing value %q: %w", q.ID, raw.String, err)
			}
		}
		q.Pricing = &pricing.Quote{
			SubtotalFOBUSD:       values[0],
			TariffTotalUSD:       values[1],
			FreightIntlUSD:       values[2],
			InspectionUSD:        values[3],
			InsuranceUSD:         values[4],
			SubtotalUSD:          values[5],
			SubtotalCOP:          values[6],
			TotalBeforeMarginCOP: values[7],
			MarginCOP:            values[8],
			TotalCOP:             values[9],
		}
	}

	if pricedAt.Valid {
		at, err := parsePricedAt(pricedAt.String)
		if err != nil {
			return Quotation{}, fmt.Errorf("quotation %d holds bad priced_at %q: %w", q.ID, pricedAt.String, err)
		}
		q.PricedAt = &at
	}

	return q, nil
}

// priced_at is written as "2006-01-02 15:04:05", but the driver hands
// DATETIME columns back as time values, which database/sql renders as
// RFC3339 when scanned into a string. Accept both forms.
func parsePricedAt(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateTime} {
		if at, err := time.Parse(layout, raw); err == nil {
			return at, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp")
}
