package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is one catalog entry quoted FOB in USD. HSCode empty means the
// product is unclassified and prices at 0% tariff.
type Product struct {
	ID             int64
	Reference      string
	Name           string
	SupplierID     *int64
	CategoryID     *int64
	HSCode         string
	UnitCostFOBUSD decimal.Decimal
	MOQ            int64
	InPortfolio    bool
	Active         bool
	Notes          string
}

// ProductFilter narrows ListProducts.
type ProductFilter struct {
	Query         string
	CategoryID    *int64
	SupplierID    *int64
	PortfolioOnly bool
}

const productColumns = `id, reference, name, supplier_id, category_id, COALESCE(hs_code, ''), unit_cost_fob_usd, moq, in_portfolio, active, notes`

// ListProducts returns catalog entries matching the filter, ordered by reference.
func (s *Store) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	query := strings.TrimSpace(filter.Query)
	search := "%" + query + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE (? = '' OR reference LIKE ? OR name LIKE ?)
		  AND (? IS NULL OR category_id = ?)
		  AND (? IS NULL OR supplier_id = ?)
		  AND (? = FALSE OR in_portfolio)
		ORDER BY reference
	`,
		query, search, search,
		filter.CategoryID, filter.CategoryID,
		filter.SupplierID, filter.SupplierID,
		filter.PortfolioOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

// GetProductByReference loads one product by its catalog reference.
func (s *Store) GetProductByReference(ctx context.Context, reference string) (Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE reference = ?
	`, reference)

	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}

	return product, nil
}

// CreateProduct stores a new catalog entry and returns its id.
func (s *Store) CreateProduct(ctx context.Context, p Product) (int64, error) {
	if err := validateProduct(p); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO products (reference, name, supplier_id, category_id, hs_code, unit_cost_fob_usd, moq, in_portfolio, active, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		strings.TrimSpace(p.Reference),
		strings.TrimSpace(p.Name),
		p.SupplierID,
		p.CategoryID,
		nullIfEmpty(p.HSCode),
		p.UnitCostFOBUSD.String(),
		p.MOQ,
		p.InPortfolio,
		p.Active,
		p.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read product id: %w", err)
	}
	return id, nil
}

// UpdateProduct modifies an existing catalog entry.
func (s *Store) UpdateProduct(ctx context.Context, p Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET reference = ?, name = ?, supplier_id = ?, category_id = ?, hs_code = ?,
		    unit_cost_fob_usd = ?, moq = ?, in_portfolio = ?, active = ?, notes = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`,
		strings.TrimSpace(p.Reference),
		strings.TrimSpace(p.Name),
		p.SupplierID,
		p.CategoryID,
		nullIfEmpty(p.HSCode),
		p.UnitCostFOBUSD.String(),
		p.MOQ,
		p.InPortfolio,
		p.Active,
		p.Notes,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// SetPortfolio flips the curated-portfolio flag for one product.
func (s *Store) SetPortfolio(ctx context.Context, id int64, inPortfolio bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET in_portfolio = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, inPortfolio, id)
	if err != nil {
		return fmt.Errorf("update portfolio flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update portfolio flag: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var p Product
	var supplierID, categoryID sql.NullInt64
	var costRaw string

	err := row.Scan(&p.ID, &p.Reference, &p.Name, &supplierID, &categoryID, &p.HSCode, &costRaw, &p.MOQ, &p.InPortfolio, &p.Active, &p.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, err
		}
		return Product{}, fmt.Errorf("scan product: %w", err)
	}

	if supplierID.Valid {
		p.SupplierID = &supplierID.Int64
	}
	if categoryID.Valid {
		p.CategoryID = &categoryID.Int64
	}
	if p.UnitCostFOBUSD, err = decimal.NewFromString(costRaw); err != nil {
		return Product{}, fmt.Errorf("product %s holds non-numeric cost %q: %w", p.Reference, costRaw, err)
	}

	return p, nil
}

func validateProduct(p Product) error {
	if strings.TrimSpace(p.Reference) == "" {
		return fmt.Errorf("reference es requerido")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name es requerido")
	}
	if p.UnitCostFOBUSD.IsNegative() {
		return fmt.Errorf("unit_cost_fob_usd debe ser mayor o igual a 0")
	}
	if p.MOQ < 1 {
		return fmt.Errorf("moq debe ser mayor o igual a 1")
	}
	return nil
}

func nullIfEmpty(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}
