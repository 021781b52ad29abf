package catalog

import (
	"context"
	"fmt"
	"strings"
)

// Supplier is a sourcing partner, usually a factory or trading agent in China.
type Supplier struct {
	ID          int64
	Name        string
	ContactName string
	City        string
	Email       string
	WeChat      string
	Notes       string
	Active      bool
}

// ListSuppliers returns suppliers, optionally filtered by a name substring.
func (s *Store) ListSuppliers(ctx context.Context, query string) ([]Supplier, error) {
	query = strings.TrimSpace(query)
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact_name, city, email, wechat, notes, active
		FROM suppliers
		WHERE (? = '' OR name LIKE ? OR city LIKE ?)
		ORDER BY name
	`, query, search, search)
	if err != nil {
		return nil, fmt.Errorf("query suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := make([]Supplier, 0)
	for rows.Next() {
		var sup Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.ContactName, &sup.City, &sup.Email, &sup.WeChat, &sup.Notes, &sup.Active); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suppliers: %w", err)
	}

	return suppliers, nil
}

// CreateSupplier stores a new supplier and returns its id.
func (s *Store) CreateSupplier(ctx context.Context, sup Supplier) (int64, error) {
	if strings.TrimSpace(sup.Name) == "" {
		return 0, fmt.Errorf("name es requerido")
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (name, contact_name, city, email, wechat, notes, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, strings.TrimSpace(sup.Name), sup.ContactName, sup.City, sup.Email, sup.WeChat, sup.Notes, sup.Active)
	if err != nil {
		return 0, fmt.Errorf("insert supplier: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read supplier id: %w", err)
	}
	return id, nil
}

// UpdateSupplier modifies an existing supplier.
func (s *Store) UpdateSupplier(ctx context.Context, sup Supplier) error {
	if strings.TrimSpace(sup.Name) == "" {
		return fmt.Errorf("name es requerido")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE suppliers
		SET name = ?, contact_name = ?, city = ?, email = ?, wechat = ?, notes = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, strings.TrimSpace(sup.Name), sup.ContactName, sup.City, sup.Email, sup.WeChat, sup.Notes, sup.Active, sup.ID)
	if err != nil {
		return fmt.Errorf("update supplier: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update supplier: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
