package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Category is one node of the product classification tree.
type Category struct {
	ID       int64
	Name     string
	ParentID *int64
}

// CategoryNode is a category plus its resolved children.
type CategoryNode struct {
	Category
	Children []*CategoryNode
}

// ErrCategoryInUse indicates the category still has children or products.
var ErrCategoryInUse = fmt.Errorf("la categoría tiene subcategorías o productos asociados")

// CreateCategory adds a node under the given parent (nil for a root node).
func (s *Store) CreateCategory(ctx context.Context, name string, parentID *int64) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("name es requerido")
	}

	if parentID != nil {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM categories WHERE id = ?)`, *parentID).Scan(&exists); err != nil {
			return 0, fmt.Errorf("check parent category: %w", err)
		}
		if !exists {
			return 0, ErrNotFound
		}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, parent_id)
		VALUES (?, ?)
	`, name, parentID)
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read category id: %w", err)
	}
	return id, nil
}

// Tree returns the whole category hierarchy as nested nodes, children sorted
// by name under each parent.
func (s *Store) Tree(ctx context.Context) ([]*CategoryNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, parent_id
		FROM categories
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*CategoryNode)
	order := make([]*CategoryNode, 0)
	for rows.Next() {
		var cat Category
		var parent sql.NullInt64
		if err := rows.Scan(&cat.ID, &cat.Name, &parent); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if parent.Valid {
			cat.ParentID = &parent.Int64
		}
		node := &CategoryNode{Category: cat}
		byID[cat.ID] = node
		order = append(order, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	roots := make([]*CategoryNode, 0)
	for _, node := range order {
		if node.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := byID[*node.ParentID]
		if !ok {
			// Orphan row, surface it at the root rather than losing it.
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	return roots, nil
}

// DeleteCategory removes a leaf category. Nodes with children or with
// products assigned are rejected.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	var inUse bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM categories WHERE parent_id = ?)
		    OR EXISTS(SELECT 1 FROM products WHERE category_id = ?)
	`, id, id).Scan(&inUse)
	if err != nil {
		return fmt.Errorf("check category usage: %w", err)
	}
	if inUse {
		return ErrCategoryInUse
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
