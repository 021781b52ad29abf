// Package catalog holds the supplier registry and the product catalog,
// including the category tree and the curated portfolio subset.
package catalog

import (
	"database/sql"
	"errors"
)

// ErrNotFound indicates the requested catalog record does not exist.
var ErrNotFound = errors.New("catalog record not found")

// Store gives access to suppliers, categories and products.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}
