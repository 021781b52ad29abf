// Package crm manages clients and their position in the sales pipeline.
// The pipeline is a Kanban board on the UI side; here it is a small state
// machine over the stage column, with every move recorded for audit.
package crm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Pipeline stages, in board order.
const (
	StageLead        = "lead"
	StageContactado  = "contactado"
	StageCotizado    = "cotizado"
	StageNegociacion = "negociacion"
	StageGanado      = "ganado"
	StagePerdido     = "perdido"
)

var stageOrder = map[string]int{
	StageLead:        0,
	StageContactado:  1,
	StageCotizado:    2,
	StageNegociacion: 3,
	StageGanado:      4,
	StagePerdido:     5,
}

// ErrNotFound indicates the client does not exist.
var ErrNotFound = errors.New("client not found")

// TransitionError reports a pipeline move that the state machine rejects.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transición inválida de %s a %s", e.From, e.To)
}

// Client is one CRM contact.
type Client struct {
	ID      int64
	Name    string
	Company string
	Email   string
	Phone   string
	City    string
	Notes   string
	Stage   string
	Active  bool
}

// StageMove is one recorded pipeline transition.
type StageMove struct {
	ID        int64
	ClientID  int64
	FromStage string
	ToStage   string
	MovedAt   string
}

// Store persists clients and their stage history.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// allowedTransition implements the board rules: moving forward one stage at a
// time, dropping to perdido from anywhere, and reopening a lost client back
// to lead. Everything else is rejected.
func allowedTransition(from, to string) bool {
	fromIdx, okFrom := stageOrder[from]
	toIdx, okTo := stageOrder[to]
	if !okFrom || !okTo || from == to {
		return false
	}
	if to == StagePerdido {
		return from != StageGanado
	}
	if from == StagePerdido {
		return to == StageLead
	}
	return toIdx == fromIdx+1
}

// CreateClient stores a new client starting at the lead stage.
func (s *Store) CreateClient(ctx context.Context, c Client) (int64, error) {
	if strings.TrimSpace(c.Name) == "" {
		return 0, fmt.Errorf("name es requerido")
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (name, company, email, phone, city, notes, stage, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, TRUE)
	`, strings.TrimSpace(c.Name), c.Company, c.Email, c.Phone, c.City, c.Notes, StageLead)
	if err != nil {
		return 0, fmt.Errorf("insert client: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read client id: %w", err)
	}
	return id, nil
}

// GetClient loads one client.
func (s *Store) GetClient(ctx context.Context, id int64) (Client, error) {
	var c Client
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, company, email, phone, city, notes, stage, active
		FROM clients
		WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Company, &c.Email, &c.Phone, &c.City, &c.Notes, &c.Stage, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, fmt.Errorf("query client: %w", err)
	}

	return c, nil
}

// ListClients returns clients, optionally limited to one pipeline stage.
func (s *Store) ListClients(ctx context.Context, stage string) ([]Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, company, email, phone, city, notes, stage, active
		FROM clients
		WHERE (? = '' OR stage = ?)
		ORDER BY name
	`, stage, stage)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	clients := make([]Client, 0)
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Company, &c.Email, &c.Phone, &c.City, &c.Notes, &c.Stage, &c.Active); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}

	return clients, nil
}

// UpdateClient modifies contact data. The stage is moved only through Move.
func (s *Store) UpdateClient(ctx context.Context, c Client) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name es requerido")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET name = ?, company = ?, email = ?, phone = ?, city = ?, notes = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, strings.TrimSpace(c.Name), c.Company, c.Email, c.Phone, c.City, c.Notes, c.Active, c.ID)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Move transitions a client to another pipeline stage, validating the move
// and recording it in the stage history, all in one transaction.
func (s *Store) Move(ctx context.Context, clientID int64, toStage string) error {
	if _, ok := stageOrder[toStage]; !ok {
		return &TransitionError{From: "?", To: toStage}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stage transaction: %w", err)
	}

	var fromStage string
	err = tx.QueryRowContext(ctx, `SELECT stage FROM clients WHERE id = ?`, clientID).Scan(&fromStage)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return ErrNotFound
	}
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("query client stage: %w", err)
	}

	if !allowedTransition(fromStage, toStage) {
		_ = tx.Rollback()
		return &TransitionError{From: fromStage, To: toStage}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE clients
		SET stage = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, toStage, clientID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update client stage: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO client_stage_history (client_id, from_stage, to_stage)
		VALUES (?, ?, ?)
	`, clientID, fromStage, toStage); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert stage history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stage transaction: %w", err)
	}

	return nil
}

// History returns the recorded moves of a client, oldest first.
func (s *Store) History(ctx context.Context, clientID int64) ([]StageMove, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, from_stage, to_stage, moved_at
		FROM client_stage_history
		WHERE client_id = ?
		ORDER BY id
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("query stage history: %w", err)
	}
	defer rows.Close()

	moves := make([]StageMove, 0)
	for rows.Next() {
		var m StageMove
		if err := rows.Scan(&m.ID, &m.ClientID, &m.FromStage, &m.ToStage, &m.MovedAt); err != nil {
			return nil, fmt.Errorf("scan stage move: %w", err)
		}
		moves = append(moves, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage history: %w", err)
	}

	return moves, nil
}
