// Package seed performs the idempotent startup seed: the admin user, the
// default pricing parameters, a starter HS-code registry, and the default
// freight route so a fresh install can price a quotation right away.
package seed

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

var defaultSettings = []struct {
	key   string
	value string
}{
	{"exchange_rate", "4200"},
	{"margin_percent", "20"},
	{"insurance_percent", "1.5"},
	{"inspection_cost_usd", "150"},
	{"nationalization_cost_cop", "200000"},
}

const (
	defaultRouteOrigin      = "Shenzhen"
	defaultRouteDestination = "Buenaventura"
)

var defaultHSCodes = []struct {
	code        string
	description string
	tariff      string
}{
	{"9503.00.99", "Juguetes varios", "15"},
	{"4202.92.00", "Maletas y mochilas", "20"},
	{"8516.79.00", "Electrodomésticos menores", "10"},
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := seedSettings(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := seedHSCodes(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := seedFreightRoute(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(tx *sql.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, hashPassword(password)); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

func seedSettings(tx *sql.Tx, stats *Stats) error {
	for _, setting := range defaultSettings {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM settings WHERE key = ?)`, setting.key).Scan(&exists); err != nil {
			return fmt.Errorf("check setting %s existence: %w", setting.key, err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)`, setting.key, setting.value); err != nil {
			return fmt.Errorf("insert setting %s: %w", setting.key, err)
		}
		stats.Inserts++
	}
	return nil
}

func seedHSCodes(tx *sql.Tx, stats *Stats) error {
	for _, hc := range defaultHSCodes {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM hs_codes WHERE code = ? LIMIT 1)`, hc.code).Scan(&exists); err != nil {
			return fmt.Errorf("check hs code %s existence: %w", hc.code, err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO hs_codes (code, description, tariff_percent)
			VALUES (?, ?, ?)
		`, hc.code, hc.description, hc.tariff); err != nil {
			return fmt.Errorf("insert hs code %s: %w", hc.code, err)
		}
		stats.Inserts++
	}
	return nil
}

func seedFreightRoute(tx *sql.Tx, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM freight_rates WHERE origin = ? AND destination = ? LIMIT 1)
	`, defaultRouteOrigin, defaultRouteDestination).Scan(&exists); err != nil {
		return fmt.Errorf("check default freight route existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`
		INSERT INTO freight_rates (origin, destination, intl_usd, national_cop, valid_from, active, notes)
		VALUES (?, ?, '1800', '950000', '2026-01-01', TRUE, 'Ruta marítima inicial')
	`, defaultRouteOrigin, defaultRouteDestination); err != nil {
		return fmt.Errorf("insert default freight route: %w", err)
	}
	stats.Inserts++
	return nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
