package tariff

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kompass-app/kompass/internal/db"
	"github.com/kompass-app/kompass/migrations"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return NewRegistry(database)
}

func TestResolveReturnsRegisteredTariff(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Create(ctx, HSCode{
		Code:          "9503.00.99",
		Description:   "Juguetes varios",
		TariffPercent: decimal.RequireFromString("15"),
	})
	if err != nil {
		t.Fatalf("create hs code: %v", err)
	}

	percent, err := registry.Resolve(ctx, "9503.00.99")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !percent.Equal(decimal.RequireFromString("15")) {
		t.Fatalf("percent = %s, want 15", percent)
	}
}

func TestResolveUnclassifiedIsZero(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	for _, code := range []string{"", "   ", "0000.00.00"} {
		percent, err := registry.Resolve(ctx, code)
		if err != nil {
			t.Fatalf("resolve %q: %v", code, err)
		}
		if !percent.IsZero() {
			t.Fatalf("resolve %q = %s, want 0", code, percent)
		}
	}
}

func TestCreateRejectsOutOfRangeTariff(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := registry.Create(context.Background(), HSCode{
		Code:          "8501.10",
		TariffPercent: decimal.RequireFromString("120"),
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestUpdateMissingCodeReturnsNotFound(t *testing.T) {
	registry := newTestRegistry(t)

	err := registry.Update(context.Background(), HSCode{
		ID:            999,
		Code:          "8501.10",
		TariffPercent: decimal.RequireFromString("5"),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrdersByCode(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	for _, hc := range []HSCode{
		{Code: "9503.00.99", TariffPercent: decimal.RequireFromString("15")},
		{Code: "4202.92", TariffPercent: decimal.RequireFromString("20")},
	} {
		if _, err := registry.Create(ctx, hc); err != nil {
			t.Fatalf("create %s: %v", hc.Code, err)
		}
	}

	codes, err := registry.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("expected 2 codes, got %d", len(codes))
	}
	if codes[0].Code != "4202.92" || codes[1].Code != "9503.00.99" {
		t.Fatalf("codes not ordered: %+v", codes)
	}
}
