package quotation

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kompass-app/kompass/internal/catalog"
	"github.com/kompass-app/kompass/internal/db"
	"github.com/kompass-app/kompass/internal/freight"
	"github.com/kompass-app/kompass/internal/pricing"
	"github.com/kompass-app/kompass/internal/settings"
	"github.com/kompass-app/kompass/internal/tariff"
	"github.com/kompass-app/kompass/migrations"
)

type fixture struct {
	db      *sql.DB
	repo    *Repository
	service *Service
	catalog *catalog.Store
	tariffs *tariff.Registry
	freight *freight.Table
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	repo := NewRepository(database)
	cat := catalog.NewStore(database)
	tariffs := tariff.NewRegistry(database)
	freightTable := freight.NewTable(database)
	service := NewService(repo, settings.NewStore(database), tariffs, freightTable, cat, zerolog.Nop())
	service.now = func() time.Time {
		return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	}

	return &fixture{
		db:      database,
		repo:    repo,
		service: service,
		catalog: cat,
		tariffs: tariffs,
		freight: freightTable,
	}
}

func (f *fixture) seedRoute(t *testing.T, intlUSD, nationalCOP string) {
	t.Helper()

	if _, err := f.freight.Create(context.Background(), freight.Rate{
		Origin:      "Shenzhen",
		Destination: "Buenaventura",
		IntlUSD:     decimal.RequireFromString(intlUSD),
		NationalCOP: decimal.RequireFromString(nationalCOP),
		ValidFrom:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:      true,
	}); err != nil {
		t.Fatalf("seed freight rate: %v", err)
	}
}

func (f *fixture) newQuotation(t *testing.T) Quotation {
	t.Helper()

	q, err := f.repo.Create(context.Background(), Quotation{Origin: "Shenzhen", Destination: "Buenaventura"})
	if err != nil {
		t.Fatalf("create quotation: %v", err)
	}
	return q
}

func TestPriceSingleItemQuotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedRoute(t, "800", "500000")

	q := f.newQuotation(t)
	if _, err := f.repo.AddItem(ctx, Item{
		QuotationID:    q.ID,
		Description:    "Carro a control remoto",
		Quantity:       100,
		UnitCostFOBUSD: decimal.RequireFromString("25.00"),
		TariffPercent:  decimal.RequireFromString("15"),
	}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	result, err := f.service.Price(ctx, q.ID)
	if err != nil {
		t.Fatalf("price: %v", err)
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"SubtotalFOBUSD", result.Quote.SubtotalFOBUSD, "2500.00"},
		{"TariffTotalUSD", result.Quote.TariffTotalUSD, "375.00"},
		{"InsuranceUSD", result.Quote.InsuranceUSD, "49.50"},
		{"SubtotalUSD", result.Quote.SubtotalUSD, "3874.50"},
		{"SubtotalCOP", result.Quote.SubtotalCOP, "16272900"},
		{"TotalBeforeMarginCOP", result.Quote.TotalBeforeMarginCOP, "16972900"},
		{"MarginCOP", result.Quote.MarginCOP, "3394580"},
		{"TotalCOP", result.Quote.TotalCOP, "20367480"},
	}
	for _, check := range checks {
		if !check.got.Equal(decimal.RequireFromString(check.want)) {
			t.Fatalf("%s = %s, want %s", check.name, check.got, check.want)
		}
	}
}

func TestPricePersistsAndReloadsExactly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedRoute(t, "800", "500000")

	q := f.newQuotation(t)
	if _, err := f.repo.AddItem(ctx, Item{
		QuotationID:    q.ID,
		Quantity:       7,
		UnitCostFOBUSD: decimal.RequireFromString("3.33"),
		TariffPercent:  decimal.RequireFromString("19"),
	}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	result, err := f.service.Price(ctx, q.ID)
	if err != nil {
		t.Fatalf("price: %v", err)
	}

	reloaded, err := f.repo.Get(ctx, q.ID)
	if err != nil {
		t.Fatalf("reload quotation: %v", err)
	}
	if reloaded.Pricing == nil {
		t.Fatalf("expected persisted pricing")
	}
	if reloaded.PricedAt == nil {
		t.Fatalf("expected priced_at to be set")
	}
	wantAt := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	if !reloaded.PricedAt.Equal(wantAt) {
		t.Fatalf("expected priced_at %s, got %s", wantAt, reloaded.PricedAt)
	}

	pairs := []struct {
		name       string
		got, saved decimal.Decimal
	}{
		{"SubtotalFOBUSD", result.Quote.SubtotalFOBUSD, reloaded.Pricing.SubtotalFOBUSD},
		{"TariffTotalUSD", result.Quote.TariffTotalUSD, reloaded.Pricing.TariffTotalUSD},
		{"FreightIntlUSD", result.Quote.FreightIntlUSD, reloaded.Pricing.FreightIntlUSD},
		{"InspectionUSD", result.Quote.InspectionUSD, reloaded.Pricing.InspectionUSD},
		{"InsuranceUSD", result.Quote.InsuranceUSD, reloaded.Pricing.InsuranceUSD},
		{"SubtotalUSD", result.Quote.SubtotalUSD, reloaded.Pricing.SubtotalUSD},
		{"SubtotalCOP", result.Quote.SubtotalCOP, reloaded.Pricing.SubtotalCOP},
		{"TotalBeforeMarginCOP", result.Quote.TotalBeforeMarginCOP, reloaded.Pricing.TotalBeforeMarginCOP},
		{"MarginCOP", result.Quote.MarginCOP, reloaded.Pricing.MarginCOP},
		{"TotalCOP", result.Quote.TotalCOP, reloaded.Pricing.TotalCOP},
	}
	for _, pair := range pairs {
		if !pair.got.Equal(pair.saved) {
			t.Fatalf("%s: computed %s but reloaded %s", pair.name, pair.got, pair.saved)
		}
	}
}

func TestPriceEmptyQuotationStillPaysFlatFees(t *testing.T) {
	f := newFixture(t)
	f.seedRoute(t, "800", "500000")

	q := f.newQuotation(t)

	result, err := f.service.Price(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("price empty quotation: %v", err)
	}

	if !result.Quote.SubtotalFOBUSD.IsZero() {
		t.Fatalf("SubtotalFOBUSD = %s, want 0", result.Quote.SubtotalFOBUSD)
	}
	if !result.Quote.TotalCOP.Equal(decimal.RequireFromString("5688480")) {
		t.Fatalf("TotalCOP = %s, want 5688480", result.Quote.TotalCOP)
	}
}

func TestPriceUsesProductClassification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedRoute(t, "800", "500000")

	if _, err := f.tariffs.Create(ctx, tariff.HSCode{
		Code:          "9503.00.99",
		TariffPercent: decimal.RequireFromString("15"),
	}); err != nil {
		t.Fatalf("create hs code: %v", err)
	}
	if _, err := f.catalog.CreateProduct(ctx, catalog.Product{
		Reference:      "TOY-001",
		Name:           "Carro a control remoto",
		HSCode:         "9503.00.99",
		UnitCostFOBUSD: decimal.RequireFromString("25.00"),
		MOQ:            100,
		Active:         true,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := f.catalog.CreateProduct(ctx, catalog.Product{
		Reference:      "BAG-014",
		Name:           "Mochila escolar",
		UnitCostFOBUSD: decimal.RequireFromString("7.80"),
		MOQ:            500,
		Active:         true,
	}); err != nil {
		t.Fatalf("create unclassified product: %v", err)
	}

	q := f.newQuotation(t)
	// The stored tariff on the line is stale on purpose: the product's
	// current classification must win.
	if _, err := f.repo.AddItem(ctx, Item{
		QuotationID:    q.ID,
		ProductRef:     "TOY-001",
		Quantity:       100,
		UnitCostFOBUSD: decimal.RequireFromString("25.00"),
		TariffPercent:  decimal.RequireFromString("99"),
	}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := f.repo.AddItem(ctx, Item{
		QuotationID:    q.ID,
		ProductRef:     "BAG-014",
		Quantity:       10,
		UnitCostFOBUSD: decimal.RequireFromString("7.80"),
	}); err != nil {
		t.Fatalf("add unclassified item: %v", err)
	}

	result, err := f.service.Price(ctx, q.ID)
	if err != nil {
		t.Fatalf("price: %v", err)
	}

	// 2500 * 15% = 375; the unclassified line contributes no tariff.
	if !result.Quote.TariffTotalUSD.Equal(decimal.RequireFromString("375")) {
		t.Fatalf("TariffTotalUSD = %s, want 375", result.Quote.TariffTotalUSD)
	}
	if len(result.Unclassified) != 1 || result.Unclassified[0] != "BAG-014" {
		t.Fatalf("unexpected unclassified refs: %v", result.Unclassified)
	}
}

func TestPriceFailsWithoutFreightRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// No route seeded.

	q := f.newQuotation(t)

	_, err := f.service.Price(ctx, q.ID)
	if !errors.Is(err, freight.ErrNoRate) {
		t.Fatalf("expected ErrNoRate, got %v", err)
	}

	// Nothing was persisted.
	reloaded, err := f.repo.Get(ctx, q.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Pricing != nil {
		t.Fatalf("failed pricing run must not persist a breakdown")
	}
}

func TestPriceKeepsPriorBreakdownWhenRepricingFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedRoute(t, "800", "500000")

	q := f.newQuotation(t)
	if _, err := f.repo.AddItem(ctx, Item{
		QuotationID:    q.ID,
		Quantity:       100,
		UnitCostFOBUSD: decimal.RequireFromString("25.00"),
		TariffPercent:  decimal.RequireFromString("15"),
	}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	first, err := f.service.Price(ctx, q.ID)
	if err != nil {
		t.Fatalf("first price: %v", err)
	}

	// Corrupt the stored configuration so the engine rejects the snapshot.
	store := settings.NewStore(f.db)
	cfg := pricing.DefaultConfig()
	cfg.ExchangeRate = decimal.RequireFromString("3800")
	if err := store.Save(ctx, cfg); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if _, err := f.db.ExecContext(ctx, `UPDATE settings SET value = '-1' WHERE key = 'exchange_rate'`); err != nil {
		t.Fatalf("corrupt settings: %v", err)
	}

	_, err = f.service.Price(ctx, q.ID)
	var cfgErr *pricing.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}

	reloaded, err := f.repo.Get(ctx, q.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Pricing == nil || !reloaded.Pricing.TotalCOP.Equal(first.Quote.TotalCOP) {
		t.Fatalf("prior breakdown lost after failed repricing")
	}
}

func TestPriceUnknownQuotation(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Price(context.Background(), 12345)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q := f.newQuotation(t)

	cases := []Item{
		{QuotationID: q.ID, Quantity: 0, UnitCostFOBUSD: decimal.RequireFromString("1")},
		{QuotationID: q.ID, Quantity: 1, UnitCostFOBUSD: decimal.RequireFromString("-1")},
		{QuotationID: q.ID, Quantity: 1, UnitCostFOBUSD: decimal.RequireFromString("1"), TariffPercent: decimal.RequireFromString("101")},
	}
	for i, item := range cases {
		if _, err := f.repo.AddItem(ctx, item); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}

	if _, err := f.repo.AddItem(ctx, Item{QuotationID: 999, Quantity: 1, UnitCostFOBUSD: decimal.RequireFromString("1")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing quotation, got %v", err)
	}
}

func TestQuotationStatusLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q := f.newQuotation(t)
	if q.Status != StatusBorrador {
		t.Fatalf("new quotation status = %q, want %q", q.Status, StatusBorrador)
	}

	if err := f.repo.UpdateStatus(ctx, q.ID, StatusEnviada); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := f.repo.UpdateStatus(ctx, q.ID, "archivada"); err == nil {
		t.Fatalf("expected rejection of unknown status")
	}

	reloaded, err := f.repo.Get(ctx, q.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != StatusEnviada {
		t.Fatalf("status = %q, want %q", reloaded.Status, StatusEnviada)
	}
}
