package quotation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kompass-app/kompass/internal/catalog"
	"github.com/kompass-app/kompass/internal/freight"
	"github.com/kompass-app/kompass/internal/pricing"
	"github.com/kompass-app/kompass/internal/settings"
	"github.com/kompass-app/kompass/internal/tariff"
)

// Service prices quotations: it assembles the configuration snapshot,
// resolves tariffs and freight, runs the engine, and persists the result.
type Service struct {
	repo     *Repository
	settings *settings.Store
	tariffs  *tariff.Registry
	freight  *freight.Table
	catalog  *catalog.Store
	log      zerolog.Logger

	// now is swappable in tests so freight windows are deterministic.
	now func() time.Time
}

func NewService(repo *Repository, st *settings.Store, tr *tariff.Registry, fr *freight.Table, cat *catalog.Store, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		settings: st,
		tariffs:  tr,
		freight:  fr,
		catalog:  cat,
		log:      log,
		now:      time.Now,
	}
}

// PriceResult is the outcome of pricing one quotation.
type PriceResult struct {
	Quote pricing.Quote
	// Unclassified lists product references that priced at 0% tariff
	// because they carry no HS classification. The UI flags these.
	Unclassified []string
}

// Price computes and persists the landed-cost breakdown for a quotation.
//
// The configuration is snapshotted once at the start; a settings change that
// lands mid-calculation does not leak in. On any validation or resolution
// failure nothing is written and the previously stored pricing stays intact.
func (s *Service) Price(ctx context.Context, quotationID int64) (PriceResult, error) {
	q, err := s.repo.Get(ctx, quotationID)
	if err != nil {
		return PriceResult{}, err
	}

	stored, err := s.repo.Items(ctx, quotationID)
	if err != nil {
		return PriceResult{}, err
	}

	items, unclassified, err := s.resolveItems(ctx, stored)
	if err != nil {
		return PriceResult{}, err
	}

	cfg, err := s.settings.Snapshot(ctx)
	if err != nil {
		return PriceResult{}, err
	}

	rate, err := s.freight.Resolve(ctx, q.Origin, q.Destination, s.now())
	if err != nil {
		return PriceResult{}, fmt.Errorf("resolve freight: %w", err)
	}
	cfg.FreightIntlUSD = rate.IntlUSD
	cfg.FreightNationalCOP = rate.NationalCOP

	quote, err := pricing.Calculate(items, cfg)
	if err != nil {
		return PriceResult{}, err
	}

	if err := s.repo.savePricing(ctx, quotationID, quote, s.now()); err != nil {
		return PriceResult{}, err
	}

	s.log.Info().
		Int64("quotation_id", quotationID).
		Str("reference", q.Reference).
		Int("items", len(items)).
		Int("unclassified", len(unclassified)).
		Msg("quotation priced")

	return PriceResult{Quote: quote, Unclassified: unclassified}, nil
}

// resolveItems converts stored lines into engine inputs. Product-linked
// lines take their tariff from the product's current HS classification;
// freeform lines keep the tariff stored on the line.
func (s *Service) resolveItems(ctx context.Context, stored []Item) ([]pricing.LineItem, []string, error) {
	items := make([]pricing.LineItem, 0, len(stored))
	unclassified := make([]string, 0)

	for _, line := range stored {
		item := pricing.LineItem{
			ProductRef:    line.ProductRef,
			Quantity:      line.Quantity,
			UnitCostFOB:   line.UnitCostFOBUSD,
			TariffPercent: line.TariffPercent,
		}

		if line.ProductRef != "" {
			product, err := s.catalog.GetProductByReference(ctx, line.ProductRef)
			if err != nil {
				return nil, nil, fmt.Errorf("item %d references unknown product %s: %w", line.ID, line.ProductRef, err)
			}
			percent, err := s.tariffs.Resolve(ctx, product.HSCode)
			if err != nil {
				return nil, nil, fmt.Errorf("resolve tariff for %s: %w", line.ProductRef, err)
			}
			item.TariffPercent = percent
			if product.HSCode == "" {
				unclassified = append(unclassified, line.ProductRef)
			}
		}

		items = append(items, item)
	}

	return items, unclassified, nil
}
