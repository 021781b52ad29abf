package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kompass-app/kompass/internal/catalog"
	"github.com/kompass-app/kompass/internal/config"
	"github.com/kompass-app/kompass/internal/crm"
	"github.com/kompass-app/kompass/internal/db"
	"github.com/kompass-app/kompass/internal/freight"
	"github.com/kompass-app/kompass/internal/logger"
	"github.com/kompass-app/kompass/internal/quotation"
	"github.com/kompass-app/kompass/internal/seed"
	"github.com/kompass-app/kompass/internal/settings"
	"github.com/kompass-app/kompass/internal/tariff"
	"github.com/kompass-app/kompass/migrations"
	"github.com/rs/zerolog"
)

type server struct {
	auth     *authService
	log      zerolog.Logger
	settings *settings.Store
	tariffs  *tariff.Registry
	freight  *freight.Table
	catalog  *catalog.Store
	crm      *crm.Store
	quotes   *quotation.Repository
	pricer   *quotation.Service
}

func main() {
	cfg := config.Load()
	log := logger.New(cfg.IsDev())

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		log.Fatal().Err(err).Msg("failed to run database migrations")
	}

	stats, err := seed.Run(database, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to run startup seed")
	}
	if stats.Inserts > 0 {
		log.Info().Int("inserts", stats.Inserts).Msg("startup seed applied")
	}

	quotes := quotation.NewRepository(database)
	settingsStore := settings.NewStore(database)
	tariffs := tariff.NewRegistry(database)
	freightTable := freight.NewTable(database)
	catalogStore := catalog.NewStore(database)

	srv := &server{
		auth:     newAuthService(database, cfg.SessionSecret),
		log:      log,
		settings: settingsStore,
		tariffs:  tariffs,
		freight:  freightTable,
		catalog:  catalogStore,
		crm:      crm.NewStore(database),
		quotes:   quotes,
		pricer:   quotation.NewService(quotes, settingsStore, tariffs, freightTable, catalogStore, log),
	}

	r := chi.NewRouter()
	r.Use(srv.requestLogger)
	r.Use(srv.authMiddleware)

	r.Post("/api/login", srv.handleLogin)
	r.Post("/api/logout", srv.handleLogout)

	r.Get("/api/settings", srv.handleGetSettings)
	r.Put("/api/settings", srv.handlePutSettings)

	r.Get("/api/hs-codes", srv.handleListHSCodes)
	r.Post("/api/hs-codes", srv.handleCreateHSCode)
	r.Put("/api/hs-codes/{id}", srv.handleUpdateHSCode)

	r.Get("/api/freight-rates", srv.handleListFreightRates)
	r.Post("/api/freight-rates", srv.handleCreateFreightRate)
	r.Post("/api/freight-rates/{id}/deactivate", srv.handleDeactivateFreightRate)

	r.Get("/api/suppliers", srv.handleListSuppliers)
	r.Post("/api/suppliers", srv.handleCreateSupplier)
	r.Put("/api/suppliers/{id}", srv.handleUpdateSupplier)

	r.Get("/api/categories", srv.handleCategoryTree)
	r.Post("/api/categories", srv.handleCreateCategory)
	r.Delete("/api/categories/{id}", srv.handleDeleteCategory)

	r.Get("/api/products", srv.handleListProducts)
	r.Post("/api/products", srv.handleCreateProduct)
	r.Put("/api/products/{id}", srv.handleUpdateProduct)
	r.Put("/api/products/{id}/portfolio", srv.handleSetPortfolio)

	r.Get("/api/clients", srv.handleListClients)
	r.Post("/api/clients", srv.handleCreateClient)
	r.Get("/api/clients/{id}", srv.handleGetClient)
	r.Put("/api/clients/{id}", srv.handleUpdateClient)
	r.Post("/api/clients/{id}/stage", srv.handleMoveClient)
	r.Get("/api/clients/{id}/history", srv.handleClientHistory)

	r.Get("/api/quotations", srv.handleListQuotations)
	r.Post("/api/quotations", srv.handleCreateQuotation)
	r.Get("/api/quotations/{id}", srv.handleGetQuotation)
	r.Post("/api/quotations/{id}/status", srv.handleQuotationStatus)
	r.Post("/api/quotations/{id}/items", srv.handleAddQuotationItem)
	r.Delete("/api/quotations/{id}/items/{itemID}", srv.handleRemoveQuotationItem)
	r.Post("/api/quotations/{id}/price", srv.handlePriceQuotation)

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Msg("listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/login" {
			next.ServeHTTP(w, r)
			return
		}

		if !isAuthenticated(r, s.auth) {
			respondError(w, http.StatusUnauthorized, "no autenticado")
			return
		}

		next.ServeHTTP(w, r)
	})
}
