package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kompass-app/kompass/internal/catalog"
	"github.com/kompass-app/kompass/internal/crm"
	"github.com/kompass-app/kompass/internal/freight"
	"github.com/kompass-app/kompass/internal/pricing"
	"github.com/kompass-app/kompass/internal/quotation"
	"github.com/kompass-app/kompass/internal/tariff"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondDomainError maps domain errors onto HTTP statuses: validation
// failures become 422 with the engine's message (field and index included),
// missing records 404, rejected transitions and missing freight 409.
func (s *server) respondDomainError(w http.ResponseWriter, err error) {
	var itemErr *pricing.LineItemError
	var cfgErr *pricing.ConfigError
	var transitionErr *crm.TransitionError

	switch {
	case errors.As(err, &itemErr), errors.As(err, &cfgErr):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, quotation.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, crm.ErrNotFound),
		errors.Is(err, tariff.ErrNotFound),
		errors.Is(err, freight.ErrNotFound):
		respondError(w, http.StatusNotFound, "registro no encontrado")
	case errors.Is(err, freight.ErrNoRate):
		respondError(w, http.StatusConflict, "no hay tarifa de flete configurada para la ruta")
	case errors.Is(err, catalog.ErrCategoryInUse):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &transitionErr):
		respondError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "error interno")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// --- auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	valid, err := s.auth.validateCredentials(req.Email, req.Password)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if !valid {
		respondError(w, http.StatusUnauthorized, "credenciales inválidas")
		return
	}

	s.auth.setSessionCookie(w, req.Email)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// --- settings ---

type settingsPayload struct {
	ExchangeRate           decimal.Decimal `json:"exchange_rate"`
	MarginPercent          decimal.Decimal `json:"margin_percent"`
	InsurancePercent       decimal.Decimal `json:"insurance_percent"`
	InspectionCostUSD      decimal.Decimal `json:"inspection_cost_usd"`
	NationalizationCostCOP decimal.Decimal `json:"nationalization_cost_cop"`
}

func (s *server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.settings.Snapshot(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, settingsPayload{
		ExchangeRate:           cfg.ExchangeRate,
		MarginPercent:          cfg.MarginPercent,
		InsurancePercent:       cfg.InsurancePercent,
		InspectionCostUSD:      cfg.InspectionCostUSD,
		NationalizationCostCOP: cfg.NationalizationCostCOP,
	})
}

func (s *server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsPayload
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	cfg := pricing.Config{
		ExchangeRate:           req.ExchangeRate,
		MarginPercent:          req.MarginPercent,
		InsurancePercent:       req.InsurancePercent,
		InspectionCostUSD:      req.InspectionCostUSD,
		NationalizationCostCOP: req.NationalizationCostCOP,
	}
	if err := s.settings.Save(r.Context(), cfg); err != nil {
		s.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, req)
}

// --- hs codes ---

type hsCodePayload struct {
	ID            int64           `json:"id,omitempty"`
	Code          string          `json:"code"`
	Description   string          `json:"description"`
	TariffPercent decimal.Decimal `json:"tariff_percent"`
}

func (s *server) handleListHSCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := s.tariffs.List(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	payload := make([]hsCodePayload, 0, len(codes))
	for _, hc := range codes {
		payload = append(payload, hsCodePayload{
			ID:            hc.ID,
			Code:          hc.Code,
			Description:   hc.Description,
			TariffPercent: hc.TariffPercent,
		})
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *server) handleCreateHSCode(w http.ResponseWriter, r *http.Request) {
	var req hsCodePayload
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	id, err := s.tariffs.Create(r.Context(), tariff.HSCode{
		Code:          req.Code,
		Description:   req.Description,
		TariffPercent: req.TariffPercent,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.ID = id
	respondJSON(w, http.StatusCreated, req)
}

func (s *server) handleUpdateHSCode(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var req hsCodePayload
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	err := s.tariffs.Update(r.Context(), tariff.HSCode{
		ID:            id,
		Code:          req.Code,
		Description:   req.Description,
		TariffPercent: req.TariffPercent,
	})
	if errors.Is(err, tariff.ErrNotFound) {
		s.respondDomainError(w, err)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.ID = id
	respondJSON(w, http.StatusOK, req)
}

// --- freight rates ---

type freightRatePayload struct {
	ID          int64           `json:"id,omitempty"`
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	IntlUSD     decimal.Decimal `json:"intl_usd"`
	NationalCOP decimal.Decimal `json:"national_cop"`
	ValidFrom   string          `json:"valid_from"`
	ValidUntil  string          `json:"valid_until,omitempty"`
	Active      bool            `json:"active"`
	Notes       string          `json:"notes,omitempty"`
}

func (s *server) handleListFreightRates(w http.ResponseWriter, r *http.Request) {
	rates, err := s.freight.List(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	payload := make([]freightRatePayload, 0, len(rates))
	for _, rate := range rates {
		item := freightRatePayload{
			ID:          rate.ID,
			Origin:      rate.Origin,
			Destination: rate.Destination,
			IntlUSD:     rate.IntlUSD,
			NationalCOP: rate.NationalCOP,
			ValidFrom:   rate.ValidFrom.Format("2006-01-02"),
			Active:      rate.Active,
			Notes:       rate.Notes,
		}
		if rate.ValidUntil != nil {
			item.ValidUntil = rate.ValidUntil.Format("2006-01-02")
		}
		payload = append(payload, item)
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *server) handleCreateFreightRate(w http.ResponseWriter, r *http.Request) {
	var req freightRatePayload
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	validFrom, err := time.Parse("2006-01-02", req.ValidFrom)
	if err != nil {
		respondError(w, http.StatusBadRequest, "valid_from debe tener formato YYYY-MM-DD")
		return
	}

	rate := freight.Rate{
		Origin:      req.Origin,
		Destination: req.Destination,
		IntlUSD:     req.IntlUSD,
		NationalCOP: req.NationalCOP,
		ValidFrom:   validFrom,
		Active:      req.Active,
		Notes:       req.Notes,
	}
	if req.ValidUntil != "" {
		validUntil, err := time.Parse("2006-01-02", req.ValidUntil)
		if err != nil {
			respondError(w, http.StatusBadRequest, "valid_until debe tener formato YYYY-MM-DD")
			return
		}
		rate.ValidUntil = &validUntil
	}

	id, err := s.freight.Create(r.Context(), rate)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.ID = id
	respondJSON(w, http.StatusCreated, req)
}

func (s *server) handleDeactivateFreightRate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}

	if err := s.freight.Deactivate(r.Context(), id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
