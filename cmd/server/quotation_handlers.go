package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kompass-app/kompass/internal/money"
	"github.com/kompass-app/kompass/internal/pricing"
	"github.com/kompass-app/kompass/internal/quotation"
)

type quotePayload struct {
	SubtotalFOBUSD       decimal.Decimal `json:"subtotal_fob_usd"`
	TariffTotalUSD       decimal.Decimal `json:"tariff_total_usd"`
	FreightIntlUSD       decimal.Decimal `json:"freight_intl_usd"`
	InspectionUSD        decimal.Decimal `json:"inspection_usd"`
	InsuranceUSD         decimal.Decimal `json:"insurance_usd"`
	SubtotalUSD          decimal.Decimal `json:"subtotal_usd"`
	SubtotalCOP          decimal.Decimal `json:"subtotal_cop"`
	TotalBeforeMarginCOP decimal.Decimal `json:"total_before_margin_cop"`
	MarginCOP            decimal.Decimal `json:"margin_cop"`
	TotalCOP             decimal.Decimal `json:"total_cop"`
	TotalCOPFormatted    string          `json:"total_cop_formatted"`
}

func quoteToPayload(q pricing.Quote) *quotePayload {
	return &quotePayload{
		SubtotalFOBUSD:       q.SubtotalFOBUSD,
		TariffTotalUSD:       q.TariffTotalUSD,
		FreightIntlUSD:       q.FreightIntlUSD,
		InspectionUSD:        q.InspectionUSD,
		InsuranceUSD:         q.InsuranceUSD,
		SubtotalUSD:          q.SubtotalUSD,
		SubtotalCOP:          q.SubtotalCOP,
		TotalBeforeMarginCOP: q.TotalBeforeMarginCOP,
		MarginCOP:            q.MarginCOP,
		TotalCOP:             q.TotalCOP,
		TotalCOPFormatted:    money.FormatCOP(q.TotalCOP),
	}
}

type quotationPayload struct {
	ID          int64         `json:"id"`
	Reference   string        `json:"reference"`
	ClientID    *int64        `json:"client_id,omitempty"`
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	Status      string        `json:"status"`
	Pricing     *quotePayload `json:"pricing,omitempty"`
	PricedAt    string        `json:"priced_at,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	CreatedAt   string        `json:"created_at,omitempty"`
}

func quotationToPayload(q quotation.Quotation) quotationPayload {
	payload := quotationPayload{
		ID:          q.ID,
		Reference:   q.Reference,
		ClientID:    q.ClientID,
		Origin:      q.Origin,
		Destination: q.Destination,
		Status:      q.Status,
		Notes:       q.Notes,
		CreatedAt:   q.CreatedAt,
	}
	if q.Pricing != nil {
		payload.Pricing = quoteToPayload(*q.Pricing)
	}
	if q.PricedAt != nil {
		payload.PricedAt = q.PricedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

func (s *server) handleListQuotations(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.quotes.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	payload := make([]quotationPayload, 0, len(quotes))
	for _, q := range quotes {
		payload = append(payload, quotationToPayload(q))
	}
	respondJSON(w, http.StatusOK, payload)
}

type createQuotationRequest struct {
	ClientID    *int64 `json:"client_id,omitempty"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Notes       string `json:"notes,omitempty"`
}

func (s *server) handleCreateQuotation(w http.ResponseWriter, r *http.Request) {
	var req createQuotationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	q, err := s.quotes.Create(r.Context(), quotation.Quotation{
		ClientID:    req.ClientID,
		Origin:      req.Origin,
		Destination: req.Destination,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, quotationToPayload(q))
}

type quotationItemPayload struct {
	ID             int64           `json:"id,omitempty"`
	ProductRef     string          `json:"product_ref,omitempty"`
	Description    string          `json:"description"`
	Quantity       int64           `json:"quantity"`
	UnitCostFOBUSD decimal.Decimal `json:"unit_cost_fob_usd"`
	TariffPercent  decimal.Decimal `json:"tariff_percent"`
	Position       int64           `json:"position,omitempty"`
}

type quotationDetailPayload struct {
	quotationPayload
	Items []quotationItemPayload `json:"items"`
}

func (s *server) quotationDetail(w http.ResponseWriter, r *http.Request, id int64) {
	q, err := s.quotes.Get(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	items, err := s.quotes.Items(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	detail := quotationDetailPayload{
		quotationPayload: quotationToPayload(q),
		Items:            make([]quotationItemPayload, 0, len(items)),
	}
	for _, item := range items {
		detail.Items = append(detail.Items, quotationItemPayload{
			ID:             item.ID,
			ProductRef:     item.ProductRef,
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitCostFOBUSD: item.UnitCostFOBUSD,
			TariffPercent:  item.TariffPercent,
			Position:       item.Position,
		})
	}
	respondJSON(w, http.StatusOK, detail)
}

func (s *server) handleGetQuotation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}
	s.quotationDetail(w, r, id)
}

type quotationStatusRequest struct {
	Status string `json:"status"`
}

func (s *server) handleQuotationStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var req quotationStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	err := s.quotes.UpdateStatus(r.Context(), id, req.Status)
	switch {
	case errors.Is(err, quotation.ErrNotFound):
		s.respondDomainError(w, err)
	case err != nil:
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.quotationDetail(w, r, id)
	}
}

func (s *server) handleAddQuotationItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var req quotationItemPayload
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	itemID, err := s.quotes.AddItem(r.Context(), quotation.Item{
		QuotationID:    id,
		ProductRef:     req.ProductRef,
		Description:    req.Description,
		Quantity:       req.Quantity,
		UnitCostFOBUSD: req.UnitCostFOBUSD,
		TariffPercent:  req.TariffPercent,
	})
	if errors.Is(err, quotation.ErrNotFound) {
		s.respondDomainError(w, err)
		return
	}
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	req.ID = itemID
	respondJSON(w, http.StatusCreated, req)
}

func (s *server) handleRemoveQuotationItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := idParam(r, "itemID")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}

	if err := s.quotes.RemoveItem(r.Context(), itemID); err != nil {
		s.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type priceResponse struct {
	Pricing      *quotePayload `json:"pricing"`
	Unclassified []string      `json:"unclassified"`
}

func (s *server) handlePriceQuotation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}

	result, err := s.pricer.Price(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	unclassified := result.Unclassified
	if unclassified == nil {
		unclassified = []string{}
	}
	respondJSON(w, http.StatusOK, priceResponse{
		Pricing:      quoteToPayload(result.Quote),
		Unclassified: unclassified,
	})
}
