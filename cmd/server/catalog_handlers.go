package main

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/kompass-app/kompass/internal/catalog"
)

// --- suppliers ---

type supplierPayload struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	ContactName string `json:"contact_name,omitempty"`
	City        string `json:"city,omitempty"`
	Email       string `json:"email,omitempty"`
	WeChat      string `json:"wechat,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Active      bool   `json:"active"`
}

func supplierToPayload(sup catalog.Supplier) supplierPayload {
	return supplierPayload{
		ID:          sup.ID,
		Name:        sup.Name,
		ContactName: sup.ContactName,
		City:        sup.City,
		Email:       sup.Email,
		WeChat:      sup.WeChat,
		Notes:       sup.Notes,
		Active:      sup.Active,
	}
}

func (p supplierPayload) toSupplier() catalog.Supplier {
	return catalog.Supplier{
		ID:          p.ID,
		Name:        p.Name,
		ContactName: p.ContactName,
		City:        p.City,
		Email:       p.Email,
		WeChat:      p.WeChat,
		Notes:       p.Notes,
		Active:      p.Active,
	}
}

func (s *server) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := s.catalog.ListSuppliers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	payload := make([]supplierPayload, 0, len(suppliers))
	for _, sup := range suppliers {
		payload = append(payload, supplierToPayload(sup))
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *server) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierPayload
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	req.Active = true
	id, err := s.catalog.CreateSupplier(r.Context(), req.toSupplier())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.ID = id
	respondJSON(w, http.StatusCreated, req)
}

func (s *server) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var req supplierPayload
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	req.ID = id
	if err := s.catalog.UpdateSupplier(r.Context(), req.toSupplier()); err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// --- categories ---

type categoryNodePayload struct {
	ID       int64                  `json:"id"`
	Name     string                 `json:"name"`
	ParentID *int64                 `json:"parent_id,omitempty"`
	Children []*categoryNodePayload `json:"children"`
}

func categoryTreeToPayload(nodes []*catalog.CategoryNode) []*categoryNodePayload {
	payload := make([]*categoryNodePayload, 0, len(nodes))
	for _, node := range nodes {
		payload = append(payload, &categoryNodePayload{
			ID:       node.ID,
			Name:     node.Name,
			ParentID: node.ParentID,
			Children: categoryTreeToPayload(node.Children),
		})
	}
	return payload
}

func (s *server) handleCategoryTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.catalog.Tree(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, categoryTreeToPayload(tree))
}

type createCategoryRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

func (s *server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	id, err := s.catalog.CreateCategory(r.Context(), req.Name, req.ParentID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, categoryNodePayload{
		ID:       id,
		Name:     req.Name,
		ParentID: req.ParentID,
		Children: []*categoryNodePayload{},
	})
}

func (s *server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}

	if err := s.catalog.DeleteCategory(r.Context(), id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- products ---

type productPayload struct {
	ID             int64           `json:"id,omitempty"`
	Reference      string          `json:"reference"`
	Name           string          `json:"name"`
	SupplierID     *int64          `json:"supplier_id,omitempty"`
	CategoryID     *int64          `json:"category_id,omitempty"`
	HSCode         string          `json:"hs_code,omitempty"`
	UnitCostFOBUSD decimal.Decimal `json:"unit_cost_fob_usd"`
	MOQ            int64           `json:"moq,omitempty"`
	InPortfolio    bool            `json:"in_portfolio"`
	Active         bool            `json:"active"`
	Notes          string          `json:"notes,omitempty"`
}

func productToPayload(p catalog.Product) productPayload {
	return productPayload{
		ID:             p.ID,
		Reference:      p.Reference,
		Name:           p.Name,
		SupplierID:     p.SupplierID,
		CategoryID:     p.CategoryID,
		HSCode:         p.HSCode,
		UnitCostFOBUSD: p.UnitCostFOBUSD,
		MOQ:            p.MOQ,
		InPortfolio:    p.InPortfolio,
		Active:         p.Active,
		Notes:          p.Notes,
	}
}

func (p productPayload) toProduct() catalog.Product {
	return catalog.Product{
		ID:             p.ID,
		Reference:      p.Reference,
		Name:           p.Name,
		SupplierID:     p.SupplierID,
		CategoryID:     p.CategoryID,
		HSCode:         p.HSCode,
		UnitCostFOBUSD: p.UnitCostFOBUSD,
		MOQ:            p.MOQ,
		InPortfolio:    p.InPortfolio,
		Active:         p.Active,
		Notes:          p.Notes,
	}
}

func parseOptionalID(raw string) (*int64, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, false
	}
	return &id, true
}

func (s *server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	categoryID, ok := parseOptionalID(q.Get("category_id"))
	if !ok {
		respondError(w, http.StatusBadRequest, "category_id inválido")
		return
	}
	supplierID, ok := parseOptionalID(q.Get("supplier_id"))
	if !ok {
		respondError(w, http.StatusBadRequest, "supplier_id inválido")
		return
	}

	products, err := s.catalog.ListProducts(r.Context(), catalog.ProductFilter{
		Query:         q.Get("q"),
		CategoryID:    categoryID,
		SupplierID:    supplierID,
		PortfolioOnly: q.Get("portfolio") == "true",
	})
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	payload := make([]productPayload, 0, len(products))
	for _, p := range products {
		payload = append(payload, productToPayload(p))
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productPayload
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	req.Active = true
	if req.MOQ == 0 {
		req.MOQ = 1
	}
	id, err := s.catalog.CreateProduct(r.Context(), req.toProduct())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.ID = id
	respondJSON(w, http.StatusCreated, req)
}

func (s *server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var req productPayload
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	req.ID = id
	if err := s.catalog.UpdateProduct(r.Context(), req.toProduct()); err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

type portfolioRequest struct {
	InPortfolio bool `json:"in_portfolio"`
}

func (s *server) handleSetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var req portfolioRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	if err := s.catalog.SetPortfolio(r.Context(), id, req.InPortfolio); err != nil {
		s.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
