package main

import (
	"net/http"

	"github.com/kompass-app/kompass/internal/crm"
)

type clientPayload struct {
	ID      int64  `json:"id,omitempty"`
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	City    string `json:"city,omitempty"`
	Notes   string `json:"notes,omitempty"`
	Stage   string `json:"stage"`
	Active  bool   `json:"active"`
}

func clientToPayload(c crm.Client) clientPayload {
	return clientPayload{
		ID:      c.ID,
		Name:    c.Name,
		Company: c.Company,
		Email:   c.Email,
		Phone:   c.Phone,
		City:    c.City,
		Notes:   c.Notes,
		Stage:   c.Stage,
		Active:  c.Active,
	}
}

func (s *server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.crm.ListClients(r.Context(), r.URL.Query().Get("stage"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	payload := make([]clientPayload, 0, len(clients))
	for _, c := range clients {
		payload = append(payload, clientToPayload(c))
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientPayload
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	id, err := s.crm.CreateClient(r.Context(), crm.Client{
		Name:    req.Name,
		Company: req.Company,
		Email:   req.Email,
		Phone:   req.Phone,
		City:    req.City,
		Notes:   req.Notes,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.ID = id
	req.Stage = crm.StageLead
	req.Active = true
	respondJSON(w, http.StatusCreated, req)
}

func (s *server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}

	client, err := s.crm.GetClient(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, clientToPayload(client))
}

func (s *server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var req clientPayload
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	err := s.crm.UpdateClient(r.Context(), crm.Client{
		ID:      id,
		Name:    req.Name,
		Company: req.Company,
		Email:   req.Email,
		Phone:   req.Phone,
		City:    req.City,
		Notes:   req.Notes,
		Active:  req.Active,
	})
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	client, err := s.crm.GetClient(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, clientToPayload(client))
}

type moveClientRequest struct {
	Stage string `json:"stage"`
}

func (s *server) handleMoveClient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var req moveClientRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	if err := s.crm.Move(r.Context(), id, req.Stage); err != nil {
		s.respondDomainError(w, err)
		return
	}

	client, err := s.crm.GetClient(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, clientToPayload(client))
}

type stageMovePayload struct {
	FromStage string `json:"from_stage"`
	ToStage   string `json:"to_stage"`
	MovedAt   string `json:"moved_at"`
}

func (s *server) handleClientHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "id inválido")
		return
	}

	if _, err := s.crm.GetClient(r.Context(), id); err != nil {
		s.respondDomainError(w, err)
		return
	}

	moves, err := s.crm.History(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	payload := make([]stageMovePayload, 0, len(moves))
	for _, m := range moves {
		payload = append(payload, stageMovePayload{
			FromStage: m.FromStage,
			ToStage:   m.ToStage,
			MovedAt:   m.MovedAt,
		})
	}
	respondJSON(w, http.StatusOK, payload)
}
