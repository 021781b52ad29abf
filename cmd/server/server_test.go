package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kompass-app/kompass/internal/catalog"
	"github.com/kompass-app/kompass/internal/crm"
	"github.com/kompass-app/kompass/internal/db"
	"github.com/kompass-app/kompass/internal/freight"
	"github.com/kompass-app/kompass/internal/logger"
	"github.com/kompass-app/kompass/internal/quotation"
	"github.com/kompass-app/kompass/internal/seed"
	"github.com/kompass-app/kompass/internal/settings"
	"github.com/kompass-app/kompass/internal/tariff"
	"github.com/kompass-app/kompass/migrations"
)

const (
	testAdminEmail    = "admin@kompass.co"
	testAdminPassword = "secreto123"
)

func newTestServer(t *testing.T) *server {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	if err := migrations.Up(database); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	if _, err := seed.Run(database, seed.Config{
		AdminEmail:    testAdminEmail,
		AdminPassword: testAdminPassword,
	}); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	log := logger.NewWithWriter(io.Discard)
	quotes := quotation.NewRepository(database)
	settingsStore := settings.NewStore(database)
	tariffs := tariff.NewRegistry(database)
	freightTable := freight.NewTable(database)
	catalogStore := catalog.NewStore(database)

	return &server{
		auth:     newAuthService(database, "test-secret"),
		log:      log,
		settings: settingsStore,
		tariffs:  tariffs,
		freight:  freightTable,
		catalog:  catalogStore,
		crm:      crm.NewStore(database),
		quotes:   quotes,
		pricer:   quotation.NewService(quotes, settingsStore, tariffs, freightTable, catalogStore, log),
	}
}

// doJSON invokes a handler directly with an encoded body and chi URL params.
func doJSON(t *testing.T, handler http.HandlerFunc, method string, body any, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, "/", &buf)
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for key, value := range params {
			rctx.URLParams.Add(key, value)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rr.Body.String(), err)
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv.handleLogin, http.MethodPost, loginRequest{
		Email:    testAdminEmail,
		Password: testAdminPassword,
	}, nil)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", rr.Code, rr.Body.String())
	}

	cookies := rr.Result().Cookies()
	var session *http.Cookie
	for _, c := range cookies {
		if c.Name == sessionCookieName {
			session = c
		}
	}
	if session == nil || session.Value == "" {
		t.Fatalf("expected session cookie to be set, got %+v", cookies)
	}

	email, ok := srv.auth.verifySessionValue(session.Value)
	if !ok || email != testAdminEmail {
		t.Fatalf("session cookie does not verify: ok=%v email=%q", ok, email)
	}
}

func TestLoginWrongPasswordRejected(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv.handleLogin, http.MethodPost, loginRequest{
		Email:    testAdminEmail,
		Password: "incorrecta",
	}, nil)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			t.Fatalf("session cookie must not be set on failed login")
		}
	}
}

func TestAuthMiddlewareBlocksWithoutSession(t *testing.T) {
	srv := newTestServer(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a session")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	rr := httptest.NewRecorder()
	srv.authMiddleware(next).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestAuthMiddlewareAllowsValidSession(t *testing.T) {
	srv := newTestServer(t)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.AddCookie(&http.Cookie{
		Name:  sessionCookieName,
		Value: srv.auth.createSessionValue(testAdminEmail),
	})
	rr := httptest.NewRecorder()
	srv.authMiddleware(next).ServeHTTP(rr, req)

	if !called || rr.Code != http.StatusOK {
		t.Fatalf("expected handler to run with valid session, called=%v code=%d", called, rr.Code)
	}
}

func TestGetSettingsReturnsSeededDefaults(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv.handleGetSettings, http.MethodGet, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var got settingsPayload
	decodeBody(t, rr, &got)

	if got.ExchangeRate.String() != "4200" {
		t.Fatalf("expected seeded exchange rate 4200, got %s", got.ExchangeRate)
	}
	if got.MarginPercent.String() != "20" {
		t.Fatalf("expected seeded margin 20, got %s", got.MarginPercent)
	}
}

func TestPutSettingsRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	update := map[string]string{
		"exchange_rate":            "4350.75",
		"margin_percent":           "25",
		"insurance_percent":        "2",
		"inspection_cost_usd":      "175.50",
		"nationalization_cost_cop": "250000",
	}
	rr := doJSON(t, srv.handlePutSettings, http.MethodPut, update, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv.handleGetSettings, http.MethodGet, nil, nil)
	var got settingsPayload
	decodeBody(t, rr, &got)

	if got.ExchangeRate.String() != "4350.75" {
		t.Fatalf("expected exchange rate 4350.75 after update, got %s", got.ExchangeRate)
	}
	if got.InspectionCostUSD.String() != "175.5" {
		t.Fatalf("expected inspection cost 175.5 after update, got %s", got.InspectionCostUSD)
	}
}

func TestPutSettingsRejectsOutOfRange(t *testing.T) {
	srv := newTestServer(t)

	update := map[string]string{
		"exchange_rate":            "0",
		"margin_percent":           "20",
		"insurance_percent":        "1.5",
		"inspection_cost_usd":      "150",
		"nationalization_cost_cop": "200000",
	}
	rr := doJSON(t, srv.handlePutSettings, http.MethodPut, update, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 for zero exchange rate, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv.handleGetSettings, http.MethodGet, nil, nil)
	var got settingsPayload
	decodeBody(t, rr, &got)
	if got.ExchangeRate.String() != "4200" {
		t.Fatalf("rejected update must not modify settings, got rate %s", got.ExchangeRate)
	}
}

func TestHSCodeCreateAndList(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv.handleCreateHSCode, http.MethodPost, map[string]string{
		"code":           "6109.10.00",
		"description":    "Camisetas de algodón",
		"tariff_percent": "40",
	}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv.handleListHSCodes, http.MethodGet, nil, nil)
	var codes []hsCodePayload
	decodeBody(t, rr, &codes)

	found := false
	for _, hc := range codes {
		if hc.Code == "6109.10.00" && hc.TariffPercent.String() == "40" {
			found = true
		}
	}
	if !found {
		t.Fatalf("created HS code not present in list: %+v", codes)
	}
}

func TestCreateFreightRateValidatesDates(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv.handleCreateFreightRate, http.MethodPost, map[string]any{
		"origin":       "Shenzhen",
		"destination":  "Buenaventura",
		"intl_usd":     "1800",
		"national_cop": "950000",
		"valid_from":   "no-es-fecha",
		"active":       true,
	}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed valid_from, got %d", rr.Code)
	}

	rr = doJSON(t, srv.handleCreateFreightRate, http.MethodPost, map[string]any{
		"origin":       "Shenzhen",
		"destination":  "Buenaventura",
		"intl_usd":     "1800",
		"national_cop": "950000",
		"valid_from":   "2026-01-01",
		"active":       true,
	}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var created freightRatePayload
	decodeBody(t, rr, &created)
	if created.ID == 0 {
		t.Fatalf("expected created rate to carry an id")
	}

	rr = doJSON(t, srv.handleDeactivateFreightRate, http.MethodPost, nil, map[string]string{
		"id": strconv.FormatInt(created.ID, 10),
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 on deactivate, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv.handleDeactivateFreightRate, http.MethodPost, nil, map[string]string{
		"id": "9999",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 deactivating unknown rate, got %d: %s", rr.Code, rr.Body.String())
	}
}
