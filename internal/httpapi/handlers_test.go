package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harshith-99/meat-shop/internal/service"
	"github.com/harshith-99/meat-shop/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, time.Minute)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func loginToken(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d (body: %s)", username, rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login body: %v", err)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("no access_token in login response: %v", body)
	}
	return token
}

func authedRequest(t *testing.T, method string, target string, token string, payload any) *http.Request {
	t.Helper()

	var req *http.Request
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		req = httptest.NewRequest(method, target, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api.Handler(), "admin", "admin123")
	if token == "" {
		t.Fatal("expected a token")
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "badpass",
	})

	var last int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", last)
	}
}

func TestDailyStockRequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/daily-stock?branch_id=br-main", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestDailyStockLoadAndSave(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/daily-stock?branch_id=br-main&date=2026-08-01", token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("load: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var sheet map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&sheet); err != nil {
		t.Fatalf("decode sheet: %v", err)
	}
	if sheet["branch_id"] != "br-main" || sheet["date"] != "2026-08-01" {
		t.Fatalf("sheet scope = %v/%v", sheet["branch_id"], sheet["date"])
	}

	save := map[string]any{
		"branch_id": "br-main",
		"date":      "2026-08-01",
		"entries": []map[string]string{
			{"item_id": "itm-dressed", "closing_stock": "12.5"},
		},
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/daily-stock", token, save))
	if rec.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestDailyStockSaveReturnsFieldErrors(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	save := map[string]any{
		"branch_id": "br-main",
		"date":      "2026-08-01",
		"entries": []map[string]string{
			{"item_id": "itm-dressed", "closing_stock": "not-a-number"},
			{"item_id": "itm-boneless", "closing_stock": "-4"},
		},
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/daily-stock", token, save))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Fields []map[string]any `json:"fields"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Fields) != 2 {
		t.Fatalf("field errors = %d, want 2", len(body.Fields))
	}
}

func TestYieldUpsertForbiddenForStaff(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "staff123")

	payload := map[string]any{
		"item_id":    "itm-dressed",
		"multiplier": "1.5",
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/yields", token, payload))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestAuditLogsForbiddenForStaff(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "staff123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/audit-logs", token, nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestReconciliationReportXLSX(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	save := map[string]any{
		"branch_id": "br-main",
		"date":      "2026-08-01",
		"entries": []map[string]string{
			{"item_id": "itm-broiler", "closing_stock": "80"},
			{"item_id": "itm-dressed", "closing_stock": "4"},
		},
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/daily-stock", token, save))
	if rec.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/reports/reconciliation?branch_id=br-main&date=2026-08-01&format=xlsx", token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type = %q", got)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty xlsx body")
	}
}

func TestCreateUserAndLogin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	payload := map[string]string{
		"username":  "eastmgr",
		"password":  "secret99",
		"role":      "manager",
		"branch_id": "br-east",
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/users", token, payload))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	newToken := loginToken(t, handler, "eastmgr", "secret99")
	actor, err := api.auth.ParseToken(newToken)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if actor.Role != "manager" || actor.BranchID != "br-east" {
		t.Fatalf("actor = %+v, want manager at br-east", actor)
	}
}

func TestRetailSaleEndpoint(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "staff123")

	payload := map[string]any{
		"date":        "2026-08-01",
		"grand_total": "440",
		"lines": []map[string]any{
			{"item_id": "itm-dressed", "net_weight": "2", "unit_price": "220", "total": "440"},
		},
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/sales/retail", token, payload))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Sale struct {
			ReceiptNo string `json:"receipt_no"`
			BranchID  string `json:"branch_id"`
		} `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Sale.ReceiptNo != "RS-0001" {
		t.Fatalf("receipt = %s, want RS-0001", body.Sale.ReceiptNo)
	}
	if body.Sale.BranchID != "br-main" {
		t.Fatalf("branch = %s, want staff pinned to br-main", body.Sale.BranchID)
	}
}
