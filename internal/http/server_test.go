package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escola/internal/cache"
	"escola/internal/log"
	"escola/internal/services"
	"escola/internal/storage/memory"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	store := memory.New()
	views := cache.NewLRUCache[string, services.RecordSchedule](16, time.Minute)
	svc := services.NewInstallmentService(store, nil, views)
	svc.SetPublisher(services.InlineRenewal{Processor: services.NewRenewalProcessor(store, svc, 1)})

	logger := log.New(log.Config{Output: io.Discard})
	srv := NewServer(":0", svc, logger, opts)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode(t, rr)["status"])
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestDateEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name   string
		path   string
		status int
		key    string
		want   any
	}{
		{"add one month clamps", "/api/dates/add-months?date=2024-01-31&months=1", 200, "result", "2024-02-29"},
		{"subtract month", "/api/dates/add-months?date=2024-03-31&months=-1", 200, "result", "2024-02-29"},
		{"add across year", "/api/dates/add-months?date=2023-12-15&months=13", 200, "result", "2025-01-15"},
		{"months between", "/api/dates/months-between?from=2024-01-31&to=2024-03-01", 200, "months", float64(2)},
		{"months between negative", "/api/dates/months-between?from=2024-03-01&to=2023-12-31", 200, "months", float64(-3)},
		{"validate leap day", "/api/dates/validate?date=2024-02-29", 200, "valid", true},
		{"validate non leap", "/api/dates/validate?date=2023-02-29", 200, "valid", false},
		{"validate garbage", "/api/dates/validate?date=soon", 200, "valid", false},
		{"next due anchored", "/api/dates/next-due?anchor=2024-01-31&last_paid=2024-02-29", 200, "next_due", "2024-03-31"},
		{"next due year wrap", "/api/dates/next-due?anchor=2024-10-31&last_paid=2024-12-31", 200, "next_due", "2025-01-31"},
		{"malformed date", "/api/dates/add-months?date=2024-1-31&months=1", 400, "", nil},
		{"impossible date", "/api/dates/add-months?date=2024-02-30&months=1", 400, "", nil},
		{"missing months", "/api/dates/add-months?date=2024-01-31", 400, "", nil},
		{"non integer months", "/api/dates/add-months?date=2024-01-31&months=one", 400, "", nil},
		{"missing anchor", "/api/dates/next-due?last_paid=2024-02-29", 400, "", nil},
		{"past year 9999", "/api/dates/add-months?date=9999-12-31&months=1", 400, "", nil},
		{"huge offset", "/api/dates/add-months?date=2024-01-31&months=9000000000000000000", 400, "", nil},
		{"next due past year 9999", "/api/dates/next-due?anchor=9999-01-31&last_paid=9999-12-31", 400, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.path, "")
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			body := decode(t, rr)
			if tt.status != http.StatusOK {
				assert.NotEmpty(t, body["error"])
				return
			}
			assert.Equal(t, tt.want, body[tt.key])
		})
	}
}

func TestInstallmentLifecycle(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/installments",
		`{"record_id":"R1","item_type":"plano","due_date":"2024-01-31","amount":"450,00","description":"Mensalidade"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode(t, rr)
	assert.Equal(t, "pendente", created["status"])
	assert.Equal(t, "450.00", created["amount"])
	id := created["id"].(float64)
	assert.Equal(t, "/api/installments/1", rr.Header().Get("Location"))

	rr = do(t, srv, http.MethodGet, "/api/installments/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, id, decode(t, rr)["id"])

	rr = do(t, srv, http.MethodPost, "/api/installments/1/pay", `{"paid_on":"2024-01-30"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	paid := decode(t, rr)
	assert.Equal(t, "pago", paid["status"])
	assert.Equal(t, "2024-01-30", paid["paid_at"])

	rr = do(t, srv, http.MethodPost, "/api/installments/1/pay", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	// Paying the only plan installment renewed the group in-process.
	rr = do(t, srv, http.MethodGet, "/api/records/R1/installments", "")
	require.Equal(t, http.StatusOK, rr.Code)
	view := decode(t, rr)
	rows := view["installments"].([]any)
	require.Len(t, rows, 2)
	second := rows[1].(map[string]any)
	assert.Equal(t, "2024-02-29", second["due_date"])
	assert.Equal(t, float64(2), second["sequence"])
	assert.Equal(t, true, second["last"])
	assert.Equal(t, "pendente", second["status"])
}

func TestInstallmentErrors(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown item type", http.MethodPost, "/api/installments", `{"record_id":"R1","item_type":"x","due_date":"2024-01-31","amount":"10"}`, 400},
		{"invalid due date", http.MethodPost, "/api/installments", `{"record_id":"R1","item_type":"plano","due_date":"2024-02-30","amount":"10"}`, 400},
		{"zero amount", http.MethodPost, "/api/installments", `{"record_id":"R1","item_type":"plano","due_date":"2024-01-31","amount":"0"}`, 400},
		{"unknown field", http.MethodPost, "/api/installments", `{"record_id":"R1","bogus":true}`, 400},
		{"empty body", http.MethodPost, "/api/installments", ``, 400},
		{"missing installment", http.MethodGet, "/api/installments/99", ``, 404},
		{"non numeric id", http.MethodGet, "/api/installments/abc", ``, 400},
		{"pay missing", http.MethodPost, "/api/installments/99/pay", ``, 404},
		{"plan with zero count", http.MethodPost, "/api/records/R1/plans", `{"item_type":"plano","first_due_date":"2024-01-31","count":0,"amount":"10"}`, 400},
		{"unknown route", http.MethodGet, "/api/nothing", ``, 404},
		{"wrong method", http.MethodDelete, "/api/installments/1", ``, 405},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode(t, rr)["error"])
		})
	}
}

func TestPlanSchedule(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/records/R7/plans",
		`{"item_type":"material","first_due_date":"2024-01-31","count":3,"amount":120.5}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	body := decode(t, rr)
	assert.Equal(t, "R7", body["record_id"])
	list := body["installments"].([]any)
	require.Len(t, list, 3)

	var dates []string
	for _, item := range list {
		dates = append(dates, item.(map[string]any)["due_date"].(string))
	}
	assert.Equal(t, []string{"2024-01-31", "2024-02-29", "2024-03-31"}, dates)

	rr = do(t, srv, http.MethodGet, "/api/records/R7/installments", "")
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decode(t, rr)["summary"].(map[string]any)
	assert.Equal(t, "361.50", summary["pending"])
}

func TestEmptyRecordSchedule(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/api/records/none/installments", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{}, decode(t, rr)["installments"])
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{RateLimit: 2})

	for i := 0; i < 2; i++ {
		rr := do(t, srv, http.MethodGet, "/api/dates/validate?date=2024-01-01", "")
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := do(t, srv, http.MethodGet, "/api/dates/validate?date=2024-01-01", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	// Health checks are outside the limited group.
	rr = do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}
