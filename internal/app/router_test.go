package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	metrics := observability.NewMetrics()
	services := NewServices(ServicesParams{
		Store:   docstore.NewMemory(docstore.Options{Backoff: time.Millisecond}),
		Metrics: metrics.Ledger(),
	})
	cfg := &Config{AppEnv: "test", RateLimitPerMinute: 1000}
	return &apiClient{t: t, handler: NewRouter(RouterParams{Config: cfg, Services: services, Metrics: metrics})}
}

func (c *apiClient) do(method, path string, body any, scoped bool) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if scoped {
		req.Header.Set(httpx.HeaderWorkspace, "ws")
		req.Header.Set(httpx.HeaderOrg, "org")
		req.Header.Set(httpx.HeaderActor, "tester")
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	var out map[string]any
	if rr.Body.Len() > 0 {
		_ = json.Unmarshal(rr.Body.Bytes(), &out)
	}
	return rr.Code, out
}

func TestHealthAndScopeRequired(t *testing.T) {
	api := newAPI(t)
	code, body := api.do(http.MethodGet, "/healthz", nil, false)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])

	code, _ = api.do(http.MethodGet, "/ledger/accounts", nil, false)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestSaleToReportsOverHTTP(t *testing.T) {
	api := newAPI(t)

	for _, acc := range []map[string]string{
		{"accountId": "1000", "accountCode": "1000", "accountName": "Cash", "accountType": "asset"},
		{"accountId": "1100", "accountCode": "1100", "accountName": "Receivables", "accountType": "asset"},
		{"accountId": "3000", "accountCode": "3000", "accountName": "Capital", "accountType": "equity"},
		{"accountId": "4000", "accountCode": "4000", "accountName": "Sales", "accountType": "revenue"},
	} {
		code, body := api.do(http.MethodPost, "/ledger/accounts", acc, true)
		require.Equal(t, http.StatusCreated, code, "%v", body)
	}
	for _, m := range []map[string]string{
		{"module": "AR", "key": "ar.invoice.receivable", "accountId": "1100"},
		{"module": "AR", "key": "ar.invoice.revenue", "accountId": "4000"},
		{"module": "PAYMENT", "key": "payment.cash", "accountId": "1000"},
	} {
		code, body := api.do(http.MethodPut, "/ledger/mappings", m, true)
		require.Equal(t, http.StatusOK, code, "%v", body)
	}

	code, body := api.do(http.MethodPost, "/ledger/journals", map[string]any{
		"idempotencyKey": "capital",
		"entryDate":      "2024-07-01",
		"lineItems": []map[string]any{
			{"accountId": "1000", "debitAmount": "500"},
			{"accountId": "3000", "creditAmount": "500"},
		},
	}, true)
	require.Equal(t, http.StatusCreated, code, "%v", body)

	code, body = api.do(http.MethodPost, "/ar/invoices", map[string]any{
		"invoice": map[string]any{
			"invoiceId": "inv-1",
			"issueDate": "2024-07-05T00:00:00Z",
			"items":     []map[string]any{{"quantity": "2", "unitPrice": "60"}},
		},
		"journalEntry": map[string]any{},
	}, true)
	require.Equal(t, http.StatusCreated, code, "%v", body)
	require.Equal(t, "posted", body["accountingStatus"])

	code, body = api.do(http.MethodPost, "/payments", map[string]any{
		"payment": map[string]any{
			"amount":     "50",
			"sourceType": "invoice",
			"sourceId":   "inv-1",
			"paidAt":     "2024-07-10T00:00:00Z",
		},
		"journalEntry": map[string]any{},
	}, true)
	require.Equal(t, http.StatusCreated, code, "%v", body)

	code, body = api.do(http.MethodGet, "/ar/invoices/inv-1", nil, true)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "partially_paid", body["status"])

	code, body = api.do(http.MethodGet, "/ledger/accounts/1000", nil, true)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "550", body["balance"])

	code, body = api.do(http.MethodGet, "/ledger/reports/balance-sheet", nil, true)
	require.Equal(t, http.StatusOK, code, "%v", body)
	report := body["report"].(map[string]any)
	require.Equal(t, true, report["isBalanced"])
	require.Equal(t, "120", report["retainedEarnings"])

	code, body = api.do(http.MethodGet, "/ledger/reports/income-statement?from=2024-07-01&to=2024-07-31", nil, true)
	require.Equal(t, http.StatusOK, code, "%v", body)
	require.Equal(t, "120", body["report"].(map[string]any)["netIncome"])

	code, body = api.do(http.MethodGet, "/ledger/reports/trial-balance?year=2024&month=7", nil, true)
	require.Equal(t, http.StatusOK, code, "%v", body)
	require.Equal(t, true, body["report"].(map[string]any)["isBalanced"])

	code, body = api.do(http.MethodGet, "/ledger/audit?entity=journal_entry", nil, true)
	require.Equal(t, http.StatusOK, code, "%v", body)
	require.Len(t, body["rows"], 3)
}

func TestInvoiceWithoutMappingsIsAccepted(t *testing.T) {
	api := newAPI(t)
	code, body := api.do(http.MethodPost, "/ar/invoices", map[string]any{
		"invoice": map[string]any{
			"invoiceId": "inv-9",
			"items":     []map[string]any{{"quantity": "1", "unitPrice": "10"}},
		},
		"journalEntry": map[string]any{"description": "pending sale"},
	}, true)
	require.Equal(t, http.StatusAccepted, code, "%v", body)
	require.Equal(t, "pending", body["data"].(map[string]any)["accountingStatus"])

	code, body = api.do(http.MethodGet, "/ar/invoices", nil, true)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, body)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "ledger_tx_conflicts_total")
}
