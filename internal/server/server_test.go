package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/haifischbank/backoffice/internal/accounts"
	"github.com/haifischbank/backoffice/internal/config"
	"github.com/haifischbank/backoffice/internal/credit"
	"github.com/haifischbank/backoffice/internal/directory"
	"github.com/haifischbank/backoffice/internal/idgen"
	"github.com/haifischbank/backoffice/internal/ledger"
	"github.com/haifischbank/backoffice/internal/processing"
	"github.com/haifischbank/backoffice/internal/storage/memory"
	"github.com/haifischbank/backoffice/internal/timedriver"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	log := zap.NewNop()
	books, err := ledger.New(ctx, store, log)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Load()
	ids := idgen.New()
	dir := directory.New(ids)
	svc := accounts.NewService(store, books, ids, dir, cfg, log)
	engine := credit.NewEngine(store, books, ids, cfg, log)
	driver := timedriver.New(store, svc, engine, ids, log)
	if err := driver.EnsureClock(ctx, time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	processor := processing.New(store, svc, engine, driver, dir, nil, "", log)
	srv := httptest.NewServer(New(processor, svc, engine, books, dir, log).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var decoded map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func field(t *testing.T, raw map[string]json.RawMessage, path ...string) string {
	t.Helper()
	for i, key := range path {
		v, ok := raw[key]
		if !ok {
			t.Fatalf("missing field %q in %v", key, raw)
		}
		if i == len(path)-1 {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				t.Fatalf("field %q: %v", key, err)
			}
			return s
		}
		next := map[string]json.RawMessage{}
		if err := json.Unmarshal(v, &next); err != nil {
			t.Fatalf("field %q: %v", key, err)
		}
		raw = next
	}
	return ""
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestCustomerAccountTransferFlow(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/customers", map[string]string{
		"name": "Erika Mustermann", "address": "Bahnhofstr. 1", "birth_date": "1985-04-12",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create customer status = %d: %v", resp.StatusCode, body)
	}
	customerID := field(t, body, "customer", "customer_id")

	resp, body = postJSON(t, srv.URL+"/accounts", map[string]string{"customer_id": customerID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create account status = %d: %v", resp.StatusCode, body)
	}
	accountID := field(t, body, "account", "account_id")

	resp, body = postJSON(t, srv.URL+"/transactions", map[string]any{
		"type": "transfer_in", "account_id": accountID,
		"counterparty_iban": "DE89370400440532013000", "amount": "250.00",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("transfer_in status = %d: %v", resp.StatusCode, body)
	}

	// Overdrawing transfer: processed, recorded, rejected.
	resp, body = postJSON(t, srv.URL+"/transactions", map[string]any{
		"type": "transfer_out", "account_id": accountID,
		"counterparty_iban": "DE02120300000000202051", "amount": "300.00",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rejected transfer status = %d", resp.StatusCode)
	}
	if got := field(t, body, "status"); got != "rejected" {
		t.Errorf("outcome status = %q, want rejected", got)
	}

	// The account reflects only the completed transfer.
	getResp, err := http.Get(srv.URL + "/accounts/" + accountID)
	if err != nil {
		t.Fatal(err)
	}
	var account struct {
		Balance string `json:"balance"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&account); err != nil {
		t.Fatal(err)
	}
	getResp.Body.Close()
	if account.Balance != "250" {
		t.Errorf("balance = %q, want 250", account.Balance)
	}
}

func TestTimeEventAndValidationEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/time-events", map[string]string{"date": "2025-03-01"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("time event status = %d: %v", resp.StatusCode, body)
	}

	// Reversal is a client error.
	resp, _ = postJSON(t, srv.URL+"/time-events", map[string]string{"date": "2025-01-01"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("reversal status = %d, want 422", resp.StatusCode)
	}

	getResp, err := http.Get(srv.URL + "/ledger/validation")
	if err != nil {
		t.Fatal(err)
	}
	var report struct {
		Balanced bool `json:"balanced"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	getResp.Body.Close()
	if !report.Balanced {
		t.Error("fresh system reported out of balance")
	}
}

func TestUnknownRequestTypeFails(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := postJSON(t, srv.URL+"/transactions", map[string]string{"type": "mystery"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}
