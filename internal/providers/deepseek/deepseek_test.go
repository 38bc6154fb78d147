package deepseek

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/providers/shared"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("bad fixture %s: %v", raw, err)
	}
	return v
}

func TestExtractAvailable(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *float64
	}{
		{"top-level USD list", `[{"currency":"USD","total_balance":12.5}]`, core.Float(12.5)},
		{"top-level list prefers USD", `[{"currency":"CNY","total_balance":"90"},{"currency":"usd","available_balance":"4"}]`, core.Float(4)},
		{"nested USD entry with separators", `{"balance_infos":[{"currency":"EUR","total_balance":"7"},{"currency":"USD","remaining_balance":"3,400.10"}]}`, core.Float(3400.10)},
		{"nested list falls back to first entry", `{"is_available":true,"balance_infos":[{"currency":"CNY","total_balance":"42.50"}]}`, core.Float(42.5)},
		{"nested balances field", `{"balances":[{"currency":"USD","balance":"1_000"}]}`, core.Float(1000)},
		{"flat top-level", `{"credit_balance":"  8.75 "}`, core.Float(8.75)},
		{"flat under data", `{"data":{"amount":3}}`, core.Float(3)},
		{"flat order", `{"balance":2,"total_balance":9}`, core.Float(9)},
		{"nested total number", `{"total":6.5}`, core.Float(6.5)},
		{"nested total object", `{"total":{"val":"11"}}`, core.Float(11)},
		{"entry field preference", `[{"currency":"USD","balance":1,"remaining_balance":2,"total_balance":null}]`, core.Float(2)},
		{"nothing usable", `{"is_available":false,"balance_infos":[]}`, nil},
		{"non-numeric strings", `{"balance":"n/a"}`, nil},
		{"scalar payload", `"oops"`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractAvailable(decode(t, tt.payload))
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("got %v, want nil", *got)
			case tt.want != nil && got == nil:
				t.Errorf("got nil, want %v", *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("got %v, want %v", *got, *tt.want)
			}
		})
	}
}

func TestFetchBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-ds" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/user/balance" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"is_available":true,"balance_infos":[{"currency":"USD","total_balance":"19.99"}]}`))
	}))
	defer server.Close()

	p := NewWithClient(server.URL, shared.NewClient())
	bal, err := p.FetchBalance(context.Background(), core.FetchRequest{
		Account: core.Account{ID: "d", Vendor: core.VendorDeepseek, Credential: "sk-ds"},
	})
	if err != nil {
		t.Fatalf("FetchBalance error: %v", err)
	}
	if bal.Granted != nil || bal.Used != nil {
		t.Errorf("granted/used should be nil: %+v", bal)
	}
	if bal.Available == nil || *bal.Available != 19.99 {
		t.Errorf("Available = %v, want 19.99", bal.Available)
	}

	_, err = p.FetchBalance(context.Background(), core.FetchRequest{
		Account: core.Account{ID: "d", Vendor: core.VendorDeepseek, Credential: "bad"},
	})
	if core.StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("err = %v, want HTTP 401", err)
	}
}

func TestFetchBalance_MissingKey(t *testing.T) {
	_, err := New().FetchBalance(context.Background(), core.FetchRequest{
		Account: core.Account{ID: "d", Vendor: core.VendorDeepseek},
	})
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "credential" {
		t.Errorf("err = %v, want credential ValidationError", err)
	}
}
