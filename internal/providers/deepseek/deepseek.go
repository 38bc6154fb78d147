// Package deepseek reports the remaining prepaid balance of a DeepSeek key:
//
//	GET https://api.deepseek.com/user/balance
//	Response: {"is_available": true, "balance_infos": [{"currency": "USD",
//	           "total_balance": "42.50", "granted_balance": "10.00", "topped_up_balance": "32.50"}]}
//
// The payload shape has varied over time (bare lists, flat objects, objects
// nested under "data"), so the balance is located by an ordered chain of
// extractors.
package deepseek

import (
	"context"
	"log"
	"strings"

	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/parsers"
	"github.com/janekbaraniewski/spendboard/internal/providers/providerbase"
	"github.com/janekbaraniewski/spendboard/internal/providers/shared"
)

const (
	defaultBaseURL = "https://api.deepseek.com"
	balancePath    = "/user/balance"
)

// entryFields are read, in order, from a per-currency balance entry.
var entryFields = []string{"total_balance", "available_balance", "remaining_balance", "balance"}

// listFields may hold the per-currency entries inside an object payload.
var listFields = []string{"balance_infos", "balances", "data"}

// flatFields are probed directly on the payload and then under "data".
var flatFields = []string{"total_balance", "available_balance", "remaining_balance", "balance", "credit_balance", "amount"}

// extractor returns the balance it finds in payload, or nil.
type extractor struct {
	name string
	fn   func(payload any) *float64
}

var extractors = []extractor{
	{name: "top_level_list", fn: fromTopLevelList},
	{name: "nested_list", fn: fromNestedList},
	{name: "flat_fields", fn: fromFlatFields},
	{name: "nested_total", fn: fromNestedTotal},
}

type Provider struct {
	providerbase.Base
	baseURL string
	client  *shared.Client
}

func New() *Provider {
	return NewWithClient("", shared.NewClient())
}

func NewWithClient(baseURL string, client *shared.Client) *Provider {
	return &Provider{
		Base: providerbase.New(core.VendorDeepseek, core.ProviderInfo{
			Name:   "DeepSeek",
			DocURL: "https://api-docs.deepseek.com/api/get-user-balance",
		}),
		baseURL: shared.ResolveBaseURL(baseURL, defaultBaseURL),
		client:  client,
	}
}

func (p *Provider) FetchBalance(ctx context.Context, req core.FetchRequest) (core.Balance, error) {
	if req.Account.Credential == "" {
		return core.Balance{}, &core.ValidationError{Field: "credential", Message: "No API key found"}
	}

	var payload any
	if err := p.client.GetJSON(ctx, p.baseURL+balancePath, req.RelayBase, req.Account.Credential, &payload); err != nil {
		return core.Balance{}, err
	}
	return core.Balance{Available: ExtractAvailable(payload)}, nil
}

// ExtractAvailable runs the extractor chain over a decoded /user/balance
// payload and returns the first balance found.
func ExtractAvailable(payload any) *float64 {
	for _, ex := range extractors {
		if v := ex.fn(payload); v != nil {
			log.Printf("deepseek level=debug event=balance_extracted via=%s value=%.4f", ex.name, *v)
			return v
		}
	}
	log.Printf("deepseek level=warn event=balance_not_found")
	return nil
}

func fromTopLevelList(payload any) *float64 {
	entry := usdEntry(parsers.Objects(payload))
	if entry == nil {
		return nil
	}
	return parsers.FirstNumber(entry, entryFields...)
}

func fromNestedList(payload any) *float64 {
	obj := parsers.Object(payload)
	if obj == nil {
		return nil
	}
	for _, field := range listFields {
		entries := parsers.Objects(obj[field])
		if len(entries) == 0 {
			continue
		}
		entry := usdEntry(entries)
		if entry == nil {
			entry = entries[0]
		}
		if v := parsers.FirstNumber(entry, entryFields...); v != nil {
			return v
		}
	}
	return nil
}

func fromFlatFields(payload any) *float64 {
	obj := parsers.Object(payload)
	if obj == nil {
		return nil
	}
	if v := parsers.FirstNumber(obj, flatFields...); v != nil {
		return v
	}
	if data := parsers.Object(obj["data"]); data != nil {
		return parsers.FirstNumber(data, flatFields...)
	}
	return nil
}

func fromNestedTotal(payload any) *float64 {
	obj := parsers.Object(payload)
	if obj == nil {
		return nil
	}
	total, ok := obj["total"]
	if !ok {
		return nil
	}
	if v := parsers.Number(total); v != nil {
		return v
	}
	if inner := parsers.Object(total); inner != nil {
		return parsers.FirstNumber(inner, "value", "val", "amount")
	}
	return nil
}

func usdEntry(entries []map[string]any) map[string]any {
	for _, e := range entries {
		if strings.EqualFold(strings.TrimSpace(parsers.String(e["currency"])), "USD") {
			return e
		}
	}
	return nil
}
