// Package openai reports organization spend over the configured usage range
// using the admin-key cost endpoint:
//
//	GET https://api.openai.com/v1/organization/costs?start_time=<unix>&end_time=<unix>
//	Response: {"data": [{"results": [{"amount": {"value": 1.23, "currency": "usd"}}]}],
//	           "has_more": false, "next_page": null}
package openai

import (
	"context"
	"log"

	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/providers/providerbase"
	"github.com/janekbaraniewski/spendboard/internal/providers/shared"
)

const defaultBaseURL = "https://api.openai.com"

type Provider struct {
	providerbase.Base
	Costs *CostFetcher
}

func New() *Provider {
	return NewWithClient("", shared.NewClient())
}

// NewWithClient points the provider at baseURL (empty for the public API).
func NewWithClient(baseURL string, client *shared.Client) *Provider {
	return &Provider{
		Base: providerbase.New(core.VendorOpenAI, core.ProviderInfo{
			Name:   "OpenAI",
			DocURL: "https://platform.openai.com/docs/api-reference/usage/costs",
		}),
		Costs: &CostFetcher{BaseURL: baseURL, Client: client},
	}
}

func (p *Provider) FetchBalance(ctx context.Context, req core.FetchRequest) (core.Balance, error) {
	if req.Account.Credential == "" {
		return core.Balance{}, &core.ValidationError{Field: "credential", Message: "No admin key found"}
	}
	start, end := core.ComputeRangeDates(req.Range, req.Now)
	res := p.Costs.Aggregate(ctx, req.Account.Credential, req.RelayBase, start, end)
	if res.Pages == 0 && res.LastErr != nil {
		log.Printf("openai level=warn event=costs_all_failed start=%s end=%s skipped=%d err=%v", start, end, len(res.SkippedDays), res.LastErr)
	}
	return core.Balance{
		Used:    core.Float(res.Total),
		Partial: res.Partial(),
	}, nil
}
