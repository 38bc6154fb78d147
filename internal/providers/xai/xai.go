// Package xai reports the prepaid credit left on a Grok team through the
// xAI management API:
//
//	GET https://management-api.x.ai/v1/billing/teams/{teamId}/prepaid/balance
//	Response: {"total": {"val": "-5000"}, "changes": [...]}
//
// total is a signed amount in cents; purchased credit shows up negative.
package xai

import (
	"context"
	"math"
	"net/url"

	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/parsers"
	"github.com/janekbaraniewski/spendboard/internal/providers/providerbase"
	"github.com/janekbaraniewski/spendboard/internal/providers/shared"
)

const defaultBaseURL = "https://management-api.x.ai"

type prepaidBalance struct {
	Total any `json:"total"`
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
		Base: providerbase.New(core.VendorGrok, core.ProviderInfo{
			Name:   "Grok",
			DocURL: "https://docs.x.ai/docs/management-api",
		}),
		baseURL: shared.ResolveBaseURL(baseURL, defaultBaseURL),
		client:  client,
	}
}

func (p *Provider) FetchBalance(ctx context.Context, req core.FetchRequest) (core.Balance, error) {
	if req.Account.TeamID == "" {
		return core.Balance{}, &core.ValidationError{Field: "teamId", Message: "Grok accounts need a team ID"}
	}
	if req.Account.Credential == "" {
		return core.Balance{}, &core.ValidationError{Field: "credential", Message: "No management key found"}
	}

	target := p.baseURL + "/v1/billing/teams/" + url.PathEscape(req.Account.TeamID) + "/prepaid/balance"
	var resp prepaidBalance
	if err := p.client.GetJSON(ctx, target, req.RelayBase, req.Account.Credential, &resp); err != nil {
		return core.Balance{}, err
	}
	return core.Balance{Available: totalDollars(resp.Total)}, nil
}

func totalDollars(total any) *float64 {
	cents := parsers.FirstNumber(parsers.Object(total), "val", "value")
	if cents == nil {
		return nil
	}
	return core.Float(minorUnitsToDollars(*cents))
}

func minorUnitsToDollars(v float64) float64 {
	return math.Abs(v) / 100
}
