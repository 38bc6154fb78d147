package core

import (
	"context"
	"time"
)

type ProviderInfo struct {
	Name   string // e.g. "OpenAI", "Grok"
	DocURL string
}

// FetchRequest carries everything an adapter needs for one balance lookup.
type FetchRequest struct {
	Account   Account
	RelayBase string
	Range     UsageRange
	Now       time.Time
}

type BalanceProvider interface {
	ID() Vendor

	Describe() ProviderInfo

	FetchBalance(ctx context.Context, req FetchRequest) (Balance, error)
}
