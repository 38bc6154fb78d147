package providers

import (
	"fmt"

	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/providers/deepseek"
	"github.com/janekbaraniewski/spendboard/internal/providers/openai"
	"github.com/janekbaraniewski/spendboard/internal/providers/shared"
	"github.com/janekbaraniewski/spendboard/internal/providers/xai"
)

// BaseURLs overrides the public API host per vendor. Empty entries use the
// vendor default.
type BaseURLs map[core.Vendor]string

func AllProviders(client *shared.Client, urls BaseURLs) []core.BalanceProvider {
	if client == nil {
		client = shared.NewClient()
	}
	return []core.BalanceProvider{
		openai.NewWithClient(urls[core.VendorOpenAI], client),
		deepseek.NewWithClient(urls[core.VendorDeepseek], client),
		xai.NewWithClient(urls[core.VendorGrok], client),
	}
}

// Registry resolves the balance provider for a vendor.
type Registry struct {
	byVendor map[core.Vendor]core.BalanceProvider
}

func NewRegistry(providers ...core.BalanceProvider) *Registry {
	r := &Registry{byVendor: make(map[core.Vendor]core.BalanceProvider, len(providers))}
	for _, p := range providers {
		r.byVendor[p.ID()] = p
	}
	return r
}

// DefaultRegistry wires every supported vendor against its public API.
func DefaultRegistry(client *shared.Client) *Registry {
	return NewRegistry(AllProviders(client, nil)...)
}

func (r *Registry) ForVendor(v core.Vendor) (core.BalanceProvider, error) {
	p, ok := r.byVendor[v]
	if !ok {
		return nil, fmt.Errorf("no provider for vendor %q", v)
	}
	return p, nil
}
