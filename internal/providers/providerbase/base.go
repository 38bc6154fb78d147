package providerbase

import "github.com/janekbaraniewski/spendboard/internal/core"

// Base centralizes provider metadata. Vendor packages embed it and implement
// only FetchBalance.
type Base struct {
	vendor core.Vendor
	info   core.ProviderInfo
}

func New(vendor core.Vendor, info core.ProviderInfo) Base {
	if info.Name == "" {
		info.Name = string(vendor)
	}
	return Base{vendor: vendor, info: info}
}

func (b Base) ID() core.Vendor {
	return b.vendor
}

func (b Base) Describe() core.ProviderInfo {
	return b.info
}
