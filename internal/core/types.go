package core

import (
	"encoding/json"
	"time"
)

type Vendor string

const (
	VendorOpenAI   Vendor = "openai"
	VendorDeepseek Vendor = "deepseek"
	VendorGrok     Vendor = "grok"
)

var Vendors = []Vendor{VendorOpenAI, VendorDeepseek, VendorGrok}

func ParseVendor(s string) (Vendor, bool) {
	for _, v := range Vendors {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// Balance is the normalized result every vendor adapter produces. Nil fields
// mean the vendor does not report that figure.
type Balance struct {
	Granted   *float64 `json:"granted"`
	Used      *float64 `json:"used"`
	Available *float64 `json:"available"`
	// Partial is set when the figure is known to be incomplete (page cap hit
	// or days skipped during fallback).
	Partial bool `json:"partial,omitempty"`
}

type Account struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Vendor      Vendor     `json:"vendor"`
	Credential  string     `json:"adminKey"`
	TeamID      string     `json:"teamId,omitempty"`
	LastUpdated *time.Time `json:"-"`
	Balance     *Balance   `json:"balance"`
	Error       string     `json:"error,omitempty"`
}

// accountWire keeps lastUpdated as epoch milliseconds, which is what the
// synced snapshots carry.
type accountWire struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Vendor      Vendor   `json:"vendor,omitempty"`
	Credential  string   `json:"adminKey"`
	TeamID      string   `json:"teamId,omitempty"`
	LastUpdated *int64   `json:"lastUpdated"`
	Balance     *Balance `json:"balance"`
	Error       *string  `json:"error"`
}

func (a Account) MarshalJSON() ([]byte, error) {
	w := accountWire{
		ID:         a.ID,
		Name:       a.Name,
		Vendor:     a.Vendor,
		Credential: a.Credential,
		TeamID:     a.TeamID,
		Balance:    a.Balance,
	}
	if a.LastUpdated != nil {
		ms := a.LastUpdated.UnixMilli()
		w.LastUpdated = &ms
	}
	if a.Error != "" {
		e := a.Error
		w.Error = &e
	}
	return json.Marshal(w)
}

func (a *Account) UnmarshalJSON(data []byte) error {
	var w accountWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = Account{
		ID:         w.ID,
		Name:       w.Name,
		Vendor:     w.Vendor,
		Credential: w.Credential,
		TeamID:     w.TeamID,
		Balance:    w.Balance,
	}
	// Records written before multi-vendor support carry no vendor.
	if a.Vendor == "" {
		a.Vendor = VendorOpenAI
	}
	if w.LastUpdated != nil {
		t := time.UnixMilli(*w.LastUpdated)
		a.LastUpdated = &t
	}
	if w.Error != nil {
		a.Error = *w.Error
	}
	return nil
}

// Validate checks the invariants an account must satisfy before it is stored.
func (a Account) Validate() error {
	if a.Name == "" {
		return &ValidationError{Field: "name", Message: "account name is required"}
	}
	if _, ok := ParseVendor(string(a.Vendor)); !ok {
		return &ValidationError{Field: "vendor", Message: "unsupported vendor " + string(a.Vendor)}
	}
	if a.Credential == "" {
		return &ValidationError{Field: "credential", Message: "API key is required"}
	}
	if a.Vendor == VendorGrok && a.TeamID == "" {
		return &ValidationError{Field: "teamId", Message: "team id is required for grok accounts"}
	}
	if a.Vendor != VendorGrok && a.TeamID != "" {
		return &ValidationError{Field: "teamId", Message: "team id is only valid for grok accounts"}
	}
	return nil
}

func Float(v float64) *float64 { return &v }
