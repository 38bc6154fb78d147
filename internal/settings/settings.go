// Package settings holds the user preferences that live next to the account
// list: the usage range and the relay base URL.
package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/store"
)

type Settings struct {
	store store.Store
}

func New(s store.Store) *Settings {
	return &Settings{store: s}
}

// UsageRange returns the saved range, or the default when unset or unknown.
func (s *Settings) UsageRange(ctx context.Context) (core.UsageRange, error) {
	v, _, err := s.store.Get(ctx, store.KeyUsageRange)
	if err != nil {
		return core.DefaultUsageRange, err
	}
	return core.ParseUsageRange(v), nil
}

func (s *Settings) SetUsageRange(ctx context.Context, r core.UsageRange) error {
	if !r.Valid() {
		return &core.ValidationError{Field: "range", Message: fmt.Sprintf("unknown range %q (want 1d, 3d, 7d or 1m)", r)}
	}
	return s.store.Set(ctx, store.KeyUsageRange, string(r))
}

// RelayBase returns the configured relay base without a trailing slash.
func (s *Settings) RelayBase(ctx context.Context) (string, error) {
	v, _, err := s.store.Get(ctx, store.KeyRelayBase)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(strings.TrimSpace(v), "/"), nil
}

// SetRelayBase stores base; an empty value removes the relay.
func (s *Settings) SetRelayBase(ctx context.Context, base string) error {
	base = strings.TrimSpace(base)
	if base == "" {
		return s.store.Delete(ctx, store.KeyRelayBase)
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return &core.ValidationError{Field: "relay", Message: "relay base must be an http(s) URL"}
	}
	return s.store.Set(ctx, store.KeyRelayBase, base)
}
