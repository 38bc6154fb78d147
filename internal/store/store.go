// Package store persists the application's flat key-value state.
//
// Every piece of local state (accounts, preferences, sync profile) lives under
// one of the Key constants below. The flat layout is what cloud sync exchanges
// as a snapshot, so components go through typed helpers rather than reaching
// for raw strings.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

type Key string

const (
	KeyAccounts    Key = "openai_accounts_v1"
	KeyRelayBase   Key = "openai_cors_proxy"
	KeyUsageRange  Key = "openai_usage_range"
	KeySyncProfile Key = "cloud_sync_profile"
	KeySyncMeta    Key = "cloud_sync_meta"
)

// ErrCorrupt marks a stored value that no longer decodes.
var ErrCorrupt = errors.New("corrupt value")

// SyncKeys are never part of a sync snapshot.
var SyncKeys = []Key{KeySyncProfile, KeySyncMeta}

type Store interface {
	Get(ctx context.Context, key Key) (string, bool, error)
	Set(ctx context.Context, key Key, value string) error
	Delete(ctx context.Context, key Key) error
	Entries(ctx context.Context) (map[Key]string, error)
	// Replace atomically makes entries the full state, except for keys listed
	// in keep which are left untouched.
	Replace(ctx context.Context, entries map[Key]string, keep ...Key) error
	Close() error
}

// GetJSON decodes the value stored under key into out. It reports false when
// the key is absent.
func GetJSON(ctx context.Context, s Store, key Key, out any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return true, fmt.Errorf("store: decoding %s: %w: %w", key, ErrCorrupt, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, s Store, key Key, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
