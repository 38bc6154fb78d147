package cloudsync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/spendboard/internal/store"
)

// Snapshot maps every synced store key to its parsed value. Values that are
// not JSON are kept as plain strings.
type Snapshot map[string]any

// BuildSnapshot reads every local key except the sync bookkeeping keys.
func BuildSnapshot(ctx context.Context, s store.Store) (Snapshot, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading local state: %w", err)
	}
	snap := make(Snapshot, len(entries))
	for key, raw := range entries {
		if lo.Contains(store.SyncKeys, key) {
			continue
		}
		snap[string(key)] = parseValue(raw)
	}
	return snap, nil
}

// ApplySnapshot makes snap the complete local state, leaving the sync
// bookkeeping keys alone. It runs as one store transaction, so a failure
// leaves the previous state intact.
func ApplySnapshot(ctx context.Context, s store.Store, snap Snapshot) error {
	entries := make(map[store.Key]string, len(snap))
	for k, v := range snap {
		key := store.Key(k)
		if lo.Contains(store.SyncKeys, key) {
			continue
		}
		raw, err := encodeValue(v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", k, err)
		}
		entries[key] = raw
	}
	if err := s.Replace(ctx, entries, store.SyncKeys...); err != nil {
		return fmt.Errorf("writing local state: %w", err)
	}
	return nil
}

// snapshotFrom coerces the remote "data" field, which may arrive as an object
// or as a JSON-encoded string.
func snapshotFrom(v any) Snapshot {
	switch t := v.(type) {
	case map[string]any:
		return Snapshot(t)
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(t), &m); err == nil {
			return Snapshot(m)
		}
	}
	return Snapshot{}
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func encodeValue(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
