package parsers

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

var numberNoise = strings.NewReplacer(",", "", "_", "", " ", "", "\u00a0", "")

// ParseFloat parses a human-formatted number such as "3,400.10" or "1_000".
func ParseFloat(val string) *float64 {
	val = numberNoise.Replace(strings.TrimSpace(val))
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Number coerces a decoded JSON value (number or numeric string) to float64.
func Number(v any) *float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil
		}
		return &n
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case json.Number:
		return ParseFloat(n.String())
	case string:
		return ParseFloat(n)
	default:
		return nil
	}
}

// FirstNumber returns the first key of obj holding a usable number.
func FirstNumber(obj map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		if f := Number(v); f != nil {
			return f
		}
	}
	return nil
}

// Object returns v as a JSON object, or nil.
func Object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// Objects returns the object elements of a JSON array, or nil.
func Objects(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// String returns v when it is a JSON string.
func String(v any) string {
	s, _ := v.(string)
	return s
}

// MaskKey renders a secret for display, keeping four characters at each end.
func MaskKey(k string) string {
	if k == "" {
		return ""
	}
	if len(k) <= 8 {
		return "••••"
	}
	return k[:4] + "••••" + k[len(k)-4:]
}
