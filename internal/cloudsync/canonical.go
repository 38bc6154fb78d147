package cloudsync

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
)

// Canonical serializes v deterministically: object keys are sorted and a
// container that contains itself is written as null at the point of
// recursion.
func Canonical(v any) string {
	var buf bytes.Buffer
	writeCanonical(&buf, normalize(v), map[uintptr]bool{})
	return buf.String()
}

// CanonicalEqual compares two values by their canonical serialization.
func CanonicalEqual(a, b any) bool {
	return Canonical(a) == Canonical(b)
}

// normalize turns typed values into the generic JSON shapes writeCanonical
// understands.
func normalize(v any) any {
	switch v.(type) {
	case nil, bool, string, float64, json.Number, map[string]any, []any, Snapshot:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func writeCanonical(buf *bytes.Buffer, v any, onPath map[uintptr]bool) {
	switch t := v.(type) {
	case Snapshot:
		writeCanonical(buf, map[string]any(t), onPath)
	case map[string]any:
		ptr := reflect.ValueOf(t).Pointer()
		if onPath[ptr] {
			buf.WriteString("null")
			return
		}
		onPath[ptr] = true
		defer delete(onPath, ptr)

		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeScalar(buf, k)
			buf.WriteByte(':')
			writeCanonical(buf, normalize(t[k]), onPath)
		}
		buf.WriteByte('}')
	case []any:
		var ptr uintptr
		if len(t) > 0 {
			ptr = reflect.ValueOf(t).Pointer()
			if onPath[ptr] {
				buf.WriteString("null")
				return
			}
			onPath[ptr] = true
			defer delete(onPath, ptr)
		}

		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, normalize(item), onPath)
		}
		buf.WriteByte(']')
	default:
		writeScalar(buf, t)
	}
}

func writeScalar(buf *bytes.Buffer, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		buf.WriteString("null")
		return
	}
	buf.Write(data)
}
