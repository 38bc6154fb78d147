// Package relay routes vendor calls through an optional CORS relay and
// implements the relay server itself.
package relay

import (
	"net/url"
	"strings"
)

// Placeholder in a relay base is replaced by the escaped target URL.
const Placeholder = "{url}"

// DefaultPath is appended to plain relay bases.
const DefaultPath = "/proxy"

// BuildURL rewrites target so it is fetched through base. An empty base
// returns target unchanged.
func BuildURL(base, target string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return target
	}
	escaped := url.QueryEscape(target)
	if strings.Contains(base, Placeholder) {
		return strings.ReplaceAll(base, Placeholder, escaped)
	}
	return strings.TrimRight(base, "/") + DefaultPath + "?url=" + escaped
}
