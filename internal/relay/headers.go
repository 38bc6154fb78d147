package relay

import (
	"net/http"
)

func shouldSkipRequestHeader(header string) bool {
	switch http.CanonicalHeaderKey(header) {
	case "Host",
		"Connection",
		"Content-Length",
		"Origin",
		"Referer",
		"Accept-Encoding",
		"Proxy-Connection",
		"Keep-Alive",
		"Transfer-Encoding",
		"Te",
		"Trailer",
		"Upgrade":
		return true
	default:
		return false
	}
}

func shouldSkipResponseHeader(header string) bool {
	switch http.CanonicalHeaderKey(header) {
	case "Content-Encoding",
		"Transfer-Encoding",
		"Connection",
		"Content-Length",
		"Keep-Alive",
		"Access-Control-Allow-Origin",
		"Access-Control-Allow-Credentials":
		return true
	default:
		return false
	}
}

func copyRequestHeaders(dst, src http.Header) {
	for k, values := range src {
		if shouldSkipRequestHeader(k) {
			continue
		}
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}

func copyResponseHeaders(dst, src http.Header) {
	for k, values := range src {
		if shouldSkipResponseHeader(k) {
			continue
		}
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}
