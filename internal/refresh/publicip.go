package refresh

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/janekbaraniewski/spendboard/internal/providers/shared"
)

const (
	ipEchoURL = "https://api.ipify.org?format=json"

	DefaultIPEchoTimeout = 10 * time.Second
)

// IPLookup returns the caller's public IP, or "" when it cannot be found.
type IPLookup func(ctx context.Context) string

// PublicIP asks an IP echo service for the caller's address. It never fails;
// any error yields "".
func PublicIP(client *shared.Client, endpoint string, timeout time.Duration) IPLookup {
	if endpoint == "" {
		endpoint = ipEchoURL
	}
	if timeout <= 0 {
		timeout = DefaultIPEchoTimeout
	}
	probe := &shared.Client{Timeout: timeout}
	if client != nil {
		probe.HTTP = client.HTTP
	}
	return func(ctx context.Context) string {
		var resp struct {
			IP string `json:"ip"`
		}
		if err := probe.GetJSON(ctx, endpoint, "", "", &resp); err != nil {
			log.Printf("refresh level=debug event=ip_lookup_failed err=%v", err)
			return ""
		}
		return strings.TrimSpace(resp.IP)
	}
}
