package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/relay"
	"github.com/janekbaraniewski/spendboard/internal/version"
)

// DefaultTimeout bounds every vendor and sync call.
const DefaultTimeout = 20 * time.Second

const maxErrorBody = 512

// Client issues bearer-authenticated JSON calls, optionally through a relay.
type Client struct {
	HTTP    *http.Client
	Timeout time.Duration
}

func NewClient() *Client {
	return &Client{HTTP: http.DefaultClient, Timeout: DefaultTimeout}
}

// Request describes one outbound call. Target is the real vendor URL; it is
// rewritten through RelayBase when one is set.
type Request struct {
	Method    string
	Target    string
	RelayBase string
	Token     string
	Body      any
}

// GetJSON is a convenience for a bearer GET decoded into out.
func (c *Client) GetJSON(ctx context.Context, target, relayBase, token string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Target: target, RelayBase: relayBase, Token: token}, out)
}

// Do runs req under the client's deadline. Network failures and timeouts
// surface as *core.TransportError, non-2xx answers as *core.HTTPStatusError.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	endpoint := relay.BuildURL(req.RelayBase, req.Target)
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return &core.TransportError{URL: redactURL(req.Target), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &core.TransportError{URL: redactURL(req.Target), Err: fmt.Errorf("reading body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		log.Printf("providers level=warn event=http_error url=%s status=%d body=%q", redactURL(req.Target), resp.StatusCode, snippet)
		return &core.HTTPStatusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing response from %s: %w", redactURL(req.Target), err)
	}
	return nil
}

// redactURL drops the query string, which may carry sync credentials.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	return u.String()
}

func ResolveBaseURL(override, defaultURL string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	return defaultURL
}
