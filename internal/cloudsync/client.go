package cloudsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/janekbaraniewski/spendboard/internal/providers/shared"
)

// Client talks to the remote profile store.
type Client struct {
	BaseURL string
	HTTP    *shared.Client
}

func NewClient(baseURL string, httpClient *shared.Client) *Client {
	if httpClient == nil {
		httpClient = shared.NewClient()
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: httpClient}
}

type AuthResponse struct {
	Status      string          `json:"status"`
	Message     string          `json:"message"`
	PasswordKey string          `json:"password_key"`
	Session     json.RawMessage `json:"session"`
}

func (r AuthResponse) ok() bool {
	switch strings.ToLower(strings.TrimSpace(r.Status)) {
	case "success", "ok":
		return true
	case "":
		return r.PasswordKey != ""
	default:
		return false
	}
}

func (r AuthResponse) failure(step string) error {
	msg := r.Message
	if msg == "" {
		msg = r.Status
	}
	if msg == "" {
		msg = "rejected by server"
	}
	return fmt.Errorf("%s: %s", step, msg)
}

// RemoteConfig is the stored profile payload as the server returns it.
type RemoteConfig struct {
	Data     any `json:"data"`
	LastSync any `json:"last_sync"`
}

func (c *Client) Register(ctx context.Context, email, password, apps string) (AuthResponse, error) {
	var resp AuthResponse
	err := c.HTTP.Do(ctx, shared.Request{
		Method: http.MethodPost,
		Target: c.endpoint("auth/register"),
		Body:   map[string]string{"email": email, "password": password, "apps": apps},
	}, &resp)
	if err != nil {
		return resp, err
	}
	if !resp.ok() {
		return resp, resp.failure("register")
	}
	return resp, nil
}

func (c *Client) Login(ctx context.Context, email, password, apps string) (AuthResponse, error) {
	var resp AuthResponse
	err := c.HTTP.Do(ctx, shared.Request{
		Method: http.MethodPost,
		Target: c.endpoint("auth/login"),
		Body:   map[string]string{"email": email, "apps": apps, "password": password},
	}, &resp)
	if err != nil {
		return resp, err
	}
	if !resp.ok() {
		return resp, resp.failure("login")
	}
	if resp.PasswordKey == "" {
		return resp, fmt.Errorf("login: server returned no password key")
	}
	return resp, nil
}

func (c *Client) FetchConfig(ctx context.Context, p Profile) (RemoteConfig, error) {
	q := url.Values{}
	q.Set("email", p.Email)
	q.Set("apps", p.Apps)
	q.Set("password_key", p.PasswordKey)

	var resp RemoteConfig
	err := c.HTTP.Do(ctx, shared.Request{
		Method: http.MethodGet,
		Target: c.endpoint("config/app") + "?" + q.Encode(),
	}, &resp)
	return resp, err
}

func (c *Client) PushConfig(ctx context.Context, p Profile, snap Snapshot) error {
	return c.HTTP.Do(ctx, shared.Request{
		Method: http.MethodPost,
		Target: c.endpoint("config/app"),
		Body: map[string]any{
			"email":        p.Email,
			"apps":         p.Apps,
			"password_key": p.PasswordKey,
			"app_data":     snap,
		},
	}, nil)
}

func (c *Client) endpoint(path string) string {
	return c.BaseURL + "/" + path
}
