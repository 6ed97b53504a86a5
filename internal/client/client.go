// Package client is a thin REST client for the InferaDB API, wired with the
// bearer credentials obtained by the login flow.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/inferadb/cli/internal/auth"
)

// ErrAuthRequired is returned when the API rejects the stored credentials.
// The CLI maps it to a "run 'inferadb login'" hint.
var ErrAuthRequired = errors.New("authentication required")

// Client talks to one InferaDB deployment on behalf of one profile.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Account describes the authenticated user, as reported by the API.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Health is the service health report.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// New creates a client for the given endpoint using the supplied
// credentials. The access token rides on every request via an oauth2
// transport; the token itself is never logged.
func New(baseURL string, credentials *auth.Credentials) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q", baseURL)
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credentials.AccessToken})
	httpClient := oauth2.NewClient(context.Background(), source)
	httpClient.Timeout = 30 * time.Second

	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Whoami returns the account the stored credentials belong to.
func (c *Client) Whoami(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.get(ctx, "/v1/account", &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Health checks service health. It does not require valid credentials on the
// server side, but still rides the authenticated client.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var health Health
	if err := c.get(ctx, "/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// get performs a GET against the API and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	requestURL := c.baseURL.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("Accept", "application/json")

	log.Debugf("GET %s request_id=%s", requestURL, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", requestURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", requestURL, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrAuthRequired
	case resp.StatusCode >= 400:
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err = json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", requestURL, err)
	}
	return nil
}
