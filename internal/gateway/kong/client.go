// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

// Package kong provisions gateway JWT credentials through the Kong Admin API.
package kong

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/codelab/acesso/internal/auth"
)

// DefaultTimeout bounds each Admin API request.
const DefaultTimeout = 5 * time.Second

// APIKeyHeader carries the admin API key when one is configured.
const APIKeyHeader = "Kong-Admin-Token"

// Config holds client configuration.
type Config struct {
	// AdminURL is the Admin API base URL, e.g. http://kong:8001.
	AdminURL string
	// APIKey is sent in APIKeyHeader when non-empty.
	APIKey string
	// Secret is registered as the HS256 secret of new credentials. It must
	// match the secret session tokens are signed with.
	Secret  string
	Timeout time.Duration
}

// Client implements auth.GatewayCredentialClient against Kong.
type Client struct {
	base   *url.URL
	apiKey string
	secret string
	http   *http.Client
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient creates a Client. AdminURL and Secret are required.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.AdminURL == "" {
		return nil, oops.Code("KONG_CONFIG_INVALID").Errorf("kong admin URL is required")
	}
	if cfg.Secret == "" {
		return nil, oops.Code("KONG_CONFIG_INVALID").Errorf("kong credential secret is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.AdminURL, "/"))
	if err != nil {
		return nil, oops.Code("KONG_CONFIG_INVALID").With("admin_url", cfg.AdminURL).Wrapf(err, "parse kong admin URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{
		base:   base,
		apiKey: cfg.APIKey,
		secret: cfg.Secret,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type jwtCredential struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	Algorithm string `json:"algorithm,omitempty"`
}

type credentialList struct {
	Data []jwtCredential `json:"data"`
}

// statusError is a non-2xx Admin API answer.
type statusError struct {
	method string
	path   string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("kong %s %s: status %d: %s", e.method, e.path, e.status, e.body)
}

// GetOrCreateCredential returns the first JWT credential of the consumer
// named userID, creating the consumer and a credential as needed.
func (c *Client) GetOrCreateCredential(ctx context.Context, userID string) (auth.GatewayCredential, error) {
	if userID == "" {
		return auth.GatewayCredential{}, auth.ErrCredentialUnavailable(userID, oops.Errorf("user id is empty"))
	}
	cred, err := c.getOrCreate(ctx, userID)
	if err != nil {
		return auth.GatewayCredential{}, auth.ErrCredentialUnavailable(userID, err)
	}
	return auth.GatewayCredential{ID: cred.ID, Key: cred.Key}, nil
}

func (c *Client) getOrCreate(ctx context.Context, userID string) (jwtCredential, error) {
	consumer := "/consumers/" + url.PathEscape(userID)

	var list credentialList
	status, err := c.do(ctx, http.MethodGet, consumer+"/jwt", nil, &list, http.StatusNotFound)
	if err != nil {
		return jwtCredential{}, err
	}
	if status == http.StatusNotFound {
		c.logger.DebugContext(ctx, "creating gateway consumer", "user_id", userID)
		body := map[string]string{"username": userID, "custom_id": userID}
		if _, err := c.do(ctx, http.MethodPut, consumer, body, nil); err != nil {
			return jwtCredential{}, err
		}
		list.Data = nil
	}
	if len(list.Data) > 0 {
		return list.Data[0], nil
	}

	var created jwtCredential
	body := map[string]string{"algorithm": "HS256", "secret": c.secret}
	if _, err := c.do(ctx, http.MethodPost, consumer+"/jwt", body, &created); err != nil {
		return jwtCredential{}, err
	}
	if created.Key == "" {
		return jwtCredential{}, oops.With("user_id", userID).Errorf("kong returned a credential without key")
	}
	return created, nil
}

// do sends one request. Statuses listed in allow are returned without
// decoding instead of failing.
func (c *Client) do(ctx context.Context, method, path string, in, out any, allow ...int) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, oops.With("method", method, "path", path).Wrapf(err, "encode request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return 0, oops.With("method", method, "path", path).Wrapf(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, oops.With("method", method, "path", path).Wrapf(err, "kong request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	for _, s := range allow {
		if resp.StatusCode == s {
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, &statusError{method: method, path: path, status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, oops.With("method", method, "path", path).Wrapf(err, "decode response")
		}
	}
	return resp.StatusCode, nil
}

var _ auth.GatewayCredentialClient = (*Client)(nil)
