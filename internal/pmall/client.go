// Package pmall is a client for the pmall e-commerce REST API.
package pmall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrNotAuthenticated is returned when an endpoint needs a login and the
// client has no credentials.
var ErrNotAuthenticated = errors.New("pmall: not authenticated")

// APIError is a non-2xx response or an envelope with a failure code.
type APIError struct {
	Status  int
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("pmall: status %d, code %d: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("pmall: status %d: %s", e.Status, e.Message)
}

// Client talks to one pmall deployment. It logs in lazily with the
// configured credentials and is safe for concurrent use.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	username string
	password string
	logger   *slog.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithCredentials enables automatic login.
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithToken sets a token obtained elsewhere.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("pmall: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("pmall: base URL %q must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns the current session token, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login authenticates with the configured credentials and keeps the token
// for later requests.
func (c *Client) Login(ctx context.Context) error {
	if c.username == "" {
		return ErrNotAuthenticated
	}

	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": c.username, "password": c.password}
	if err := c.do(ctx, http.MethodPost, "/login", nil, body, &out, false); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if out.Token == "" {
		return fmt.Errorf("login: %w: response carried no token", ErrNotAuthenticated)
	}

	c.mu.Lock()
	c.token = out.Token
	c.mu.Unlock()
	c.logger.Debug("pmall login succeeded", "user", c.username)
	return nil
}

// call performs an authenticated request. A 401 triggers one fresh login
// and a retry.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if c.Token() == "" && c.username != "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}

	err := c.do(ctx, method, path, query, body, out, true)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized && c.username != "" {
		if lerr := c.Login(ctx); lerr != nil {
			return lerr
		}
		return c.do(ctx, method, path, query, body, out, true)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, auth bool) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); auth && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("pmall request",
		"method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	return decodeResponse(resp.StatusCode, raw, out)
}

// envelope is the {code, message, data} wrapper most endpoints use.
type envelope struct {
	Code    *int64          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func successCode(code int64) bool {
	return code == 0 || code == 200 || code == 20000
}

func decodeResponse(status int, raw []byte, out interface{}) error {
	var env envelope
	isEnvelope := json.Unmarshal(raw, &env) == nil && env.Code != nil

	if status < 200 || status > 299 {
		apiErr := &APIError{Status: status, Message: strings.TrimSpace(string(raw))}
		if isEnvelope {
			apiErr.Code = *env.Code
			apiErr.Message = env.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	payload := raw
	if isEnvelope {
		if !successCode(*env.Code) {
			return &APIError{Status: status, Code: *env.Code, Message: env.Message}
		}
		payload = env.Data
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
