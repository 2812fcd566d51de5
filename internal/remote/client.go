// Package remote provides the HTTP client for the CV sync API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/cv-sync/internal/types"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is the user agent string for API requests.
	DefaultUserAgent = "cvsync/1.0"

	maxErrorBody = 64 << 10
)

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token. The empty token yields ErrNoToken.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}

// Options configures the client.
type Options struct {
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Client talks to the sync server.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	tokens    TokenSource
	userAgent string
}

// NewClient validates baseURL and returns a client.
func NewClient(baseURL string, tokens TokenSource, opts *Options) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: %v", baseURL, err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	return &Client{baseURL: parsed, http: httpClient, tokens: tokens, userAgent: ua}, nil
}

// BaseURL returns the server root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Fetch returns the server copy of the document.
func (c *Client) Fetch(ctx context.Context) (*types.CVDocument, error) {
	var doc types.CVDocument
	if err := c.doJSON(ctx, "fetch", http.MethodGet, "/api/v1/cv", nil, true, &doc); err != nil {
		return nil, err
	}
	out := doc.Normalize()
	return &out, nil
}

// Push sends a partial document and returns the merged server copy.
func (c *Client) Push(ctx context.Context, data types.Partial) (*types.CVDocument, error) {
	var doc types.CVDocument
	if err := c.doJSON(ctx, "push", http.MethodPatch, "/api/v1/cv", data, true, &doc); err != nil {
		return nil, err
	}
	out := doc.Normalize()
	return &out, nil
}

// Ping checks that the server answers its health endpoint. No token is needed.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSON(ctx, "ping", http.MethodGet, "/health", nil, false, nil)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*types.LoginResponse, error) {
	body := types.LoginRequest{Email: email, Password: password}
	var resp types.LoginResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, "/api/v1/auth/login", body, false, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &MalformedResponseError{Op: "login", URL: c.endpoint("/api/v1/auth/login"), Message: "missing token"}
	}
	return &resp, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// doJSON encodes body (when non-nil), sends it and decodes the response into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, op, method, path string, body any, auth bool, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, op, method, path, reader, auth)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(op, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return decodeJSON(op, req.URL.String(), resp, out)
}

func (c *Client) newRequest(ctx context.Context, op, method, path string, body io.Reader, auth bool) (*http.Request, error) {
	var token string
	if auth {
		t, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		token = t
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// send executes req and turns transport failures and error statuses into typed errors.
func (c *Client) send(op string, req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, URL: req.URL.String(), Cause: err}
	}
	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		return nil, httpError(op, req.URL.String(), resp)
	}
	return resp, nil
}

func httpError(op, u string, resp *http.Response) *HTTPError {
	msg := http.StatusText(resp.StatusCode)
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er types.ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		msg = er.Error
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
		msg = text
	}
	return &HTTPError{Op: op, URL: u, StatusCode: resp.StatusCode, Message: msg}
}

func decodeJSON(op, u string, resp *http.Response, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, URL: u, Cause: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &MalformedResponseError{Op: op, URL: u, Message: "invalid JSON body", Cause: err}
	}
	return nil
}
