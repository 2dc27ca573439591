package api

// Package api is the HTTP client for the platform's REST API. It only
// implements what test data cleanup needs: deleting a resource by id and
// listing resources of a kind.

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

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single request when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// maxErrorBody limits how much of an error response is kept.
const maxErrorBody = 4096

// Client talks to {baseURL}/api/v1/... with a bearer token.
type Client struct {
	logger     zerolog.Logger
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the request timeout. A client supplied through
// WithHTTPClient is copied first and left unchanged.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = cleanhttp.DefaultClient()
		} else {
			hc := *c.httpClient
			c.httpClient = &hc
		}
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the given base URL.
func New(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	httpClient := cleanhttp.DefaultClient()
	httpClient.Timeout = DefaultTimeout

	c := &Client{
		logger:     zerolog.Nop(),
		baseURL:    u,
		httpClient: httpClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = httpClient
	}

	return c, nil
}

// BaseURL returns the base URL the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Delete issues DELETE {baseURL}{endpoint}/{id}. Any 2xx status is success.
func (c *Client) Delete(ctx context.Context, endpoint, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.resolve(endpoint, id))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// List issues GET {baseURL}{path}?{query} and decodes the returned records.
func (c *Client) List(ctx context.Context, path string, query url.Values) ([]Item, error) {
	u := c.resolve(path, "")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s: %w", u, err)
	}

	items, err := decodeItems(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response of %s: %w", u, err)
	}
	return items, nil
}

// resolve joins endpoint to the base URL. The id always stays a single
// path segment.
func (c *Client) resolve(endpoint, id string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Trim(endpoint, "/")
	u.RawPath = ""
	if id != "" {
		prefix := u.EscapedPath()
		u.Path += "/" + id
		u.RawPath = prefix + "/" + escapeSegment(id)
	}
	return &u
}

func escapeSegment(id string) string {
	if id == "." || id == ".." {
		return strings.ReplaceAll(id, ".", "%2E")
	}
	return url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method string, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", u.String()).
		Msg("Sending request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     method,
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	return resp, nil
}

// Item is a listed resource. Only the fields needed to identify a resource
// are decoded.
type Item struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts "name" and falls back to "username".
func (i *Item) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       ID     `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	i.ID = raw.ID
	i.Name = raw.Name
	if i.Name == "" {
		i.Name = raw.Username
	}
	return nil
}

// ID is a resource id that may be encoded as a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// decodeItems accepts a bare array or an object wrapping it in "data",
// "items", "list" or "data.list".
func decodeItems(data []byte) ([]Item, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var items []Item
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	for _, key := range []string{"data", "items", "list"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		return decodeItems(raw)
	}
	return nil, fmt.Errorf("no list found in response")
}
