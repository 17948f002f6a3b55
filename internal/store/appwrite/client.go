// Package appwrite talks to the Appwrite Databases REST API through resty.
package appwrite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"
)

// UniqueID asks Appwrite to generate the resource ID server-side.
const UniqueID = "unique()"

// Options configures a Client.
type Options struct {
	Endpoint  string
	ProjectID string
	APIKey    string
	Timeout   time.Duration
}

// Client is a thin Appwrite REST client. It never retries on its own.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// Error is the error body Appwrite returns with every non-2xx response.
type Error struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

func (e *Error) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("appwrite %d %s: %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("appwrite %d: %s", e.Status, e.Message)
}

// Conflict reports a 409 (resource already exists).
func (e *Error) Conflict() bool { return e.Status == http.StatusConflict }

// NotFound reports a 404.
func (e *Error) NotFound() bool { return e.Status == http.StatusNotFound }

// Temporary reports rate limiting and server-side failures.
func (e *Error) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// NewClient creates a Client for the given project.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(opts.Endpoint, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-Appwrite-Response-Format", "1.6.0").
		SetHeader("X-Appwrite-Project", opts.ProjectID).
		SetHeader("X-Appwrite-Key", opts.APIKey)

	return &Client{http: hc, logger: logger}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	apiErr := &Error{}
	req := c.http.R().
		SetContext(ctx).
		SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}

	started := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Warn("appwrite request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("appwrite %s %s: %w", method, path, err)
	}

	c.logger.Debug("appwrite request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("latency", time.Since(started)),
	)

	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return apiErr
	}
	return nil
}

// Query is one Appwrite query in its JSON wire form.
type Query struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute,omitempty"`
	Values    []any  `json:"values,omitempty"`
}

// String encodes the query as Appwrite expects it in queries[].
func (q Query) String() string {
	b, _ := json.Marshal(q)
	return string(b)
}

// OrderDesc sorts by attribute, newest/largest first.
func OrderDesc(attribute string) Query { return Query{Method: "orderDesc", Attribute: attribute} }

// Limit caps the number of returned documents.
func Limit(n int) Query { return Query{Method: "limit", Values: []any{n}} }

// Offset skips n documents.
func Offset(n int) Query { return Query{Method: "offset", Values: []any{n}} }

// Equal matches attribute against any of values.
func Equal(attribute string, values ...any) Query {
	return Query{Method: "equal", Attribute: attribute, Values: values}
}

func encodeQueries(queries []Query) url.Values {
	if len(queries) == 0 {
		return nil
	}
	v := url.Values{}
	for _, q := range queries {
		v.Add("queries[]", q.String())
	}
	return v
}

// Permission strings.
func PermissionRead(role string) string   { return fmt.Sprintf("read(%q)", role) }
func PermissionCreate(role string) string { return fmt.Sprintf("create(%q)", role) }

// RoleAny matches every caller.
const RoleAny = "any"
