package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"

	"api_ventas/internal/sales"
)

// Source fetches the most recent sales from the Query Service.
type Source interface {
	FetchSales(ctx context.Context, limit int) ([]sales.SaleRecord, error)
}

// APIClient is the Source backed by GET {apiBase}/ventas.
type APIClient struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewAPIClient creates a client for the Query Service at apiBase (".../api").
func NewAPIClient(apiBase string, timeout time.Duration, logger *zap.Logger) *APIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := resty.New().
		SetBaseURL(strings.TrimRight(apiBase, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &APIClient{http: hc, logger: logger}
}

// Close releases the underlying HTTP client.
func (c *APIClient) Close() error {
	return c.http.Close()
}

type listResponse struct {
	Success bool               `json:"success"`
	Ventas  []sales.SaleRecord `json:"ventas"`
	Total   int                `json:"total"`
	Error   string             `json:"error"`
}

// FetchSales implements Source.
func (c *APIClient) FetchSales(ctx context.Context, limit int) ([]sales.SaleRecord, error) {
	var out listResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out).
		SetError(&out).
		Get("/ventas")
	if err != nil {
		return nil, fmt.Errorf("fetch sales: %w", err)
	}
	if resp.IsError() {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return nil, fmt.Errorf("query service returned %d: %s", resp.StatusCode(), msg)
	}
	if !out.Success {
		if out.Error == "" {
			return nil, fmt.Errorf("query service reported an unknown error")
		}
		return nil, fmt.Errorf("query service: %s", out.Error)
	}

	c.logger.Debug("sales fetched", zap.Int("limit", limit), zap.Int("count", len(out.Ventas)), zap.Int("total", out.Total))
	if out.Ventas == nil {
		out.Ventas = []sales.SaleRecord{}
	}
	return out.Ventas, nil
}
