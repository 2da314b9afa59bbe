// Package forecast calls the external demand forecasting service.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	MinDays = 7
	MaxDays = 365
)

var (
	ErrDisabled    = errors.New("forecast service is not configured")
	ErrInvalidDays = fmt.Errorf("days must be between %d and %d", MinDays, MaxDays)
)

// Result is the forecast service's response: actual and predicted daily
// demand over the evaluated window.
type Result struct {
	Dates     []string  `json:"dates"`
	Actual    []float64 `json:"actual"`
	Predicted []float64 `json:"predicted"`
	Accuracy  float64   `json:"accuracy"`
}

type Client interface {
	Forecast(ctx context.Context, branch, product string, days int) (*Result, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
}

type apiError struct {
	Detail string `json:"detail"`
}

// NewClient returns nil when baseURL is empty; callers treat a nil client as
// the feature being off.
func NewClient(baseURL string, timeout time.Duration) *APIClient {
	if strings.TrimSpace(baseURL) == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	return &APIClient{httpClient: c}
}

func (c *APIClient) Forecast(ctx context.Context, branch, product string, days int) (*Result, error) {
	if c == nil {
		return nil, ErrDisabled
	}
	if days < MinDays || days > MaxDays {
		return nil, ErrInvalidDays
	}

	result := new(Result)
	apiErr := new(apiError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"supermarket": branch,
			"product":     product,
			"days":        strconv.Itoa(days),
		}).
		SetResult(result).
		SetError(apiErr).
		Get("/forecast")
	if err != nil {
		return nil, fmt.Errorf("request forecast: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("forecast api error: status=%d, detail=%s", resp.StatusCode(), apiErr.Detail)
	}
	return result, nil
}
