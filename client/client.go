// Package client talks to the violation REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Jwl06/civicledger360/models"
	"github.com/Jwl06/civicledger360/services"
	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

// Client calls the backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the API rooted at baseURL, e.g. http://localhost:3001.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReviewRequest is the body of PUT /api/violations/:id/review.
type ReviewRequest struct {
	Status      models.ViolationStatus `json:"status"`
	Reviewer    string                 `json:"reviewer"`
	FineAmount  *decimal.Decimal       `json:"fineAmount,omitempty"`
	ReviewNotes string                 `json:"reviewNotes,omitempty"`
	Target      services.ReviewTarget  `json:"target,omitempty"`
}

type listResponse struct {
	Violations []models.Violation `json:"violations"`
	Total      int                `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

// Name identifies the backend as a reconciliation source.
func (c *Client) Name() string { return "backend" }

// ListPending fetches the backend review queue.
func (c *Client) ListPending(ctx context.Context) ([]models.Violation, error) {
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/api/violations/pending", nil, &resp); err != nil {
		return nil, err
	}
	return tagBackend(resp.Violations), nil
}

// ListAll fetches every violation, optionally narrowed by status ("" for all).
func (c *Client) ListAll(ctx context.Context, status models.ViolationStatus) ([]models.Violation, error) {
	path := "/api/violations"
	if status != "" {
		path += "?" + url.Values{"status": {string(status)}}.Encode()
	}
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return tagBackend(resp.Violations), nil
}

func (c *Client) Get(ctx context.Context, id int64) (models.Violation, error) {
	var v models.Violation
	err := c.do(ctx, http.MethodGet, "/api/violations/"+strconv.FormatInt(id, 10), nil, &v)
	v.Source = models.SourceBackend
	return v, err
}

func (c *Client) Submit(ctx context.Context, in services.SubmitInput) (models.Violation, error) {
	var v models.Violation
	err := c.do(ctx, http.MethodPost, "/api/violations", in, &v)
	return v, err
}

func (c *Client) Review(ctx context.Context, id int64, req ReviewRequest) (models.Violation, error) {
	var v models.Violation
	err := c.do(ctx, http.MethodPut, "/api/violations/"+strconv.FormatInt(id, 10)+"/review", req, &v)
	return v, err
}

func (c *Client) Statistics(ctx context.Context) (models.Statistics, error) {
	var stats models.Statistics
	err := c.do(ctx, http.MethodGet, "/api/statistics", nil, &stats)
	return stats, err
}

func (c *Client) RegisterVehicle(ctx context.Context, in services.VehicleInput) (models.Vehicle, error) {
	var v models.Vehicle
	err := c.do(ctx, http.MethodPost, "/api/vehicles", in, &v)
	return v, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &models.ExternalServiceError{Service: "backend", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return statusError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &models.ExternalServiceError{Service: "backend", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// statusError turns an error response back into the error taxonomy.
func statusError(status int, body []byte) error {
	var er errorResponse
	if json.Unmarshal(body, &er) != nil || er.Error == "" {
		er.Error = strings.TrimSpace(string(body))
	}

	switch status {
	case http.StatusBadRequest:
		return &models.ValidationError{Field: er.Field, Message: er.Error}
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", models.ErrNotFound, er.Error)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", models.ErrInvalidTransition, er.Error)
	default:
		return &models.ExternalServiceError{
			Service: "backend",
			Err:     fmt.Errorf("status %d: %s", status, er.Error),
		}
	}
}

func tagBackend(list []models.Violation) []models.Violation {
	for i := range list {
		list[i].Source = models.SourceBackend
	}
	return list
}
