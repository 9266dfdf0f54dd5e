// Package kitebridge provides a Go client for the kitebridge REST API.
package kitebridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a kitebridge server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:8000".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// OrderRequest mirrors the server's order body. Zero-valued optional
// fields take server-side defaults (NSE / CNC / MARKET).
type OrderRequest struct {
	Symbol       string  `json:"symbol"`
	Quantity     int     `json:"quantity"`
	Exchange     string  `json:"exchange,omitempty"`
	Product      string  `json:"product,omitempty"`
	OrderType    string  `json:"order_type,omitempty"`
	Price        float64 `json:"price,omitempty"`
	TriggerPrice float64 `json:"trigger_price,omitempty"`
	Variety      string  `json:"variety,omitempty"`
	Validity     string  `json:"validity,omitempty"`
}

// OrderResult is the outcome of an order call.
type OrderResult struct {
	Status      string `json:"status"`
	OrderID     string `json:"order_id,omitempty"`
	OrderStatus string `json:"order_status,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Message     string `json:"message,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// OK reports whether the order was accepted.
func (r OrderResult) OK() bool {
	return r.Status == "success"
}

// Position is one net holding.
type Position struct {
	Symbol    string  `json:"symbol"`
	Quantity  int     `json:"quantity"`
	LastPrice float64 `json:"last_price"`
}

// AuthStatus reports the server's session state.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Broker        string `json:"broker"`
	UserID        string `json:"user_id,omitempty"`
	UserName      string `json:"user_name,omitempty"`
	CreatedDate   string `json:"created_date,omitempty"`
}

// APIError is a non-2xx response that carried no order result body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kitebridge: HTTP %d: %s", e.StatusCode, e.Message)
}

// Buy places a buy order. A rejected order is not an error: inspect the
// returned OrderResult.
func (c *Client) Buy(ctx context.Context, req OrderRequest) (OrderResult, error) {
	return c.order(ctx, "/trade/buy", req)
}

// Sell places a sell order.
func (c *Client) Sell(ctx context.Context, req OrderRequest) (OrderResult, error) {
	return c.order(ctx, "/trade/sell", req)
}

func (c *Client) order(ctx context.Context, path string, req OrderRequest) (OrderResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return OrderResult{}, fmt.Errorf("encoding order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return OrderResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return OrderResult{}, err
	}
	defer resp.Body.Close()

	// Order endpoints return a result body on both 2xx and 4xx.
	var result OrderResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return OrderResult{}, &APIError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return result, nil
}

// Positions retrieves the current non-zero net positions.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var wrapper struct {
		Count     int        `json:"count"`
		Positions []Position `json:"positions"`
	}
	if err := c.get(ctx, "/trade/positions", &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Positions, nil
}

// AuthStatus retrieves the server's session state.
func (c *Client) AuthStatus(ctx context.Context) (AuthStatus, error) {
	var status AuthStatus
	err := c.get(ctx, "/auth/status", &status)
	return status, err
}

// Logout removes the server's persisted session.
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
