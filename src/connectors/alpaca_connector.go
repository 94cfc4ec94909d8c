// REST client for the Alpaca trading API (paper endpoint by default).
package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

const (
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second

	headerKeyID  = "APCA-API-KEY-ID"
	headerSecret = "APCA-API-SECRET-KEY"
)

// Gateway is the brokerage surface used by the controllers.
type Gateway interface {
	ListOpenOrders(ctx context.Context, symbol string) ([]Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListPositions(ctx context.Context) ([]Position, error)
	GetAccount(ctx context.Context) (*Account, error)
}

var _ Gateway = (*Client)(nil)

type Client struct {
	creds Credentials
	http  *resty.Client
}

// isRetryableResp only lets idempotent reads retry. Orders and cancellations
// go out exactly once.
func isRetryableResp(r *resty.Response, err error) bool {
	if r != nil && r.Request != nil && r.Request.Method != http.MethodGet {
		return false
	}

	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == http.StatusTooManyRequests {
		return true
	}
	if code == http.StatusRequestTimeout {
		return true
	}
	return false
}

// NewClient builds a client for creds using the package configuration for
// timeouts and read retries.
func NewClient(creds Credentials) *Client {
	config := GetConfig()

	if creds.BaseURL == "" {
		creds.BaseURL = config.BaseURL
		logger.WithField("base_url", creds.BaseURL).Warn("No broker base URL provided, using default")
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(creds.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetRetryCount(config.ReadRetries).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &Client{
		creds: creds,
		http:  httpClient,
	}
}

func (c *Client) doRequest(
	ctx context.Context,
	op string,
	method string,
	path string,
	prepare func(*resty.Request),
) (*resty.Response, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader(headerKeyID, c.creds.KeyID).
		SetHeader(headerSecret, c.creds.Secret).
		SetHeader("Accept", "application/json")

	if prepare != nil {
		prepare(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"component": "alpaca",
			"op":        op,
		}).WithError(err).Warn("broker request failed")
		return nil, unavailable(op, err)
	}

	code := resp.StatusCode()

	logger.WithFields(map[string]interface{}{
		"component": "alpaca",
		"op":        op,
		"status":    code,
		"elapsed":   resp.Time().String(),
	}).Debug("broker request done")

	if code >= 500 || code == http.StatusTooManyRequests {
		return nil, unavailable(op, fmt.Errorf("HTTP %d: %s", code, resp.String()))
	}

	return resp, nil
}

func decode(op string, resp *resty.Response, out interface{}) error {
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func unexpected(op string, resp *resty.Response) error {
	return fmt.Errorf("%s: HTTP %d: %s", op, resp.StatusCode(), resp.String())
}

func isSuccess(resp *resty.Response) bool {
	return resp.StatusCode() >= 200 && resp.StatusCode() < 300
}

// ListOpenOrders returns resting orders for symbol. No orders is an empty
// slice, not an error.
func (c *Client) ListOpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	const op = "ListOpenOrders"

	resp, err := c.doRequest(ctx, op, http.MethodGet, "/orders", func(r *resty.Request) {
		r.SetQueryParams(map[string]string{
			"status":  "open",
			"symbols": symbol,
		})
	})
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp) {
		return nil, unexpected(op, resp)
	}

	orders := []Order{}
	if err := decode(op, resp, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	const op = "CancelOrder"

	resp, err := c.doRequest(ctx, op, http.MethodDelete, "/orders/{id}", func(r *resty.Request) {
		r.SetPathParam("id", orderID)
	})
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", op, orderID, ErrOrderNotFound)
	}
	if !isSuccess(resp) {
		return unexpected(op, resp)
	}
	return nil
}

// PlaceOrder submits an order. Any non-success answer that is not a gateway
// failure comes back as *OrderRejectedError with the broker's message.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	const op = "PlaceOrder"

	resp, err := c.doRequest(ctx, op, http.MethodPost, "/orders", func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(req)
	})
	if err != nil {
		return nil, err
	}

	if !isSuccess(resp) {
		rej := &OrderRejectedError{StatusCode: resp.StatusCode(), Reason: strings.TrimSpace(resp.String())}
		var apiErr apiError
		if json.Unmarshal(resp.Body(), &apiErr) == nil && apiErr.Message != "" {
			rej.Code = apiErr.Code
			rej.Reason = apiErr.Message
		}

		logger.WithFields(map[string]interface{}{
			"component": "alpaca",
			"op":        op,
			"symbol":    req.Symbol,
			"side":      req.Side,
			"reason":    rej.Reason,
		}).Warn("order rejected by broker")

		return nil, rej
	}

	var order Order
	if err := decode(op, resp, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	const op = "GetOrder"

	resp, err := c.doRequest(ctx, op, http.MethodGet, "/orders/{id}", func(r *resty.Request) {
		r.SetPathParam("id", orderID)
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%s %s: %w", op, orderID, ErrOrderNotFound)
	}
	if !isSuccess(resp) {
		return nil, unexpected(op, resp)
	}

	var order Order
	if err := decode(op, resp, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ListPositions(ctx context.Context) ([]Position, error) {
	const op = "ListPositions"

	resp, err := c.doRequest(ctx, op, http.MethodGet, "/positions", nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp) {
		return nil, unexpected(op, resp)
	}

	positions := []Position{}
	if err := decode(op, resp, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	const op = "GetAccount"

	resp, err := c.doRequest(ctx, op, http.MethodGet, "/account", nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp) {
		return nil, unexpected(op, resp)
	}

	var account Account
	if err := decode(op, resp, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// IsUnavailable reports whether err is a gateway failure worth a later retry.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}
