package expedition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnauthorized indicates the backend rejected the bearer token.
	// It is terminal and never retried.
	ErrUnauthorized = errors.New("expedition: unauthorized")
	// ErrBackendStatus indicates a non-success status from the backend.
	ErrBackendStatus = errors.New("expedition: backend status")
	// ErrBackendTimeout indicates the call exceeded its per-attempt timeout.
	ErrBackendTimeout = errors.New("expedition: timeout")
)

const (
	defaultRetries        = 3
	defaultAttemptTimeout = 30 * time.Second
	defaultBackoffBase    = 200 * time.Millisecond
)

// Client talks HTTP+JSON to the logistics backend. Every request
// carries the configured bearer token. Transient failures (network
// errors, 429, 5xx) are retried with exponential backoff; 401 and other
// 4xx responses are terminal.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retries    int
	timeout    time.Duration
	backoff    time.Duration
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetries sets the retry ceiling for transient failures.
func WithRetries(n int) ClientOption {
	return func(c *Client) { c.retries = n }
}

// WithAttemptTimeout sets the per-attempt timeout.
func WithAttemptTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithBackoffBase sets the first backoff delay; subsequent delays double.
func WithBackoffBase(d time.Duration) ClientOption {
	return func(c *Client) { c.backoff = d }
}

// NewClient constructs a backend client.
func NewClient(baseURL, token string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("expedition: backend base url required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultAttemptTimeout},
		retries:    defaultRetries,
		timeout:    defaultAttemptTimeout,
		backoff:    defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type shipmentCostRequest struct {
	OriginName      string `json:"origin_name"`
	DestinationName string `json:"destination_name"`
	Weight          string `json:"weight"`
}

// ShipmentCost requests one courier quote. Kilogram-based couriers
// receive weightGrams/1000; the weight is always serialized as a
// string. The raw body is returned untouched for the normalizer.
func (c *Client) ShipmentCost(ctx context.Context, d Descriptor, origin, destination string, weightGrams int) (json.RawMessage, error) {
	weight := strconv.Itoa(weightGrams)
	if d.WeightInKg {
		weight = strconv.FormatFloat(float64(weightGrams)/1000, 'f', -1, 64)
	}
	payload, err := json.Marshal(shipmentCostRequest{
		OriginName:      origin,
		DestinationName: destination,
		Weight:          weight,
	})
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/admin/expedition/"+d.PathSlug+"/shipment_cost", nil, payload)
}

// BestDiscount mirrors the backend's best_discount object.
type BestDiscount struct {
	HasDiscount         bool    `json:"has_discount"`
	DiscountAmount      int64   `json:"discount_amount"`
	DiscountedPrice     int64   `json:"discounted_price"`
	OriginalPrice       int64   `json:"original_price"`
	DiscountID          *int64  `json:"discount_id"`
	DiscountDescription *string `json:"discount_description"`
	DiscountType        string  `json:"discount_type"`
	DiscountValue       float64 `json:"discount_value"`
}

type availableDiscountsResponse struct {
	Status string `json:"status"`
	Data   struct {
		BestDiscount *BestDiscount `json:"best_discount"`
	} `json:"data"`
}

// AvailableDiscounts fetches the best applicable discount for a vendor
// and order value. A nil result with nil error means no discount.
func (c *Client) AvailableDiscounts(ctx context.Context, vendorCode string, orderValue int64) (*BestDiscount, error) {
	q := url.Values{}
	q.Set("vendor", vendorCode)
	q.Set("order_value", strconv.FormatInt(orderValue, 10))
	raw, err := c.do(ctx, http.MethodGet, "/admin/expedition-discounts/available", q, nil)
	if err != nil {
		return nil, err
	}
	var resp availableDiscountsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("expedition: decode discounts: %w", err)
	}
	if resp.Status != "success" || resp.Data.BestDiscount == nil || !resp.Data.BestDiscount.HasDiscount {
		return nil, nil
	}
	return resp.Data.BestDiscount, nil
}

// Place is one administrative area returned by the public lookups.
type Place struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type placeListResponse struct {
	Data []Place `json:"data"`
}

// Provinces lists all provinces.
func (c *Client) Provinces(ctx context.Context) ([]Place, error) {
	return c.places(ctx, "/public/provinces")
}

// Regencies lists regencies under a province.
func (c *Client) Regencies(ctx context.Context, provinceID int64) ([]Place, error) {
	return c.places(ctx, fmt.Sprintf("/public/provinces/%d/regencies", provinceID))
}

// Districts lists districts under a regency.
func (c *Client) Districts(ctx context.Context, regencyID int64) ([]Place, error) {
	return c.places(ctx, fmt.Sprintf("/public/regencies/%d/districts", regencyID))
}

func (c *Client) places(ctx context.Context, path string) ([]Place, error) {
	raw, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var resp placeListResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("expedition: decode places: %w", err)
	}
	return resp.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	attempts := c.retries + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := sleepContext(ctx, c.backoff<<(i-1)); err != nil {
				return nil, err
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if c.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(attemptCtx, method, endpoint, reader)
		if err != nil {
			if cancel != nil {
				cancel()
			}
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if cancel != nil {
				cancel()
			}
			lastErr = classifyNetError(err)
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if cancel != nil {
			cancel()
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, ErrUnauthorized
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("%w: %d", ErrBackendStatus, resp.StatusCode)
			continue
		case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
			return nil, fmt.Errorf("%w: %d", ErrBackendStatus, resp.StatusCode)
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		return data, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: exhausted attempts", ErrBackendStatus)
	}
	return nil, fmt.Errorf("expedition: %s %s failed after %d attempts: %w", method, path, attempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func classifyNetError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrBackendTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrBackendTimeout
	}
	return err
}
