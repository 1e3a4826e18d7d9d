// Package orderclient resolves the member that owns an order by calling the
// order service over HTTP.
package orderclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Timeouts used by New.
const (
	DefaultConnectTimeout = 3 * time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// ErrNoOwner is returned when the order service answers without a member id.
var ErrNoOwner = errors.New("order has no member id")

// Client calls the order service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New returns a Client for the order service at baseURL (for example
// "http://order-payment-service").
func New(baseURL string) *Client {
	dialer := &net.Dialer{Timeout: DefaultConnectTimeout}
	return &Client{
		httpClient: &http.Client{
			Timeout: DefaultRequestTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         dialer.DialContext,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewWithHTTPClient returns a Client that uses hc.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{httpClient: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

type orderResponse struct {
	OrderID  int64 `json:"orderId"`
	MemberID int64 `json:"memberId"`
}

// MemberIDByOrderID returns the member that placed orderID.
func (c *Client) MemberIDByOrderID(ctx context.Context, orderID int64) (int64, error) {
	tr := otel.Tracer("orderclient")
	ctx, span := tr.Start(ctx, "MemberIDByOrderID",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int64("order.id", orderID)),
	)
	defer span.End()

	var out orderResponse
	if err := c.getJSON(ctx, "/api/orders/"+strconv.FormatInt(orderID, 10), &out); err != nil {
		return 0, err
	}
	if out.MemberID == 0 {
		return 0, fmt.Errorf("order %d: %w", orderID, ErrNoOwner)
	}
	span.SetAttributes(attribute.Int64("member.id", out.MemberID))
	return out.MemberID, nil
}

// getJSON sends a GET to path and decodes a 2xx JSON body into result.
func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status=%d body=%s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
