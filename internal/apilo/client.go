// Package apilo is a resilient client for the Apilo order management API.
// Every call authenticates with a bearer token, retries transient failures
// with exponential backoff, and transparently refreshes the token once on a
// 401 before surfacing the failure.
package apilo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/MarcineQ18/apilo-notifier1/internal/metrics"
)

const (
	defaultPageLimit   = 200
	transportAttempts  = 6
	maxResponseBodyLog = 2048
)

// RequestError carries the HTTP status and body of a failed request after
// retries are exhausted.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("apilo request failed: HTTP %d: %s", e.Status, e.Body)
}

// TokenCallback is invoked after a successful refresh so the new tokens can
// be persisted outside the client.
type TokenCallback func(access, refresh, accessExp, refreshExp string)

// Config holds client construction parameters. Timeout bounds the whole
// exchange; ConnectTimeout bounds dialing alone so a black-holed host fails
// fast instead of eating the full request budget.
type Config struct {
	BaseURL        string
	AccessToken    string
	RefreshToken   string
	ClientID       string
	ClientSecret   string
	PageLimit      int
	Timeout        time.Duration
	ConnectTimeout time.Duration
}

// Client talks to the Apilo REST API. Token state is mutable and guarded by
// a mutex so concurrent callers share a single in-flight refresh.
type Client struct {
	baseURL   string
	http      *http.Client
	pageLimit int
	logger    *zap.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	clientID     string
	clientSecret string
	onTokens     TokenCallback

	// replaced in tests to avoid real backoff delays
	newBackOff func(ctx context.Context) backoff.BackOff
}

// New creates a client. cb may be nil when token persistence is not needed.
func New(cfg Config, cb TokenCallback, logger *zap.Logger) *Client {
	limit := cfg.PageLimit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 15 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
				TLSHandshakeTimeout:   connectTimeout,
				ResponseHeaderTimeout: timeout,
			},
		},
		pageLimit:    limit,
		logger:       logger,
		accessToken:  cfg.AccessToken,
		refreshToken: cfg.RefreshToken,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		onTokens:     cb,
		newBackOff: func(ctx context.Context) backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 1200 * time.Millisecond
			return backoff.WithContext(backoff.WithMaxRetries(b, transportAttempts-1), ctx)
		},
	}
}

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func transientStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// send performs one logical request with transport-level retry on transient
// statuses and network errors. It returns whatever final status arrived;
// authentication handling happens a layer up.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte) (int, []byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var status int
	var body []byte

	// Last transient response seen, kept so retry exhaustion can still
	// surface the final status and body.
	var lastStatus int
	var lastBody []byte

	op := func() error {
		lastStatus, lastBody = 0, nil

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.bearer())
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}

		if transientStatus(resp.StatusCode) {
			lastStatus = resp.StatusCode
			lastBody = b
			return fmt.Errorf("%s %s: transient HTTP %d", method, path, resp.StatusCode)
		}

		status = resp.StatusCode
		body = b
		return nil
	}

	if err := backoff.Retry(op, c.newBackOff(ctx)); err != nil {
		if lastStatus != 0 {
			b := lastBody
			if len(b) > maxResponseBodyLog {
				b = b[:maxResponseBodyLog]
			}
			return 0, nil, &RequestError{Status: lastStatus, Body: string(b)}
		}
		return 0, nil, err
	}
	return status, body, nil
}

// do wraps send with the single refresh-and-retry allowed on a 401 and maps
// any status outside okStatuses to a RequestError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte, okStatuses ...int) ([]byte, error) {
	status, body, err := c.send(ctx, method, path, query, payload)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		if err := c.refreshAccessToken(ctx); err != nil {
			return nil, err
		}
		status, body, err = c.send(ctx, method, path, query, payload)
		if err != nil {
			return nil, err
		}
	}

	for _, ok := range okStatuses {
		if status == ok {
			return body, nil
		}
	}

	if len(body) > maxResponseBodyLog {
		body = body[:maxResponseBodyLog]
	}
	return nil, &RequestError{Status: status, Body: string(body)}
}

// ListOrdersInStatus fetches every order currently in the given status,
// following pagination until the service signals exhaustion either through
// pageResultCount/totalCount or an empty batch.
func (c *Client) ListOrdersInStatus(ctx context.Context, statusID int) ([]OrderData, error) {
	var orders []OrderData
	offset := 0

	for {
		query := url.Values{}
		query.Set("orderStatusIds[]", fmt.Sprint(statusID))
		query.Set("limit", fmt.Sprint(c.pageLimit))
		query.Set("offset", fmt.Sprint(offset))
		query.Set("sort", "updatedAtDesc")

		body, err := c.do(ctx, http.MethodGet, "/rest/api/orders/", query, nil, http.StatusOK)
		if err != nil {
			metrics.RecordAPIRequest("list_orders", "failure")
			return nil, fmt.Errorf("list orders in status %d: %w", statusID, err)
		}
		metrics.RecordAPIRequest("list_orders", "success")

		var page map[string]any
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode orders page: %w", err)
		}

		batch := extractBatch(page)
		orders = append(orders, batch...)

		pageCount, hasPageCount := numberField(page, "pageResultCount")
		total, hasTotal := numberField(page, "totalCount")

		// Either stop signal is valid: an explicit count or an empty batch.
		if !hasPageCount {
			if len(batch) == 0 {
				break
			}
			offset += len(batch)
			continue
		}
		if pageCount == 0 {
			break
		}
		offset += pageCount
		if hasTotal && offset >= total {
			break
		}
		if pageCount < c.pageLimit {
			break
		}
	}

	return orders, nil
}

// GetOrderDetails fetches the full order record.
func (c *Client) GetOrderDetails(ctx context.Context, orderID string) (OrderData, error) {
	body, err := c.do(ctx, http.MethodGet, "/rest/api/orders/"+orderID+"/", nil, nil, http.StatusOK)
	if err != nil {
		metrics.RecordAPIRequest("get_order", "failure")
		return nil, fmt.Errorf("get order details for %s: %w", orderID, err)
	}
	metrics.RecordAPIRequest("get_order", "success")

	var details OrderData
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("decode order details: %w", err)
	}
	return details, nil
}

// UpdateOrderStatus moves an order to newStatus. PUT is idempotent per the
// remote contract, so transport retries are safe here.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, newStatus int) error {
	payload, err := json.Marshal(map[string]int{"status": newStatus})
	if err != nil {
		return fmt.Errorf("encode status payload: %w", err)
	}

	_, err = c.do(ctx, http.MethodPut, "/rest/api/orders/"+orderID+"/status/", nil, payload,
		http.StatusOK, http.StatusNoContent, http.StatusNotModified)
	if err != nil {
		metrics.RecordAPIRequest("update_status", "failure")
		return fmt.Errorf("update status for %s: %w", orderID, err)
	}
	metrics.RecordAPIRequest("update_status", "success")
	return nil
}

// GetOrderDocuments fetches the documents attached to an order.
func (c *Client) GetOrderDocuments(ctx context.Context, orderID string) ([]OrderData, error) {
	body, err := c.do(ctx, http.MethodGet, "/rest/api/orders/"+orderID+"/documents/", nil, nil, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("get documents for %s: %w", orderID, err)
	}

	// The endpoint has returned both a wrapped object and a bare list.
	var page map[string]any
	if err := json.Unmarshal(body, &page); err == nil {
		return extractBatch(page), nil
	}
	var list []OrderData
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return list, nil
}

// GetInvoiceURL returns the invoice download URL for an order, or empty when
// no invoice document is available.
func (c *Client) GetInvoiceURL(ctx context.Context, orderID string) (string, error) {
	docs, err := c.GetOrderDocuments(ctx, orderID)
	if err != nil {
		return "", err
	}
	for _, doc := range docs {
		if stringField(doc, "type") != "invoice" {
			continue
		}
		if u := stringField(doc, "downloadUrl"); u != "" {
			return u, nil
		}
	}
	return "", nil
}

// GetStatusMap returns the order status catalog for the admin surface.
func (c *Client) GetStatusMap(ctx context.Context) ([]OrderData, error) {
	body, err := c.do(ctx, http.MethodGet, "/rest/api/orders/status/map/", nil, nil, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("get status map: %w", err)
	}
	var list []OrderData
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode status map: %w", err)
	}
	return list, nil
}
