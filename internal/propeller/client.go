// Package propeller is the gateway to the Propeller CRM API.
//
// Every outbound call goes through Client.Call, which never returns an
// error: connectivity failures, timeouts, 4xx, 5xx and undecodable bodies
// all yield the Empty result and a diagnostic log entry tagged with the
// failure category.
package propeller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/ignite/subscriber-gateway/internal/config"
	"github.com/ignite/subscriber-gateway/internal/domain"
	"github.com/ignite/subscriber-gateway/internal/pkg/httpretry"
	"github.com/ignite/subscriber-gateway/internal/pkg/logger"
	"github.com/ignite/subscriber-gateway/internal/pkg/metrics"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

// Client is the Propeller CRM API client
type Client struct {
	baseURL    string
	httpClient httpretry.HTTPDoer
	metrics    *metrics.Metrics
}

// NewClient creates a client that authenticates every request with the
// configured bearer token.
func NewClient(cfg config.PropellerConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpretry.NewRetryClient(NewHTTPClient(cfg), cfg.MaxRetries),
	}
}

// NewHTTPClient returns an *http.Client whose transport attaches
// "Authorization: Bearer <token>" to every request.
func NewHTTPClient(cfg config.PropellerConfig) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIToken, TokenType: "Bearer"})
	return &http.Client{
		Timeout:   cfg.Timeout(),
		Transport: &oauth2.Transport{Source: src},
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// SetMetrics enables call counters and latency histograms.
func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// Call performs one remote operation and returns the decoded body on HTTP
// 200, or Empty on any failure.
func (c *Client) Call(ctx context.Context, method, path string, body any) Result {
	requestID := uuid.NewString()
	start := time.Now()
	fail := func(cat Category, status int, err error) Result {
		c.metrics.ObserveCRMCall(method, string(cat), time.Since(start))
		logger.Error("propeller: call failed",
			"category", cat, "method", method, "path", path,
			"status", status, "request_id", requestID, "error", err)
		return Empty
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fail(CategoryClient, 0, fmt.Errorf("marshal request body: %w", err))
		}
		reqBody = bytes.NewReader(b)
	}

	reqURL := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fail(CategoryClient, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(CategoryTransport, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fail(CategoryTransport, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fail(CategoryClient, resp.StatusCode, errors.New(snippet(raw)))
	default:
		return fail(CategoryServer, resp.StatusCode, errors.New(snippet(raw)))
	}

	// UseNumber keeps large numeric ids exact.
	var decoded map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil || decoded == nil {
		if err == nil {
			err = errors.New("response is not a JSON object")
		}
		return fail(CategoryDecode, resp.StatusCode, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fail(CategoryDecode, resp.StatusCode, errors.New("trailing data after JSON object"))
	}

	c.metrics.ObserveCRMCall(method, metrics.ResultOK, time.Since(start))
	logger.Debug("propeller: call succeeded", "method", method, "path", path, "request_id", requestID)
	return Result{body: decoded}
}

func snippet(b []byte) string {
	const max = 256
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

// decode unpacks a successful result, logging (and reporting false) when the
// body does not have the expected shape.
func decode(r Result, path, key string, v any) bool {
	if r.IsEmpty() {
		return false
	}
	if err := r.Decode(key, v); err != nil {
		logger.Error("propeller: unexpected response shape",
			"category", CategoryDecode, "path", path, "error", err)
		return false
	}
	return true
}

// ========== Subscriber Methods ==========

// ListSubscribers fetches every subscriber. ok is false when the call
// failed or the subscribers array is missing or malformed. Records that do not decode are logged
// and skipped so one bad record cannot hide the rest.
func (c *Client) ListSubscribers(ctx context.Context) ([]domain.Subscriber, bool) {
	var resp SubscribersResponse
	if !decode(c.Call(ctx, http.MethodGet, pathSubscribers, nil), pathSubscribers, "", &resp) {
		return nil, false
	}
	if resp.Subscribers == nil {
		logger.Error("propeller: response has no subscribers array",
			"category", CategoryDecode, "path", pathSubscribers)
		return nil, false
	}

	subs := make([]domain.Subscriber, 0, len(resp.Subscribers))
	for i, raw := range resp.Subscribers {
		var sub domain.Subscriber
		if err := json.Unmarshal(raw, &sub); err != nil {
			logger.Warn("propeller: skipping unreadable subscriber record",
				"category", CategoryDecode, "path", pathSubscribers, "index", i, "error", err)
			continue
		}
		subs = append(subs, sub)
	}
	return subs, true
}

// GetSubscriber fetches one subscriber by id. The CRM may return the record
// bare or under a "subscriber" key.
func (c *Client) GetSubscriber(ctx context.Context, id domain.ID) (*domain.Subscriber, bool) {
	path := pathSubscriber + "/" + url.PathEscape(id.String())
	var sub domain.Subscriber
	if !decode(c.Call(ctx, http.MethodGet, path, nil), path, "subscriber", &sub) {
		return nil, false
	}
	return &sub, true
}

// CreateSubscriber creates a subscriber and returns the record as echoed by
// the CRM (which may carry only some fields).
func (c *Client) CreateSubscriber(ctx context.Context, payload domain.NewSubscriber) (*domain.Subscriber, bool) {
	path := pathSubscriber + "/"
	var sub domain.Subscriber
	if !decode(c.Call(ctx, http.MethodPost, path, payload), path, "subscriber", &sub) {
		return nil, false
	}
	return &sub, true
}

// UpdateSubscriberLists replaces the marketing lists of the subscriber with email.
func (c *Client) UpdateSubscriberLists(ctx context.Context, email string, listIDs []domain.ID) bool {
	body := UpdateListsRequest{EmailAddress: email, Lists: listIDs}
	return !c.Call(ctx, http.MethodPut, pathSubscriber, body).IsEmpty()
}

// CreateEnquiry submits an enquiry on behalf of the subscriber with id.
func (c *Client) CreateEnquiry(ctx context.Context, id domain.ID, message string) bool {
	path := pathSubscriber + "/" + url.PathEscape(id.String()) + "/enquiry"
	return !c.Call(ctx, http.MethodPost, path, EnquiryRequest{Message: message}).IsEmpty()
}

// ========== List Methods ==========

// ListMarketingLists fetches the marketing-list catalog.
func (c *Client) ListMarketingLists(ctx context.Context) ([]domain.MarketingList, bool) {
	var resp ListsResponse
	if !decode(c.Call(ctx, http.MethodGet, pathLists, nil), pathLists, "", &resp) {
		return nil, false
	}
	return resp.Lists, true
}

// Ping checks that the CRM root answers with HTTP 200.
func (c *Client) Ping(ctx context.Context) bool {
	return !c.Call(ctx, http.MethodGet, "", nil).IsEmpty()
}
