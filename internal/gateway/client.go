// Package gateway is the typed boundary to the remote device gateway.
package gateway

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

	"github.com/rs/zerolog/log"

	"tolppa-client/internal/model"
)

const maxErrorBody = 512

// Client talks to the device gateway. Each call is a single request with no
// retry and no response caching.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a gateway client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{},
		},
		timeout: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout bounds every request.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithProxy routes requests through an HTTP proxy. An invalid URL is logged
// and ignored.
func WithProxy(rawURL string) ClientOption {
	return func(c *Client) {
		if rawURL == "" {
			return
		}
		proxyURL, err := url.Parse(rawURL)
		if err != nil {
			log.Warn().Err(err).Str("proxy", rawURL).Msg("invalid proxy URL; gateway client will not use a proxy")
			return
		}
		c.httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
}

// Authenticate exchanges email and password for a session token.
func (c *Client) Authenticate(ctx context.Context, email, password string) (string, error) {
	status, body, err := c.send(ctx, http.MethodPost, "/login", loginRequest{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("%w: %w", ErrAuth, &StatusError{StatusCode: status, Body: body.String()})
	}

	var resp loginResponse
	if err := json.Unmarshal(body.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("%w: failed to unmarshal login response: %v", ErrAuth, err)
	}
	if resp.Cookie == "" {
		return "", fmt.Errorf("%w: login response carried no cookie", ErrAuth)
	}
	return resp.Cookie, nil
}

// FetchStatus returns the current device snapshot.
func (c *Client) FetchStatus(ctx context.Context, token string) (model.DeviceStatus, error) {
	status, body, err := c.send(ctx, http.MethodPost, "/details", tokenRequest{Token: token})
	if err != nil {
		// No reply at all: blocked, refused or timed out.
		return model.DeviceStatus{}, fmt.Errorf("%w: %v", ErrUnknown, err)
	}

	switch {
	case status == http.StatusBadRequest:
		return model.DeviceStatus{}, ErrBadRequest
	case status == http.StatusUnauthorized:
		return model.DeviceStatus{}, ErrUnauthorized
	case status < 200 || status > 299:
		return model.DeviceStatus{}, fmt.Errorf("%w: %w", ErrUnknown, &StatusError{StatusCode: status, Body: body.String()})
	}

	var resp detailsResponse
	if err := json.Unmarshal(body.Bytes(), &resp); err != nil {
		return model.DeviceStatus{}, fmt.Errorf("%w: failed to unmarshal details: %v", ErrUnknown, err)
	}
	if resp.Reservations == nil {
		resp.Reservations = []model.Reservation{}
	}

	return model.DeviceStatus{
		State:        resp.State,
		LicensePlate: resp.LicensePlate,
		Temperature:  resp.Temperature,
		Consumption:  resp.Consumption,
		Reservations: resp.Reservations,
	}, nil
}

// CreateTimer schedules a heating timer on the device.
func (c *Client) CreateTimer(ctx context.Context, req TimerRequest) error {
	return c.mutate(ctx, "create timer", http.MethodPost, req)
}

// DeleteAllTimers removes every timer from the device.
func (c *Client) DeleteAllTimers(ctx context.Context, token string) error {
	return c.mutate(ctx, "delete timers", http.MethodDelete, tokenRequest{Token: token})
}

func (c *Client) mutate(ctx context.Context, op, method string, payload any) error {
	status, body, err := c.send(ctx, method, "/timer", payload)
	if err != nil {
		return &SubmissionError{Op: op, Err: err}
	}
	if status < 200 || status > 299 {
		return &SubmissionError{Op: op, Err: &StatusError{StatusCode: status, Body: body.String()}}
	}
	return nil
}

// send performs a JSON request. A non-nil error means no reply was received;
// otherwise the status code and (possibly truncated) body are returned.
func (c *Client) send(ctx context.Context, method, path string, payload any) (int, *bytes.Buffer, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, fmt.Errorf("request timed out after %s: %w", c.timeout, err)
		}
		return 0, nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	limit := int64(1 << 20)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		limit = maxErrorBody
	}
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, limit)); err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("gateway request")
	return resp.StatusCode, &buf, nil
}
