package apiclient

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
	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/residency-backend/pkg/config"
	"github.com/angelmondragon/residency-backend/pkg/types"
)

// ErrSessionEnded is returned for 401 and 403 responses. Callers treat it as
// a forced sign-out.
var ErrSessionEnded = errors.New("session ended, sign in again")

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Client talks to the residency API. Reads are retried on transport errors
// and gateway failures; writes are sent exactly once.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	token       string
	readRetries uint64
	backoff     time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default client; its timeout is kept as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func New(cfg config.ClientConfig, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:     base,
		httpClient:  &http.Client{Timeout: timeout},
		token:       strings.TrimSpace(cfg.Token),
		readRetries: cfg.ReadRetries,
		backoff:     cfg.RetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken swaps the bearer token used for subsequent calls.
func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	backoff := c.backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	policy := retry.WithMaxRetries(c.readRetries, retry.NewConstant(backoff))

	return retry.Do(ctx, policy, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, query, nil, "", out)
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// send performs a write. A missing idempotency key is generated so a manual
// rerun with the same key replays instead of duplicating.
func (c *Client) send(ctx context.Context, method, path string, body any, idempotencyKey string, out any) error {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	return c.do(ctx, method, path, nil, body, idempotencyKey, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, idempotencyKey string, out any) error {
	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transportError{err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %v", ErrSessionEnded, decodeError(resp.StatusCode, payload))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, payload)
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	var envelope types.RawEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Empty() {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func decodeError(status int, payload []byte) *APIError {
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Error.Code == "" {
		return &APIError{Status: status, Message: strings.TrimSpace(string(payload))}
	}
	return &APIError{
		Status:  status,
		Code:    envelope.Error.Code,
		Message: envelope.Error.Message,
		Details: envelope.Error.Details,
	}
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return "transport: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}
