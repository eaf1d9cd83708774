// Package backend implements the outbound HTTP client to the external
// backend API: job/resume/score persistence behind the
// domain.JobRepository/ResumeRepository/ScoreRepository ports. The backend
// speaks a standard {success, data, error} JSON envelope over bearer-token
// auth, with GET/POST/PUT retried on 429/500/502/503/504.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kreeda/resumatch/internal/domain"
)

// Client is the HTTP client wrapping the backend's envelope API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries uint64
}

// NewClient builds a Client for baseURL, with optional bearer apiKey and a
// per-request timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: trimTrailingSlash(baseURL),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxRetries: 2,
	}
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// envelope is the backend's {success, data, error} response shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// do issues one HTTP call against endpoint, retrying transient failures
// with exponential backoff (max 3 attempts), and decodes the envelope's
// data field into out (skipped when out is nil).
func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	tracer := otel.Tracer("backend.client")
	ctx, span := tracer.Start(ctx, fmt.Sprintf("backend.%s", method))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", endpoint),
	)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("op=backend.%s.%s: encode request: %w", method, endpoint, err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.Multiplier = 1.0
	bo.MaxElapsedTime = 30 * time.Second
	retrier := backoff.WithMaxRetries(bo, c.maxRetries)

	var data json.RawMessage
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+trimLeadingSlash(endpoint), bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err // network errors are retryable
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if retryableStatus[resp.StatusCode] {
			return &domain.APIError{Endpoint: endpoint, Status: resp.StatusCode, Message: string(raw)}
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(decodeAPIError(endpoint, resp.StatusCode, raw))
		}

		var env envelope
		if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil {
			// Non-JSON 2xx response; treat the raw body as the data payload.
			data = raw
			return nil
		}
		if !env.Success && len(raw) > 0 && looksLikeEnvelope(raw) {
			return backoff.Permanent(&domain.APIError{Endpoint: endpoint, Status: resp.StatusCode, Message: env.Error})
		}
		if len(env.Data) > 0 {
			data = env.Data
		} else {
			data = raw
		}
		return nil
	}, retrier)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("op=backend.%s.%s: %w", method, endpoint, err)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("op=backend.%s.%s: decode response: %w", method, endpoint, err)
		}
	}
	return nil
}

func trimLeadingSlash(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	return s
}

// looksLikeEnvelope guards against treating an arbitrary JSON object with
// no "success" field (e.g. a raw array/object response) as a failure
// envelope just because Go's zero value for bool is false.
func looksLikeEnvelope(raw []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	_, ok := probe["success"]
	return ok
}

func decodeAPIError(endpoint string, status int, raw []byte) error {
	var env envelope
	msg := string(raw)
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != "" {
		msg = env.Error
	}
	return &domain.APIError{Endpoint: endpoint, Status: status, Message: msg}
}
