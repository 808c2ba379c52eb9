// File: internal/infra/api/gateway.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"image-enhance-client/internal/domain"
	"image-enhance-client/internal/domain/ports/adapter"
	"image-enhance-client/internal/infra/logging"
	"image-enhance-client/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
)

// Gateway executes calls against the remote enhancement service and
// classifies failures into domain.APIError kinds. It implements both
// adapter.JobServiceAdapter and adapter.UploadServiceAdapter.
type Gateway struct {
	baseURL string
	client  *http.Client
	tokens  adapter.TokenSource
	log     *zerolog.Logger
}

// NewGateway constructs a gateway for the given base URL. tokens may be nil
// when no bearer auth is configured.
func NewGateway(baseURL string, timeout time.Duration, tokens adapter.TokenSource, logger *zerolog.Logger) *Gateway {
	client := cleanhttp.DefaultPooledClient()
	if timeout > 0 {
		client.Timeout = timeout
	}
	gwLog := logger.With().Str("component", "Gateway").Logger()
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		tokens:  tokens,
		log:     &gwLog,
	}
}

// errorBody is the remote error response contract: {detail|message, code?}.
type errorBody struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// classify maps a non-2xx response to a typed error. Absent a parseable
// body it falls back to "HTTP <status>: <statusText>".
func classify(status int, body []byte) *domain.APIError {
	kind := domain.ErrKindClient
	switch {
	case status == http.StatusTooManyRequests:
		kind = domain.ErrKindRateLimited
	case status >= 500:
		kind = domain.ErrKindServer
	}

	var eb errorBody
	msg := ""
	code := ""
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		if eb.Detail != "" {
			msg = eb.Detail
		} else if eb.Message != "" {
			msg = eb.Message
		}
		code = eb.Code
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	}
	return &domain.APIError{Kind: kind, Status: status, Code: code, Message: msg}
}

// newRequest builds a request against the base URL. contentType is applied
// only when non-empty: multipart callers pass the writer's own boundary type
// and the default is never forced onto them. The minted request ID is both
// sent as X-Request-ID and carried in the request context so do() can log
// under it.
func (g *Gateway) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	reqID := uuid.NewString()
	req, err := http.NewRequestWithContext(logging.WithReqID(ctx, reqID), method, g.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if g.tokens != nil {
		if tok, ok := g.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	req.Header.Set("X-Request-ID", reqID)
	return req, nil
}

// do executes req, records metrics and decodes a 2xx JSON body into out.
func (g *Gateway) do(req *http.Request, endpoint string, out any) error {
	log := logging.With(req.Context(), g.log)
	start := time.Now()
	resp, err := g.client.Do(req)
	metrics.ObserveRequestLatency(endpoint, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.IncRequest(endpoint, string(domain.ErrKindNetwork))
		log.Warn().Str("endpoint", endpoint).Err(err).Msg("request failed before a response was received")
		return &domain.APIError{Kind: domain.ErrKindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.IncRequest(endpoint, string(domain.ErrKindNetwork))
		return &domain.APIError{Kind: domain.ErrKindNetwork, Message: fmt.Sprintf("read response body: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := classify(resp.StatusCode, body)
		metrics.IncRequest(endpoint, string(apiErr.Kind))
		log.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("code", apiErr.Code).
			Msg(apiErr.Message)
		return apiErr
	}

	metrics.IncRequest(endpoint, "ok")
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unmarshal response: %w, body: %s", err, string(body))
		}
	}
	return nil
}
