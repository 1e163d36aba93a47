package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kary-hub/kary-sync-engine/pkg/circuitbreaker"
	"github.com/kary-hub/kary-sync-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRIMARY PROVIDER
// ══════════════════════════════════════════════════════════════════════════════

// PrimaryConfig contains configuration for the HTTP-backed provider.
type PrimaryConfig struct {
	// BaseURL is the content service base URL.
	BaseURL string

	// APIKey authenticates requests (Bearer token). Empty disables auth.
	APIKey string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultPrimaryConfig returns sensible defaults.
func DefaultPrimaryConfig(baseURL string) PrimaryConfig {
	return PrimaryConfig{
		BaseURL: baseURL,
		Timeout: 15 * time.Second,
	}
}

// Primary calls the remote content service, guarded by a circuit breaker
// and the content-API retry policy. The fallback substitutes on any
// failure, including a 200 whose body cannot be parsed: the remote
// sometimes answers with free text instead of JSON.
type Primary struct {
	config     PrimaryConfig
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
	fallback   *Fallback
	logger     *slog.Logger
}

// NewPrimary creates the HTTP-backed provider.
func NewPrimary(config PrimaryConfig) *Primary {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "content_provider")

	return &Primary{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		breaker: circuitbreaker.ContentAPIBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
		retrier:  retry.ContentAPIRetrier(),
		fallback: NewFallback(),
		logger:   logger,
	}
}

// Generate implements Provider. It never returns an error for service
// trouble; the fallback payload stands in instead.
func (p *Primary) Generate(ctx context.Context, req Request) (*Generated, error) {
	var out *Generated

	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.retrier.Do(ctx, func(ctx context.Context) error {
			generated, err := p.call(ctx, req)
			if err != nil {
				return err
			}
			out = generated
			return nil
		})
	})
	if err != nil {
		p.logger.Warn("content generation degraded to fallback",
			"role", req.Role,
			"error", err,
		)
		return p.fallback.Generate(ctx, req)
	}

	return out, nil
}

// call performs one request against the remote service.
func (p *Primary) call(ctx context.Context, req Request) (*Generated, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("content: marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("content: build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("content: request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("content: read response: %w", err))
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, retry.Retryable(fmt.Errorf("content: server error %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Permanent(fmt.Errorf("content: unexpected status %d", resp.StatusCode))
	}

	return p.decode(raw)
}

// remoteResponse mirrors the service envelope. Data may be a JSON object,
// a JSON-encoded string, or free text.
type remoteResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// decode extracts the generated copy, tolerating the service's loose
// payload shapes. A body that cannot be interpreted at all is a permanent
// parse error; the caller substitutes the fallback.
func (p *Primary) decode(raw []byte) (*Generated, error) {
	var envelope remoteResponse
	if err := json.Unmarshal(raw, &envelope); err != nil || !envelope.Success {
		return nil, retry.Permanent(fmt.Errorf("content: unparseable response"))
	}

	var out Generated
	if err := json.Unmarshal(envelope.Data, &out); err == nil && out.Body != "" {
		out.Source = "primary"
		return &out, nil
	}

	// data may be a quoted string or free text
	var text string
	if err := json.Unmarshal(envelope.Data, &text); err == nil && text != "" {
		return &Generated{Body: text, Source: "primary"}, nil
	}

	return nil, retry.Permanent(fmt.Errorf("content: unrecognized data payload"))
}
