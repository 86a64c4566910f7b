package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/missiontle/internal/budget"
	"github.com/star/missiontle/internal/metrics"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 1 << 20
)

// Config controls how upstream providers are reached.
type Config struct {
	// Timeout bounds each call, including reading the body. A shorter
	// context deadline still wins.
	Timeout time.Duration

	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client issues budgeted GET requests against JSON providers.
type Client struct {
	httpClient   *http.Client
	maxBodyBytes int64
	logger       *slog.Logger
	tracer       trace.Tracer
}

// NewHTTPClient returns an *http.Client with dial, TLS and header timeouts
// scaled for small JSON lookups.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          50,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: timeout,
		},
	}
}

// NewClient creates a Client from cfg.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg.Timeout)
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Client{
		httpClient:   httpClient,
		maxBodyBytes: maxBody,
		logger:       logger,
		tracer:       otel.Tracer("github.com/star/missiontle/internal/upstream"),
	}
}

// GetJSON spends one transaction from b, performs a GET to endpoint and
// decodes the JSON body into out. When b has nothing left the request is
// not sent and budget.ErrExhausted is returned unwrapped.
func (c *Client) GetJSON(ctx context.Context, op, provider string, endpoint *url.URL, b *budget.Budget, out any) error {
	if err := b.Spend(); err != nil {
		return err
	}

	ctx, span := c.tracer.Start(ctx, "upstream.get", trace.WithAttributes(
		attribute.String("upstream.provider", provider),
		attribute.String("url.path", endpoint.Path),
		attribute.Int("budget.spent", b.Spent()),
	))
	defer span.End()

	start := time.Now()
	body, status, err := c.get(ctx, op, provider, endpoint)
	elapsed := time.Since(start)

	if err == nil {
		if decodeErr := json.Unmarshal(body, out); decodeErr != nil {
			err = &Error{Op: op, Provider: provider, Kind: KindMalformed, StatusCode: status,
				Err: fmt.Errorf("decoding response: %w", decodeErr)}
		}
	}

	outcome := "ok"
	if err != nil {
		var ue *Error
		if errors.As(err, &ue) {
			outcome = string(ue.Kind)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	metrics.ObserveUpstream(provider, outcome, elapsed)

	c.logger.Debug("upstream request",
		"component", "upstream",
		"provider", provider,
		"op", op,
		"url", redact(endpoint),
		"status", status,
		"txn", b.Spent(),
		"duration_ms", elapsed.Milliseconds(),
		"outcome", outcome,
	)
	return err
}

func (c *Client) get(ctx context.Context, op, provider string, endpoint *url.URL) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, 0, &Error{Op: op, Provider: provider, Kind: KindUnavailable,
			Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &Error{Op: op, Provider: provider, Kind: KindUnavailable,
			Err: fmt.Errorf("requesting %s: %w", redact(endpoint), stripURL(err))}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, resp.StatusCode, &Error{Op: op, Provider: provider, Kind: KindUnavailable,
			StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &Error{Op: op, Provider: provider, Kind: KindUnavailable,
			StatusCode: resp.StatusCode, Err: statusError(resp.StatusCode, body)}
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, resp.StatusCode, &Error{Op: op, Provider: provider, Kind: KindMalformed,
			StatusCode: resp.StatusCode, Err: fmt.Errorf("response exceeds %d byte limit", c.maxBodyBytes)}
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "json") {
		return nil, resp.StatusCode, &Error{Op: op, Provider: provider, Kind: KindMalformed,
			StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected content type %q", ct)}
	}
	return body, resp.StatusCode, nil
}

// statusError extracts the provider's {"error": "..."} message when the
// body carries one.
func statusError(status int, body []byte) error {
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		return fmt.Errorf("unexpected status code %d: %s", status, envelope.Error)
	}
	return fmt.Errorf("unexpected status code %d", status)
}

// redact drops the query string, which carries the API key for some
// providers.
func redact(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}

// stripURL removes the *url.Error wrapper so the full request URL never
// reaches logs or responses.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
