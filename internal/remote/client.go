// Package remote is the HTTP client for the site's RPC API.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"news_offline/internal/config"
	"news_offline/internal/domain"
	"news_offline/internal/metrics"
)

const (
	rpcPath    = "/api/trpc/"
	healthPath = "/api/health"
	userAgent  = "NewsOffline/1.0"

	maxBodyBytes = 8 << 20
)

// Client calls RPC procedures. Transport failures and server errors are
// wrapped with domain.ErrTransport; rejected requests return
// *domain.ApplicationError; NOT_FOUND returns domain.ErrNotFound.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[json.RawMessage]
	logger     *slog.Logger
}

func New(cfg config.RemoteConfig, logger *slog.Logger) *Client {
	logger = logger.With("component", "remote")

	breaker := gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        "remote-rpc",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.ConsecutiveFailures
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: cfg.Headers,
		limiter: rate.NewLimiter(limit, max(cfg.Burst, 1)),
		breaker: breaker,
		logger:  logger,
	}
}

// isSuccessful keeps rejected requests and caller cancellations from
// tripping the breaker.
func isSuccessful(err error) bool {
	return err == nil ||
		!errors.Is(err, domain.ErrTransport) ||
		errors.Is(err, context.Canceled)
}

type envelope struct {
	Result *struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

type rpcError struct {
	Message string          `json:"message"`
	Code    json.RawMessage `json:"code"`
	Data    struct {
		Code       string `json:"code"`
		HTTPStatus int    `json:"httpStatus"`
	} `json:"data"`
}

func (e *rpcError) code() string {
	if e.Data.Code != "" {
		return e.Data.Code
	}
	var code string
	if err := json.Unmarshal(e.Code, &code); err == nil {
		return code
	}
	return string(e.Code)
}

func (c *Client) query(ctx context.Context, procedure string, input, out any) error {
	return c.call(ctx, http.MethodGet, procedure, input, out)
}

func (c *Client) mutate(ctx context.Context, procedure string, input, out any) error {
	return c.call(ctx, http.MethodPost, procedure, input, out)
}

func (c *Client) call(ctx context.Context, method, procedure string, input, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: rate limiter: %w", domain.ErrTransport, procedure, err)
	}

	start := time.Now()
	data, err := c.breaker.Execute(func() (json.RawMessage, error) {
		return c.do(ctx, method, procedure, input)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %s: %w", domain.ErrTransport, procedure, err)
	}

	metrics.RemoteRequestsTotal.WithLabelValues(procedure, resultClass(err)).Inc()
	c.logger.Debug("rpc call",
		"procedure", procedure,
		"method", method,
		"duration", time.Since(start),
		"error", err,
	)
	if err != nil {
		return err
	}

	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: decode result: %w", domain.ErrTransport, procedure, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, procedure string, input any) (json.RawMessage, error) {
	endpoint := c.baseURL + rpcPath + procedure

	var body io.Reader
	if input != nil {
		payload, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("%s: encode input: %w", procedure, err)
		}
		if method == http.MethodGet {
			endpoint += "?input=" + url.QueryEscape(string(payload))
		} else {
			body = bytes.NewReader(payload)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", procedure, err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrTransport, procedure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read response: %w", domain.ErrTransport, procedure, err)
	}

	if transientStatus(resp.StatusCode) {
		return nil, fmt.Errorf("%w: %s: unexpected status: %d", domain.ErrTransport, procedure, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &domain.ApplicationError{
				Procedure:  procedure,
				Code:       http.StatusText(resp.StatusCode),
				Message:    strings.TrimSpace(string(raw)),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("%w: %s: decode response: %w", domain.ErrTransport, procedure, err)
	}

	if env.Error != nil {
		return nil, classify(procedure, resp.StatusCode, env.Error)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &domain.ApplicationError{
			Procedure:  procedure,
			Code:       http.StatusText(resp.StatusCode),
			HTTPStatus: resp.StatusCode,
		}
	}
	if env.Result == nil {
		return nil, nil
	}
	return env.Result.Data, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}

func classify(procedure string, status int, e *rpcError) error {
	code := e.code()
	if e.Data.HTTPStatus != 0 {
		status = e.Data.HTTPStatus
	}

	switch {
	case code == "NOT_FOUND":
		return fmt.Errorf("%s: %s: %w", procedure, e.Message, domain.ErrNotFound)
	case code == "TIMEOUT" || code == "TOO_MANY_REQUESTS" || transientStatus(status):
		return fmt.Errorf("%w: %s: %s (%s)", domain.ErrTransport, procedure, e.Message, code)
	default:
		return &domain.ApplicationError{
			Procedure:  procedure,
			Code:       code,
			Message:    e.Message,
			HTTPStatus: status,
		}
	}
}

func transientStatus(status int) bool {
	return status >= http.StatusInternalServerError ||
		status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests
}

func resultClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrApplication):
		return "rejected"
	default:
		return "transport"
	}
}

// Probe checks that the server answers its health endpoint. It bypasses
// the rate limiter and the circuit breaker.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: probe: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusRequestTimeout {
		return fmt.Errorf("%w: probe: unexpected status: %d", domain.ErrTransport, resp.StatusCode)
	}
	return nil
}
