// Package remote calls the SOS and face recognition services that sit next to
// the report form. Both answer {status, message, data?}.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/firelinx/internal/observability"
)

const (
	EndpointSOS       = "sos"
	EndpointRecognize = "recognize"

	outcomeBreakerOpen = "breaker_open"
	statusSuccess      = "success"
)

var ErrBreakerOpen = errors.New("remote: circuit breaker open")

// Response is the envelope both services return.
type Response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Identity is what recognition returns in data.
type Identity struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// RemoteError is a reply that is not a success: an HTTP error status or a
// body with status != "success".
type RemoteError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// retryable is true for server side failures and rate limiting.
func (e *RemoteError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type Config struct {
	BaseURL string
	Timeout time.Duration

	// circuit breaker
	BreakerFailures int
	BreakerOpen     time.Duration
	BreakerInterval time.Duration

	MaxRetryElapsed time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 3
	}
	if c.BreakerOpen <= 0 {
		c.BreakerOpen = 30 * time.Second
	}
	if c.BreakerInterval <= 0 {
		c.BreakerInterval = time.Minute
	}
	if c.MaxRetryElapsed <= 0 {
		c.MaxRetryElapsed = 10 * time.Second
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	return c
}

// Client talks to both endpoints, each behind its own breaker.
type Client struct {
	cfg      Config
	http     *http.Client
	breakers map[string]*gobreaker.CircuitBreaker
	paths    map[string]string
	metrics  *observability.Metrics
	logger   *slog.Logger

	initialInterval time.Duration
}

func NewClient(cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		metrics: metrics,
		logger:  logger,
		paths: map[string]string{
			EndpointSOS:       "/trigger-sos",
			EndpointRecognize: "/recognize",
		},
		initialInterval: 200 * time.Millisecond,
	}
	c.breakers = map[string]*gobreaker.CircuitBreaker{
		EndpointSOS:       c.mkCB("sos-service"),
		EndpointRecognize: c.mkCB("recognize-service"),
	}
	return c
}

func (c *Client) mkCB(name string) *gobreaker.CircuitBreaker {
	fails := uint32(c.cfg.BreakerFailures)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: c.cfg.BreakerInterval,
		Timeout:  c.cfg.BreakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= fails
		},
		// una risposta applicativa (4xx, status != success) non è un guasto del servizio
		IsSuccessful: func(err error) bool {
			var re *RemoteError
			if errors.As(err, &re) {
				return !re.retryable()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// TriggerSOS asks the SOS service to raise an alarm.
func (c *Client) TriggerSOS(ctx context.Context) (*Response, error) {
	return c.call(ctx, EndpointSOS)
}

// Recognize runs face recognition and returns the matched operator.
func (c *Client) Recognize(ctx context.Context) (Identity, *Response, error) {
	resp, err := c.call(ctx, EndpointRecognize)
	if err != nil {
		return Identity{}, nil, err
	}
	var id Identity
	if len(resp.Data) > 0 && string(resp.Data) != "null" {
		if err := json.Unmarshal(resp.Data, &id); err != nil {
			return Identity{}, resp, errors.Wrap(err, "recognize: unexpected data")
		}
	}
	return id, resp, nil
}

func (c *Client) call(ctx context.Context, endpoint string) (*Response, error) {
	res, err := c.breakers[endpoint].Execute(func() (interface{}, error) {
		return c.doWithRetry(ctx, endpoint)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.RemoteRequests.WithLabelValues(endpoint, outcomeBreakerOpen).Inc()
			return nil, errors.Wrap(ErrBreakerOpen, endpoint)
		}
		c.metrics.RemoteRequests.WithLabelValues(endpoint, observability.OutcomeError).Inc()
		c.logger.Warn("remote call failed", "endpoint", endpoint, "error", err)
		return nil, err
	}
	c.metrics.RemoteRequests.WithLabelValues(endpoint, observability.OutcomeSuccess).Inc()
	return res.(*Response), nil
}

func (c *Client) doWithRetry(ctx context.Context, endpoint string) (*Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.MaxElapsedTime = c.cfg.MaxRetryElapsed

	var out *Response
	err := backoff.Retry(func() error {
		resp, err := c.do(ctx, endpoint)
		if err != nil {
			var re *RemoteError
			if errors.As(err, &re) && !re.retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		out = resp
		return nil
	}, backoff.WithContext(bo, ctx))
	return out, err
}

func (c *Client) do(ctx context.Context, endpoint string) (*Response, error) {
	url := c.cfg.BaseURL + c.paths[endpoint]
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, backoff.Permanent(errors.Wrapf(err, "%s: build request", endpoint))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s request failed", endpoint)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read body", endpoint)
	}

	var out Response
	decodeErr := json.Unmarshal(body, &out)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &RemoteError{Endpoint: endpoint, StatusCode: res.StatusCode, Message: out.Message}
	}
	if decodeErr != nil {
		return nil, backoff.Permanent(errors.Wrapf(decodeErr, "%s: invalid response", endpoint))
	}
	if out.Status != statusSuccess {
		return nil, &RemoteError{Endpoint: endpoint, StatusCode: res.StatusCode, Message: out.Message}
	}
	return &out, nil
}
