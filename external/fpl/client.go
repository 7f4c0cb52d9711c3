package fpl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/fpl-data-pipeline/internal/platform/cache"
	"github.com/riskibarqy/fpl-data-pipeline/internal/platform/logging"
	"github.com/riskibarqy/fpl-data-pipeline/internal/platform/resilience"
	"github.com/riskibarqy/fpl-data-pipeline/internal/usecase"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL    = "https://fantasy.premierleague.com/api"
	maxResponseBytes  = 6 << 20
	bootstrapCacheKey = "bootstrap-static"
)

var errFPLTransient = crerr.New("fpl transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	CacheTTL       time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the public Fantasy Premier League API. Responses are
// returned as raw bytes so callers can persist them unchanged.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	logger     *logging.Logger
	breaker    *resilience.CircuitBreaker
	bootstrap  *cache.Store[[]byte]
	backoff    func(attempt int) time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 60 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	logger = logger.Named("fpl")
	breaker := resilience.NewCircuitBreakerFromConfig(cfg.CircuitBreaker)
	breaker.OnStateChange(func(from, to resilience.CircuitState) {
		logger.Warn("fpl circuit breaker state changed", "from", from, "to", to)
	})

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		maxRetries: max(cfg.MaxRetries, 0),
		logger:     logger,
		breaker:    breaker,
		bootstrap:  cache.NewStore[[]byte](cfg.CacheTTL),
		backoff:    linearBackoff,
	}
}

// FetchBootstrap returns the bootstrap-static document. The payload is
// memoized for the cache TTL so histories and checks share one request.
func (c *Client) FetchBootstrap(ctx context.Context) ([]byte, error) {
	raw, err := c.bootstrap.GetOrLoad(ctx, bootstrapCacheKey, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, "/bootstrap-static/")
	})
	if err != nil {
		return nil, fmt.Errorf("fetch bootstrap-static: %w", err)
	}
	return raw, nil
}

func (c *Client) FetchFixtures(ctx context.Context) ([]byte, error) {
	raw, err := c.get(ctx, "/fixtures/")
	if err != nil {
		return nil, fmt.Errorf("fetch fixtures: %w", err)
	}
	return raw, nil
}

func (c *Client) FetchElementSummary(ctx context.Context, elementID int64) ([]byte, error) {
	if elementID <= 0 {
		return nil, fmt.Errorf("%w: element id must be greater than zero", usecase.ErrInvalidInput)
	}
	raw, err := c.get(ctx, "/element-summary/"+strconv.FormatInt(elementID, 10)+"/")
	if err != nil {
		return nil, fmt.Errorf("fetch element-summary element_id=%d: %w", elementID, err)
	}
	return raw, nil
}

// FetchElements returns the bootstrap player list together with the raw
// bootstrap document it was decoded from.
func (c *Client) FetchElements(ctx context.Context) ([]usecase.FPLElement, []byte, error) {
	raw, err := c.FetchBootstrap(ctx)
	if err != nil {
		return nil, nil, err
	}
	elements, err := DecodeElements(raw)
	if err != nil {
		return nil, raw, err
	}
	return elements, raw, nil
}

func (c *Client) FetchPlayerHistory(ctx context.Context, elementID int64) (usecase.FPLPlayerHistory, error) {
	raw, err := c.FetchElementSummary(ctx, elementID)
	if err != nil {
		return usecase.FPLPlayerHistory{}, err
	}
	rows, err := DecodeHistory(raw)
	if err != nil {
		return usecase.FPLPlayerHistory{}, fmt.Errorf("element_id=%d: %w", elementID, err)
	}
	return usecase.FPLPlayerHistory{ElementID: elementID, Rows: rows, Raw: raw}, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.breaker.Allow(); err != nil {
		c.logger.WarnContext(ctx, "fpl circuit breaker rejected request", "path", path, "error", err)
		return nil, fmt.Errorf("%w: fpl api is temporarily unavailable (%v)", usecase.ErrDependencyUnavailable, err)
	}

	raw, err := c.executeRequest(ctx, c.baseURL+path)
	switch {
	case err != nil && ctx.Err() != nil:
		c.breaker.Report(resilience.OutcomeAbandoned)
	case crerr.Is(err, errFPLTransient):
		c.breaker.Report(resilience.OutcomeFault)
	default:
		c.breaker.Report(resilience.OutcomeHealthy)
	}
	return raw, err
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, crerr.Wrap(err, "build request")
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = crerr.Mark(fmt.Errorf("%w: GET %s: %v", usecase.ErrUpstream, fullURL, err), errFPLTransient)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = crerr.Mark(fmt.Errorf("%w: GET %s: read response body: %v", usecase.ErrUpstream, fullURL, readErr), errFPLTransient)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = crerr.Mark(statusError(fullURL, resp.StatusCode, raw), errFPLTransient)
			default:
				return nil, statusError(fullURL, resp.StatusCode, raw)
			}
		}

		if attempt == c.maxRetries {
			break
		}
		timer := time.NewTimer(c.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: GET %s failed", usecase.ErrUpstream, fullURL)
	}
	c.logger.WarnContext(ctx, "fpl request failed", "url", fullURL, "attempts", c.maxRetries+1, "error", lastErr)
	return nil, lastErr
}

func statusError(fullURL string, status int, body []byte) error {
	return fmt.Errorf("%w: GET %s status=%d body=%s", usecase.ErrUpstream, fullURL, status, abbreviateBody(body))
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func linearBackoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * time.Second
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
