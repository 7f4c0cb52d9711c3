package understat

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	crerr "github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/dataset"
	"github.com/riskibarqy/fpl-data-pipeline/internal/platform/logging"
	"github.com/riskibarqy/fpl-data-pipeline/internal/platform/resilience"
	"github.com/riskibarqy/fpl-data-pipeline/internal/usecase"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseURL = "https://understat.com"
	playersVar     = "playersData"
	matchesVar     = "matchesData"
)

var tracer = otel.Tracer("fpl-data-pipeline/external/understat")

type ClientConfig struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// Sleep spaces page requests, retries included. The first request waits
	// Sleep counted from NewClient.
	Sleep     time.Duration
	RetryWait time.Duration
	Transport http.RoundTripper
	Logger    *logging.Logger
}

// Client scrapes the JSON arrays Understat embeds in its league pages.
type Client struct {
	http   *resty.Client
	logger *logging.Logger
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retryWait := cfg.RetryWait
	if retryWait <= 0 {
		retryWait = time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	client := resty.New()
	client.SetTransport(transport)
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	if ua := strings.TrimSpace(cfg.UserAgent); ua != "" {
		client.SetHeader("User-Agent", ua)
	}
	client.SetRetryCount(max(cfg.MaxRetries, 0))
	client.SetRetryWaitTime(retryWait)
	client.SetRetryMaxWaitTime(retryWait * time.Duration(max(cfg.MaxRetries, 1)+1))
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		if res == nil {
			return false
		}
		code := res.StatusCode()
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	})

	limiter := resilience.NewRequestLimiter(cfg.Sleep, true)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	return &Client{
		http:   client,
		logger: logger.Named("understat"),
	}
}

// FetchLeaguePage downloads and parses /league/{league}/{season}.
func (c *Client) FetchLeaguePage(ctx context.Context, league string, season int) (*goquery.Document, []byte, error) {
	ctx, span := tracer.Start(ctx, "understat.Client.FetchLeaguePage")
	defer span.End()

	path := "/league/" + league + "/" + strconv.Itoa(season)
	res, err := c.http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, nil, crerr.Wrapf(usecase.ErrUpstream, "GET %s: %v", c.http.BaseURL+path, err)
	}
	if res.IsError() {
		err := crerr.Wrapf(usecase.ErrUpstream, "GET %s status=%d", c.http.BaseURL+path, res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected status")
		c.logger.WarnContext(ctx, "understat request failed", "league", league, "season", season, "status", res.StatusCode())
		return nil, nil, err
	}

	body := res.Body()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, nil, crerr.Wrap(err, "parse understat html")
	}
	return doc, body, nil
}

func (c *Client) FetchPlayers(ctx context.Context, league string, season int) (usecase.UnderstatPayload, error) {
	return c.fetchEmbedded(ctx, league, season, playersVar)
}

func (c *Client) FetchMatches(ctx context.Context, league string, season int) (usecase.UnderstatPayload, error) {
	return c.fetchEmbedded(ctx, league, season, matchesVar)
}

func (c *Client) fetchEmbedded(ctx context.Context, league string, season int, varName string) (usecase.UnderstatPayload, error) {
	doc, _, err := c.FetchLeaguePage(ctx, league, season)
	if err != nil {
		return usecase.UnderstatPayload{}, err
	}

	raw, err := ExtractFromDocument(doc, varName)
	if err != nil {
		return usecase.UnderstatPayload{}, err
	}
	records, err := dataset.DecodeRecords(raw)
	if err != nil {
		return usecase.UnderstatPayload{}, crerr.Wrapf(usecase.ErrUpstream, "failed to parse %s JSON: %v", varName, err)
	}

	c.logger.DebugContext(ctx, "understat payload extracted", "var", varName, "league", league, "season", season, "records", len(records))
	return usecase.UnderstatPayload{
		League:  league,
		Season:  season,
		Records: records,
		Raw:     raw,
	}, nil
}

// ExtractFromDocument returns the JSON of varName from the first <script>
// element whose text mentions it.
func ExtractFromDocument(doc *goquery.Document, varName string) ([]byte, error) {
	var script string
	located := false
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if strings.Contains(text, varName) {
			script = text
			located = true
			return false
		}
		return true
	})
	if !located {
		return nil, crerr.Wrapf(usecase.ErrPayloadNotFound, "could not locate %s in Understat payload", varName)
	}

	raw, found, err := ExtractVar(script, varName)
	if err != nil || !found {
		if err == nil {
			err = crerr.New("no assignment found")
		}
		return nil, crerr.Wrapf(usecase.ErrUpstream, "failed to parse %s JSON: %v", varName, err)
	}
	return raw, nil
}
