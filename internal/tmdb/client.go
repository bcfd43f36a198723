package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/gapmovies/gapmovies/internal/metrics"
)

var (
	// ErrNotFound is returned when TMDb has no movie with the requested id.
	ErrNotFound = errors.New("tmdb: not found")
	// ErrUnavailable is returned while the circuit breaker rejects calls.
	ErrUnavailable = errors.New("tmdb: unavailable")
)

const maxResponseBody = 4 << 20 // 4 MiB

// Client defines the contract for querying TMDb.
type Client interface {
	Movie(ctx context.Context, id int) (*MovieDetails, error)
	List(ctx context.Context, category Category, page int) (*ListPage, error)
}

// Options tunes an HTTPClient.
type Options struct {
	APIKey         string
	Language       string
	Region         string
	Timeout        time.Duration
	RequestsPerSec int

	// FailureThreshold consecutive failures open the breaker for BreakerTimeout.
	FailureThreshold uint32
	BreakerTimeout   time.Duration
	Logger           zerolog.Logger
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL *url.URL
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  zerolog.Logger
}

// NewHTTPClient constructs a TMDb client paced by a token bucket and guarded
// by a circuit breaker.
func NewHTTPClient(baseURL string, opts Options) (*HTTPClient, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse tmdb url: %q is not absolute", baseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 4
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	c := &HTTPClient{
		baseURL: parsed,
		opts:    opts,
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   opts.Timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   opts.Timeout,
				ResponseHeaderTimeout: opts.Timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		logger:  opts.Logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tmdb",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("tmdb: circuit breaker state change")
			if to == gobreaker.StateOpen {
				metrics.TMDBBreakerOpen.Set(1)
			} else {
				metrics.TMDBBreakerOpen.Set(0)
			}
		},
	})
	return c, nil
}

// Movie fetches the details of one movie with credits, videos and release dates.
func (c *HTTPClient) Movie(ctx context.Context, id int) (*MovieDetails, error) {
	q := url.Values{}
	q.Set("append_to_response", "credits,videos,release_dates")
	body, err := c.get(ctx, "/movie/"+strconv.Itoa(id), q)
	if err != nil {
		return nil, err
	}
	var details MovieDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("decode tmdb movie %d: %w", id, err)
	}
	if details.ID == 0 {
		details.ID = id
	}
	return &details, nil
}

// List fetches one page of a category listing.
func (c *HTTPClient) List(ctx context.Context, category Category, page int) (*ListPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if c.opts.Region != "" {
		q.Set("region", c.opts.Region)
	}
	body, err := c.get(ctx, "/movie/"+string(category), q)
	if err != nil {
		return nil, err
	}
	var list ListPage
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode tmdb %s page %d: %w", category, page, err)
	}
	return &list, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q.Set("api_key", c.opts.APIKey)
	if c.opts.Language != "" {
		q.Set("language", c.opts.Language)
	}
	endpoint := *c.baseURL
	endpoint.Path = c.baseURL.Path + path
	endpoint.RawQuery = q.Encode()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, endpoint.String(), path)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, err
}

func (c *HTTPClient) do(ctx context.Context, endpoint, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.TMDBRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	metrics.TMDBRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("read tmdb response: %w", err)
		}
		return body, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		c.logger.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("tmdb: unexpected status")
		return nil, fmt.Errorf("tmdb: upstream returned %d", resp.StatusCode)
	}
}
