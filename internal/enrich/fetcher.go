package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jackkerouac/aphrodite-sub000/internal/cachestore"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

const maxResponseBytes = 4 * 1024 * 1024

// fetcher is the shared HTTP layer every source embeds: token-bucket rate
// limiting, an optional hard minimum interval between requests, TTL caching,
// and status classification into the stable error kinds.
type fetcher struct {
	source      string
	httpClient  *http.Client
	limiter     *rate.Limiter
	cache       *cachestore.Store
	ttl         time.Duration
	minInterval time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

type fetcherConfig struct {
	Source         string
	RPS            float64
	Burst          int
	TimeoutSeconds int
	CacheTTLDays   int
	MinInterval    time.Duration
}

func newFetcher(cfg fetcherConfig, cache *cachestore.Store, httpClient *http.Client) *fetcher {
	rps := cfg.RPS
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &fetcher{
		source:      cfg.Source,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		cache:       cache,
		ttl:         time.Duration(cfg.CacheTTLDays) * 24 * time.Hour,
		minInterval: cfg.MinInterval,
	}
}

// get returns the response body for the URL, serving from cache when a fresh
// entry exists. headers may be nil.
func (f *fetcher) get(ctx context.Context, cacheKey, rawURL string, headers map[string]string) ([]byte, error) {
	if f.cache != nil && cacheKey != "" {
		if payload, ok, err := f.cache.Get(ctx, f.source, cacheKey); err == nil && ok {
			return payload, nil
		}
	}

	if err := f.waitTurn(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnreachable, f.source, "build_request", "", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	requestStart := time.Now()
	resp, err := f.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, f.source, "get", fmt.Sprintf("latency=%v", latency), err)
		}
		return nil, services.Wrap(services.ErrSourceUnreachable, f.source, "get", fmt.Sprintf("latency=%v", latency), err)
	}
	defer resp.Body.Close()

	if err := f.classify(resp, latency); err != nil {
		return nil, err
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrSourceInvalidResponse, f.source, "read_body", "", err)
	}

	if f.cache != nil && cacheKey != "" && f.ttl > 0 {
		// Cache write failures are ignored; the next call just refetches.
		_ = f.cache.Put(ctx, f.source, cacheKey, payload, f.ttl)
	}
	return payload, nil
}

// waitTurn blocks for the token bucket and, when configured, the source's
// hard minimum interval between consecutive requests.
func (f *fetcher) waitTurn(ctx context.Context) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return services.Wrap(services.ErrCancelled, f.source, "rate_wait", "", err)
	}
	if f.minInterval <= 0 {
		return nil
	}

	f.mu.Lock()
	wait := f.minInterval - time.Since(f.lastCall)
	if wait > 0 {
		// Reserve the slot before sleeping so concurrent callers queue up
		// behind each other rather than dog-piling the source.
		f.lastCall = f.lastCall.Add(f.minInterval)
	} else {
		f.lastCall = time.Now()
	}
	f.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return services.Wrap(services.ErrCancelled, f.source, "interval_wait", "", ctx.Err())
		}
	}
	return nil
}

func (f *fetcher) classify(resp *http.Response, latency time.Duration) error {
	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return nil
	}
	detail := fmt.Sprintf("returned %d (latency=%v)", status, latency)
	switch {
	case status == http.StatusNotFound:
		return services.Wrap(services.ErrSourceNotFound, f.source, "get", detail, nil)
	case status == http.StatusTooManyRequests:
		err := services.Wrap(services.ErrSourceRateLimited, f.source, "get", detail, nil)
		if delay := retryAfterHeader(resp.Header.Get("Retry-After")); delay > 0 {
			err = services.WithRetryAfter(err, delay)
		}
		return err
	case status == http.StatusRequestTimeout:
		return services.Wrap(services.ErrTimeout, f.source, "get", detail, nil)
	case status >= 500:
		return services.Wrap(services.ErrSourceUnreachable, f.source, "get", detail, nil)
	default:
		return services.Wrap(services.ErrSourceInvalidResponse, f.source, "get", detail, nil)
	}
}

func retryAfterHeader(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}

// notFoundResult builds the canonical "source has no record" result.
func notFoundResult(source string) *Result {
	return &Result{Source: source, Found: false}
}
