package catalog

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

const itemFields = "PrimaryImageAspectRatio,ImageTags,Overview,ProductionYear,Genres,Tags,MediaStreams,ProviderIds,Path,OriginalTitle"

// Client is a Jellyfin-compatible media server client.
type Client struct {
	baseURL       string
	apiKey        string
	userID        string
	tag           string
	pageSize      int
	maxImageBytes int64
	httpClient    *http.Client
	limiter       *rate.Limiter
	inflight      chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a catalog client from configuration.
func New(cfg config.Catalog, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfigMissing, "catalog", "new", "catalog url required", nil)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfigMissing, "catalog", "new", "catalog api key required", nil)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 8
	}
	maxImageBytes := int64(cfg.MaxImageMB) * 1024 * 1024
	if maxImageBytes <= 0 {
		maxImageBytes = 20 * 1024 * 1024
	}

	client := &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		userID:        strings.TrimSpace(cfg.UserID),
		tag:           strings.TrimSpace(cfg.Tag),
		pageSize:      pageSize,
		maxImageBytes: maxImageBytes,
		httpClient:    &http.Client{Timeout: timeout},
		limiter:       rate.NewLimiter(rate.Limit(rps), burst),
		inflight:      make(chan struct{}, maxInFlight),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Tag returns the configured processed-tag name.
func (c *Client) Tag() string { return c.tag }

// Health probes the server's public info endpoint.
func (c *Client) Health(ctx context.Context) error {
	var info struct {
		ServerName string `json:"ServerName"`
		Version    string `json:"Version"`
	}
	return c.getJSON(ctx, "/System/Info/Public", nil, &info)
}

// ListLibraries returns the user's top-level views.
func (c *Client) ListLibraries(ctx context.Context) ([]Library, error) {
	var payload struct {
		Items []Library `json:"Items"`
	}
	if err := c.getJSON(ctx, c.userPath("/Views"), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// GetItem fetches an item's full metadata including media streams.
func (c *Client) GetItem(ctx context.Context, itemID string) (*ItemMetadata, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, services.Wrap(services.ErrCatalogNotFound, "catalog", "get_item", "empty item id", nil)
	}
	params := url.Values{}
	params.Set("Fields", itemFields)
	var item ItemMetadata
	if err := c.getJSON(ctx, c.userPath("/Items/"+url.PathEscape(itemID)), params, &item); err != nil {
		return nil, err
	}
	if item.ID == "" {
		item.ID = itemID
	}
	return &item, nil
}

// GetPrimaryImage downloads an item's primary image bytes and content type.
func (c *Client) GetPrimaryImage(ctx context.Context, itemID string) ([]byte, string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/Items/"+url.PathEscape(itemID)+"/Images/Primary", nil, nil, "")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxImageBytes+1))
	if err != nil {
		return nil, "", services.Wrap(services.ErrImageFetch, "catalog", "get_primary_image", itemID, err)
	}
	if int64(len(data)) > c.maxImageBytes {
		return nil, "", services.Wrap(services.ErrImageTooLarge, "catalog", "get_primary_image",
			fmt.Sprintf("item %s image exceeds %d bytes", itemID, c.maxImageBytes), nil)
	}
	if len(data) == 0 {
		return nil, "", services.Wrap(services.ErrImageInvalid, "catalog", "get_primary_image",
			fmt.Sprintf("item %s returned empty image", itemID), nil)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

// SetPrimaryImage uploads an item's primary image. The server expects the
// payload base64-encoded with the image content type.
func (c *Client) SetPrimaryImage(ctx context.Context, itemID string, data []byte, mime string) error {
	if len(data) == 0 {
		return services.Wrap(services.ErrImageInvalid, "catalog", "set_primary_image", "empty image payload", nil)
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	resp, err := c.do(ctx, http.MethodPost, "/Items/"+url.PathEscape(itemID)+"/Images/Primary", nil, strings.NewReader(encoded), mime)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) userPath(suffix string) string {
	if c.userID == "" {
		return suffix
	}
	return "/Users/" + url.PathEscape(c.userID) + suffix
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, target any) error {
	resp, err := c.do(ctx, http.MethodGet, path, params, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Unknown fields are always tolerated; the server adds fields freely
	// across versions.
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return services.Wrap(services.ErrCatalogInvalidResponse, "catalog", "decode", path, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return services.Wrap(services.ErrCatalogInvalidResponse, "catalog", "encode", path, err)
	}
	resp, err := c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// do issues one request with the rate limiter, the in-flight cap, and status
// classification applied. Callers own the response body on success.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader, contentType string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, services.Wrap(services.ErrCancelled, "catalog", "rate_wait", path, err)
	}
	select {
	case c.inflight <- struct{}{}:
	case <-ctx.Done():
		return nil, services.Wrap(services.ErrCancelled, "catalog", "inflight_wait", path, ctx.Err())
	}
	defer func() { <-c.inflight }()

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, services.Wrap(services.ErrCatalogUnreachable, "catalog", "build_request", path, err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "catalog", method, fmt.Sprintf("%s (latency=%v)", path, latency), err)
		}
		return nil, services.Wrap(services.ErrCatalogUnreachable, "catalog", method, fmt.Sprintf("%s (latency=%v)", path, latency), err)
	}

	if err := classifyStatus(resp, method, path, latency); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func classifyStatus(resp *http.Response, method, path string, latency time.Duration) error {
	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return nil
	}
	detail := fmt.Sprintf("%s returned %d (latency=%v)", path, status, latency)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrCatalogUnauthorized, "catalog", method, detail, nil)
	case status == http.StatusNotFound:
		return services.Wrap(services.ErrCatalogNotFound, "catalog", method, detail, nil)
	case status == http.StatusTooManyRequests:
		err := services.Wrap(services.ErrCatalogRateLimited, "catalog", method, detail, nil)
		if delay := parseRetryAfter(resp.Header.Get("Retry-After")); delay > 0 {
			err = services.WithRetryAfter(err, delay)
		}
		return err
	case status == http.StatusRequestTimeout:
		return services.Wrap(services.ErrTimeout, "catalog", method, detail, nil)
	case status >= 500:
		return services.Wrap(services.ErrCatalogUnreachable, "catalog", method, detail, nil)
	default:
		return services.Wrap(services.ErrCatalogInvalidResponse, "catalog", method, detail, nil)
	}
}

func parseRetryAfter(header string) time.Duration {
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
