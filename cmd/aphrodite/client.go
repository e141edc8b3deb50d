package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackkerouac/aphrodite-sub000/internal/api"
	"github.com/jackkerouac/aphrodite-sub000/internal/engine"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
)

// apiClient wraps the daemon's HTTP API. All methods decode error responses
// into *apiError so commands can render the kind alongside the message.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, payload, target any) error {
	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if target == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *apiClient) send(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if urlErr, ok := err.(*url.Error); ok && ctx.Err() == nil {
			return nil, &connectError{address: c.baseURL, err: urlErr.Err}
		}
		return nil, err
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	var decoded api.ErrorResponse
	if err := json.Unmarshal(data, &decoded); err == nil && decoded.Error != "" {
		apiErr.Message = decoded.Error
		apiErr.Kind = decoded.Kind
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	return apiErr
}

func (c *apiClient) SubmitBatch(ctx context.Context, req api.BatchRequest) (*api.Job, error) {
	var resp api.JobResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/batch", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

func (c *apiClient) SubmitSingle(ctx context.Context, req api.SingleRequest) (*api.Job, error) {
	var resp api.JobResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/single", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

func (c *apiClient) SubmitRevert(ctx context.Context, itemIDs []string) (*api.Job, error) {
	var resp api.JobResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/revert", api.RevertRequest{ItemIDs: itemIDs}, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

func (c *apiClient) RestoreAll(ctx context.Context) (*api.Job, error) {
	var resp api.JobResponse
	if err := c.do(ctx, http.MethodPost, "/api/items/restore-all", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

func (c *apiClient) ListJobs(ctx context.Context, limit int, statuses []string) ([]api.Job, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	for _, status := range statuses {
		query.Add("status", status)
	}
	path := "/api/jobs"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp api.JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (c *apiClient) GetJob(ctx context.Context, id string) (*api.JobDetailResponse, error) {
	var resp api.JobDetailResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) CancelJob(ctx context.Context, id string) (bool, error) {
	var resp api.CancelResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, &resp); err != nil {
		return false, err
	}
	return resp.Cancelled, nil
}

// WatchJob consumes the job's ndjson event stream, invoking fn per event. The
// server bounds each poll with its write timeout, so the stream is resumed
// until a terminal event arrives or the context is cancelled.
func (c *apiClient) WatchJob(ctx context.Context, id string, fn func(engine.ProgressEvent) error) error {
	path := "/api/jobs/" + url.PathEscape(id) + "/events"
	for {
		terminal, err := c.watchOnce(ctx, path, fn)
		if err != nil || terminal {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (c *apiClient) watchOnce(ctx context.Context, path string, fn func(engine.ProgressEvent) error) (bool, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return false, decodeAPIError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event engine.ProgressEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return false, fmt.Errorf("decode event: %w", err)
		}
		if err := fn(event); err != nil {
			return false, err
		}
		if event.Terminal {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return false, err
	}
	return false, ctx.Err()
}

func (c *apiClient) Logs(ctx context.Context, limit int) (*api.LogListResponse, error) {
	var resp api.LogListResponse
	path := fmt.Sprintf("/api/logs?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FollowLogs tails the daemon log until the context ends. Each poll is
// bounded by the server's write timeout; the cursor carries across reconnects.
func (c *apiClient) FollowLogs(ctx context.Context, since uint64, fn func(logging.LogEvent) error) error {
	for {
		next, err := c.followOnce(ctx, since, fn)
		if err != nil {
			return err
		}
		since = next
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (c *apiClient) followOnce(ctx context.Context, since uint64, fn func(logging.LogEvent) error) (uint64, error) {
	resp, err := c.send(ctx, http.MethodGet, fmt.Sprintf("/api/logs/stream?since=%d", since), nil)
	if err != nil {
		return since, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return since, decodeAPIError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event logging.LogEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return since, fmt.Errorf("decode log event: %w", err)
		}
		if err := fn(event); err != nil {
			return since, err
		}
		if event.Sequence > since {
			since = event.Sequence
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return since, err
	}
	return since, ctx.Err()
}

func (c *apiClient) PosterSources(ctx context.Context, itemID string) (*api.PosterSourcesResponse, error) {
	var resp api.PosterSourcesResponse
	if err := c.do(ctx, http.MethodGet, "/api/posters/"+url.PathEscape(itemID)+"/sources", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) ReplacePoster(ctx context.Context, itemID string, req api.ReplacePosterRequest) (*api.PosterActionResponse, error) {
	var resp api.PosterActionResponse
	if err := c.do(ctx, http.MethodPost, "/api/posters/"+url.PathEscape(itemID)+"/replace", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) CustomPoster(ctx context.Context, itemID string, req api.CustomPosterRequest) (*api.PosterActionResponse, error) {
	var resp api.PosterActionResponse
	if err := c.do(ctx, http.MethodPost, "/api/posters/"+url.PathEscape(itemID)+"/custom", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) ConfigCategory(ctx context.Context, category string) (*api.ConfigCategoryResponse, error) {
	var resp api.ConfigCategoryResponse
	if err := c.do(ctx, http.MethodGet, "/api/config/"+url.PathEscape(category), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) UpdateConfig(ctx context.Context, category string, values map[string]api.ConfigValue) (*api.ConfigCategoryResponse, error) {
	var resp api.ConfigCategoryResponse
	req := api.ConfigUpdateRequest{Values: values}
	if err := c.do(ctx, http.MethodPut, "/api/config/"+url.PathEscape(category), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) ListSchedules(ctx context.Context) ([]api.Schedule, error) {
	var resp api.ScheduleListResponse
	if err := c.do(ctx, http.MethodGet, "/api/schedules", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Schedules, nil
}

func (c *apiClient) CreateSchedule(ctx context.Context, req api.ScheduleRequest) (*api.Schedule, error) {
	var resp api.ScheduleResponse
	if err := c.do(ctx, http.MethodPost, "/api/schedules", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Schedule, nil
}

func (c *apiClient) DeleteSchedule(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/schedules/%d", id), nil, nil)
}

func (c *apiClient) SetScheduleEnabled(ctx context.Context, id int64, enabled bool) (*api.Schedule, error) {
	action := "disable"
	if enabled {
		action = "enable"
	}
	var resp api.ScheduleResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/schedules/%d/%s", id, action), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Schedule, nil
}

func (c *apiClient) NotifyTest(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/notify/test", nil, nil)
}

func (c *apiClient) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health returns the daemon's health report. A 503 still carries the report,
// so it is decoded before the status code is turned into an error.
func (c *apiClient) Health(ctx context.Context) (*api.HealthResponse, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, decodeAPIError(resp)
	}
	var health api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &health, nil
}
