package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
)

const userAgent = "Aphrodite-Go/0.1.0"

// Event enumerates the job milestones that can notify.
type Event string

const (
	EventJobCompleted    Event = "job_completed"
	EventJobFailed       Event = "job_failed"
	EventRevertCompleted Event = "revert_completed"
	EventTest            Event = "test"
)

// Payload carries the event's formatting fields.
type Payload map[string]string

// Service publishes job events to the configured transport.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when a topic is
// configured. Without a topic a noop implementation is returned. Per-event
// gates in the notifications config suppress individual events.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventJobCompleted:    cfg.Notifications.JobComplete,
			EventJobFailed:       cfg.Notifications.JobFailed,
			EventRevertCompleted: cfg.Notifications.Revert,
			EventTest:            true,
		},
	}
}

// JobTerminalHook adapts the service to the engine's terminal-job callback.
// Delivery failures are logged, never propagated.
func JobTerminalHook(svc Service, logger *slog.Logger) func(job *jobs.Job) {
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(job *jobs.Job) {
		event := EventJobCompleted
		switch {
		case job.Type == jobs.TypeRevert || job.Type == jobs.TypeRestore:
			event = EventRevertCompleted
		case job.Status == jobs.StatusFailed:
			event = EventJobFailed
		}
		payload := Payload{
			"type":    string(job.Type),
			"status":  string(job.Status),
			"summary": job.ResultSummary,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := svc.Publish(ctx, event, payload); err != nil {
			logger.Warn("notification delivery failed",
				logging.FieldJobID, job.ID,
				logging.FieldEventType, string(event),
				logging.FieldErrorHint, err.Error())
		}
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

// Publish formats and sends one event. Gated-off events succeed silently.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	jobType := strings.TrimSpace(payload["type"])
	if jobType == "" {
		jobType = "batch"
	}
	summary := strings.TrimSpace(payload["summary"])

	switch event {
	case EventJobCompleted:
		status := strings.TrimSpace(payload["status"])
		title := "Aphrodite - Job Complete"
		body := fmt.Sprintf("✅ %s job complete", jobType)
		if status == string(jobs.StatusPartial) {
			title = "Aphrodite - Job Complete (partial)"
			body = fmt.Sprintf("⚠️ %s job finished with errors", jobType)
		}
		if summary != "" {
			body = fmt.Sprintf("%s: %s", body, summary)
		}
		return message{title: title, body: body, tags: []string{"aphrodite", "job", "completed"}}, true
	case EventJobFailed:
		body := fmt.Sprintf("❌ %s job failed", jobType)
		if summary != "" {
			body = fmt.Sprintf("%s: %s", body, summary)
		}
		return message{
			title:    "Aphrodite - Job Failed",
			body:     body,
			tags:     []string{"aphrodite", "job", "failed"},
			priority: "high",
		}, true
	case EventRevertCompleted:
		body := "Posters restored to originals"
		if summary != "" {
			body = fmt.Sprintf("%s: %s", body, summary)
		}
		return message{title: "Aphrodite - Revert Complete", body: body, tags: []string{"aphrodite", "revert", "completed"}}, true
	case EventTest:
		return message{
			title:    "Aphrodite - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"aphrodite", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
