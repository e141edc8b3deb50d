package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackkerouac/aphrodite-sub000/internal/api"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
)

func TestLogsRendersRecentEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/logs" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "2" {
			t.Fatalf("limit = %q", r.URL.Query().Get("limit"))
		}
		json.NewEncoder(w).Encode(api.LogListResponse{ //nolint:errcheck
			Events: []logging.LogEvent{
				{
					Sequence:  1,
					Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
					Level:     "INFO",
					Message:   "daemon started",
					Component: "daemon",
				},
				{
					Sequence:  2,
					Timestamp: time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC),
					Level:     "WARN",
					Message:   "item failed",
					Component: "engine",
					JobID:     "job-1",
					ItemID:    "item-7",
					Fields:    map[string]string{"error_kind": "timeout"},
				},
			},
			NextSeq: 2,
		})
	}))
	defer server.Close()

	out, err := runCommand(t, "--server", server.URL, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	for _, want := range []string{"[daemon] daemon started", "[engine] item failed", "job=job-1", "item=item-7", "error_kind=timeout"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatLogEventOrdersFields(t *testing.T) {
	event := logging.LogEvent{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Level:     "INFO",
		Message:   "job progress",
		Fields:    map[string]string{"total": "10", "done": "3"},
	}
	got := formatLogEvent(event)
	if !strings.HasSuffix(got, "done=3 total=10") {
		t.Fatalf("formatLogEvent = %q, want sorted field suffix", got)
	}
}
