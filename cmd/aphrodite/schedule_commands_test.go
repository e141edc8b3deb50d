package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackkerouac/aphrodite-sub000/internal/api"
)

func TestScheduleCreateAndList(t *testing.T) {
	var created api.ScheduleRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/schedules":
			if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(api.ScheduleResponse{Schedule: api.Schedule{ //nolint:errcheck
				ID:       7,
				Name:     created.Name,
				CronExpr: created.CronExpr,
				Enabled:  created.Enabled,
			}})
		case r.Method == http.MethodGet && r.URL.Path == "/api/schedules":
			json.NewEncoder(w).Encode(api.ScheduleListResponse{Schedules: []api.Schedule{ //nolint:errcheck
				{ID: 7, Name: "nightly", CronExpr: "0 3 * * *", Enabled: true},
			}})
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	out, err := runCommand(t, "--server", server.URL,
		"schedule", "create", "nightly", "--cron", "0 3 * * *", "--badge", "audio", "--library", "lib1",
	)
	if err != nil {
		t.Fatalf("schedule create: %v", err)
	}
	if !strings.Contains(out, "Created schedule 7") {
		t.Fatalf("output = %q", out)
	}
	if created.CronExpr != "0 3 * * *" || !created.Enabled {
		t.Fatalf("request = %+v", created)
	}
	if len(created.Targets) != 1 || created.Targets[0] != "lib1" {
		t.Fatalf("targets = %+v", created.Targets)
	}

	out, err = runCommand(t, "--server", server.URL, "schedule", "list")
	if err != nil {
		t.Fatalf("schedule list: %v", err)
	}
	for _, want := range []string{"nightly", "0 3 * * *", "yes"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestScheduleCreateRequiresCron(t *testing.T) {
	_, err := runCommand(t, "--server", "http://127.0.0.1:1", "schedule", "create", "nightly")
	var usage *usageError
	if !errors.As(err, &usage) {
		t.Fatalf("expected usageError, got %v", err)
	}
}

func TestScheduleDeleteRejectsBadID(t *testing.T) {
	_, err := runCommand(t, "--server", "http://127.0.0.1:1", "schedule", "delete", "abc")
	if exitCodeFor(err) != exitUsage {
		t.Fatalf("exit code = %d, want %d (err: %v)", exitCodeFor(err), exitUsage, err)
	}
}
