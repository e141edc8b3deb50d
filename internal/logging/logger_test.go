package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	hub := logging.NewStreamHub(16)
	logger, err := logging.NewFromConfig(&cfg, hub)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Info("startup")

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "aphrodite.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "startup") {
		t.Fatalf("expected log file to contain message, got %q", data)
	}

	events, _ := hub.Tail(10)
	if len(events) != 1 || events[0].Message != "startup" {
		t.Fatalf("stream hub events = %+v, want one startup event", events)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "debug",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestNewJSONLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.json")
	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "debug",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("json message", logging.String("k", "v"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &decoded); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, data)
	}
	if decoded["msg"] != "json message" {
		t.Fatalf("msg = %v, want %q", decoded["msg"], "json message")
	}
	if decoded["level"] != "info" {
		t.Fatalf("level = %v, want info", decoded["level"])
	}
	if decoded["k"] != "v" {
		t.Fatalf("expected custom attribute, got %v", decoded)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "7b9f5cb2-6a1d-4872-8f53-2f41f0f6f39e")
	ctx = services.WithItemID(ctx, "item-123")
	ctx = services.WithStage(ctx, "render")
	ctx = services.WithSource(ctx, "omdb")
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WithContext(ctx, logger).Info("contextual log")

	var decoded map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	want := map[string]string{
		logging.FieldJobID:         "7b9f5cb2-6a1d-4872-8f53-2f41f0f6f39e",
		logging.FieldItemID:        "item-123",
		logging.FieldStage:         "render",
		logging.FieldSource:        "omdb",
		logging.FieldCorrelationID: "req-xyz",
	}
	for key, value := range want {
		if decoded[key] != value {
			t.Fatalf("field %s = %v, want %q", key, decoded[key], value)
		}
	}
}

func TestNewComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.NewComponentLogger(base, "engine").Info("hello")

	if !strings.Contains(buf.String(), `"component":"engine"`) {
		t.Fatalf("expected component field, got %q", buf.String())
	}
}

func TestFormatSubject(t *testing.T) {
	cases := []struct {
		jobID, itemID, stage string
		want                 string
	}{
		{"", "", "", ""},
		{"7b9f5cb2-6a1d-4872-8f53-2f41f0f6f39e", "", "", "Job 7b9f5cb2"},
		{"", "item-9", "", "Item item-9"},
		{"", "item-9", "render", "Item item-9 (render)"},
		{"7b9f5cb2-6a1d-4872-8f53-2f41f0f6f39e", "item-9", "upload", "Job 7b9f5cb2 > Item item-9 (upload)"},
		{"", "", "resolve", "resolve"},
	}
	for _, tc := range cases {
		if got := logging.FormatSubject(tc.jobID, tc.itemID, tc.stage); got != tc.want {
			t.Fatalf("FormatSubject(%q, %q, %q) = %q, want %q", tc.jobID, tc.itemID, tc.stage, got, tc.want)
		}
	}
}
