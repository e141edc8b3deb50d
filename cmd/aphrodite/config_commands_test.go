package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackkerouac/aphrodite-sub000/internal/api"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output missing target path: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error without --overwrite")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigSetSendsTypedValues(t *testing.T) {
	var received api.ConfigUpdateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/config/badges.audio" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(api.ConfigCategoryResponse{ //nolint:errcheck
			Category: "badges.audio",
			Values:   received.Values,
		})
	}))
	defer server.Close()

	out, err := runCommand(t, "--server", server.URL,
		"config", "set", "badges.audio",
		"enabled=true:boolean", "font_size=42:integer", "label=DTS-HD",
	)
	if err != nil {
		t.Fatalf("config set: %v", err)
	}

	if got := received.Values["enabled"]; got.Value != "true" || got.Type != "boolean" {
		t.Fatalf("enabled = %+v", got)
	}
	if got := received.Values["font_size"]; got.Value != "42" || got.Type != "integer" {
		t.Fatalf("font_size = %+v", got)
	}
	if got := received.Values["label"]; got.Value != "DTS-HD" || got.Type != "string" {
		t.Fatalf("label = %+v", got)
	}
	if !strings.Contains(out, "font_size") {
		t.Fatalf("output missing key: %q", out)
	}
}

func TestSplitTypedValue(t *testing.T) {
	cases := []struct {
		raw       string
		wantValue string
		wantType  string
	}{
		{"true:boolean", "true", "boolean"},
		{"42:integer", "42", "integer"},
		{"plain", "plain", "string"},
		{"http://host:8096", "http://host:8096", "string"},
		{`{"a":1}:json`, `{"a":1}`, "json"},
	}
	for _, tc := range cases {
		got := splitTypedValue(tc.raw)
		if got.Value != tc.wantValue || got.Type != tc.wantType {
			t.Fatalf("splitTypedValue(%q) = %+v, want {%s %s}", tc.raw, got, tc.wantValue, tc.wantType)
		}
	}
}
