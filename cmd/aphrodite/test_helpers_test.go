package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeTestConfig writes a minimal valid config file and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`[paths]
state_dir = %q
posters_dir = %q
assets_dir = %q
fonts_dir = %q
log_dir = %q

[catalog]
url = "http://127.0.0.1:8096"
api_key = "test-key"
`,
		filepath.Join(dir, "state"),
		filepath.Join(dir, "posters"),
		filepath.Join(dir, "assets"),
		filepath.Join(dir, "fonts"),
		filepath.Join(dir, "logs"),
	)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// runCommand executes the CLI with the given arguments and captures stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
