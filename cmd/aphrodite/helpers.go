package main

import (
	"fmt"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/api"
)

// parseKeyValues turns repeated key=value flags into a map.
func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, usageErrorf("invalid option %q: expected key=value", pair)
		}
		values[key] = value
	}
	return values, nil
}

func formatProgress(p api.Progress) string {
	summary := fmt.Sprintf("%d/%d", p.Done, p.Total)
	if p.Failed > 0 {
		summary += fmt.Sprintf(" (%d failed)", p.Failed)
	}
	if p.Skipped > 0 {
		summary += fmt.Sprintf(" (%d skipped)", p.Skipped)
	}
	return summary
}

func formatBadgeTypes(badges []string) string {
	if len(badges) == 0 {
		return "all"
	}
	return strings.Join(badges, ",")
}

func truncate(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
