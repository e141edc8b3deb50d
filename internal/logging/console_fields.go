package logging

import (
	"log/slog"
	"strings"
)

type infoField struct {
	label string
	value string
}

const infoAttrLimit = 8

var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldDecisionType,
	"item_title",
	"media_type",
	"library",
	FieldProgressStage,
	FieldProgressPercent,
	FieldProgressMessage,
	"error_message",
	FieldErrorKind,
	FieldErrorHint,
	"status",
	"job_type",
	"badges",
	"badges_applied",
	"badge_count",
	"audio_codec",
	"resolution",
	"dynamic_range",
	"review_source",
	"review_score",
	"award",
	"poster_source",
	"poster_bytes",
	"image_format",
	"items_total",
	"items_ok",
	"items_failed",
	"items_skipped",
	"job_duration",
	"item_duration",
	"attempt",
	"backoff",
	"cache_hit",
	"tag",
	"reason",
}

// selectInfoFields returns formatted info-level fields and a count of hidden entries.
// limit=0 means no limit. includeDebug controls whether debug-only keys are allowed.
func selectInfoFields(attrs []kv, limit int, includeDebug bool) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	if limit < 0 {
		limit = 0
	}
	used := make([]bool, len(attrs))
	formatted := make([]string, len(attrs))
	formattedSet := make([]bool, len(attrs))
	ensureValue := func(idx int) string {
		if !formattedSet[idx] {
			formatted[idx] = formatValueForKey(attrs[idx].key, attrs[idx].value)
			formattedSet[idx] = true
		}
		return formatted[idx]
	}
	result := make([]infoField, 0, infoAttrLimit)
	hidden := 0

	for _, key := range infoHighlightKeys {
		if limit > 0 && len(result) >= limit {
			break
		}
		for idx, attr := range attrs {
			if used[idx] || attr.key != key {
				continue
			}
			used[idx] = true
			if skipInfoKey(attr.key) {
				break
			}
			if !includeDebug && isDebugOnlyKey(attr.key) {
				hidden++
				break
			}
			val := ensureValue(idx)
			if !includeDebug && shouldHideInfoValue(attr.key, val) {
				hidden++
				break
			}
			result = append(result, infoField{label: displayLabel(attr.key), value: val})
			break
		}
	}

	for idx, attr := range attrs {
		if used[idx] {
			continue
		}
		used[idx] = true
		if skipInfoKey(attr.key) {
			continue
		}
		if !includeDebug && isDebugOnlyKey(attr.key) {
			hidden++
			continue
		}
		val := ensureValue(idx)
		if !includeDebug && shouldHideInfoValue(attr.key, val) {
			hidden++
			continue
		}
		if limit <= 0 || len(result) < limit {
			result = append(result, infoField{label: displayLabel(attr.key), value: val})
		} else if limit > 0 {
			hidden++
		}
	}

	return result, hidden
}

// formatValueForKey applies smart formatting based on the key name.
func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()

	if isByteSizeKey(key) && (v.Kind() == slog.KindInt64 || v.Kind() == slog.KindUint64) {
		var bytes int64
		if v.Kind() == slog.KindInt64 {
			bytes = v.Int64()
		} else {
			bytes = int64(v.Uint64())
		}
		return formatBytes(bytes)
	}

	if isDurationKey(key) && v.Kind() == slog.KindDuration {
		return formatDurationHuman(v.Duration())
	}

	if isPercentKey(key) && v.Kind() == slog.KindFloat64 {
		return formatPercent(v.Float64())
	}

	if v.Kind() == slog.KindBool {
		if v.Bool() {
			return "yes"
		}
		return "no"
	}

	value := formatValue(v)
	if key == "error" || key == "error_message" {
		value = truncateErrorValue(value)
	}
	return value
}

func isByteSizeKey(key string) bool {
	return strings.HasSuffix(key, "_bytes") ||
		strings.HasSuffix(key, "_size") ||
		key == "size"
}

func isDurationKey(key string) bool {
	return strings.HasSuffix(key, "_duration") ||
		strings.HasSuffix(key, "_elapsed") ||
		strings.HasSuffix(key, "_latency") ||
		key == "elapsed" ||
		key == "duration" ||
		key == "backoff"
}

func isPercentKey(key string) bool {
	return strings.HasSuffix(key, "_percent") ||
		key == FieldProgressPercent
}

func truncateErrorValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	const maxLen = 200
	if len(value) > maxLen {
		value = value[:maxLen] + "..."
	}
	return value
}

func skipInfoKey(key string) bool {
	switch key {
	case "", FieldJobID, FieldItemID, FieldStage, FieldComponent:
		return true
	default:
		return false
	}
}

func isDebugOnlyKey(key string) bool {
	if key == "" {
		return true
	}
	switch key {
	case FieldCorrelationID,
		"user_agent",
		"page",
		"page_size",
		"query",
		"request_url",
		"content_hash",
		"rate_limit_rps",
		"cache_key":
		return true
	}
	if strings.Contains(key, "correlation") {
		return true
	}
	if strings.HasSuffix(key, "_id") && key != FieldItemID && key != FieldJobID {
		return true
	}
	if strings.Contains(key, "_path") || strings.Contains(key, "_dir") || strings.HasSuffix(key, "_url") {
		return true
	}
	if strings.Contains(key, "hash") || strings.Contains(key, "token") {
		return true
	}
	return false
}

func shouldHideInfoValue(key, value string) bool {
	switch key {
	case "error_message", "error", "reason":
		return false
	}
	return len(value) > 120
}

func displayLabel(key string) string {
	switch key {
	case FieldAlert:
		return "Alert"
	case FieldEventType:
		return "Event"
	case FieldDecisionType:
		return "Decision"
	case FieldErrorKind:
		return "Error Kind"
	case FieldErrorHint:
		return "Hint"
	case FieldItemID:
		return "Item"
	case FieldJobID:
		return "Job"
	case FieldStage:
		return "Stage"
	case FieldSource:
		return "Source"
	case FieldProgressStage:
		return "Progress Stage"
	case FieldProgressMessage:
		return "Progress"
	case FieldProgressPercent:
		return "Percent"
	case "item_title":
		return "Title"
	case "media_type":
		return "Type"
	case "job_type":
		return "Job Type"
	case "badges", "badges_applied":
		return "Badges"
	case "badge_count":
		return "Badge Count"
	case "audio_codec":
		return "Audio"
	case "resolution":
		return "Resolution"
	case "dynamic_range":
		return "Dynamic Range"
	case "review_source":
		return "Review Source"
	case "review_score":
		return "Score"
	case "award":
		return "Award"
	case "poster_source":
		return "Poster Source"
	case "poster_bytes":
		return "Poster Size"
	case "image_format":
		return "Format"
	case "items_total":
		return "Items"
	case "items_ok":
		return "Succeeded"
	case "items_failed":
		return "Failed"
	case "items_skipped":
		return "Skipped"
	case "job_duration":
		return "Duration"
	case "item_duration":
		return "Duration"
	case "attempt":
		return "Attempt"
	case "backoff":
		return "Backoff"
	case "cache_hit":
		return "Cache Hit"
	case "tag":
		return "Tag"
	case "reason":
		return "Reason"
	default:
		return titleizeKey(key)
	}
}

func titleizeKey(key string) string {
	if key == "" {
		return ""
	}
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-'
	})
	if len(parts) == 0 {
		return strings.ToUpper(key[:1]) + strings.ToLower(key[1:])
	}
	for i, part := range parts {
		parts[i] = capitalizeASCII(part)
	}
	return strings.Join(parts, " ")
}

func capitalizeASCII(value string) string {
	switch len(value) {
	case 0:
		return ""
	case 1:
		return strings.ToUpper(value)
	default:
		lower := strings.ToLower(value)
		return strings.ToUpper(lower[:1]) + lower[1:]
	}
}
