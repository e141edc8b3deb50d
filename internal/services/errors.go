package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
)

var (
	ErrConfigMissing = errors.New("config missing")
	ErrConfigInvalid = errors.New("config invalid")

	ErrCatalogUnreachable     = errors.New("catalog unreachable")
	ErrCatalogUnauthorized    = errors.New("catalog unauthorized")
	ErrCatalogNotFound        = errors.New("catalog item not found")
	ErrCatalogRateLimited     = errors.New("catalog rate limited")
	ErrCatalogInvalidResponse = errors.New("catalog invalid response")

	ErrImageFetch    = errors.New("image fetch failed")
	ErrImageInvalid  = errors.New("image invalid")
	ErrImageTooLarge = errors.New("image too large")

	ErrSourceUnreachable     = errors.New("source unreachable")
	ErrSourceRateLimited     = errors.New("source rate limited")
	ErrSourceNotFound        = errors.New("source result not found")
	ErrSourceInvalidResponse = errors.New("source invalid response")

	ErrRenderFontMissing  = errors.New("render font missing")
	ErrRenderAssetMissing = errors.New("render asset missing")
	ErrRenderFailed       = errors.New("render failed")

	ErrStorageIO       = errors.New("storage io failure")
	ErrStorageConflict = errors.New("storage conflict")

	ErrBusy          = errors.New("item busy")
	ErrTimeout       = errors.New("timeout")
	ErrCancelled     = errors.New("cancelled")
	ErrCannotRevert  = errors.New("cannot revert")
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Wrap builds an error message that includes pipeline context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrSourceUnreachable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

var kindTable = []struct {
	marker error
	kind   string
}{
	{ErrConfigMissing, "config_missing"},
	{ErrConfigInvalid, "config_invalid"},
	{ErrCatalogUnreachable, "catalog_unreachable"},
	{ErrCatalogUnauthorized, "catalog_unauthorized"},
	{ErrCatalogNotFound, "catalog_not_found"},
	{ErrCatalogRateLimited, "catalog_rate_limited"},
	{ErrCatalogInvalidResponse, "catalog_invalid_response"},
	{ErrImageFetch, "image_fetch_failed"},
	{ErrImageInvalid, "image_invalid"},
	{ErrImageTooLarge, "image_too_large"},
	{ErrSourceUnreachable, "source_unreachable"},
	{ErrSourceRateLimited, "source_rate_limited"},
	{ErrSourceNotFound, "source_not_found"},
	{ErrSourceInvalidResponse, "source_invalid_response"},
	{ErrRenderFontMissing, "render_font_missing"},
	{ErrRenderAssetMissing, "render_asset_missing"},
	{ErrRenderFailed, "render_failed"},
	{ErrStorageIO, "storage_io"},
	{ErrStorageConflict, "storage_conflict"},
	{ErrBusy, "busy"},
	{ErrTimeout, "timeout"},
	{ErrCancelled, "cancelled"},
	{ErrCannotRevert, "cannot_revert"},
	{ErrUnknownSymbol, "unknown_symbol"},
}

// Kind returns the stable identifier recorded on job item results and surfaced
// through the API. Unclassified errors report as "unexpected".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.marker) {
			return entry.kind
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "unexpected"
}

// Retryable reports whether the failure is transient: network trouble, 5xx
// class upstream errors, timeouts, and rate limiting. Validation, auth, and
// not-found style failures are permanent.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrCatalogUnreachable),
		errors.Is(err, ErrCatalogRateLimited),
		errors.Is(err, ErrSourceUnreachable),
		errors.Is(err, ErrSourceRateLimited),
		errors.Is(err, ErrImageFetch),
		errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

// ItemStatus maps a pipeline error to the job item status the engine should
// persist after the item finishes.
func ItemStatus(err error) jobs.ItemStatus {
	switch {
	case err == nil:
		return jobs.ItemStatusOK
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return jobs.ItemStatusSkipped
	default:
		return jobs.ItemStatusFailed
	}
}

type retryAfterError struct {
	err   error
	delay time.Duration
}

func (e *retryAfterError) Error() string { return e.err.Error() }

func (e *retryAfterError) Unwrap() error { return e.err }

// WithRetryAfter attaches a server-advised retry delay to err, typically taken
// from a 429 Retry-After header.
func WithRetryAfter(err error, delay time.Duration) error {
	if err == nil || delay <= 0 {
		return err
	}
	return &retryAfterError{err: err, delay: delay}
}

// RetryAfter returns the server-advised wait carried by err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var ra *retryAfterError
	if errors.As(err, &ra) {
		return ra.delay, true
	}
	return 0, false
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
