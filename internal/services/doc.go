// Package services defines shared utilities consumed by the badging pipeline
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, catalog item IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the stable error kinds recorded on job item results.
//   - Retry classification (Retryable, RetryAfter) consumed by the job engine.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform across components.
package services
