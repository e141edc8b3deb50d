// Package jobs persists badge and revert jobs in SQLite and exposes helpers
// for driving their lifecycle.
//
// The Store manages database connections, schema initialization, fair-FIFO
// work unit claiming, compare-and-set progress counters, cancellation flags,
// job history, and stored schedules. Jobs expand into one work unit per
// catalog item; units reach exactly one terminal state (ok, skipped, failed)
// and report back into the parent job's progress.
//
// Schema changes bump the version in schema.go; users delete the database to
// adopt the new schema.
//
// Treat this package as the single source of truth for job semantics; when you
// add new statuses or columns, update schema.sql and bump schemaVersion.
package jobs
