// Package daemon wires the long-running aphrodited process: it owns the
// stores, the catalog client, the job engine, the cron scheduler, and the
// HTTP control surface, and enforces single-instance execution through a
// file lock.
package daemon
