// Package settings persists runtime-mutable configuration: typed key-value
// settings per category, external API keys, per-badge-type style values, and
// review source priorities. The TOML file bootstraps defaults; rows written
// here override it. Reads are concurrent, writes serialize through one mutex.
package settings
