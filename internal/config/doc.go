// Package config loads and validates Aphrodite's TOML configuration.
//
// Load resolves the config path, applies defaults for everything the file
// leaves unset, normalizes values, and validates the result. The only
// required fields are the catalog URL and API key.
package config
