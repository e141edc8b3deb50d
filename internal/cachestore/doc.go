// Package cachestore persists enrichment responses per source with a TTL so
// repeated lookups for the same item skip the network. Expired rows read as
// absent and are swept lazily.
package cachestore
