// Package enrich augments catalog metadata with review scores and awards
// from external sources. Every source implements the same fetch capability
// behind a shared HTTP layer that rate limits, caches, and classifies
// failures, so a missing or broken source degrades a badge rather than an
// item.
package enrich
