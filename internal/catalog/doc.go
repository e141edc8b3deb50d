// Package catalog talks to the upstream media server over its HTTP API:
// library and item enumeration, item metadata, primary image fetch and
// upload, and tag membership. All calls are rate limited per host, carry
// deadlines, and classify failures into the stable error kinds.
package catalog
