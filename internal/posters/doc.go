// Package posters manages the on-disk poster buckets. Every catalog item has
// up to three files: the untouched original (the canonical backup for
// reverts), a transient working copy, and the badged modified poster.
package posters
