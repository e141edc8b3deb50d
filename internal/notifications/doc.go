// Package notifications delivers job lifecycle events via pluggable
// notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Per-event gates let operators pick which milestones notify
// without touching calling code.
//
// Extend this package if you need alternative transports; the engine depends
// only on the simple Service interface.
package notifications
