// Command aphrodite is the operator CLI. It talks to a running aphrodited
// instance over its HTTP API: submitting badge jobs, watching progress,
// managing schedules, and editing configuration categories.
package main
