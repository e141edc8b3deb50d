// Package api holds the transport DTOs and service structs that bridge the
// engine and stores to the daemon's HTTP handlers.
//
// Services validate requests, expand library targets, and translate between
// persistence models and their JSON representations so handlers stay thin.
package api
