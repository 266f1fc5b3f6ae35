// Package logging builds the process logger from configuration and tags
// request log lines.
//
// This package implements:
//   - Structured logging (zap-based) with level and encoder from config
//   - Per-request tags (subdomain, request uuid) resolved by middleware
//   - Request ID propagation through context
//
// The logger is constructed once at startup and passed to every subsystem.
package logging
