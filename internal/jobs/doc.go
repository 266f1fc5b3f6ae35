// Package jobs provides the background job adapters selected by the job
// queue backend configuration.
//
// This package implements:
//   - A registry mapping job class names to handlers
//   - An inline adapter that runs jobs inside Enqueue
//   - A Redis list adapter with a pool of workers and a dead letter list
//   - A disabled adapter that refuses every job
//
// Payloads are JSON objects with jid, class, queue, args and enqueued_at.
package jobs
