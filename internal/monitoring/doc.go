// Package monitoring provides Prometheus metrics for the terminal server:
// HTTP request counts and latencies, live/created/culled terminal counts,
// and websocket connection/message counters.
package monitoring
