// Package http provides the REST handlers for terminal lifecycle control:
// create, list, inspect and delete under /api/terminals.
package http
