// Package server assembles the HTTP router, middleware, terminal session
// registry and culling scheduler into a runnable server.
package server
