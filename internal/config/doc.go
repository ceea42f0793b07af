// Package config provides 12-factor configuration for the terminal server.
//
// Values resolve from built-in defaults, then an optional YAML config
// file, then environment variables, so deployments can override any
// subset without a file.
package config
