// Package ws exposes terminal sessions over websockets. Frames are JSON
// arrays tagged by their first element; see the terminal package for the
// protocol.
package ws
