// Package terminal manages server-side interactive terminal sessions.
//
// Each session wraps one shell process running under a PTY. Sessions are
// named, live in a registry, and survive client disconnects: any number of
// clients may attach to the same session and share its I/O. Recent output
// is buffered so a client attaching late still sees context.
//
// Architecture:
//   - Handle: one spawned shell + its PTY file (spawn, resize, terminate)
//   - Session: name + Handle + attached clients + activity metadata
//   - Manager: name→Session registry (create, lookup, list, delete)
//   - Culler: periodic reaper for sessions idle past a configured timeout
//
// Protocol frames relayed to/from attached clients are JSON arrays tagged
// by their first element: ["stdin", text], ["set_size", rows, cols] inbound;
// ["setup", {}], ["stdout", text], ["disconnect", 1] outbound. Unrecognized
// tags are ignored rather than failing the connection.
package terminal
