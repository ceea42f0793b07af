// Command server runs the terminal session server: REST lifecycle control
// under /api/terminals and bidirectional terminal I/O under
// /terminals/websocket/{name}.
package main
