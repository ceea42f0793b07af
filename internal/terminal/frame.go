package terminal

// Frame is one multiplexer protocol message: a JSON array whose first
// element is a string tag identifying the payload.
type Frame []any

// StdoutFrame wraps decoded process output for delivery to clients.
func StdoutFrame(text string) Frame { return Frame{"stdout", text} }

// SetupFrame greets a freshly attached client before history replay.
func SetupFrame() Frame { return Frame{"setup", map[string]any{}} }

// DisconnectFrame tells clients the underlying process has exited.
func DisconnectFrame() Frame { return Frame{"disconnect", 1} }

// Client is one attached connection. Implementations must make Send safe
// for concurrent use; the session writes from its own goroutines.
//
// The session never owns a client: Close is only invoked when the process
// exits and the connection has nothing left to stream.
type Client interface {
	Send(f Frame) error
	Close() error
}
