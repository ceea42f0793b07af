package terminal

import "errors"

// Error kinds surfaced to the API layer. Handlers translate these with
// errors.Is into HTTP status codes.
var (
	// ErrNotFound reports an unknown session name, including the race
	// where an attach targets a name deleted moments earlier.
	ErrNotFound = errors.New("terminal: session not found")

	// ErrInvalidRequest reports a malformed creation payload.
	ErrInvalidRequest = errors.New("terminal: invalid request")

	// ErrSpawn reports that the shell process could not be started.
	// No session is registered when creation fails this way.
	ErrSpawn = errors.New("terminal: failed to spawn process")
)
