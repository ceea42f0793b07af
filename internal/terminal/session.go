package terminal

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/arpitjain799/jupyter-server-terminals/internal/logging"
)

// Info is the public representation of a session, as serialized by the
// REST layer.
type Info struct {
	Name         string    `json:"name"`
	LastActivity time.Time `json:"last_activity"`
}

// Session is one named logical terminal: a PTY-backed shell process plus
// the set of clients currently attached to it. Sessions survive client
// disconnects; they die on explicit delete, culling, or process exit.
type Session struct {
	name   string
	cwd    string
	handle *Handle
	buffer *Buffer
	logger *logging.Logger

	mu           sync.Mutex
	clients      map[Client]struct{}
	lastActivity time.Time
	closed       bool

	// onExit runs once, after the process goes away on its own, so the
	// registry can drop its entry. Explicit deletes bypass it.
	onExit func(*Session)
}

// Name returns the registry name, stable for the session's lifetime.
func (s *Session) Name() string { return s.name }

// Cwd returns the working directory the process was actually spawned with.
func (s *Session) Cwd() string { return s.cwd }

// LastActivity reports the time of the most recent I/O through the session.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Info returns the session descriptor.
func (s *Session) Info() Info {
	return Info{Name: s.name, LastActivity: s.LastActivity()}
}

// Attached returns the number of currently attached clients.
func (s *Session) Attached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Attach registers a client and replays retained output so a late joiner
// is not missing context. The greeting, replay and membership update are
// atomic with respect to live fan-out: the client sees every chunk exactly
// once, in emission order. Returns ErrNotFound when racing a deletion.
//
// Attaching is deliberately not activity: an abandoned-but-attached
// session stays cullable.
func (s *Session) Attach(c Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotFound
	}
	if err := c.Send(SetupFrame()); err != nil {
		return err
	}
	for _, chunk := range s.buffer.Snapshot() {
		if err := c.Send(StdoutFrame(chunk)); err != nil {
			return err
		}
	}
	s.clients[c] = struct{}{}
	return nil
}

// Detach deregisters a client. The process and other clients are
// unaffected; a session with zero clients keeps running.
func (s *Session) Detach(c Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

// Write relays client input verbatim to the PTY and records activity.
func (s *Session) Write(text string) error {
	if _, err := io.WriteString(s.handle, text); err != nil {
		return err
	}
	s.touch()
	return nil
}

// Resize adjusts the PTY window size and records activity.
func (s *Session) Resize(rows, cols uint16) error {
	if err := s.handle.Resize(rows, cols); err != nil {
		return err
	}
	s.touch()
	return nil
}

// Dispatch applies one raw client frame. Malformed or unrecognized frames
// are dropped so a misbehaving client cannot tear down a healthy session.
func (s *Session) Dispatch(data []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) == 0 {
		return
	}
	var tag string
	if err := json.Unmarshal(frame[0], &tag); err != nil {
		return
	}

	switch tag {
	case "stdin":
		var text string
		if len(frame) < 2 || json.Unmarshal(frame[1], &text) != nil {
			return
		}
		if err := s.Write(text); err != nil {
			s.logger.Debug("stdin write failed",
				zap.String("terminal", s.name), zap.Error(err))
		}
	case "set_size":
		var rows, cols uint16
		if len(frame) < 3 ||
			json.Unmarshal(frame[1], &rows) != nil ||
			json.Unmarshal(frame[2], &cols) != nil {
			return
		}
		if err := s.Resize(rows, cols); err != nil {
			s.logger.Debug("resize failed",
				zap.String("terminal", s.name), zap.Error(err))
		}
	}
}

// readLoop drains the PTY until the process exits, fanning output out to
// every attached client. Runs as the session's single reader goroutine,
// which is what preserves emission order across clients.
func (s *Session) readLoop() {
	buf := make([]byte, 4096)
	var pending []byte // partial rune carried across read boundaries
	for {
		n, err := s.handle.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			keep := incompleteTailLen(pending)
			if emit := pending[:len(pending)-keep]; len(emit) > 0 {
				// Best-effort text decode: invalid byte sequences are
				// replaced, never fatal. A multi-byte rune split by the
				// read boundary stays in pending until it completes.
				s.broadcast(strings.ToValidUTF8(string(emit), "�"))
				pending = append(pending[:0], pending[len(pending)-keep:]...)
			}
		}
		if err != nil {
			break
		}
	}
	// A rune still unfinished at EOF is genuinely truncated.
	if len(pending) > 0 {
		s.broadcast(strings.ToValidUTF8(string(pending), "�"))
	}

	s.logger.Info("terminal process exited", zap.String("terminal", s.name))
	s.shutdown(0)
	if s.onExit != nil {
		s.onExit(s)
	}
}

// incompleteTailLen returns how many trailing bytes of p begin a
// multi-byte rune whose continuation bytes have not arrived yet. Invalid
// sequences are never held back; only a truncated valid prefix is.
func incompleteTailLen(p []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(p); i++ {
		b := p[len(p)-i]
		if !utf8.RuneStart(b) {
			continue
		}
		if b < utf8.RuneSelf || utf8.FullRune(p[len(p)-i:]) {
			return 0
		}
		return i
	}
	return 0
}

// broadcast buffers one output chunk and delivers it to all attached
// clients. A client whose Send fails is dropped from the set.
func (s *Session) broadcast(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer.Append(text)
	s.bumpLocked()
	for c := range s.clients {
		if err := c.Send(StdoutFrame(text)); err != nil {
			delete(s.clients, c)
		}
	}
}

// touch bumps lastActivity to now. Monotonically non-decreasing.
func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bumpLocked()
}

func (s *Session) bumpLocked() {
	if now := time.Now(); now.After(s.lastActivity) {
		s.lastActivity = now
	}
}

// shutdown notifies and closes every attached client, then terminates the
// process. Idempotent: returns false if another caller already ran it.
// Both the explicit-delete and process-exit paths converge here.
func (s *Session) shutdown(grace time.Duration) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	clients := s.clients
	s.clients = make(map[Client]struct{})
	s.mu.Unlock()

	for c := range clients {
		c.Send(DisconnectFrame())
		c.Close()
	}
	s.handle.Terminate(grace)
	return true
}
