package terminal

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// Winsize describes terminal window dimensions.
type Winsize struct {
	Rows uint16
	Cols uint16
}

// Handle owns one spawned shell process and its PTY master file.
// It is the only component that touches the process directly; the session
// above it deals purely in reads, writes and termination.
type Handle struct {
	cmd  *exec.Cmd
	ptmx *os.File
	done chan struct{} // closed once the process has been reaped
}

// Spawn starts argv under a fresh PTY with the given environment, working
// directory and initial window size. An empty cwd leaves the process in
// the server's own working directory.
func Spawn(argv []string, env []string, cwd string, size Winsize) (*Handle, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrSpawn)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cwd
	cmd.Env = env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: size.Rows, Cols: size.Cols})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	h := &Handle{cmd: cmd, ptmx: ptmx, done: make(chan struct{})}
	go func() {
		cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

// Read reads raw process output from the PTY master. Returns an error
// once the process has exited and the PTY is drained.
func (h *Handle) Read(p []byte) (int, error) { return h.ptmx.Read(p) }

// Write feeds input bytes to the process's terminal.
func (h *Handle) Write(p []byte) (int, error) { return h.ptmx.Write(p) }

// Resize changes the PTY window size and signals the process.
func (h *Handle) Resize(rows, cols uint16) error {
	return pty.Setsize(h.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Terminate stops the process: SIGTERM first, escalating to SIGKILL once
// the grace period elapses, so an uncooperative shell cannot stall
// deletion. Safe to call multiple times and after the process has exited.
func (h *Handle) Terminate(grace time.Duration) {
	select {
	case <-h.done:
	default:
		h.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-h.done:
		case <-time.After(grace):
			h.cmd.Process.Kill()
			<-h.done
		}
	}
	h.ptmx.Close()
}
