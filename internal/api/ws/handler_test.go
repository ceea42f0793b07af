package ws

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arpitjain799/jupyter-server-terminals/internal/logging"
	"github.com/arpitjain799/jupyter-server-terminals/internal/terminal"
)

func newTestServer(t *testing.T, root string) (*httptest.Server, *terminal.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := terminal.NewManager(terminal.Config{
		Command: []string{"/bin/sh"},
		RootDir: root,
	}, logging.Nop())
	t.Cleanup(manager.Shutdown)

	handler := NewHandler(manager, logging.Nop(), nil)
	router := gin.New()
	router.GET("/terminals/websocket/:name", handler.HandleTerminal)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, manager
}

func dial(t *testing.T, srv *httptest.Server, name string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/terminals/websocket/" + name
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrames drains messages until the predicate matches or the timeout
// elapses, returning the concatenated stdout text seen so far.
func readFrames(t *testing.T, conn *websocket.Conn, timeout time.Duration, done func(stdout string) bool) string {
	t.Helper()
	var sb strings.Builder
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			break
		}
		var frame []any
		if json.Unmarshal(data, &frame) != nil || len(frame) < 2 {
			continue
		}
		if frame[0] == "stdout" {
			if text, ok := frame[1].(string); ok {
				sb.WriteString(text)
			}
		}
		if done(sb.String()) {
			break
		}
	}
	return sb.String()
}

func TestUnknownTerminalAnswers404(t *testing.T) {
	srv, _ := newTestServer(t, t.TempDir())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/terminals/websocket/42"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSetupFrameGreetsAttach(t *testing.T) {
	srv, manager := newTestServer(t, t.TempDir())

	info, err := manager.Create(terminal.Options{})
	require.NoError(t, err)

	conn := dial(t, srv, info.Name)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame []any
	require.NoError(t, json.Unmarshal(data, &frame))
	require.NotEmpty(t, frame)
	assert.Equal(t, "setup", frame[0])
}

func TestPwdReflectsRequestedCwd(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "terminal_path")
	require.NoError(t, os.Mkdir(sub, 0o755))

	srv, manager := newTestServer(t, root)

	info, err := manager.Create(terminal.Options{Cwd: "terminal_path"})
	require.NoError(t, err)

	conn := dial(t, srv, info.Name)
	require.NoError(t, conn.WriteJSON([]any{"stdin", "pwd\r\n"}))

	stdout := readFrames(t, conn, 10*time.Second, func(s string) bool {
		return strings.Contains(s, "terminal_path")
	})
	assert.Contains(t, stdout, "terminal_path")
}

func TestBadCwdFallsBack(t *testing.T) {
	srv, manager := newTestServer(t, t.TempDir())

	missing := "/tmp/path/to/nowhere"
	info, err := manager.Create(terminal.Options{Cwd: missing})
	require.NoError(t, err)

	conn := dial(t, srv, info.Name)
	require.NoError(t, conn.WriteJSON([]any{"stdin", "pwd\r\n"}))

	// Wait for at least one prompt's worth of output, then make sure the
	// requested path never shows up.
	stdout := readFrames(t, conn, 5*time.Second, func(s string) bool {
		return strings.Contains(s, "\n")
	})
	assert.NotContains(t, stdout, missing)
}

func TestStdinRoundtrip(t *testing.T) {
	srv, manager := newTestServer(t, t.TempDir())

	info, err := manager.Create(terminal.Options{})
	require.NoError(t, err)

	conn := dial(t, srv, info.Name)
	require.NoError(t, conn.WriteJSON([]any{"stdin", "echo ws-round-trip\r\n"}))

	stdout := readFrames(t, conn, 10*time.Second, func(s string) bool {
		return strings.Contains(s, "ws-round-trip")
	})
	assert.Contains(t, stdout, "ws-round-trip")
}

func TestTwoClientsShareOneSession(t *testing.T) {
	srv, manager := newTestServer(t, t.TempDir())

	info, err := manager.Create(terminal.Options{})
	require.NoError(t, err)

	first := dial(t, srv, info.Name)
	second := dial(t, srv, info.Name)

	require.NoError(t, first.WriteJSON([]any{"stdin", "echo shared-fanout\r\n"}))

	for _, conn := range []*websocket.Conn{first, second} {
		stdout := readFrames(t, conn, 10*time.Second, func(s string) bool {
			return strings.Contains(s, "shared-fanout")
		})
		assert.Contains(t, stdout, "shared-fanout")
	}
}

func TestMalformedFramesAreIgnored(t *testing.T) {
	srv, manager := newTestServer(t, t.TempDir())

	info, err := manager.Create(terminal.Options{})
	require.NoError(t, err)

	conn := dial(t, srv, info.Name)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`["mystery", 1]`)))

	// The connection and session both survive.
	require.NoError(t, conn.WriteJSON([]any{"stdin", "echo still-alive\r\n"}))
	stdout := readFrames(t, conn, 10*time.Second, func(s string) bool {
		return strings.Contains(s, "still-alive")
	})
	assert.Contains(t, stdout, "still-alive")

	_, err = manager.Get(info.Name)
	assert.NoError(t, err)
}

func TestResizeFrame(t *testing.T) {
	srv, manager := newTestServer(t, t.TempDir())

	info, err := manager.Create(terminal.Options{})
	require.NoError(t, err)

	conn := dial(t, srv, info.Name)
	require.NoError(t, conn.WriteJSON([]any{"set_size", 40, 120}))

	// stty reports the size the set_size frame installed.
	require.NoError(t, conn.WriteJSON([]any{"stdin", "stty size\r\n"}))
	stdout := readFrames(t, conn, 10*time.Second, func(s string) bool {
		return strings.Contains(s, "40 120")
	})
	assert.Contains(t, stdout, "40 120")
}

func TestDisconnectFrameOnProcessExit(t *testing.T) {
	srv, manager := newTestServer(t, t.TempDir())

	info, err := manager.Create(terminal.Options{})
	require.NoError(t, err)

	conn := dial(t, srv, info.Name)
	require.NoError(t, conn.WriteJSON([]any{"stdin", "exit\r\n"}))

	sawDisconnect := false
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			break
		}
		var frame []any
		if json.Unmarshal(data, &frame) == nil && len(frame) > 0 && frame[0] == "disconnect" {
			sawDisconnect = true
			break
		}
	}
	assert.True(t, sawDisconnect)
}
