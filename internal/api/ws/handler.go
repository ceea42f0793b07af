package ws

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/arpitjain799/jupyter-server-terminals/internal/logging"
	"github.com/arpitjain799/jupyter-server-terminals/internal/monitoring"
	"github.com/arpitjain799/jupyter-server-terminals/internal/terminal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the fronting gateway.
		return true
	},
}

// Handler bridges websocket connections to terminal sessions.
type Handler struct {
	manager *terminal.Manager
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a new websocket handler.
func NewHandler(manager *terminal.Manager, logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = logging.NewDefault()
	}
	return &Handler{manager: manager, logger: logger, metrics: metrics}
}

// HandleTerminal handles GET /terminals/websocket/:name. An unknown name
// answers 404 before the upgrade; clients retry with backoff while a
// terminal is still being created.
func (h *Handler) HandleTerminal(c *gin.Context) {
	name := c.Param("name")
	sess, err := h.manager.Get(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("terminal", name), zap.Error(err))
		return
	}

	client := &wsClient{id: uuid.NewString(), conn: conn, metrics: h.metrics}
	if err := sess.Attach(client); err != nil {
		// Lost the race with a deletion; the session is half torn down
		// and must not gain clients.
		if !errors.Is(err, terminal.ErrNotFound) {
			h.logger.Warn("attach failed",
				zap.String("terminal", name), zap.Error(err))
		}
		conn.Close()
		return
	}

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}
	h.logger.Debug("client attached",
		zap.String("terminal", name), zap.String("conn", client.id))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if h.metrics != nil {
			h.metrics.WSMessages.WithLabelValues("in").Inc()
		}
		sess.Dispatch(data)
	}

	sess.Detach(client)
	conn.Close()
	h.logger.Debug("client detached",
		zap.String("terminal", name), zap.String("conn", client.id))
}

// wsClient adapts one websocket connection to terminal.Client. The write
// mutex serializes session fan-out with attach-time replay; gorilla
// connections allow a single concurrent writer.
type wsClient struct {
	id      string
	conn    *websocket.Conn
	metrics *monitoring.Metrics

	mu sync.Mutex
}

func (c *wsClient) Send(f terminal.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(f); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.WSMessages.WithLabelValues("out").Inc()
	}
	return nil
}

func (c *wsClient) Close() error {
	return c.conn.Close()
}
