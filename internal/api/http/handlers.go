package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arpitjain799/jupyter-server-terminals/internal/logging"
	"github.com/arpitjain799/jupyter-server-terminals/internal/terminal"
)

// Handlers contains the REST handlers for terminal lifecycle control.
type Handlers struct {
	manager *terminal.Manager
	logger  *logging.Logger
}

// NewHandlers creates a new handler set.
func NewHandlers(manager *terminal.Manager, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewDefault()
	}
	return &Handlers{manager: manager, logger: logger}
}

// Root handles the base health check.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "terminal-server",
	})
}

// Health reports server health and live terminal count.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"terminals": h.manager.Count(),
	})
}

type createRequest struct {
	Cwd string `json:"cwd"`
}

// CreateTerminal handles POST /api/terminals. The body is optional; when
// present it may carry a cwd, relative paths resolving against the
// configured root. A missing cwd directory is not an error: the session
// is created anyway with the fallback directory.
func (h *Handlers) CreateTerminal(c *gin.Context) {
	var req createRequest
	// Bind whatever body arrived; only io.EOF means there was none.
	// ContentLength is -1 on chunked requests, so it cannot gate this.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	info, err := h.manager.Create(terminal.Options{Cwd: req.Cwd})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// ListTerminals handles GET /api/terminals: all sessions, registry order.
func (h *Handlers) ListTerminals(c *gin.Context) {
	infos := h.manager.List()
	if infos == nil {
		infos = []terminal.Info{}
	}
	c.JSON(http.StatusOK, infos)
}

// GetTerminal handles GET /api/terminals/:name.
func (h *Handlers) GetTerminal(c *gin.Context) {
	sess, err := h.manager.Get(c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Info())
}

// DeleteTerminal handles DELETE /api/terminals/:name: terminates the
// process, then removes the session. Repeats yield 404.
func (h *Handlers) DeleteTerminal(c *gin.Context) {
	if err := h.manager.Delete(c.Param("name")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// writeError maps terminal error kinds onto HTTP status codes.
func (h *Handlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, terminal.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, terminal.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("terminal request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
