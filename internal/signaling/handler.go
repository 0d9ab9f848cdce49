package signaling

import (
	"net/http"
	"net/url"
	"strings"

	"live-support/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades GET /ws/:client_id and runs the connection until
// it closes.
type WebSocketHandler struct {
	Relay *Relay

	// AllowedOrigins restricts browser origins. Empty allows same-host only;
	// "*" allows any.
	AllowedOrigins []string

	upgrader *websocket.Upgrader
}

func NewWebSocketHandler(relay *Relay, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{Relay: relay, AllowedOrigins: allowedOrigins}
	h.upgrader = &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	if len(h.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	return false
}

func (h *WebSocketHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	clientID := strings.TrimSpace(c.Param("client_id"))
	if clientID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "client_id is required"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the response.
		log.Warn("websocket upgrade failed", "client_id", clientID, "err", err)
		return
	}

	conn := NewConn(clientID, ws, h.Relay.log)
	if err := h.Relay.Registry().Register(conn); err != nil {
		log.Warn("duplicate connection rejected", "client_id", clientID)
		conn.Reject(websocket.ClosePolicyViolation, "client id already connected")
		return
	}

	log.Info("client connected", "client_id", clientID, "role", string(conn.Role()))
	conn.Serve(h.Relay)
}
