package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// streamPushInterval is how often status frames go out to connected
// dashboards.
const streamPushInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from arbitrary origins in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamRefresh upgrades to a websocket and pushes refresh-stream status
// frames until the client disconnects, so the browser need not poll the
// status endpoint.
func (handlers *Handlers) StreamRefresh(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		handlers.logger.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})

	// Drain client frames; a read error means the peer is gone.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPushInterval)
	defer ticker.Stop()

	// Initial frame immediately, then one per tick.
	if err := conn.WriteJSON(handlers.controller.Status()); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(handlers.controller.Status()); err != nil {
				return
			}
		}
	}
}
