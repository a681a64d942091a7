package status

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/markb/reminderd/internal/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (CORS handled elsewhere)
	},
}

// HandleWebSocket upgrades the request and streams delivery events. The
// current latest-state snapshot is queued before live events so the
// client starts from a consistent view.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("status: upgrade failed", "error", err.Error())
		return
	}

	c := h.register(ws)
	log.Debug("status: new subscriber", "conn_id", c.id)

	for _, ev := range h.Snapshot() {
		if data, err := ev.Encode(); err == nil {
			c.send(data)
		}
	}

	go c.writePump()
	go c.readPump()
}
