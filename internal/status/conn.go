package status

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/markb/reminderd/internal/log"
)

const (
	// Time allowed to write a message
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message
	pongWait = 30 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = 25 * time.Second

	// Maximum inbound message size; clients only send control frames
	maxMessageSize = 1024
)

// conn is one WebSocket subscriber.
type conn struct {
	id        string
	ws        *websocket.Conn
	hub       *Hub
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// send queues a message, dropping it if the subscriber is too slow.
func (c *conn) send(data []byte) {
	select {
	case c.out <- data:
	case <-c.done:
	default:
		log.Warn("status: send buffer full, dropping event", "conn_id", c.id)
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
		c.hub.unregister(c)
	})
}

// readPump discards inbound frames and keeps the pong deadline fresh.
func (c *conn) readPump() {
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Debug("status: read error", "conn_id", c.id, "error", err.Error())
			}
			return
		}
	}
}

// writePump writes queued events and periodic pings.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case data := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
