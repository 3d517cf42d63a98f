package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"typerace-realtime/internal/events"
	"typerace-realtime/internal/rooms"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // under pongWait, clear of proxy timeouts
	sendBuffer = 256
)

// Conn is one player's websocket with its outbound queue.
type Conn struct {
	hub *Hub
	ws  *websocket.Conn
	id  rooms.Identity

	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(hub *Hub, ws *websocket.Conn, id rooms.Identity) *Conn {
	return &Conn{
		hub:    hub,
		ws:     ws,
		id:     id,
		sendCh: make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// enqueue queues raw bytes without blocking. A full buffer means the
// client cannot keep up; it is cut loose rather than allowed to stall
// whoever is broadcasting.
func (c *Conn) enqueue(data []byte) {
	select {
	case <-c.done:
	case c.sendCh <- data:
	default:
		c.hub.logger.Warn("send buffer full, dropping connection", "player_id", c.id.UserID)
		c.close()
	}
}

func (c *Conn) send(msg events.Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("failed to marshal frame", "error", err, "kind", msg.Kind)
		return
	}
	c.enqueue(data)
}

func (c *Conn) sendError(code events.ErrCode, msg string) {
	c.send(events.NewError(code, msg))
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
	}()

	c.ws.SetReadLimit(1 << 16)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Error("websocket read error", "error", err, "player_id", c.id.UserID)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		msg, err := events.Decode(data)
		if err != nil {
			// Malformed frames answer only the offending connection.
			c.sendError(events.CodeValidation, err.Error())
			continue
		}

		c.hub.dispatch(c, msg)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case data := <-c.sendCh:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

			// Drain whatever queued up while we were writing.
			for range len(c.sendCh) {
				if err := c.ws.WriteMessage(websocket.TextMessage, <-c.sendCh); err != nil {
					return
				}
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
