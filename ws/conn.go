package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 16 << 20 // gateways inline images as base64
	sendBuffer = 256
)

// Conn is one gateway connection. Frames are written by WritePump only;
// everyone else goes through SendJSON.
type Conn struct {
	ID     string
	Bot    string
	SelfID int64

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{} // closed on unregister
	once sync.Once
	log  *slog.Logger
}

func NewConn(hub *Hub, conn *websocket.Conn, bot string, selfID int64) *Conn {
	id := uuid.NewString()
	return &Conn{
		ID:     id,
		Bot:    bot,
		SelfID: selfID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		log:    slog.With("bot", bot, "conn", id, "self_id", selfID),
	}
}

// SendJSON queues v for writing. It never blocks: a full buffer or a
// closed connection is reported to the caller.
func (c *Conn) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		c.log.Warn("send buffer full, dropping frame")
		return ErrSendBufferFull
	}
}

// Done is closed once the connection is unregistered.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) shutdown() {
	c.once.Do(func() { close(c.done) })
}

// ReadPump hands every inbound frame to handle, in arrival order, until
// the socket fails. It unregisters the connection on the way out.
func (c *Conn) ReadPump(handle func([]byte)) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info("gateway disconnected", "err", err)
			}
			return
		}
		// Any frame proves the peer is alive.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		handle(message)
	}
}

func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Warn("write failed", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
