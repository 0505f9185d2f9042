package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fieldpump/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 16 * 1024
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // game clients connect from anywhere
	},
}

// Connection pairs one WebSocket with its registry session. The read pump
// feeds decoded messages into the registry; the write pump drains the send
// queue. Send never blocks: a full queue drops the frame.
type Connection struct {
	conn    *websocket.Conn
	send    chan []byte
	reg     *Registry
	connID  string
	metrics *Metrics
	log     *zap.SugaredLogger
}

func NewConnection(conn *websocket.Conn, reg *Registry, metrics *Metrics, log *zap.SugaredLogger) *Connection {
	return &Connection{
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		reg:     reg,
		metrics: metrics,
		log:     log,
	}
}

// Send implements Sender.
func (c *Connection) Send(data []byte) {
	select {
	case c.send <- data:
	default:
		c.metrics.IncSendDrops()
		c.log.Debugw("send queue full, frame dropped", "conn", c.connID)
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.reg.OnDisconnect(c.connID)
		c.metrics.IncConnectionsClosed()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debugw("read error", "conn", c.connID, "err", err)
			}
			return
		}
		c.metrics.IncMessagesIn()

		msg, err := protocol.Decode(raw)
		if err != nil {
			// Malformed frames are dropped; the connection stays up.
			c.metrics.IncDecodeFailures()
			c.log.Debugw("dropping undecodable frame", "conn", c.connID, "err", err)
			continue
		}

		switch m := msg.(type) {
		case *protocol.InitMessage:
			c.reg.OnInit(c.connID, m.Player)
		case *protocol.PositionMessage:
			c.reg.OnPosition(c.connID, m.Location)
		case *protocol.ChatMessage:
			c.reg.OnChat(c.connID, m.Content, m.Timestamp)
		default:
			c.log.Debugw("unexpected inbound message type", "conn", c.connID, "type", msg.MessageType())
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleWS upgrades an HTTP request and runs the connection's pumps.
func HandleWS(reg *Registry, metrics *Metrics, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnw("websocket upgrade failed", "err", err)
			return
		}

		c := NewConnection(conn, reg, metrics, log)
		c.connID = reg.Register(c)
		metrics.IncConnectionsOpened()

		go c.writePump()
		go c.readPump()
	}
}
