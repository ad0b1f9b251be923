package services

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4 * 1024

	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FeedClient is one websocket connection to the violation feed
type FeedClient struct {
	hub        *FeedHub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string

	filterMu sync.RWMutex
	reporter string // empty means every event
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *FeedHub) ServeWS(w http.ResponseWriter, r *http.Request, remoteAddr string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &FeedClient{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		remoteAddr: remoteAddr,
		reporter:   normalizeReporter(r.URL.Query().Get("reporter")),
	}
	if !h.Register(client) {
		conn.Close()
		return nil
	}
	go client.writePump()
	go client.readPump()
	return nil
}

func (c *FeedClient) wants(reporter string) bool {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	return c.reporter == "" || c.reporter == normalizeReporter(reporter)
}

// readPump handles control messages until the connection closes
func (c *FeedClient) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket error", zap.String("remote", c.remoteAddr), zap.Error(err))
			}
			return
		}

		var msg FeedMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.reply(map[string]string{"type": "error", "error": "invalid message"})
			continue
		}

		switch msg.Type {
		case "subscribe":
			c.filterMu.Lock()
			c.reporter = normalizeReporter(msg.Reporter)
			c.filterMu.Unlock()
			c.reply(map[string]string{"type": "subscribed", "reporter": msg.Reporter})
		case "unsubscribe":
			c.filterMu.Lock()
			c.reporter = ""
			c.filterMu.Unlock()
		case "ping":
			c.reply(map[string]string{"type": "pong"})
		default:
			c.reply(map[string]string{"type": "error", "error": "unknown message type " + msg.Type})
		}
	}
}

// writePump pumps events from the hub to the connection
func (c *FeedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *FeedClient) reply(v interface{}) {
	data, _ := json.Marshal(v)
	// send is closed only after removal from the map, under the write lock.
	c.hub.clientsMu.RLock()
	defer c.hub.clientsMu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
