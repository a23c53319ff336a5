package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kode4food/courier/internal/execlog"
	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/log"
)

type (
	// Client represents a WebSocket client connection for log streaming
	Client struct {
		conn   *websocket.Conn
		sub    *execlog.Subscription
		filter api.LogFilter
		done   chan struct{}
		once   sync.Once
	}

	// SubscribedResult acknowledges a subscribe request with the filter now
	// in effect
	SubscribedResult struct {
		Data api.LogFilter `json:"data"`
		Type string        `json:"type"`
	}
)

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 512
	wsBufferSize       = 1024
	incomingBufferSize = 16

	msgSubscribe  = "subscribe"
	msgSubscribed = "subscribed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades an HTTP connection to WebSocket and streams
// execution log entries. Every entry is sent until the client narrows the
// stream with a subscribe message
func HandleWebSocket(
	logs *execlog.Logger, w http.ResponseWriter, r *http.Request,
) *Client {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return nil
	}

	return &Client{
		conn: conn,
		sub:  logs.Subscribe(),
		done: make(chan struct{}),
	}
}

func (s *Server) handleWebSocket(c *gin.Context) {
	client := HandleWebSocket(s.engine.Logs(), c.Writer, c.Request)
	if client == nil {
		return
	}
	s.registerWebSocket(client)
	go func() {
		defer s.unregisterWebSocket(client)
		client.run()
	}()
}

// Close ends the connection and releases its log subscription
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *Client) run() {
	defer func() {
		c.sub.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	incoming := make(chan []byte, incomingBufferSize)
	go c.readMessages(incoming)

	for {
		select {
		case <-c.done:
			c.sendClose()
			return

		case message, ok := <-incoming:
			if !ok {
				return
			}
			if !c.handleSubscribe(message) {
				return
			}

		case entry, ok := <-c.sub.Receive():
			if !ok {
				c.sendClose()
				return
			}
			if !c.sendEntryIfMatched(entry) {
				return
			}

		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *Client) readMessages(incoming chan []byte) {
	defer close(incoming)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case incoming <- message:
		case <-c.done:
			return
		}
	}
}

func (c *Client) handleSubscribe(message []byte) bool {
	var sub api.SubscribeRequest
	if err := json.Unmarshal(message, &sub); err != nil {
		slog.Error("Failed to parse WebSocket message",
			log.Error(err))
		return true
	}

	if sub.Type != msgSubscribe {
		return true
	}

	c.filter = sub.Data
	return c.write(SubscribedResult{
		Type: msgSubscribed,
		Data: c.filter,
	})
}

func (c *Client) sendEntryIfMatched(entry *api.LogEntry) bool {
	if !c.filter.Matches(entry) {
		return true
	}
	return c.write(entry)
}

func (c *Client) write(msg any) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		slog.Error("WebSocket write failed",
			log.Error(err))
		return false
	}
	return true
}

func (c *Client) sendClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *Client) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}
