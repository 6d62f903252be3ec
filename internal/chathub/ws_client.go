package chathub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendQueueSize  = 256
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	participantID string
	conn          *websocket.Conn
	send          chan ServerFrame

	mu     sync.Mutex
	closed bool
}

// NewWebSocketClient wraps an upgraded connection.
func NewWebSocketClient(participantID string, conn *websocket.Conn) *WebSocketClient {
	return &WebSocketClient{
		participantID: participantID,
		conn:          conn,
		send:          make(chan ServerFrame, sendQueueSize),
	}
}

func (c *WebSocketClient) ParticipantID() string { return c.participantID }

// SendFrame queues a frame without blocking. A full queue means the
// client stopped draining; drop the connection rather than stall the
// sender's goroutine.
func (c *WebSocketClient) SendFrame(frame ServerFrame) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- frame:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		log.Printf("client %s: send queue full, disconnecting", c.participantID)
		c.Close()
	}
}

// Close stops the write pump; the read pump exits when the connection
// closes underneath it.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Run starts both pumps and blocks until the read side exits. onFrame
// receives decoded inbound frames sequentially, preserving per-client
// ordering.
func (c *WebSocketClient) Run(onFrame func(ClientFrame)) {
	go c.writePump()
	c.readPump(onFrame)
}

func (c *WebSocketClient) readPump(onFrame func(ClientFrame)) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("client %s: read error: %v", c.participantID, err)
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("client %s: dropping malformed frame: %v", c.participantID, err)
			continue
		}
		onFrame(frame)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(frame)
			if err != nil {
				log.Printf("client %s: encode frame: %v", c.participantID, err)
				continue
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// Flush whatever else is already queued into the same write.
			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					w.Close()
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if extra, err := json.Marshal(next); err == nil {
					w.Write([]byte("\n"))
					w.Write(extra)
				}
			}

			if err := w.Close(); err != nil {
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
