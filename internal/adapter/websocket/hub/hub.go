// Package hub fans submission snapshots out to connected WebSocket clients.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"

	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
	"gitlab.com/autograder.net/internal/domain"
)

const (
	TopicTestResults = "test-results"
	TopicErrors      = "errors"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10
	sendBuffer     = 32
)

var ErrClientGone = errors.New("websocket client gone")

// Envelope is the frame written to clients
type Envelope struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

// MessageHandler is called for every frame a client sends
type MessageHandler func(ctx context.Context, c *Client, msg []byte)

type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte

	once   sync.Once
	closed chan struct{}
}

// Send queues a frame for this client only.
func (c *Client) Send(topic string, payload interface{}) error {
	frame, err := json.Marshal(Envelope{Topic: topic, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	return c.enqueue(frame)
}

func (c *Client) enqueue(frame []byte) error {
	select {
	case <-c.closed:
		return ErrClientGone
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		c.close()
		return fmt.Errorf("client %s is too slow: %w", c.ID, ErrClientGone)
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.closed) })
}

type Hub struct {
	clients  *xsync.MapOf[string, *Client]
	upgrader websocket.Upgrader
	logger   primary.Logger
}

var _ secondary.SnapshotBroadcaster = &Hub{}

func NewHub(logger primary.Logger) *Hub {
	return &Hub{
		clients: xsync.NewMapOf[string, *Client](),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve upgrades the request and blocks until the client disconnects
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, handler MessageHandler) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Upgrade for websocket failed", "error", err)
		return err
	}

	c := &Client{
		ID:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
	h.clients.Store(c.ID, c)
	h.logger.Debug("Websocket client connected", "clientId", c.ID, "clients", h.clients.Size())

	defer func() {
		h.clients.Delete(c.ID)
		c.close()
		conn.Close()
		h.logger.Debug("Websocket client disconnected", "clientId", c.ID)
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writePump(c)
	}()

	h.readPump(ctx, c, handler)
	c.close()
	wg.Wait()
	return nil
}

func (h *Hub) readPump(ctx context.Context, c *Client, handler MessageHandler) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Websocket read failed", "clientId", c.ID, "error", err)
			}
			return
		}
		handler(ctx, c, msg)
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			c.conn.Close()
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Warn("Websocket write failed", "clientId", c.ID, "error", err)
				c.close()
				c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				c.conn.Close()
				return
			}
		}
	}
}

// Broadcast sends the snapshot on the test-results topic to every connected client
func (h *Hub) Broadcast(ctx context.Context, snapshot *domain.SubmissionSnapshot) error {
	frame, err := json.Marshal(Envelope{Topic: TopicTestResults, Payload: snapshot})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dropped := 0
	h.clients.Range(func(id string, c *Client) bool {
		if err := c.enqueue(frame); err != nil {
			dropped++
		}
		return true
	})
	if dropped > 0 {
		h.logger.Warn("Snapshot not delivered to some websocket clients", "submissionId", snapshot.Submission.ID, "dropped", dropped)
	}
	return nil
}

// Size is the number of connected clients
func (h *Hub) Size() int {
	return h.clients.Size()
}

// Close disconnects every client
func (h *Hub) Close() {
	h.clients.Range(func(id string, c *Client) bool {
		c.close()
		return true
	})
}
