package hub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second

	joinTimeout = 5 * time.Second
)

// Settings carries the per-connection limits applied to every client.
type Settings struct {
	MaxMessageSize    int64
	RateLimitBurst    int
	RateLimitInterval time.Duration
}

// Client is one authenticated WebSocket connection. Its identity is fixed at
// handshake time; the connection can only subscribe to rooms that identity
// is entitled to.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	userID int64
	name   string
	addr   string

	// rooms this client is subscribed to, guarded by hub.mu.
	rooms map[string]struct{}

	closed  bool
	limiter *tokenBucket
	maxSize int64
}

// NewClient wraps an already-authenticated connection. Register it with the
// hub to start its pumps.
func NewClient(h *Hub, conn *websocket.Conn, userID int64, name, addr string, s Settings) *Client {
	if s.MaxMessageSize <= 0 {
		s.MaxMessageSize = 4096
	}
	if conn != nil {
		conn.SetReadLimit(s.MaxMessageSize)
	}
	return &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		userID:  userID,
		name:    name,
		addr:    addr,
		rooms:   make(map[string]struct{}),
		limiter: newTokenBucket(s.RateLimitBurst, s.RateLimitInterval),
		maxSize: s.MaxMessageSize,
	}
}

// frame is the envelope for client-to-server events.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if !c.limiter.allow() {
			log.Printf("hub: rate limit exceeded for user %d, discarding message", c.userID)
			continue
		}
		c.handleFrame(raw)
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("hub: message from user %d exceeded %d bytes", c.userID, c.maxSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure),
		errors.Is(err, io.EOF),
		isExpectedCloseError(err):
		// Normal disconnect.
	default:
		log.Printf("hub: read error from user %d: %v", c.userID, err)
	}
}

func (c *Client) handleFrame(raw []byte) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		c.sendEvent("error", map[string]any{"message": "malformed event"})
		return
	}

	switch f.Event {
	case "join-group":
		c.handleJoinGroup(f.Data)
	default:
		log.Printf("hub: ignoring unknown event %q from user %d", f.Event, c.userID)
	}
}

// handleJoinGroup subscribes the connection to a group room, but only after
// confirming the user is a member of that group. Trusting the
// client-provided id here would let any authenticated connection eavesdrop
// on any group.
func (c *Client) handleJoinGroup(data json.RawMessage) {
	groupID, ok := parseGroupID(data)
	if !ok {
		c.sendEvent("error", map[string]any{"message": "join-group requires a group id"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()

	allowed, err := c.hub.authorizer.CanJoin(ctx, c.userID, groupID)
	if err != nil {
		log.Printf("hub: join-group membership check failed for user %d, group %d: %v", c.userID, groupID, err)
		c.sendEvent("error", map[string]any{"message": "could not join group"})
		return
	}
	if !allowed {
		c.sendEvent("error", map[string]any{"message": "not a member of this group", "groupId": groupID})
		return
	}

	c.hub.subscribe(c, GroupRoom(groupID))
	c.sendEvent("joined-group", map[string]any{"groupId": groupID})
}

// parseGroupID accepts the id as a JSON number or numeric string.
func parseGroupID(data json.RawMessage) (int64, bool) {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil && n > 0 {
		return n, true
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// sendEvent queues a direct event to this client only.
func (c *Client) sendEvent(name string, data any) {
	payload, err := json.Marshal(Event{Name: name, Data: data})
	if err != nil {
		return
	}
	c.hub.safeSend(c, payload)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeMessage(payload); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("hub: write error to user %d: %v", c.userID, err)
				}
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeMessage writes the payload and drains any queued events into the same
// writer, one frame per line.
func (c *Client) writeMessage(payload []byte) error {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	for i := len(c.send); i > 0; i-- {
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return err
		}
		if _, err := w.Write(<-c.send); err != nil {
			return err
		}
	}
	return w.Close()
}

// isExpectedCloseError matches the error strings seen during routine
// connection teardown.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
