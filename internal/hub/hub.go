// Package hub implements the realtime gateway: it tracks authenticated
// WebSocket clients, organizes them into named rooms (one per user, one per
// group), and fans events out to every subscriber of a room.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"
)

// Event is the wire frame for every server-to-client push.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// UserRoom names the personal room a client is auto-subscribed to on
// connect; it carries targeted notifications like added-to-group.
func UserRoom(userID int64) string {
	return "user-" + strconv.FormatInt(userID, 10)
}

// GroupRoom names the shared room for a group's broadcasts.
func GroupRoom(groupID int64) string {
	return strconv.FormatInt(groupID, 10)
}

// Authorizer decides whether a user may subscribe to a group's room.
// Subscriptions are only granted to current group members.
type Authorizer interface {
	CanJoin(ctx context.Context, userID, groupID int64) (bool, error)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, userID, groupID int64) (bool, error)

// CanJoin implements Authorizer.
func (f AuthorizerFunc) CanJoin(ctx context.Context, userID, groupID int64) (bool, error) {
	return f(ctx, userID, groupID)
}

// Observer receives connection and broadcast lifecycle notifications.
// Implementations must be safe for concurrent use.
type Observer interface {
	ClientConnected()
	ClientDisconnected()
	EventBroadcast(event string, receivers int)
}

type nopObserver struct{}

func (nopObserver) ClientConnected() {}

func (nopObserver) ClientDisconnected() {}

func (nopObserver) EventBroadcast(string, int) {}

type delivery struct {
	room    string
	event   string
	payload []byte
}

// Hub owns the room registry and runs the delivery loop. Clients register
// and unregister through channels; the registry itself is guarded so
// subscribe and broadcast stay safe under concurrent connect/disconnect.
type Hub struct {
	authorizer Authorizer
	observer   Observer

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan delivery

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a hub. The authorizer gates join-group subscriptions; a nil
// observer disables lifecycle notifications.
func New(authorizer Authorizer, observer Observer) *Hub {
	if observer == nil {
		observer = nopObserver{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		authorizer: authorizer,
		observer:   observer,
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan delivery, 64),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands a freshly authenticated client to the hub, which subscribes
// it to its personal room and starts its read/write pumps.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Broadcast queues an event for everyone subscribed to the room. Delivery is
// best-effort: marshal failures and slow clients are logged and dropped, and
// the caller is never blocked on a full queue for long.
func (h *Hub) Broadcast(room, event string, data any) {
	payload, err := json.Marshal(Event{Name: event, Data: data})
	if err != nil {
		log.Printf("hub: dropping %s broadcast to room %s: %v", event, room, err)
		return
	}
	select {
	case h.broadcast <- delivery{room: room, event: event, payload: payload}:
	case <-h.ctx.Done():
	}
}

// Run drives registration, unregistration, and delivery until Shutdown.
// Call it in its own goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAllClients()
			return

		case c := <-h.register:
			h.addClient(c)

		case c := <-h.unregister:
			h.removeClient(c)

		case d := <-h.broadcast:
			h.deliver(d)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	if c == nil {
		return
	}
	h.mu.Lock()
	c.closed = false
	h.clients[c] = struct{}{}
	h.joinLocked(c, UserRoom(c.userID))
	total := len(h.clients)
	h.mu.Unlock()

	h.observer.ClientConnected()
	log.Printf("hub: user %d connected from %s, %d clients online", c.userID, c.addr, total)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	c.closed = true
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	total := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	h.observer.ClientDisconnected()
	log.Printf("hub: user %d disconnected, %d clients online", c.userID, total)
}

// joinLocked requires h.mu held.
func (h *Hub) joinLocked(c *Client, room string) {
	subs := h.rooms[room]
	if subs == nil {
		subs = make(map[*Client]struct{})
		h.rooms[room] = subs
	}
	subs[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// leaveLocked requires h.mu held.
func (h *Hub) leaveLocked(c *Client, room string) {
	if subs, ok := h.rooms[room]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

func (h *Hub) subscribe(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.joinLocked(c, room)
}

// DropUserFromRoom unsubscribes every connection belonging to the user from
// the room. Used when a member is removed from a group, so revocation takes
// effect on live connections immediately.
func (h *Hub) DropUserFromRoom(room string, userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[room] {
		if c.userID == userID {
			h.leaveLocked(c, room)
		}
	}
}

// InRoom reports whether any of the user's connections is subscribed to the
// room.
func (h *Hub) InRoom(room string, userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		if c.userID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) deliver(d delivery) {
	h.mu.RLock()
	subs := make([]*Client, 0, len(h.rooms[d.room]))
	for c := range h.rooms[d.room] {
		subs = append(subs, c)
	}
	h.mu.RUnlock()

	var failed []*Client
	for _, c := range subs {
		if !h.safeSend(c, d.payload) {
			failed = append(failed, c)
		}
	}
	h.observer.EventBroadcast(d.event, len(subs)-len(failed))

	// A full send buffer means the client stopped draining; drop it rather
	// than stall delivery for the rest of the room.
	for _, c := range failed {
		log.Printf("hub: dropping unresponsive client for user %d", c.userID)
		h.removeClient(c)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

func (h *Hub) safeSend(c *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("hub: recovered from send on closed channel: %v", r)
		}
	}()

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[c]; !ok || c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if c.conn != nil {
			c.conn.Close()
		}
	}
	log.Printf("hub: closed %d client connections", len(clients))
}

// Shutdown stops the delivery loop, closes every connection, and waits for
// all pump goroutines to finish or the timeout to pass.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-time.After(timeout):
		log.Println("hub: shutdown timeout reached, some client goroutines may still be running")
		return context.DeadlineExceeded
	}
}
