// Package realtime tracks live authenticated connections and their room
// memberships, and fans lifecycle events out to currently-joined
// connections. Delivery here is strictly best-effort: a publish to an empty
// room is a no-op and a slow consumer drops messages rather than blocking
// the dispatching request. Durability is the notification store's job.
package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/amanazads/flashbites-sub000/models"
)

// sendBuffer is the per-connection outbound queue depth. Messages beyond it
// are dropped (best-effort contract).
const sendBuffer = 64

// Message is the outbound wire envelope.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one live connection. A user with several devices holds several
// clients, all members of the same user room.
type Client struct {
	ID     string
	UserID int64
	Role   models.Role

	send   chan []byte
	closed bool // guarded by the registry mutex
}

// Outbound exposes the client's outbound queue to the transport write loop
// (and to tests).
func (c *Client) Outbound() <-chan []byte { return c.send }

// Registry tracks rooms and their member connections. All mutation happens
// under one mutex because join and disconnect race on the same maps.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	joined map[*Client]map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]map[*Client]struct{}),
		joined: make(map[*Client]map[string]struct{}),
	}
}

// Connect registers a new authenticated connection and joins it to the
// rooms its role implies.
func (r *Registry) Connect(userID int64, role models.Role) *Client {
	c := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Role:   role,
		send:   make(chan []byte, sendBuffer),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joined[c] = make(map[string]struct{})
	for _, room := range role.InitialRooms(userID) {
		r.joinLocked(c, room)
	}
	return c
}

// Join adds the client to a room. No-op after disconnect.
func (r *Registry) Join(c *Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.closed {
		return
	}
	r.joinLocked(c, room)
}

// Leave removes the client from a room. Idempotent.
func (r *Registry) Leave(c *Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(c, room)
}

// Disconnect removes the client from every room it joined and closes its
// outbound queue. Safe to call more than once; room membership never
// references a dead connection afterwards.
func (r *Registry) Disconnect(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.closed {
		return
	}
	for room := range r.joined[c] {
		r.leaveLocked(c, room)
	}
	delete(r.joined, c)
	c.closed = true
	close(c.send)
}

// Publish sends an event to every connection in the room and reports how
// many accepted it. Marshals once; never blocks: a full outbound queue
// drops the message for that connection.
func (r *Registry) Publish(room, event string, data any) int {
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		log.Printf("realtime: marshal %s event: %v", event, err)
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	delivered := 0
	for c := range r.rooms[room] {
		select {
		case c.send <- payload:
			delivered++
		default:
			// Slow consumer; drop rather than stall the publisher.
		}
	}
	return delivered
}

// RoomSize returns the number of connections currently in the room.
func (r *Registry) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Rooms returns the rooms the client is currently joined to.
func (r *Registry) Rooms(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.joined[c]))
	for room := range r.joined[c] {
		out = append(out, room)
	}
	return out
}

func (r *Registry) joinLocked(c *Client, room string) {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[room] = members
	}
	members[c] = struct{}{}
	if r.joined[c] == nil {
		r.joined[c] = make(map[string]struct{})
	}
	r.joined[c][room] = struct{}{}
}

func (r *Registry) leaveLocked(c *Client, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if set, ok := r.joined[c]; ok {
		delete(set, room)
	}
}
