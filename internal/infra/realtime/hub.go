package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"mentalspace/internal/domain/ports/adapter"
	"mentalspace/internal/infra/metrics"
)

// Frame is the wire envelope in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func sessionRoom(sessionID string) string { return "chat:" + sessionID }
func accountRoom(accountID string) string { return "user:" + accountID }

var _ adapter.Relay = (*Hub)(nil)

// Hub tracks connected clients and their rooms. Emission never blocks: a
// client whose buffer is full misses the event.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	rooms    map[string]map[*Client]struct{}
	accounts map[string]int // open connections per account

	// live counts running connection handlers, including their disconnect
	// cleanup. closing refuses new ones once Shutdown starts.
	live    sync.WaitGroup
	closing bool

	log *zerolog.Logger
}

func NewHub(logger *zerolog.Logger) *Hub {
	l := logger.With().Str("component", "realtime").Logger()
	return &Hub{
		clients:  map[*Client]struct{}{},
		rooms:    map[string]map[*Client]struct{}{},
		accounts: map[string]int{},
		log:      &l,
	}
}

// register adds c and joins its personal room. It reports whether this is
// the account's first open connection.
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.joinLocked(c, accountRoom(c.principal.ID))
	h.accounts[c.principal.ID]++
	metrics.IncWSConnections()
	return h.accounts[c.principal.ID] == 1
}

// unregister drops c from every room and reports whether it was the
// account's last connection.
func (h *Hub) unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	metrics.DecWSConnections()
	h.accounts[c.principal.ID]--
	if h.accounts[c.principal.ID] <= 0 {
		delete(h.accounts, c.principal.ID)
		return true
	}
	return false
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	h.joinLocked(c, room)
	h.mu.Unlock()
}

func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	h.leaveLocked(c, room)
	h.mu.Unlock()
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = map[*Client]struct{}{}
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) inRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// Online reports whether accountID has at least one open connection.
func (h *Hub) Online(accountID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.accounts[accountID] > 0
}

// attach counts a connection handler in. It fails once Shutdown has begun.
func (h *Hub) attach() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.live.Add(1)
	return true
}

// detach marks a handler finished, after its disconnect cleanup ran.
func (h *Hub) detach() { h.live.Done() }

// Shutdown closes every connection and waits until each handler has finished
// its disconnect cleanup (presence included), or ctx ends.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()
	for _, c := range targets {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		h.live.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) EmitToSession(sessionID, event string, payload any) {
	h.emitRoom(sessionRoom(sessionID), nil, event, payload)
}

func (h *Hub) EmitToAccount(accountID, event string, payload any) {
	h.emitRoom(accountRoom(accountID), nil, event, payload)
}

func (h *Hub) Broadcast(event string, payload any) {
	h.broadcastExcept(nil, event, payload)
}

func (h *Hub) broadcastExcept(except *Client, event string, payload any) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	h.deliver(targets, event, msg)
}

// emitRoom sends to every member of room except the given client.
func (h *Hub) emitRoom(room string, except *Client, event string, payload any) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	members := h.rooms[room]
	targets := make([]*Client, 0, len(members))
	for c := range members {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	h.deliver(targets, event, msg)
}

func (h *Hub) deliver(targets []*Client, event string, msg []byte) {
	for _, c := range targets {
		if c.enqueue(msg) {
			metrics.IncRelayEvent(event, "sent")
			continue
		}
		metrics.IncRelayEvent(event, "dropped")
		h.log.Warn().Str("event", event).Str("account_id", c.principal.ID).Msg("relay buffer full, event dropped")
	}
}

func (h *Hub) encode(event string, payload any) ([]byte, bool) {
	msg, err := json.Marshal(outFrame{Event: event, Data: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode relay frame")
		return nil, false
	}
	return msg, true
}
