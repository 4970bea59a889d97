package hub

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/sasachat/sasachat/pkg/log"
)

// ErrSlowClient is returned when a client's send buffer is full. The client
// is evicted.
var ErrSlowClient = errors.New("client send buffer full")

// Hub owns the live connections and which room each one listens to.
// Delivery is synchronous: when BroadcastToRoom returns, the frame is in
// the send buffer of every current member, so a client added afterwards
// never sees it.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	rooms      map[string]map[string]*Client // roomID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	config     Config
}

func NewHub(cfg Config) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		config:     cfg.WithDefaults(),
	}
}

func (h *Hub) Config() Config {
	return h.config
}

// Run processes registrations until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str(log.FieldConnID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for roomID, members := range h.rooms {
					delete(members, client.ID)
					if len(members) == 0 {
						delete(h.rooms, roomID)
					}
				}
				delete(h.clients, client.ID)
			}
			h.mu.Unlock()
			client.close()
			l := log.L()
			l.Debug().Str(log.FieldConnID, client.ID).Msg("client unregistered")

		case <-h.stop:
			h.mu.Lock()
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
			}
			h.rooms = make(map[string]map[string]*Client)
			h.mu.Unlock()
			return
		}
	}
}

// Stop closes every client and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stop:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
		client.close()
	}
}

// JoinRoom subscribes client to roomID.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[client.ID] = client
}

// LeaveRoom unsubscribes client from roomID.
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[roomID]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// CloseRoom unsubscribes every member of roomID and returns them.
func (h *Hub) CloseRoom(roomID string) []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[roomID]
	delete(h.rooms, roomID)

	out := make([]*Client, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// BroadcastToRoom sends message to every member of roomID except the
// client with id exclude. It returns the number of clients reached.
func (h *Hub) BroadcastToRoom(roomID string, message interface{}, exclude string) (int, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return 0, err
	}
	return h.BroadcastRawToRoom(roomID, data, exclude), nil
}

// BroadcastRawToRoom sends pre-encoded data to the room.
func (h *Hub) BroadcastRawToRoom(roomID string, data []byte, exclude string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for id, client := range h.rooms[roomID] {
		if id == exclude {
			continue
		}
		if client.enqueue(data) {
			sent++
			continue
		}
		h.evict(client)
	}
	return sent
}

// SendTo delivers message to a single client.
func (h *Hub) SendTo(client *Client, message interface{}) error {
	err := client.SendMessage(message)
	if errors.Is(err, ErrSlowClient) {
		h.evict(client)
	}
	return err
}

func (h *Hub) evict(client *Client) {
	l := log.L()
	l.Warn().Str(log.FieldConnID, client.ID).Msg("send buffer full, evicting client")
	go h.Unregister(client)
}

func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Member returns the client with id clientID if it is subscribed to roomID.
func (h *Hub) Member(roomID, clientID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.rooms[roomID][clientID]
	return c, ok
}

// IsMember reports whether client is subscribed to roomID.
func (h *Hub) IsMember(clientID, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][clientID]
	return ok
}
