package websocket

import (
	"sync"

	"servisku/pkg/logger"
)

// Hub owns every live connection and the room registry. It is built once
// at process start and injected wherever connections are accepted or
// events are published; there is no package-level instance.
//
// Rooms are keyed by chat id, plus one personal room per user keyed
// "user:<uid>". Delivery is at-most-once per currently joined connection
// with no queuing: a room with no members is a no-op, and a connection
// with a full send buffer drops the frame.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client            // connection id -> client
	rooms    map[string]map[string]*Client // room id -> connection id -> client
	presence *Presence
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
		presence: NewPresence(),
	}
}

func (h *Hub) Presence() *Presence {
	return h.presence
}

// Attach registers a freshly authenticated connection and its personal room.
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	h.presence.Register(c.UserID, c.ID)
	h.JoinRoom(UserRoom(c.UserID), c)

	logger.Info("websocket: client %s attached for user %s", c.ID, c.UserID)
}

// Detach removes the connection from every room and from presence, and
// closes its send channel. Room membership does not survive a disconnect.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	for roomID := range c.rooms {
		h.removeFromRoomLocked(roomID, c)
	}
	c.rooms = make(map[string]struct{})
	h.mu.Unlock()

	h.presence.Unregister(c.UserID, c.ID)
	close(c.Send)

	logger.Info("websocket: client %s detached for user %s", c.ID, c.UserID)
}

func (h *Hub) JoinRoom(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][c.ID] = c
	c.rooms[roomID] = struct{}{}
}

func (h *Hub) LeaveRoom(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomLocked(roomID, c)
	delete(c.rooms, roomID)
}

func (h *Hub) removeFromRoomLocked(roomID string, c *Client) {
	if room, ok := h.rooms[roomID]; ok {
		delete(room, c.ID)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// InRoom reports whether the connection is currently joined to the room.
func (h *Hub) InRoom(roomID string, c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.rooms[roomID][c.ID]
	return ok
}

func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[roomID])
}

// Publish delivers the event to every connection joined to the room,
// the caller's own connections included.
func (h *Hub) Publish(roomID, eventType string, data interface{}) {
	h.publish(roomID, "", eventType, data)
}

// PublishExcept delivers the event to the room, skipping every
// connection bound to exceptUserID.
func (h *Hub) PublishExcept(roomID, exceptUserID, eventType string, data interface{}) {
	h.publish(roomID, exceptUserID, eventType, data)
}

// PublishToUser delivers the event to all of one user's connections via
// their personal room.
func (h *Hub) PublishToUser(userID, eventType string, data interface{}) {
	h.publish(UserRoom(userID), "", eventType, data)
}

func (h *Hub) publish(roomID, exceptUserID, eventType string, data interface{}) {
	chatID := roomID
	if isUserRoom(roomID) {
		chatID = ""
	}
	frame := NewEnvelope(eventType, chatID, data).Marshal()
	if frame == nil {
		logger.Error("websocket: failed to marshal %s event for room %s", eventType, roomID)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[roomID] {
		if exceptUserID != "" && client.UserID == exceptUserID {
			continue
		}
		select {
		case client.Send <- frame:
		default:
			// Slow consumer; delivery is best-effort, the durable
			// record is authoritative.
			logger.Warn("websocket: dropping %s frame for user %s, send buffer full", eventType, client.UserID)
		}
	}
}

// UserRoom returns the personal room id for a user.
func UserRoom(userID string) string {
	return "user:" + userID
}

func isUserRoom(roomID string) bool {
	return len(roomID) > 5 && roomID[:5] == "user:"
}
