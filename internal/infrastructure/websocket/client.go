package websocket

import (
	"github.com/gorilla/websocket"

	"servisku/pkg/logger"
)

// Client represents one authenticated websocket connection. The bound
// user identity is fixed at handshake for the life of the connection.
type Client struct {
	ID       string
	UserID   string
	Username string
	Conn     *websocket.Conn
	Send     chan []byte

	// joined room ids; guarded by the hub's mutex
	rooms map[string]struct{}
}

func NewClient(id, userID, username string, conn *websocket.Conn) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Username: username,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		rooms:    make(map[string]struct{}),
	}
}

// ReadPump reads frames from the connection and hands them to onEvent.
// onClose runs exactly once when the transport tears down.
func (c *Client) ReadPump(onEvent func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error for user %s: %v", c.UserID, err)
			}
			break
		}

		onEvent(c, message)
	}
}

// WritePump drains the send channel onto the connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.Warn("websocket write error for user %s: %v", c.UserID, err)
			return
		}
	}
}
