package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"servisku/internal/domain/repository"
	"servisku/internal/infrastructure/firebase"
	ws "servisku/internal/infrastructure/websocket"
	"servisku/internal/usecase"
	"servisku/pkg/logger"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // restrict in production
	},
}

type WebSocketHandler struct {
	hub              *ws.Hub
	authClient       *firebase.FirebaseAuthClient
	userRepo         repository.UserRepository
	chatUseCase      *usecase.ChatUseCase
	handshakeTimeout time.Duration
}

func NewWebSocketHandler(
	hub *ws.Hub,
	authClient *firebase.FirebaseAuthClient,
	userRepo repository.UserRepository,
	chatUseCase *usecase.ChatUseCase,
	handshakeTimeout time.Duration,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:              hub,
		authClient:       authClient,
		userRepo:         userRepo,
		chatUseCase:      chatUseCase,
		handshakeTimeout: handshakeTimeout,
	}
}

// HandleWebSocket authenticates the handshake and attaches the
// connection. Authentication must resolve within the handshake window or
// the connection is refused outright; there is no partial session.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		if authHeader := c.Request().Header.Get("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
	}
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.handshakeTimeout)
	defer cancel()

	uid, err := h.authClient.VerifyToken(ctx, token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
	}

	user, err := h.userRepo.GetByID(ctx, uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unknown user")
	}
	if !user.IsActive() {
		return echo.NewHTTPError(http.StatusForbidden, "Account is deactivated")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("websocket upgrade failed for user %s: %v", uid, err)
		return nil
	}

	client := ws.NewClient(uuid.New().String(), uid, user.Username, conn)
	h.hub.Attach(client)

	// Auto-join the rooms of every chat the user participates in, so a
	// reconnecting client receives events without manual joins. Events
	// missed during the disconnect window are gone; the client must
	// reconcile through the durable read path.
	if chatIDs, err := h.chatUseCase.ActiveChatIDs(context.Background(), uid); err == nil {
		for _, chatID := range chatIDs {
			h.hub.JoinRoom(chatID, client)
		}
	} else {
		logger.Warn("websocket: failed to auto-join chats for user %s: %v", uid, err)
	}

	go client.WritePump()
	go client.ReadPump(h.handleEvent, h.handleClose)

	return nil
}

func (h *WebSocketHandler) handleClose(client *ws.Client) {
	h.hub.Detach(client)
}

func (h *WebSocketHandler) handleEvent(client *ws.Client, raw []byte) {
	var env ws.ClientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Warn("websocket: malformed frame from user %s: %v", client.UserID, err)
		h.sendToClient(client, ws.NewEnvelope(ws.EventError, "", ws.ErrorData{Message: "Invalid event format"}))
		return
	}

	switch env.Type {
	case ws.EventPing:
		h.sendToClient(client, ws.NewEnvelope(ws.EventPong, "", map[string]string{"status": "alive"}))

	case ws.EventJoinChat:
		h.handleJoinChat(client, env)

	case ws.EventLeaveChat:
		if chatID := eventChatID(env); chatID != "" {
			h.hub.LeaveRoom(chatID, client)
		}

	case ws.EventTypingStart:
		h.relayTyping(client, env, true)

	case ws.EventTypingStop:
		h.relayTyping(client, env, false)

	case ws.EventMarkRead:
		h.handleMarkRead(client, env)

	case ws.EventSendMessage:
		// Messages are only created through the durable path; the hub
		// relays, it never writes.
		logger.Debug("websocket: ignoring send_message from user %s", client.UserID)

	default:
		logger.Warn("websocket: unknown event type %q from user %s", env.Type, client.UserID)
		h.sendToClient(client, ws.NewEnvelope(ws.EventError, "", ws.ErrorData{Message: "Unknown event type"}))
	}
}

func (h *WebSocketHandler) handleJoinChat(client *ws.Client, env ws.ClientEnvelope) {
	chatID := eventChatID(env)
	if chatID == "" {
		h.sendToClient(client, ws.NewEnvelope(ws.EventError, "", ws.ErrorData{Message: "Missing chat_id"}))
		return
	}

	// Membership is re-validated on every join; an explicit ack tells
	// the client whether it is actually receiving this room's events.
	ack := ws.ChatJoinedData{ChatID: chatID, Success: true}
	if err := h.chatUseCase.AuthorizeJoin(context.Background(), chatID, client.UserID); err != nil {
		ack.Success = false
		ack.Reason = err.Error()
		logger.Warn("websocket: join denied for user %s on chat %s: %v", client.UserID, chatID, err)
	} else {
		h.hub.JoinRoom(chatID, client)
	}

	h.sendToClient(client, ws.NewEnvelope(ws.EventChatJoined, chatID, ack))
}

func (h *WebSocketHandler) relayTyping(client *ws.Client, env ws.ClientEnvelope, isTyping bool) {
	chatID := eventChatID(env)
	if chatID == "" || !h.hub.InRoom(chatID, client) {
		return
	}
	if !h.chatUseCase.TypingAllowed(client.UserID) {
		return // silently drop excessive typing events
	}

	h.hub.PublishExcept(chatID, client.UserID, ws.EventUserTyping, ws.TypingData{
		ChatID:   chatID,
		UserID:   client.UserID,
		Username: client.Username,
		IsTyping: isTyping,
	})
}

func (h *WebSocketHandler) handleMarkRead(client *ws.Client, env ws.ClientEnvelope) {
	chatID := eventChatID(env)
	if chatID == "" {
		h.sendToClient(client, ws.NewEnvelope(ws.EventError, "", ws.ErrorData{Message: "Missing chat_id"}))
		return
	}

	if _, err := h.chatUseCase.MarkRead(context.Background(), client.UserID, chatID); err != nil {
		logger.Warn("websocket: mark read failed for user %s on chat %s: %v", client.UserID, chatID, err)
	}
}

func (h *WebSocketHandler) sendToClient(client *ws.Client, env ws.Envelope) {
	frame := env.Marshal()
	if frame == nil {
		return
	}

	select {
	case client.Send <- frame:
	default:
		logger.Warn("websocket: client %s send buffer full, dropping %s", client.UserID, env.Type)
	}
}

// eventChatID accepts the chat id either at the envelope level or inside
// the data object, matching what clients actually send.
func eventChatID(env ws.ClientEnvelope) string {
	if env.ChatID != "" {
		return env.ChatID
	}
	if len(env.Data) > 0 {
		var data struct {
			ChatID string `json:"chat_id"`
		}
		if err := json.Unmarshal(env.Data, &data); err == nil {
			return data.ChatID
		}
	}
	return ""
}
