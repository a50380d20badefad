package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(id, userID string) *Client {
	return NewClient(id, userID, userID, nil)
}

func recvFrame(t *testing.T, c *Client) Envelope {
	t.Helper()

	select {
	case frame := <-c.Send:
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	default:
		t.Fatal("expected a frame on the send channel")
		return Envelope{}
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()

	select {
	case frame := <-c.Send:
		t.Fatalf("unexpected frame: %s", frame)
	default:
	}
}

func TestAttachRegistersPresenceAndPersonalRoom(t *testing.T) {
	hub := NewHub()
	client := newTestClient("conn-1", "user-a")

	hub.Attach(client)

	assert.True(t, hub.Presence().IsOnline("user-a"))
	assert.True(t, hub.InRoom(UserRoom("user-a"), client))
}

func TestJoinAndLeaveRoom(t *testing.T) {
	hub := NewHub()
	client := newTestClient("conn-1", "user-a")
	hub.Attach(client)

	hub.JoinRoom("chat-1", client)
	assert.True(t, hub.InRoom("chat-1", client))
	assert.Equal(t, 1, hub.RoomSize("chat-1"))

	hub.LeaveRoom("chat-1", client)
	assert.False(t, hub.InRoom("chat-1", client))
	assert.Equal(t, 0, hub.RoomSize("chat-1"))
}

func TestPublishReachesEveryRoomMemberOnce(t *testing.T) {
	hub := NewHub()
	a := newTestClient("conn-1", "user-a")
	b := newTestClient("conn-2", "user-b")
	outside := newTestClient("conn-3", "user-c")
	for _, c := range []*Client{a, b, outside} {
		hub.Attach(c)
	}
	hub.JoinRoom("chat-1", a)
	hub.JoinRoom("chat-1", b)

	hub.Publish("chat-1", EventNewMessage, map[string]string{"hello": "world"})

	for _, c := range []*Client{a, b} {
		env := recvFrame(t, c)
		assert.Equal(t, EventNewMessage, env.Type)
		assert.Equal(t, "chat-1", env.ChatID)
		assertEmpty(t, c)
	}
	assertEmpty(t, outside)
}

func TestPublishExceptSkipsEveryConnectionOfTheUser(t *testing.T) {
	hub := NewHub()
	a1 := newTestClient("conn-1", "user-a")
	a2 := newTestClient("conn-2", "user-a") // second device, same user
	b := newTestClient("conn-3", "user-b")
	for _, c := range []*Client{a1, a2, b} {
		hub.Attach(c)
		hub.JoinRoom("chat-1", c)
	}

	hub.PublishExcept("chat-1", "user-a", EventUserTyping, TypingData{ChatID: "chat-1", UserID: "user-a"})

	assertEmpty(t, a1)
	assertEmpty(t, a2)
	env := recvFrame(t, b)
	assert.Equal(t, EventUserTyping, env.Type)
}

func TestPublishToUserHitsAllConnectionsAndBlanksChatID(t *testing.T) {
	hub := NewHub()
	a1 := newTestClient("conn-1", "user-a")
	a2 := newTestClient("conn-2", "user-a")
	hub.Attach(a1)
	hub.Attach(a2)

	hub.PublishToUser("user-a", EventChatListUpdate, ChatListUpdateData{ChatID: "chat-1"})

	for _, c := range []*Client{a1, a2} {
		env := recvFrame(t, c)
		assert.Equal(t, EventChatListUpdate, env.Type)
		assert.Empty(t, env.ChatID, "personal-room frames carry no chat id at the envelope level")
	}
}

func TestPublishToEmptyRoomIsNoOp(t *testing.T) {
	hub := NewHub()

	hub.Publish("chat-none", EventNewMessage, nil)
	assert.Equal(t, 0, hub.RoomSize("chat-none"))
}

func TestDetachClearsRoomsPresenceAndSendChannel(t *testing.T) {
	hub := NewHub()
	client := newTestClient("conn-1", "user-a")
	hub.Attach(client)
	hub.JoinRoom("chat-1", client)

	hub.Detach(client)

	assert.False(t, hub.Presence().IsOnline("user-a"))
	assert.Equal(t, 0, hub.RoomSize("chat-1"))
	assert.Equal(t, 0, hub.RoomSize(UserRoom("user-a")))

	_, open := <-client.Send
	assert.False(t, open, "send channel must be closed")

	// A second detach of the same connection is harmless.
	hub.Detach(client)
}

func TestDetachKeepsUserOnlineWhileAnotherConnectionRemains(t *testing.T) {
	hub := NewHub()
	a1 := newTestClient("conn-1", "user-a")
	a2 := newTestClient("conn-2", "user-a")
	hub.Attach(a1)
	hub.Attach(a2)

	hub.Detach(a1)
	assert.True(t, hub.Presence().IsOnline("user-a"))

	hub.Detach(a2)
	assert.False(t, hub.Presence().IsOnline("user-a"))
}

func TestFullSendBufferDropsFrame(t *testing.T) {
	hub := NewHub()
	client := newTestClient("conn-1", "user-a")
	hub.Attach(client)
	hub.JoinRoom("chat-1", client)

	for i := 0; i < cap(client.Send); i++ {
		client.Send <- []byte("x")
	}

	// Must not block.
	hub.Publish("chat-1", EventNewMessage, nil)
	assert.Len(t, client.Send, cap(client.Send))
}

func TestEnvelopeWireShape(t *testing.T) {
	env := NewEnvelope(EventNewMessage, "chat-1", NewMessageData{ChatID: "chat-1"})
	frame := env.Marshal()
	require.NotNil(t, frame)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(frame, &decoded))
	assert.Equal(t, "new_message", decoded["type"])
	assert.Equal(t, "chat-1", decoded["chat_id"])
	assert.Contains(t, decoded, "data")
	assert.NotEmpty(t, decoded["timestamp"])
}

func TestUserRoomNaming(t *testing.T) {
	assert.Equal(t, "user:u1", UserRoom("u1"))
	assert.True(t, isUserRoom("user:u1"))
	assert.False(t, isUserRoom("chat-1"))
	assert.False(t, isUserRoom("user:"))
}
