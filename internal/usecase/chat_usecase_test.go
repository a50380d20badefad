package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servisku/internal/domain/entity"
	ws "servisku/internal/infrastructure/websocket"
	"servisku/pkg/errors"
)

type fakeChatRepo struct {
	mu       sync.Mutex
	chats    map[string]*entity.Chat
	messages map[string][]*entity.Message // chatID -> messages in insert order

	failChatUpdate bool
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		chats:    make(map[string]*entity.Chat),
		messages: make(map[string][]*entity.Message),
	}
}

func (r *fakeChatRepo) Create(ctx context.Context, chat *entity.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	chat.IsActive = true
	chat.ParticipantIDs = chat.ParticipantIDs[:0]
	for _, p := range chat.Participants {
		chat.ParticipantIDs = append(chat.ParticipantIDs, p.UserID)
	}

	cp := *chat
	r.chats[chat.ID] = &cp
	return nil
}

func (r *fakeChatRepo) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, ok := r.chats[id]
	if !ok {
		return nil, errors.NotFound("Chat", nil)
	}
	cp := *chat
	return &cp, nil
}

func (r *fakeChatRepo) GetActiveByCustomerAndService(ctx context.Context, customerID, serviceID string) (*entity.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, chat := range r.chats {
		if chat.IsActive && chat.ServiceID == serviceID && chat.HasParticipant(customerID) {
			cp := *chat
			return &cp, nil
		}
	}
	return nil, errors.NotFound("Chat", nil)
}

func (r *fakeChatRepo) ListActiveByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var chats []*entity.Chat
	for _, chat := range r.chats {
		if chat.IsActive && chat.HasParticipant(userID) {
			cp := *chat
			chats = append(chats, &cp)
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].LastMessageAt.After(chats[j].LastMessageAt)
	})

	total := int64(len(chats))
	start := offset
	if start > len(chats) {
		start = len(chats)
	}
	end := len(chats)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return chats[start:end], total, nil
}

func (r *fakeChatRepo) Update(ctx context.Context, chat *entity.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failChatUpdate {
		return errors.Internal("update failed", nil)
	}
	chat.UpdatedAt = time.Now()
	cp := *chat
	r.chats[chat.ID] = &cp
	return nil
}

func (r *fakeChatRepo) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, ok := r.chats[id]
	if !ok {
		return errors.NotFound("Chat", nil)
	}
	chat.IsActive = false
	return nil
}

func (r *fakeChatRepo) CreateMessage(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.CreatedAt = time.Now()
	cp := *message
	r.messages[message.ChatID] = append(r.messages[message.ChatID], &cp)
	return nil
}

func (r *fakeChatRepo) GetMessagesByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.messages[chatID]
	total := int64(len(stored))

	// newest first
	reversed := make([]*entity.Message, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		cp := *stored[i]
		reversed = append(reversed, &cp)
	}

	start := offset
	if start > len(reversed) {
		start = len(reversed)
	}
	end := len(reversed)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return reversed[start:end], total, nil
}

func (r *fakeChatRepo) MarkMessagesRead(ctx context.Context, chatID, readerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var count int64
	for _, message := range r.messages[chatID] {
		if message.IsRead || message.SenderID == readerID {
			continue
		}
		message.IsRead = true
		message.ReadAt = &now
		count++
	}
	return count, nil
}

func (r *fakeChatRepo) LatestMessage(ctx context.Context, chatID string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.messages[chatID]
	if len(stored) == 0 {
		return nil, errors.NotFound("Message", nil)
	}
	cp := *stored[len(stored)-1]
	return &cp, nil
}

type fakeUserRepo struct {
	users map[string]*entity.User
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return user, nil
}

type fakeServiceRepo struct {
	services map[string]*entity.Service
}

func (r *fakeServiceRepo) GetByID(ctx context.Context, id string) (*entity.Service, error) {
	service, ok := r.services[id]
	if !ok {
		return nil, errors.NotFound("Service", nil)
	}
	return service, nil
}

type fixture struct {
	chatRepo *fakeChatRepo
	hub      *ws.Hub
	uc       *ChatUseCase
}

const (
	customerID = "user-customer"
	providerID = "user-provider"
	strangerID = "user-stranger"
	serviceID  = "service-1"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	chatRepo := newFakeChatRepo()
	userRepo := &fakeUserRepo{users: map[string]*entity.User{
		customerID: {ID: customerID, Username: "budi", Role: entity.RoleCustomer, Status: entity.UserStatusActive},
		providerID: {ID: providerID, Username: "sari", Role: entity.RoleProvider, Status: entity.UserStatusActive},
		strangerID: {ID: strangerID, Username: "joko", Role: entity.RoleCustomer, Status: entity.UserStatusActive},
	}}
	serviceRepo := &fakeServiceRepo{services: map[string]*entity.Service{
		serviceID: {ID: serviceID, ProviderID: providerID, Title: "AC repair", Status: entity.ServiceStatusActive},
	}}
	hub := ws.NewHub()

	return &fixture{
		chatRepo: chatRepo,
		hub:      hub,
		uc:       NewChatUseCase(chatRepo, userRepo, serviceRepo, hub),
	}
}

func (f *fixture) startChat(t *testing.T) *entity.Chat {
	t.Helper()

	resp, err := f.uc.StartChat(context.Background(), customerID, serviceID)
	require.NoError(t, err)
	return resp.Chat
}

// attachClient simulates a connected, room-joined websocket client; the
// pumps never run so frames accumulate on the send channel.
func (f *fixture) attachClient(userID, chatID string) *ws.Client {
	client := ws.NewClient(uuid.New().String(), userID, userID, nil)
	f.hub.Attach(client)
	if chatID != "" {
		f.hub.JoinRoom(chatID, client)
	}
	return client
}

func receiveEnvelope(t *testing.T, client *ws.Client) ws.Envelope {
	t.Helper()

	select {
	case frame := <-client.Send:
		var env ws.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	default:
		t.Fatal("expected a frame on the send channel")
		return ws.Envelope{}
	}
}

func assertNoFrame(t *testing.T, client *ws.Client) {
	t.Helper()

	select {
	case frame := <-client.Send:
		t.Fatalf("unexpected frame: %s", frame)
	default:
	}
}

func TestStartChatCreatesTwoParticipantsWithDistinctRoles(t *testing.T) {
	f := newFixture(t)

	chat := f.startChat(t)

	require.Len(t, chat.Participants, 2)
	assert.Equal(t, customerID, chat.Participants[0].UserID)
	assert.Equal(t, entity.RoleCustomer, chat.Participants[0].Role)
	assert.Equal(t, providerID, chat.Participants[1].UserID)
	assert.Equal(t, entity.RoleProvider, chat.Participants[1].Role)
	assert.Equal(t, serviceID, chat.ServiceID)
	assert.True(t, chat.IsActive)
}

func TestStartChatIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first := f.startChat(t)
	second := f.startChat(t)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.chatRepo.chats, 1)
}

func TestStartChatForbiddenForProvider(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.StartChat(context.Background(), providerID, serviceID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestStartChatRejectsMissingAndDeactivatedService(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.StartChat(context.Background(), customerID, "nope")
	assert.True(t, errors.Is(err, "NOT_FOUND"))

	f.uc.serviceRepo.(*fakeServiceRepo).services["stale"] = &entity.Service{
		ID: "stale", ProviderID: providerID, Status: entity.ServiceStatusDeactivated,
	}
	_, err = f.uc.StartChat(context.Background(), customerID, "stale")
	assert.True(t, errors.Is(err, "UNAVAILABLE"))
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)
	chat := f.startChat(t)

	cases := []struct {
		name  string
		input SendMessageInput
	}{
		{"empty text", SendMessageInput{ChatID: chat.ID, Kind: "text", Content: ""}},
		{"whitespace text", SendMessageInput{ChatID: chat.ID, Kind: "text", Content: "   \n\t "}},
		{"media without url", SendMessageInput{ChatID: chat.ID, Kind: "media"}},
		{"unknown kind", SendMessageInput{ChatID: chat.ID, Kind: "voice", Content: "hi"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.uc.SendMessage(context.Background(), customerID, tc.input)
			assert.True(t, errors.Is(err, "VALIDATION"), "got %v", err)
		})
	}
}

func TestSendMessageRoundTrip(t *testing.T) {
	f := newFixture(t)
	chat := f.startChat(t)

	sent, err := f.uc.SendMessage(context.Background(), customerID, SendMessageInput{
		ChatID: chat.ID, Kind: "text", Content: "Hello",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sent.ID)
	assert.Equal(t, chat.ID, sent.ChatID)
	assert.Equal(t, customerID, sent.SenderID)
	assert.False(t, sent.IsRead)

	messages, total, err := f.uc.ListMessages(context.Background(), providerID, chat.ID, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, messages, 1)
	assert.Equal(t, sent.ID, messages[0].ID)
	assert.Equal(t, "Hello", messages[0].Content)
	assert.Equal(t, customerID, messages[0].SenderID)
	assert.Equal(t, sent.CreatedAt, messages[0].CreatedAt)
}

func TestSendMessageUpdatesLastMessagePointer(t *testing.T) {
	f := newFixture(t)
	chat := f.startChat(t)

	sent, err := f.uc.SendMessage(context.Background(), customerID, SendMessageInput{
		ChatID: chat.ID, Kind: "text", Content: "Hello",
	})
	require.NoError(t, err)

	stored, err := f.chatRepo.GetByID(context.Background(), chat.ID)
	require.NoError(t, err)
	assert.Equal(t, sent.ID, stored.LastMessageID)
	assert.Equal(t, "Hello", stored.LastMessage)
	assert.Equal(t, sent.CreatedAt, stored.LastMessageAt)
}

func TestSendMessageSurvivesStaleLastMessagePointer(t *testing.T) {
	f := newFixture(t)
	chat := f.startChat(t)

	f.chatRepo.failChatUpdate = true
	sent, err := f.uc.SendMessage(context.Background(), customerID, SendMessageInput{
		ChatID: chat.ID, Kind: "text", Content: "Hello",
	})
	require.NoError(t, err, "pointer update failure must not fail the send")

	// The message is durable even though the pointer is stale.
	latest, err := f.chatRepo.LatestMessage(context.Background(), chat.ID)
	require.NoError(t, err)
	assert.Equal(t, sent.ID, latest.ID)

	stored, err := f.chatRepo.GetByID(context.Background(), chat.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.LastMessageID)
}

func TestMessageTimestampsNonDecreasingPerChat(t *testing.T) {
	f := newFixture(t)
	chat := f.startChat(t)

	var previous time.Time
	for _, content := range []string{"one", "two", "three"} {
		sent, err := f.uc.SendMessage(context.Background(), customerID, SendMessageInput{
			ChatID: chat.ID, Kind: "text", Content: content,
		})
		require.NoError(t, err)
		assert.False(t, sent.CreatedAt.Before(previous))
		previous = sent.CreatedAt
	}
}

func TestListMessagesMarksCounterpartMessagesRead(t *testing.T) {
	f := newFixture(t)
	chat := f.startChat(t)

	_, err := f.uc.SendMessage(context.Background(), customerID, SendMessageInput{
		ChatID: chat.ID, Kind: "text", Content: "Hello",
	})
	require.NoError(t, err)

	// The sender listing their own chat does not acknowledge anything.
	messages, _, err := f.uc.ListMessages(context.Background(), customerID, chat.ID, 50, 0)
	require.NoError(t, err)
	assert.False(t, messages[0].IsRead)

	// The counterpart opening the chat acknowledges in one batch.
	messages, _, err = f.uc.ListMessages(context.Background(), providerID, chat.ID, 50, 0)
	require.NoError(t, err)
	assert.True(t, messages[0].IsRead)
	require.NotNil(t, messages[0].ReadAt)
	readAt := *messages[0].ReadAt

	// Read state is monotonic across repeated lists.
	messages, _, err = f.uc.ListMessages(context.Background(), providerID, chat.ID, 50, 0)
	require.NoError(t, err)
	assert.True(t, messages[0].IsRead)
	assert.Equal(t, readAt, *messages[0].ReadAt)

	messages, _, err = f.uc.ListMessages(context.Background(), customerID, chat.ID, 50, 0)
	require.NoError(t, err)
	assert.True(t, messages[0].IsRead)
}

func TestListMessagesMarksAllPagesRead(t *testing.T) {
	f := newFixture(t)
	chat := f.startChat(t)

	for _, content := range []string{"one", "two", "three"} {
		_, err := f.uc.SendMessage(context.Background(), customerID, SendMessageInput{
			ChatID: chat.ID, Kind: "text", Content: content,
		})
		require.NoError(t, err)
	}

	// Fetching a single-message page still acknowledges the whole chat.
	_, _, err := f.uc.ListMessages(context.Background(), providerID, chat.ID, 1, 0)
	require.NoError(t, err)

	count, err := f.uc.MarkRead(context.Background(), providerID, chat.ID)
	require.NoError(t, err)
	assert.Zero(t, count, "everything was already read by the page fetch")
}

func TestMarkReadReturnsCountAndBroadcasts(t *testing.T) {
	f := newFixture(t)
	chat := f.startChat(t)

	_, err := f.uc.SendMessage(context.Background(), customerID, SendMessageInput{
		ChatID: chat.ID, Kind: "text", Content: "Hello",
	})
	require.NoError(t, err)

	customerConn := f.attachClient(customerID, chat.ID)
	providerConn := f.attachClient(providerID, chat.ID)

	count, err := f.uc.MarkRead(context.Background(), providerID, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	env := receiveEnvelope(t, customerConn)
	assert.Equal(t, ws.EventMessagesRead, env.Type)
	assert.Equal(t, chat.ID, env.ChatID)

	// The acknowledging user's own connections are excluded.
	assertNoFrame(t, providerConn)
}

func TestNonParticipantForbiddenEverywhere(t *testing.T) {
	f := newFixture(t)
	chat := f.startChat(t)

	ctx := context.Background()

	_, _, err := f.uc.ListMessages(ctx, strangerID, chat.ID, 50, 0)
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	_, err = f.uc.SendMessage(ctx, strangerID, SendMessageInput{ChatID: chat.ID, Kind: "text", Content: "hi"})
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	_, err = f.uc.MarkRead(ctx, strangerID, chat.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	err = f.uc.AuthorizeJoin(ctx, chat.ID, strangerID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	_, err = f.uc.GetChatByID(ctx, strangerID, chat.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestMissingChatIsNotFound(t *testing.T) {
	f := newFixture(t)

	err := f.uc.AuthorizeJoin(context.Background(), "no-such-chat", customerID)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestSendMessageBroadcastsPersistedMessageToRoom(t *testing.T) {
	f := newFixture(t)
	chat := f.startChat(t)

	senderConn := f.attachClient(customerID, chat.ID)
	providerConn := f.attachClient(providerID, chat.ID)

	sent, err := f.uc.SendMessage(context.Background(), customerID, SendMessageInput{
		ChatID: chat.ID, Kind: "text", Content: "Hello",
	})
	require.NoError(t, err)

	for _, conn := range []*ws.Client{senderConn, providerConn} {
		env := receiveEnvelope(t, conn)
		assert.Equal(t, ws.EventNewMessage, env.Type)
		assert.Equal(t, chat.ID, env.ChatID)

		payload, err := json.Marshal(env.Data)
		require.NoError(t, err)
		var data ws.NewMessageData
		require.NoError(t, json.Unmarshal(payload, &data))
		assert.Equal(t, sent.ID, data.Message.ID)
		assert.Equal(t, "Hello", data.Message.Content)
	}
}

func TestSendMessageSendsChatListUpdateToCounterpartOnly(t *testing.T) {
	f := newFixture(t)
	chat := f.startChat(t)

	// Connected but not joined to the chat room: only the personal-room
	// inbox update should arrive.
	providerConn := f.attachClient(providerID, "")

	_, err := f.uc.SendMessage(context.Background(), customerID, SendMessageInput{
		ChatID: chat.ID, Kind: "text", Content: "Hello",
	})
	require.NoError(t, err)

	env := receiveEnvelope(t, providerConn)
	assert.Equal(t, ws.EventChatListUpdate, env.Type)
}

func TestSendMessageToEmptyRoomIsNoOp(t *testing.T) {
	f := newFixture(t)
	chat := f.startChat(t)

	_, err := f.uc.SendMessage(context.Background(), customerID, SendMessageInput{
		ChatID: chat.ID, Kind: "text", Content: "Hello",
	})
	assert.NoError(t, err)
}

func TestListMyChatsSortedByActivity(t *testing.T) {
	f := newFixture(t)

	f.uc.serviceRepo.(*fakeServiceRepo).services["service-2"] = &entity.Service{
		ID: "service-2", ProviderID: providerID, Title: "Plumbing", Status: entity.ServiceStatusActive,
	}

	first := f.startChat(t)
	resp, err := f.uc.StartChat(context.Background(), customerID, "service-2")
	require.NoError(t, err)
	second := resp.Chat

	_, err = f.uc.SendMessage(context.Background(), customerID, SendMessageInput{
		ChatID: first.ID, Kind: "text", Content: "bump",
	})
	require.NoError(t, err)

	chats, total, err := f.uc.ListMyChats(context.Background(), customerID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, chats, 2)
	assert.Equal(t, first.ID, chats[0].ID)
	assert.Equal(t, second.ID, chats[1].ID)

	// A stranger sees neither.
	chats, total, err = f.uc.ListMyChats(context.Background(), strangerID, 20, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, chats)
}

func TestMediaMessageRoundTrip(t *testing.T) {
	f := newFixture(t)
	chat := f.startChat(t)

	sent, err := f.uc.SendMessage(context.Background(), customerID, SendMessageInput{
		ChatID:   chat.ID,
		Kind:     "media",
		MediaURL: "https://storage.googleapis.com/bucket/chat-media/pic.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "image", sent.MediaKind)
	assert.Empty(t, sent.Content)

	stored, err := f.chatRepo.GetByID(context.Background(), chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "[media]", stored.LastMessage)
}

func TestActiveChatIDs(t *testing.T) {
	f := newFixture(t)
	chat := f.startChat(t)

	ids, err := f.uc.ActiveChatIDs(context.Background(), providerID)
	require.NoError(t, err)
	assert.Equal(t, []string{chat.ID}, ids)

	ids, err = f.uc.ActiveChatIDs(context.Background(), strangerID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStartChatRateLimited(t *testing.T) {
	f := newFixture(t)

	// start_chat allows 5 per refill window.
	for i := 0; i < 5; i++ {
		_, err := f.uc.StartChat(context.Background(), customerID, serviceID)
		require.NoError(t, err)
	}

	_, err := f.uc.StartChat(context.Background(), customerID, serviceID)
	assert.True(t, errors.Is(err, "TOO_MANY_REQUESTS"))
}
