package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ayushgupta1777/f-vite-backend/internal/auth"
	"github.com/ayushgupta1777/f-vite-backend/internal/models"
	"github.com/ayushgupta1777/f-vite-backend/internal/presence"
	"github.com/ayushgupta1777/f-vite-backend/internal/repository"
	"github.com/ayushgupta1777/f-vite-backend/internal/service"
)

type capturedEvent struct {
	event   string
	payload any
}

type fakeConn struct {
	mu     sync.Mutex
	events []capturedEvent
	closed bool
}

func (c *fakeConn) Send(event string, payload any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, capturedEvent{event: event, payload: payload})
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) byEvent(event string) []capturedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []capturedEvent
	for _, e := range c.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func newTestHandler(t *testing.T, mobiles ...string) (*Handler, *presence.Registry, repository.Store) {
	t.Helper()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	for _, m := range mobiles {
		require.NoError(t, store.Users().Create(ctx, &models.User{Mobile: m}))
	}
	log := zap.NewNop().Sugar()
	registry := presence.NewRegistry(log)
	svc := service.NewChatService(store, registry, nil, log)
	tokens := auth.NewManager("test-secret", time.Hour)
	h := NewHandler(svc, registry, tokens, Config{
		PingInterval:    30 * time.Second,
		WriteDeadline:   10 * time.Second,
		MaxMessageBytes: 64 * 1024,
		FramesPerSecond: 20,
	}, log)
	return h, registry, store
}

func frame(t *testing.T, typ string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	b, err := json.Marshal(Envelope{Type: typ, Payload: raw})
	require.NoError(t, err)
	return b
}

func TestDispatchSendMessage(t *testing.T) {
	h, registry, store := newTestHandler(t, "111", "222")

	sender := &fakeConn{}
	receiver := &fakeConn{}
	registry.Register("111", sender)
	registry.Register("222", receiver)

	h.dispatch(sender, "111", frame(t, "send_message", map[string]string{
		"receiver": "222",
		"text":     "hi",
	}))

	acks := sender.byEvent(service.EventMessageSent)
	require.Len(t, acks, 1)
	msg := acks[0].payload.(*models.Message)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "111", msg.Sender)

	require.Len(t, receiver.byEvent(service.EventReceiveMessage), 1)
	notes := receiver.byEvent(service.EventNewMessageNotification)
	require.Len(t, notes, 1)
	note := notes[0].payload.(service.NewMessageNotification)
	assert.Equal(t, int64(1), note.UnreadCount)

	// Both transports share one send path: the message is durable.
	msgs, err := store.Messages().ListByConversation(context.Background(), msg.ConversationID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestDispatchSendMessageError(t *testing.T) {
	h, registry, _ := newTestHandler(t, "111", "222")

	sender := &fakeConn{}
	registry.Register("111", sender)

	h.dispatch(sender, "111", frame(t, "send_message", map[string]string{
		"receiver": "222",
		"text":     "   ",
	}))

	errsSent := sender.byEvent(service.EventMessageError)
	require.Len(t, errsSent, 1)
	assert.NotEmpty(t, errsSent[0].payload.(service.MessageError).Error)
	assert.Empty(t, sender.byEvent(service.EventMessageSent))
}

func TestDispatchMarkRead(t *testing.T) {
	h, registry, _ := newTestHandler(t, "111", "222")

	sender := &fakeConn{}
	reader := &fakeConn{}
	registry.Register("111", sender)
	registry.Register("222", reader)

	h.dispatch(sender, "111", frame(t, "send_message", map[string]string{
		"receiver": "222",
		"text":     "hi",
	}))
	acks := sender.byEvent(service.EventMessageSent)
	require.Len(t, acks, 1)
	convID := acks[0].payload.(*models.Message).ConversationID

	h.dispatch(reader, "222", frame(t, "mark_read", map[string]string{
		"conversationId": convID,
		"counterpartyId": "111",
	}))

	reads := sender.byEvent(service.EventMessagesRead)
	require.Len(t, reads, 1)
	rr := reads[0].payload.(service.MessagesRead)
	assert.Equal(t, convID, rr.ConversationID)
	assert.Equal(t, "222", rr.Reader)
}

func TestDispatchTyping(t *testing.T) {
	h, registry, _ := newTestHandler(t, "111", "222")

	receiver := &fakeConn{}
	registry.Register("222", receiver)
	sender := &fakeConn{}

	h.dispatch(sender, "111", frame(t, "typing", map[string]string{
		"conversationId": "conv-1",
		"receiver":       "222",
	}))
	h.dispatch(sender, "111", frame(t, "stop_typing", map[string]string{
		"conversationId": "conv-1",
		"receiver":       "222",
	}))

	typing := receiver.byEvent(service.EventUserTyping)
	require.Len(t, typing, 1)
	ev := typing[0].payload.(service.TypingEvent)
	assert.Equal(t, "111", ev.Sender)
	assert.Len(t, receiver.byEvent(service.EventUserStopTyping), 1)
}

func TestDispatchMalformedFrame(t *testing.T) {
	h, _, _ := newTestHandler(t, "111")

	c := &fakeConn{}
	h.dispatch(c, "111", []byte("{not json"))

	require.Len(t, c.byEvent(service.EventMessageError), 1)
}

func TestDispatchUnknownEventIgnored(t *testing.T) {
	h, _, _ := newTestHandler(t, "111")

	c := &fakeConn{}
	h.dispatch(c, "111", frame(t, "join_group", map[string]string{"group": "g1"}))
	assert.Empty(t, c.events)
}

func TestClientSendEnvelope(t *testing.T) {
	c := newClient(nil, "111")

	ok := c.Send("receive_message", map[string]string{"text": "hi"})
	require.True(t, ok)

	var env Envelope
	require.NoError(t, json.Unmarshal(<-c.send, &env))
	assert.Equal(t, "receive_message", env.Type)

	var p map[string]string
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "hi", p["text"])
}

func TestClientSendAfterClose(t *testing.T) {
	c := newClient(nil, "111")
	c.Close()
	assert.False(t, c.Send("receive_message", nil))
}

func TestClientSendDropsWhenFull(t *testing.T) {
	c := newClient(nil, "111")
	for i := 0; i < cap(c.send); i++ {
		require.True(t, c.Send("e", i))
	}
	assert.False(t, c.Send("e", "overflow"))
}
