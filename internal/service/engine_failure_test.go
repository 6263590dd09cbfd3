package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ayushgupta1777/f-vite-backend/internal/errs"
	"github.com/ayushgupta1777/f-vite-backend/internal/models"
	"github.com/ayushgupta1777/f-vite-backend/internal/repository"
)

// flakyStore injects transient failures into selected operations.
type flakyStore struct {
	repository.Store
	failAppends    int
	failApplies    int
	failDecrements int
}

func (f *flakyStore) Messages() repository.Messages {
	return &flakyMessages{Messages: f.Store.Messages(), store: f}
}

func (f *flakyStore) Conversations() repository.Conversations {
	return &flakyConversations{Conversations: f.Store.Conversations(), store: f}
}

type flakyMessages struct {
	repository.Messages
	store *flakyStore
}

func (m *flakyMessages) Append(ctx context.Context, msg *models.Message) error {
	if m.store.failAppends > 0 {
		m.store.failAppends--
		return errs.Transient("storage error", errors.New("injected"))
	}
	return m.Messages.Append(ctx, msg)
}

type flakyConversations struct {
	repository.Conversations
	store *flakyStore
}

func (c *flakyConversations) ApplyNewMessage(ctx context.Context, convID string, m *models.Message) (*models.Conversation, error) {
	if c.store.failApplies > 0 {
		c.store.failApplies--
		return nil, errs.Transient("storage error", errors.New("injected"))
	}
	return c.Conversations.ApplyNewMessage(ctx, convID, m)
}

func (c *flakyConversations) DecrementUnread(ctx context.Context, convID, mobile string, n int64) error {
	if c.store.failDecrements > 0 {
		c.store.failDecrements--
		return errs.Transient("storage error", errors.New("injected"))
	}
	return c.Conversations.DecrementUnread(ctx, convID, mobile, n)
}

func newFlakyChat(t *testing.T, failAppends, failApplies int) (*ChatService, *flakyStore, repository.Store) {
	t.Helper()
	mem := repository.NewMemoryStore()
	ctx := context.Background()
	for _, m := range []string{"111", "222"} {
		require.NoError(t, mem.Users().Create(ctx, &models.User{Mobile: m}))
	}
	fs := &flakyStore{Store: mem, failAppends: failAppends, failApplies: failApplies}
	svc := NewChatService(fs, newFakeNotifier(), nil, zap.NewNop().Sugar())
	svc.retryDelay = 0
	return svc, fs, mem
}

func TestSendMessageRetriesTransientAppend(t *testing.T) {
	ctx := context.Background()
	svc, _, mem := newFlakyChat(t, 1, 0)

	msg, conv, err := svc.SendMessage(ctx, "111", "222", "hi", "")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, int64(1), conv.UnreadFor("222"))

	msgs, err := mem.Messages().ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestSendMessageRetriesTransientApply(t *testing.T) {
	ctx := context.Background()
	svc, _, mem := newFlakyChat(t, 0, 1)

	_, conv, err := svc.SendMessage(ctx, "111", "222", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), conv.UnreadFor("222"))

	msgs, err := mem.Messages().ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestSendMessageNoPartialEffect(t *testing.T) {
	ctx := context.Background()
	// The conversation update fails on the first try and on the retry:
	// the appended message must be rolled back.
	svc, _, mem := newFlakyChat(t, 0, 2)

	_, _, err := svc.SendMessage(ctx, "111", "222", "hi", "")
	require.Error(t, err)
	assert.Equal(t, errs.KindTransient, errs.KindOf(err))

	conv, err := mem.Conversations().Find(ctx, "111", "222")
	require.NoError(t, err)
	assert.Equal(t, int64(0), conv.UnreadFor("222"))
	assert.Nil(t, conv.LastMessage)

	msgs, err := mem.Messages().ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs, "append must be undone when the counter update cannot land")
}

func TestMarkReadRetriesOwedDecrement(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemoryStore()
	for _, m := range []string{"111", "222"} {
		require.NoError(t, mem.Users().Create(ctx, &models.User{Mobile: m}))
	}
	fs := &flakyStore{Store: mem, failDecrements: 1}
	svc := NewChatService(fs, newFakeNotifier(), nil, zap.NewNop().Sugar())
	svc.retryDelay = 0

	_, conv, err := svc.SendMessage(ctx, "111", "222", "hi", "")
	require.NoError(t, err)
	_, _, err = svc.SendMessage(ctx, "111", "222", "there", conv.ID)
	require.NoError(t, err)

	// The first decrement fails after the messages already transitioned.
	// The retry finds nothing left to mark but still owes the counter
	// the original two.
	n, err := svc.MarkRead(ctx, "222", conv.ID, "111")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := mem.Conversations().Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.UnreadFor("222"))
}

func TestSendMessageGivesUpAfterOneRetry(t *testing.T) {
	ctx := context.Background()
	svc, fs, _ := newFlakyChat(t, 3, 0)

	_, _, err := svc.SendMessage(ctx, "111", "222", "hi", "")
	require.Error(t, err)
	assert.Equal(t, errs.KindTransient, errs.KindOf(err))
	// Two attempts were consumed, not three.
	assert.Equal(t, 1, fs.failAppends)
}
