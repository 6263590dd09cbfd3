package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ayushgupta1777/f-vite-backend/internal/errs"
	"github.com/ayushgupta1777/f-vite-backend/internal/metrics"
	"github.com/ayushgupta1777/f-vite-backend/internal/models"
	"github.com/ayushgupta1777/f-vite-backend/internal/repository"
)

// Notifier delivers events to a user's live push connection. Delivery
// is best-effort; the chat operations never block or fail on it.
type Notifier interface {
	IsOnline(mobile string) bool
	Notify(mobile, event string, payload any) bool
}

// EventSink receives message lifecycle events for downstream systems.
type EventSink interface {
	MessageSent(ctx context.Context, m *models.Message)
}

// ChatService is the single authority over chat state. Every
// state-changing operation, whether it arrives over REST or over the
// websocket, goes through one of its methods, so the two transports
// cannot drift in validation or side effects.
type ChatService struct {
	users repository.Users
	convs repository.Conversations
	msgs  repository.Messages

	notifier Notifier
	events   EventSink
	log      *zap.SugaredLogger

	retryDelay time.Duration
}

func NewChatService(store repository.Store, notifier Notifier, events EventSink, log *zap.SugaredLogger) *ChatService {
	return &ChatService{
		users:      store.Users(),
		convs:      store.Conversations(),
		msgs:       store.Messages(),
		notifier:   notifier,
		events:     events,
		log:        log,
		retryDelay: 100 * time.Millisecond,
	}
}

// retry runs fn, retrying exactly once after a short backoff if the
// failure was a transient storage error. Client errors pass through.
func (s *ChatService) retry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !errs.Is(err, errs.KindTransient) {
		return err
	}
	select {
	case <-time.After(s.retryDelay):
	case <-ctx.Done():
		return err
	}
	return fn()
}

// conversationFor resolves the single conversation for an unordered
// pair, creating it on first contact. Participant existence is checked
// strictly before any record is created. Losing the duplicate-pair race
// to a concurrent creator is resolved by re-querying.
func (s *ChatService) conversationFor(ctx context.Context, a, b string) (*models.Conversation, error) {
	conv, err := s.convs.Find(ctx, a, b)
	if err == nil {
		return conv, nil
	}
	if !errs.Is(err, errs.KindNotFound) {
		return nil, err
	}
	for _, p := range []string{a, b} {
		if _, err := s.users.FindByMobile(ctx, p); err != nil {
			return nil, err
		}
	}
	conv, err = s.convs.Create(ctx, a, b)
	if err == nil {
		return conv, nil
	}
	if errs.Is(err, errs.KindConflict) {
		return s.convs.Find(ctx, a, b)
	}
	return nil, err
}

// SendMessage appends a message and applies its effects to the
// conversation (receiver unread +1, last-message pointer, updated
// timestamp), then notifies the receiver's live connection.
//
// convHint, when given, must reference a conversation containing both
// participants; it only skips the pair lookup.
func (s *ChatService) SendMessage(ctx context.Context, sender, receiver, text, convHint string) (*models.Message, *models.Conversation, error) {
	if receiver == "" {
		return nil, nil, errs.Validation("receiver is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil, errs.Validation("text is required")
	}
	if sender == receiver {
		return nil, nil, errs.Validation("cannot send a message to yourself")
	}

	var (
		conv *models.Conversation
		err  error
	)
	if convHint != "" {
		conv, err = s.convs.Get(ctx, convHint)
		if err != nil {
			return nil, nil, err
		}
		if !conv.Has(sender) || !conv.Has(receiver) {
			return nil, nil, errs.Validation("conversation does not match participants")
		}
	} else {
		conv, err = s.conversationFor(ctx, sender, receiver)
		if err != nil {
			return nil, nil, err
		}
	}

	m := &models.Message{
		ConversationID: conv.ID,
		Sender:         sender,
		Receiver:       receiver,
		Text:           text,
	}
	if err := s.retry(ctx, func() error { return s.msgs.Append(ctx, m) }); err != nil {
		return nil, nil, err
	}

	// The append happened-before the counter bump: a reader can see the
	// message without the bump, never the bump without the message.
	err = s.retry(ctx, func() error {
		updated, err := s.convs.ApplyNewMessage(ctx, conv.ID, m)
		if err == nil {
			conv = updated
		}
		return err
	})
	if err != nil {
		// Undo the append so the operation has no partial effect.
		if delErr := s.msgs.Delete(ctx, m.ID); delErr != nil {
			s.log.Errorw("orphaned message after failed conversation update",
				"message", m.ID, "conversation", conv.ID, "err", delErr)
		}
		return nil, nil, err
	}

	if s.notifier.IsOnline(receiver) {
		if s.notifier.Notify(receiver, EventReceiveMessage, m) {
			metrics.PushDelivered.WithLabelValues(EventReceiveMessage).Inc()
		}
		if s.notifier.Notify(receiver, EventNewMessageNotification, NewMessageNotification{
			ConversationID: conv.ID,
			Sender:         sender,
			UnreadCount:    conv.UnreadFor(receiver),
		}) {
			metrics.PushDelivered.WithLabelValues(EventNewMessageNotification).Inc()
		}
	}
	if s.events != nil {
		s.events.MessageSent(ctx, m)
	}
	metrics.MessagesSent.Inc()
	return m, conv, nil
}

// FetchConversation returns the message history between requester and
// other in ascending order, creating the conversation on first contact.
// Opening a conversation acknowledges everything currently addressed to
// the requester (see AcknowledgeRead).
func (s *ChatService) FetchConversation(ctx context.Context, requester, other string) ([]*models.Message, *models.Conversation, error) {
	if other == "" {
		return nil, nil, errs.Validation("counterparty is required")
	}
	if requester == other {
		return nil, nil, errs.Validation("cannot fetch a conversation with yourself")
	}
	conv, err := s.conversationFor(ctx, requester, other)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.msgs.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.AcknowledgeRead(ctx, conv, requester); err != nil {
		return nil, nil, err
	}
	return msgs, conv, nil
}

// MarkRead acknowledges the conversation for reader without fetching
// history. Calling it again with no new messages in between is a no-op.
func (s *ChatService) MarkRead(ctx context.Context, reader, convID, counterparty string) (int64, error) {
	conv, err := s.convs.Get(ctx, convID)
	if err != nil {
		return 0, err
	}
	if !conv.Has(reader) {
		return 0, errs.NotFound("conversation not found")
	}
	if counterparty != "" && conv.Other(reader) != counterparty {
		return 0, errs.Validation("conversation does not match participants")
	}
	return s.AcknowledgeRead(ctx, conv, reader)
}

// AcknowledgeRead is the view-as-read-receipt step: it transitions
// every unread message addressed to reader, then decrements reader's
// unread counter by exactly the number transitioned. Decrementing
// instead of overwriting a recomputed snapshot means a message that
// arrives while this step runs keeps its unread contribution. The
// counterparty gets a messages_read event only when something actually
// transitioned.
func (s *ChatService) AcknowledgeRead(ctx context.Context, conv *models.Conversation, reader string) (int64, error) {
	var transitioned, pending int64
	err := s.retry(ctx, func() error {
		n, err := s.msgs.MarkRead(ctx, conv.ID, reader)
		if err != nil {
			return err
		}
		transitioned += n
		pending += n
		if pending == 0 {
			return nil
		}
		// pending carries transitions whose decrement failed on an
		// earlier attempt; they are not marked again, but still owed.
		if err := s.convs.DecrementUnread(ctx, conv.ID, reader, pending); err != nil {
			return err
		}
		pending = 0
		return nil
	})
	if err != nil {
		return 0, err
	}
	if transitioned > 0 {
		metrics.ReadReceipts.Inc()
		counterparty := conv.Other(reader)
		if s.notifier.Notify(counterparty, EventMessagesRead, MessagesRead{
			ConversationID: conv.ID,
			Reader:         reader,
		}) {
			metrics.PushDelivered.WithLabelValues(EventMessagesRead).Inc()
		}
	}
	return transitioned, nil
}

// ListChats returns the caller's conversations newest-first, each with
// the counterparty's profile and the caller's unread count.
func (s *ChatService) ListChats(ctx context.Context, mobile string) ([]*models.ChatSummary, error) {
	convs, err := s.convs.ListForUser(ctx, mobile)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ChatSummary, 0, len(convs))
	for _, c := range convs {
		other := c.Other(mobile)
		u, err := s.users.FindByMobile(ctx, other)
		if err != nil {
			if errs.Is(err, errs.KindNotFound) {
				s.log.Warnw("conversation references unknown user",
					"conversation", c.ID, "user", other)
				continue
			}
			return nil, err
		}
		out = append(out, &models.ChatSummary{
			ConversationID:   c.ID,
			OtherParticipant: u,
			LastMessage:      c.LastMessage,
			UnreadCount:      c.UnreadFor(mobile),
			UpdatedAt:        c.UpdatedAt,
		})
	}
	return out, nil
}

// Typing relays a typing indicator to the receiver if they are online.
// Nothing is persisted.
func (s *ChatService) Typing(sender, convID, receiver string, stopped bool) {
	if receiver == "" || !s.notifier.IsOnline(receiver) {
		return
	}
	event := EventUserTyping
	if stopped {
		event = EventUserStopTyping
	}
	s.notifier.Notify(receiver, event, TypingEvent{
		ConversationID: convID,
		Sender:         sender,
	})
}

// FindUser looks up a profile by phone number.
func (s *ChatService) FindUser(ctx context.Context, mobile string) (*models.User, error) {
	return s.users.FindByMobile(ctx, mobile)
}

// TouchLastSeen records activity for mobile. Failures are logged only.
func (s *ChatService) TouchLastSeen(ctx context.Context, mobile string) {
	if err := s.users.TouchLastSeen(ctx, mobile, time.Now().UTC()); err != nil {
		s.log.Warnf("touch last seen for %s: %v", mobile, err)
	}
}
