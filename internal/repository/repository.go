package repository

import (
	"context"
	"time"

	"github.com/ayushgupta1777/f-vite-backend/internal/models"
)

// Users is the identity directory: accounts keyed by phone number.
type Users interface {
	// Create inserts a new account. A duplicate mobile number is a
	// conflict, never a silent success.
	Create(ctx context.Context, u *models.User) error
	FindByMobile(ctx context.Context, mobile string) (*models.User, error)
	TouchLastSeen(ctx context.Context, mobile string, at time.Time) error
	UpdateProfilePicture(ctx context.Context, mobile, url string) error
}

// Conversations owns the pair -> conversation mapping and the
// per-participant unread counters.
type Conversations interface {
	// Find looks up the conversation for an unordered pair.
	Find(ctx context.Context, a, b string) (*models.Conversation, error)
	// Create inserts a conversation for the pair. A concurrent insert
	// for the same pair fails with a conflict; the caller re-queries.
	Create(ctx context.Context, a, b string) (*models.Conversation, error)
	Get(ctx context.Context, id string) (*models.Conversation, error)
	// ListForUser returns the user's conversations sorted by
	// updated_at descending.
	ListForUser(ctx context.Context, mobile string) ([]*models.Conversation, error)
	// ApplyNewMessage bumps the receiver's unread counter, sets the
	// last-message pointer and the updated timestamp in one atomic
	// update, returning the conversation as of after the update.
	ApplyNewMessage(ctx context.Context, convID string, m *models.Message) (*models.Conversation, error)
	// DecrementUnread subtracts n from one participant's unread
	// counter, flooring at zero. Decrementing (rather than overwriting
	// with a recomputed value) keeps a concurrent increment from being
	// lost.
	DecrementUnread(ctx context.Context, convID, mobile string, n int64) error
}

// Messages is the append-only per-conversation message log.
type Messages interface {
	// Append stores m, assigning its id and creation time.
	Append(ctx context.Context, m *models.Message) error
	// Delete removes a message by id. Used only to undo an append whose
	// conversation update could not be applied.
	Delete(ctx context.Context, id string) error
	// ListByConversation returns messages ascending by creation time,
	// ties broken by append order.
	ListByConversation(ctx context.Context, convID string) ([]*models.Message, error)
	// MarkRead flips read=false to read=true on every message in the
	// conversation addressed to reader, returning how many changed.
	MarkRead(ctx context.Context, convID, reader string) (int64, error)
	// CountUnread counts messages addressed to receiver with read=false.
	CountUnread(ctx context.Context, convID, receiver string) (int64, error)
}

// Store bundles the three collections behind one handle.
type Store interface {
	Users() Users
	Conversations() Conversations
	Messages() Messages
}
