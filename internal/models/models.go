package models

import (
	"sort"
	"time"
)

// User is an account keyed by its phone number. The mobile number is the
// identifier used everywhere else in the system; the object id only exists
// because the store needs a primary key.
type User struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	Mobile         string    `bson:"mobile" json:"mobile"`
	ProfilePicture string    `bson:"profile_picture,omitempty" json:"profilePicture,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
	LastSeen       time.Time `bson:"last_seen" json:"lastSeen"`
}

// Message belongs to exactly one conversation. Immutable after creation
// except for the read flag, which only ever moves false -> true.
type Message struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	Sender         string    `bson:"sender" json:"sender"`
	Receiver       string    `bson:"receiver" json:"receiver"`
	Text           string    `bson:"text" json:"text"`
	Read           bool      `bson:"read" json:"read"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}

// Conversation pairs exactly two participants. PairKey is the canonical
// form of the pair and carries a unique index, which is what makes
// concurrent first-contact converge on a single record.
type Conversation struct {
	ID           string           `bson:"_id,omitempty" json:"id"`
	PairKey      string           `bson:"pair_key" json:"-"`
	Participants [2]string        `bson:"participants" json:"participants"`
	Unread       map[string]int64 `bson:"unread" json:"unread"`
	LastMessage  *Message         `bson:"last_message,omitempty" json:"lastMessage,omitempty"`
	CreatedAt    time.Time        `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time        `bson:"updated_at" json:"updatedAt"`
}

// PairKey canonicalizes an unordered participant pair.
func PairKey(a, b string) string {
	p := []string{a, b}
	sort.Strings(p)
	return p[0] + "|" + p[1]
}

func (c *Conversation) Has(mobile string) bool {
	return c.Participants[0] == mobile || c.Participants[1] == mobile
}

// Other returns the counterparty of mobile, or "" if mobile is not a
// participant.
func (c *Conversation) Other(mobile string) string {
	switch mobile {
	case c.Participants[0]:
		return c.Participants[1]
	case c.Participants[1]:
		return c.Participants[0]
	}
	return ""
}

func (c *Conversation) UnreadFor(mobile string) int64 {
	if c.Unread == nil {
		return 0
	}
	return c.Unread[mobile]
}

// ChatSummary is one row of the conversation list returned to a caller:
// the conversation as seen from that caller's side.
type ChatSummary struct {
	ConversationID   string    `json:"conversationId"`
	OtherParticipant *User     `json:"otherParticipant"`
	LastMessage      *Message  `json:"lastMessage,omitempty"`
	UnreadCount      int64     `json:"unreadCount"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
