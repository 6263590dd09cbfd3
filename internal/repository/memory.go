package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayushgupta1777/f-vite-backend/internal/errs"
	"github.com/ayushgupta1777/f-vite-backend/internal/models"
)

// MemoryStore is a process-local Store. It backs tests and the
// storage=memory development mode, and mirrors the Mongo behavior
// including the duplicate-pair conflict on conversation creation.
type MemoryStore struct {
	mu sync.Mutex

	usersByMobile map[string]*models.User
	convsByID     map[string]*models.Conversation
	convsByPair   map[string]string // pair key -> conversation id
	msgsByConv    map[string][]*models.Message
	msgConv       map[string]string // message id -> conversation id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		usersByMobile: make(map[string]*models.User),
		convsByID:     make(map[string]*models.Conversation),
		convsByPair:   make(map[string]string),
		msgsByConv:    make(map[string][]*models.Message),
		msgConv:       make(map[string]string),
	}
}

func (s *MemoryStore) Users() Users                 { return (*memUsers)(s) }
func (s *MemoryStore) Conversations() Conversations { return (*memConversations)(s) }
func (s *MemoryStore) Messages() Messages           { return (*memMessages)(s) }

func copyUser(u *models.User) *models.User {
	cp := *u
	return &cp
}

func copyMessage(m *models.Message) *models.Message {
	cp := *m
	return &cp
}

func copyConversation(c *models.Conversation) *models.Conversation {
	cp := *c
	cp.Unread = make(map[string]int64, len(c.Unread))
	for k, v := range c.Unread {
		cp.Unread[k] = v
	}
	if c.LastMessage != nil {
		cp.LastMessage = copyMessage(c.LastMessage)
	}
	return &cp
}

type memUsers MemoryStore

func (s *memUsers) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByMobile[u.Mobile]; ok {
		return errs.Conflict("user already exists")
	}
	now := time.Now().UTC()
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.LastSeen = now
	s.usersByMobile[u.Mobile] = copyUser(u)
	return nil
}

func (s *memUsers) FindByMobile(_ context.Context, mobile string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByMobile[mobile]
	if !ok {
		return nil, errs.NotFound("user not found")
	}
	return copyUser(u), nil
}

func (s *memUsers) TouchLastSeen(_ context.Context, mobile string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.usersByMobile[mobile]; ok {
		u.LastSeen = at.UTC()
	}
	return nil
}

func (s *memUsers) UpdateProfilePicture(_ context.Context, mobile, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByMobile[mobile]
	if !ok {
		return errs.NotFound("user not found")
	}
	u.ProfilePicture = url
	return nil
}

type memConversations MemoryStore

func (s *memConversations) Find(_ context.Context, a, b string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.convsByPair[models.PairKey(a, b)]
	if !ok {
		return nil, errs.NotFound("conversation not found")
	}
	return copyConversation(s.convsByID[id]), nil
}

func (s *memConversations) Create(_ context.Context, a, b string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.PairKey(a, b)
	if _, ok := s.convsByPair[key]; ok {
		return nil, errs.Conflict("conversation already exists")
	}
	now := time.Now().UTC()
	c := &models.Conversation{
		ID:           uuid.NewString(),
		PairKey:      key,
		Participants: [2]string{a, b},
		Unread:       map[string]int64{a: 0, b: 0},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.convsByID[c.ID] = c
	s.convsByPair[key] = c.ID
	return copyConversation(c), nil
}

func (s *memConversations) Get(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convsByID[id]
	if !ok {
		return nil, errs.NotFound("conversation not found")
	}
	return copyConversation(c), nil
}

func (s *memConversations) ListForUser(_ context.Context, mobile string) ([]*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Conversation
	for _, c := range s.convsByID {
		if c.Has(mobile) {
			out = append(out, copyConversation(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *memConversations) ApplyNewMessage(_ context.Context, convID string, m *models.Message) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convsByID[convID]
	if !ok {
		return nil, errs.NotFound("conversation not found")
	}
	if c.Unread == nil {
		c.Unread = make(map[string]int64)
	}
	c.Unread[m.Receiver]++
	c.LastMessage = copyMessage(m)
	c.UpdatedAt = m.CreatedAt
	return copyConversation(c), nil
}

func (s *memConversations) DecrementUnread(_ context.Context, convID, mobile string, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convsByID[convID]
	if !ok {
		return errs.NotFound("conversation not found")
	}
	if c.Unread == nil {
		c.Unread = make(map[string]int64)
	}
	c.Unread[mobile] -= n
	if c.Unread[mobile] < 0 {
		c.Unread[mobile] = 0
	}
	return nil
}

type memMessages MemoryStore

func (s *memMessages) Append(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now().UTC()
	s.msgsByConv[m.ConversationID] = append(s.msgsByConv[m.ConversationID], copyMessage(m))
	s.msgConv[m.ID] = m.ConversationID
	return nil
}

func (s *memMessages) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	convID, ok := s.msgConv[id]
	if !ok {
		return nil
	}
	msgs := s.msgsByConv[convID]
	for i, m := range msgs {
		if m.ID == id {
			s.msgsByConv[convID] = append(msgs[:i], msgs[i+1:]...)
			break
		}
	}
	delete(s.msgConv, id)
	return nil
}

func (s *memMessages) ListByConversation(_ context.Context, convID string) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.msgsByConv[convID]
	out := make([]*models.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, copyMessage(m))
	}
	// Slices hold append order already; the stable sort keeps that
	// order for equal timestamps.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memMessages) MarkRead(_ context.Context, convID, reader string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.msgsByConv[convID] {
		if m.Receiver == reader && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (s *memMessages) CountUnread(_ context.Context, convID, receiver string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.msgsByConv[convID] {
		if m.Receiver == receiver && !m.Read {
			n++
		}
	}
	return n, nil
}
