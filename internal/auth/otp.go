package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ayushgupta1777/f-vite-backend/internal/errs"
)

// OTPStore holds one-time login codes for a bounded lifetime.
type OTPStore interface {
	Put(ctx context.Context, mobile, code string, ttl time.Duration) error
	// Take returns the stored code for mobile and invalidates it.
	Take(ctx context.Context, mobile string) (string, error)
}

// GenerateOTP returns a random numeric code of the given length.
func GenerateOTP(length int) string {
	const digits = "0123456789"
	if length <= 0 {
		return ""
	}
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			b[i] = '0'
			continue
		}
		b[i] = digits[n.Int64()]
	}
	return string(b)
}

type RedisOTPStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisOTPStore(rdb *redis.Client, prefix string) *RedisOTPStore {
	return &RedisOTPStore{rdb: rdb, prefix: prefix}
}

func (s *RedisOTPStore) key(mobile string) string { return s.prefix + ":otp:" + mobile }

func (s *RedisOTPStore) Put(ctx context.Context, mobile, code string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.key(mobile), code, ttl).Err(); err != nil {
		return errs.Transient("otp store error", err)
	}
	return nil
}

func (s *RedisOTPStore) Take(ctx context.Context, mobile string) (string, error) {
	code, err := s.rdb.GetDel(ctx, s.key(mobile)).Result()
	if err == redis.Nil {
		return "", errs.NotFound("no pending code")
	}
	if err != nil {
		return "", errs.Transient("otp store error", err)
	}
	return code, nil
}

// MemoryOTPStore backs tests and the storage=memory development mode.
// Handlers call it from concurrent requests, so access is locked.
type MemoryOTPStore struct {
	mu    sync.Mutex
	codes map[string]otpEntry
}

type otpEntry struct {
	code    string
	expires time.Time
}

func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{codes: make(map[string]otpEntry)}
}

func (s *MemoryOTPStore) Put(_ context.Context, mobile, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[mobile] = otpEntry{code: code, expires: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryOTPStore) Take(_ context.Context, mobile string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.codes[mobile]
	delete(s.codes, mobile)
	if !ok || time.Now().After(e.expires) {
		return "", errs.NotFound("no pending code")
	}
	return e.code, nil
}
