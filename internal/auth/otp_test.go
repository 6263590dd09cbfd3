package auth

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushgupta1777/f-vite-backend/internal/errs"
)

func TestMemoryOTPStoreSingleUse(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOTPStore()

	require.NoError(t, s.Put(ctx, "111", "1234", time.Minute))

	code, err := s.Take(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, "1234", code)

	_, err = s.Take(ctx, "111")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestMemoryOTPStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOTPStore()

	require.NoError(t, s.Put(ctx, "111", "1234", -time.Second))
	_, err := s.Take(ctx, "111")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestMemoryOTPStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOTPStore()

	// Concurrent request handlers hit the store for overlapping numbers.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mobile := strconv.Itoa(i % 2)
			for j := 0; j < 200; j++ {
				require.NoError(t, s.Put(ctx, mobile, "1234", time.Minute))
				_, _ = s.Take(ctx, mobile)
			}
		}(i)
	}
	wg.Wait()
}
