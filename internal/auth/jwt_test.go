package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewManager("secret", time.Hour)

	token, err := m.Issue("user-1", "111")
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "111", claims.Mobile)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestExpiredTokenRejected(t *testing.T) {
	m := NewManager("secret", -time.Minute)

	token, err := m.Issue("user-1", "111")
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.Error(t, err)
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := NewManager("secret-a", time.Hour).Issue("user-1", "111")
	require.NoError(t, err)

	_, err = NewManager("secret-b", time.Hour).Verify(token)
	assert.Error(t, err)
}

func TestGarbageTokenRejected(t *testing.T) {
	_, err := NewManager("secret", time.Hour).Verify("not-a-token")
	assert.Error(t, err)
}

func TestGenerateOTP(t *testing.T) {
	code := GenerateOTP(4)
	require.Len(t, code, 4)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
	assert.Empty(t, GenerateOTP(0))
}
