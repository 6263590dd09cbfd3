package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad input")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("missing")))
	assert.Equal(t, KindConflict, KindOf(Conflict("taken")))
	assert.Equal(t, KindTransient, KindOf(Transient("flaky", errors.New("io"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("send message: %w", NotFound("user not found"))
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindConflict))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "user not found", PublicMessage(NotFound("user not found")))
	// Internal causes never leak to clients.
	assert.Equal(t, "internal error", PublicMessage(errors.New("dial tcp: refused")))
}
