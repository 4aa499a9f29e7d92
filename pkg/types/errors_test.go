package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkTransient(t *testing.T) {
	base := errors.New("connection reset")
	err := MarkTransient(base)

	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, base, "transient wrapper must preserve the cause")
}

func TestIsTransientThroughWrapping(t *testing.T) {
	err := fmt.Errorf("embed batch: %w", MarkTransient(errors.New("429")))
	assert.True(t, IsTransient(err), "transience must survive fmt.Errorf wrapping")
}

func TestPermanentErrorsAreNotTransient(t *testing.T) {
	assert.False(t, IsTransient(errors.New("invalid api key")))
	assert.False(t, IsTransient(nil))
}

func TestMarkTransientNil(t *testing.T) {
	assert.Nil(t, MarkTransient(nil))
}
