// ABOUTME: Tests for the categorized error type and kind extraction
// ABOUTME: Covers wrapping, formatting, and classification of foreign errors

package relay

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(validationError("relay", "message is required")))
	assert.Equal(t, KindNotFound, KindOf(notFoundError("store", "relay", "no such user")))
	assert.Equal(t, KindUpstream, KindOf(upstreamError("channel", "relay", "publish", errors.New("boom"))))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain error")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := upstreamError("completion", "relay", "calling provider", errors.New("timeout"))
	wrapped := fmt.Errorf("handling request: %w", inner)

	assert.Equal(t, KindUpstream, KindOf(wrapped))
}

func TestError_Message(t *testing.T) {
	err := upstreamError("store", "relay", "saving exchange", errors.New("disk full"))
	msg := err.Error()

	assert.Contains(t, msg, "relay")
	assert.Contains(t, msg, "store")
	assert.Contains(t, msg, "saving exchange")
	assert.Contains(t, msg, "disk full")
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := upstreamError("store", "relay", "reading user", cause)

	assert.ErrorIs(t, err, cause)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "upstream", KindUpstream.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}
