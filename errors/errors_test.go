package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWithHintf(t *testing.T) {
	err := New("error")
	withHint := WithHintf(err, "try again in %d second(s)", 3)

	hints := GetAllHints(withHint)
	require.Len(t, hints, 1)
	assert.Equal(t, "try again in 3 second(s)", hints[0])
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, WithHint(nil, "hint"))
	assert.Nil(t, WithDetail(nil, "detail"))
	assert.Nil(t, WrapTransport(nil, "context"))
}

func TestNewPolicyRejection(t *testing.T) {
	err := NewPolicyRejection("This host license does not allow multi-step jobs.")

	assert.Equal(t, "This host license does not allow multi-step jobs.", err.Error())
	assert.True(t, IsPolicyRejectedError(err))
	assert.False(t, IsRateLimitedError(err))
	assert.False(t, IsTransportError(err))
}

func TestNewRateLimited(t *testing.T) {
	err := NewRateLimited(2, "window")

	assert.True(t, IsRateLimitedError(err))
	assert.Contains(t, err.Error(), "window")
	assert.Contains(t, GetAllHints(err), "try again in 2 second(s)")
}

func TestWrapTransport(t *testing.T) {
	cause := New("connection refused")
	err := WrapTransport(cause, "failed to submit job")

	assert.True(t, IsTransportError(err))
	assert.True(t, Is(err, cause))
	assert.Contains(t, err.Error(), "failed to submit job")
	assert.Contains(t, err.Error(), "connection refused")

	// Wrapping again keeps the classification
	outer := Wrap(err, "submit")
	assert.True(t, IsTransportError(outer))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrPolicyRejected, ErrRateLimited, ErrTransport, ErrBestEffort,
		ErrNotFound, ErrInvalidRequest, ErrUnauthorized, ErrForbidden,
		ErrServiceUnavailable, ErrTimeout,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, Is(a, b), "%v should not match %v", a, b)
		}
	}
}

func ExampleWrapTransport() {
	err := WrapTransport(New("connection refused"), "failed to submit job")
	fmt.Println(err, IsTransportError(err))
	// Output: failed to submit job: connection refused true
}
