package errx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = errors.New("sentinel failed")

func TestWrap(t *testing.T) {
	cause := errors.New("underlying cause")
	err := Wrap(errSentinel, cause)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errSentinel))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "sentinel failed")
	assert.Contains(t, err.Error(), "underlying cause")
}

func TestWith(t *testing.T) {
	err := With(errSentinel, ": slot %d out of range", 7)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errSentinel))
	assert.Contains(t, err.Error(), "slot 7 out of range")
}

func TestWith_WrapsAdditionalError(t *testing.T) {
	cause := errors.New("read failed")
	err := With(errSentinel, ": %w", cause)

	assert.True(t, errors.Is(err, errSentinel))
	assert.True(t, errors.Is(err, cause))
}
