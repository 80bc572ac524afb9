package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPErrorMessage(t *testing.T) {
	err := HTTP(404, "Not Found")

	assert.Equal(t, "HTTP 404: Not Found", err.Error())
	assert.Equal(t, KindHTTP, err.Kind)
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := DuplicateKey(3, stderrors.New("E11000"))
	wrapped := fmt.Errorf("batch 2: %w", base)

	assert.True(t, IsKind(wrapped, KindDuplicateKey))
	assert.False(t, IsKind(wrapped, KindStorage))
	assert.Equal(t, KindDuplicateKey, KindOf(wrapped))

	var e *Error
	assert.True(t, As(wrapped, &e))
	assert.Equal(t, 3, e.Code)
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(stderrors.New("boom")))
	assert.False(t, IsKind(nil, KindConfig))
}

func TestStorageUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Storage("insert items", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "storage error: insert items")
}
