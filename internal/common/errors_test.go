package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageError_Is(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("loading file: %w", NewStorageError("get file", cause))

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get file")
}

func TestNewStorageError_KeepsSentinels(t *testing.T) {
	assert.NoError(t, NewStorageError("noop", nil))

	wrapped := fmt.Errorf("file x: %w", ErrNotFound)
	assert.Same(t, wrapped, NewStorageError("get file", wrapped))

	var se *StorageError
	assert.False(t, errors.As(NewStorageError("save", ErrConflict), &se))
}

func TestParseLevel_Strings(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"WARN":    "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"verbose": "INFO",
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in).String(), in)
	}
}
