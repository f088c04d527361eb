package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	t.Run("HasCode walks wrapped coded errors", func(t *testing.T) {
		root := errors.New("connection refused")
		err := Wrap(Wrap(root, CodeUnavailable, "store unavailable"), CodeInternal, "failed to patch")

		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodeUnavailable))
		assert.False(t, HasCode(err, CodeNotFound))
		assert.ErrorIs(t, err, root)
	})

	t.Run("HasCode sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeEmptyPatch, "patch must set at least one field"))
		assert.True(t, HasCode(err, CodeEmptyPatch))
		assert.Equal(t, CodeEmptyPatch, CodeOf(err))
	})

	t.Run("uncoded errors are internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
		assert.False(t, HasCode(nil, CodeInternal))
	})

	t.Run("Wrap of nil is nil", func(t *testing.T) {
		require.NoError(t, Wrap(nil, CodeInternal, "unused"))
	})

	t.Run("message includes cause", func(t *testing.T) {
		err := Wrap(errors.New("timeout"), CodeUnavailable, "redis")
		assert.Equal(t, "redis: timeout", err.Error())
		assert.Equal(t, "redis", MessageOf(err))
	})
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:      http.StatusBadRequest,
		CodeEmptyPatch:      http.StatusBadRequest,
		CodeInvalidField:    http.StatusBadRequest,
		CodeUnknownRelative: http.StatusBadRequest,
		CodeNotFound:        http.StatusNotFound,
		CodeConflict:        http.StatusConflict,
		CodeUnavailable:     http.StatusServiceUnavailable,
		CodeInternal:        http.StatusInternalServerError,
		Code("mystery"):     http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, ToHTTPStatus(code), string(code))
	}
}
