package errors_test

import (
	"fmt"
	"testing"

	apperrors "github.com/jrsteele09/vocaprep/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	t.Run("nil error stays nil", func(t *testing.T) {
		require.NoError(t, apperrors.Wrapf(nil, "get %s", "users"))
	})

	t.Run("wrapped error keeps chain", func(t *testing.T) {
		err := apperrors.Wrapf(apperrors.ErrNotFound, "get %s/%s", "users", "u1")
		require.EqualError(t, err, "get users/u1: not found")
		require.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("As finds typed error", func(t *testing.T) {
		type codeErr struct{ error }
		err := fmt.Errorf("outer: %w", codeErr{apperrors.ErrNotFound})
		var target codeErr
		require.True(t, apperrors.As(err, &target))
	})
}
