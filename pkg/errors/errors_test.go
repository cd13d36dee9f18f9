package errors

import (
	"database/sql"
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	err := Clone(ErrNotFound, "class not found")
	got := FromError(err)
	require.NotNil(t, got)
	assert.Equal(t, "NOT_FOUND", got.Code)
	assert.Equal(t, "class not found", got.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	got := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.ErrorIs(t, got, sql.ErrConnDone)
}

func TestClonedErrorsMatchByCode(t *testing.T) {
	err := Wrap(Clone(ErrEmailInUse, "taken"), ErrConflict.Code, ErrConflict.Status, "signup failed")
	assert.True(t, stderrors.Is(err.Err, ErrEmailInUse))
	assert.False(t, stderrors.Is(err.Err, ErrWeakPassword))
}

func TestAuthMessage(t *testing.T) {
	assert.Contains(t, AuthMessage(ErrEmailInUse.Code), "already exists")
	assert.Equal(t, "Something went wrong. Please try again.", AuthMessage("SOMETHING_ELSE"))
}
