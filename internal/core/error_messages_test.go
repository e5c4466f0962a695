package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "size limit",
			err:         fmt.Errorf("read upload: %w: more than 10 bytes", ErrFileTooLarge),
			wantCode:    "FILE001",
			wantMessage: "File exceeds the maximum upload size",
		},
		{
			name:        "rename length mismatch",
			err:         errors.New("rename_columns: names length mismatch: got 2 names for 3 columns"),
			wantCode:    "COL003",
			wantMessage: "The number of new names does not match the number of columns",
		},
		{
			name:        "mismatch wins over invalid params prefix",
			err:         errors.New("invalid params for rename_columns: names length mismatch"),
			wantCode:    "COL003",
			wantMessage: "The number of new names does not match the number of columns",
		},
		{
			name:        "undo on fresh file",
			err:         ErrNothingToUndo,
			wantCode:    "HIST001",
			wantMessage: "There is nothing to undo",
		},
		{
			name:        "missing column",
			err:         errors.New(`column not found: "Temp"`),
			wantCode:    "COL001",
			wantMessage: "A selected column does not exist",
		},
		{
			name:        "wrapped file not found",
			err:         fmt.Errorf("apply: %w", ErrFileNotFound),
			wantCode:    "FILE006",
			wantMessage: "That file is not loaded in this session",
		},
		{
			name:        "typed cell validation before date errors",
			err:         errors.New("validation failed: row 3, time: invalid date format (use YYYY-MM-DD or similar)"),
			wantCode:    "DB005",
			wantMessage: "Some cells do not match their column types",
		},
		{
			name:        "malformed request",
			err:         errors.New("invalid request: task failed required"),
			wantCode:    "REQ001",
			wantMessage: "The request could not be understood",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("EMPTY FILE"),
			wantCode:    "FILE005",
			wantMessage: "The uploaded file is empty",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMessage, got.Message)
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrNothingToRedo)
	assert.Equal(t, "There is nothing to redo (Code: HIST002). Undo a task first", got)
	assert.Empty(t, FormatUserError(nil))
}

func TestIsUserFacing(t *testing.T) {
	assert.False(t, IsUserFacing(nil))
	assert.True(t, IsUserFacing(errors.New("empty file")))
	assert.False(t, IsUserFacing(errors.New("random internal error xyz")))
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		assert.Nil(t, NewUserError(nil))
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := errors.New("invalid date in row 3")
		userErr := NewUserError(techErr)
		require.NotNil(t, userErr)

		assert.Equal(t, "A value could not be read as a date", userErr.Error())
		assert.Equal(t, "DATE001", userErr.User.Code)
		assert.ErrorIs(t, userErr, techErr)
	})
}
