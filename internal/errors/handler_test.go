package errors

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandler_Handle(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		want    string
		wantLog string
	}{
		{
			name:    "validation error returns its message",
			err:     NewValidationError("Hour must be between 0 and 23"),
			want:    "Hour must be between 0 and 23",
			wantLog: "code=E100",
		},
		{
			name:    "wrapped storage error returns generic message",
			err:     fmt.Errorf("add: %w", NewStorageError("store", fmt.Errorf("dial tcp: timeout"))),
			want:    GenericUserMessage,
			wantLog: "cause=\"dial tcp: timeout\"",
		},
		{
			name:    "unknown error",
			err:     fmt.Errorf("boom"),
			want:    GenericUserMessage,
			wantLog: "unknown error",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := NewHandler(slog.New(slog.NewTextHandler(&buf, nil)), false)

			got := h.Handle(context.Background(), tc.err)
			assert.Equal(t, tc.want, got)
			assert.Contains(t, buf.String(), tc.wantLog)
		})
	}
}

func TestHandler_HandleNil(t *testing.T) {
	h := NewHandler(nil, false)
	assert.Empty(t, h.Handle(context.Background(), nil))
}
