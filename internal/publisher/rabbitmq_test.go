package publisher

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news_offline/internal/domain"
)

func TestNewDeadLetterMessage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	item := domain.SyncQueueItem{ID: 7, Operation: domain.OpCreateComment, RetryCount: 5}

	tests := []struct {
		name   string
		reason error
		kind   string
	}{
		{
			name:   "ceiling",
			reason: fmt.Errorf("%w: after 6 attempts", domain.ErrQueueCeilingExceeded),
			kind:   "retry_ceiling",
		},
		{
			name:   "rejected",
			reason: &domain.ApplicationError{Procedure: "comments.create", Code: "BAD_REQUEST", Message: "empty"},
			kind:   "rejected",
		},
		{
			name: "no reason",
			kind: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewDeadLetterMessage(item, tt.reason, now)

			assert.Equal(t, ActionDeadLetter, msg.Action)
			assert.Equal(t, tt.kind, msg.Kind)
			assert.Equal(t, uint64(7), msg.Item.ID)
			assert.Equal(t, time.UTC, msg.Timestamp.Location())
			_, err := uuid.Parse(msg.ID)
			require.NoError(t, err)
			if tt.reason != nil {
				assert.Equal(t, tt.reason.Error(), msg.Reason)
			}
		})
	}
}
