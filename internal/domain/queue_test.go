package domain

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderingKey(t *testing.T) {
	tests := []struct {
		name string
		item SyncQueueItem
		want string
	}{
		{
			name: "news toggle",
			item: SyncQueueItem{Operation: OpToggleFavoriteNews, Payload: json.RawMessage(`{"entityId":7}`)},
			want: "toggle-favorite-news:7",
		},
		{
			name: "player toggle",
			item: SyncQueueItem{Operation: OpToggleFavoritePlayer, Payload: json.RawMessage(`{"entityId":3}`)},
			want: "toggle-favorite-player:3",
		},
		{
			name: "comment",
			item: SyncQueueItem{Operation: OpCreateComment, Payload: json.RawMessage(`{"newsId":9,"content":"hi"}`)},
			want: "create-comment:9",
		},
		{
			name: "malformed payload",
			item: SyncQueueItem{Operation: OpToggleFavoriteNews, Payload: json.RawMessage(`{`)},
			want: "toggle-favorite-news",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.OrderingKey())
		})
	}
}

func TestSyncQueueItem_PayloadKeptVerbatim(t *testing.T) {
	item := SyncQueueItem{
		ID:        4,
		Operation: OpCreateComment,
		Payload:   json.RawMessage(`{"newsId":9,"content":"hi"}`),
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:    StatusPending,
	}

	data, err := json.Marshal(item)
	require.NoError(t, err)

	var got SyncQueueItem
	require.NoError(t, json.Unmarshal(data, &got))
	assert.JSONEq(t, string(item.Payload), string(got.Payload))
	assert.Equal(t, item.OrderingKey(), got.OrderingKey())
}

func TestReady(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Second)

	assert.True(t, SyncQueueItem{}.Ready(now))
	assert.True(t, SyncQueueItem{NextAttemptAt: &now}.Ready(now))
	assert.False(t, SyncQueueItem{NextAttemptAt: &later}.Ready(now))
}
