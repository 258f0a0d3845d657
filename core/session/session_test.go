package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore().(*memoryStore)
	store.nowFunc = func() time.Time { return now }

	require.NoError(t, store.Revoke(ctx, "sid-1", time.Hour))
	require.NoError(t, store.Revoke(ctx, "sid-2", 0))

	tests := []struct {
		name  string
		id    string
		after time.Duration
		want  bool
	}{
		{"revoked", "sid-1", 0, true},
		{"zero ttl ignored", "sid-2", 0, false},
		{"unknown", "sid-3", 0, false},
		{"expired", "sid-1", time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.nowFunc = func() time.Time { return now.Add(tt.after) }
			got, err := store.IsRevoked(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
