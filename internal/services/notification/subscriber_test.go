package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchen-sync/internal/logger"
	"kitchen-sync/internal/messaging"
	"kitchen-sync/internal/models"
)

// replaySource hands a fixed list of bodies to the handler
type replaySource struct {
	bodies  [][]byte
	results []error
	closed  bool
	err     error
}

func (r *replaySource) StartConsuming(ctx context.Context, handler messaging.MessageHandler) error {
	for _, body := range r.bodies {
		r.results = append(r.results, handler(ctx, body))
	}
	return r.err
}

func (r *replaySource) Close() error {
	r.closed = true
	return nil
}

func event(t *testing.T, msg models.KitchenStatusMessage) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return body
}

func TestSubscriber_Run(t *testing.T) {
	ts := time.Date(2026, 1, 2, 12, 30, 0, 0, time.UTC)
	source := &replaySource{bodies: [][]byte{
		event(t, models.KitchenStatusMessage{KitchenOrderID: "k-1", OrderID: "o-1", OldStatus: "PREPARING", NewStatus: "READY", ChangedBy: "kitchen-timer", Timestamp: ts}),
		[]byte(`{not json`),
		event(t, models.KitchenStatusMessage{OrderID: "o-1"}),
	}}

	var out bytes.Buffer
	sub := NewSubscriber(source, logger.Discard())
	sub.out = &out

	require.NoError(t, sub.Run(context.Background()))
	assert.True(t, source.closed)

	require.Len(t, source.results, 3)
	assert.NoError(t, source.results[0])
	assert.ErrorIs(t, source.results[1], messaging.ErrDiscard)
	assert.ErrorIs(t, source.results[2], messaging.ErrDiscard)

	assert.Equal(t, "✅ [2026-01-02 12:30:00] Order o-1 is ready! Prepared by kitchen-timer.\n", out.String())
}

func TestSubscriber_RunConsumerError(t *testing.T) {
	source := &replaySource{err: errors.New("broker gone")}
	err := NewSubscriber(source, logger.Discard()).Run(context.Background())
	assert.Error(t, err)
	assert.True(t, source.closed)
}

func TestFormatNotification(t *testing.T) {
	ts := time.Date(2026, 1, 2, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		status string
		want   string
	}{
		{"NEW", "🧾 [2026-01-02 12:30:00] Kitchen order k-1 received for order o-1."},
		{"PREPARING", "🍳 [2026-01-02 12:30:00] Order o-1 is now being prepared (chef)."},
		{"IN_PROGRESS", "🍳 [2026-01-02 12:30:00] Order o-1 is now being prepared (chef)."},
		{"SERVED", "🎉 [2026-01-02 12:30:00] Order o-1 has been served."},
		{"CANCELLED", "❌ [2026-01-02 12:30:00] Kitchen order k-1 for order o-1 has been cancelled."},
		{"ODD", "📋 [2026-01-02 12:30:00] Order o-1 kitchen status changed from 'NEW' to 'ODD' by chef."},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			msg := &models.KitchenStatusMessage{
				KitchenOrderID: "k-1",
				OrderID:        "o-1",
				OldStatus:      "NEW",
				NewStatus:      tt.status,
				ChangedBy:      "chef",
				Timestamp:      ts,
			}
			assert.Equal(t, tt.want, formatNotification(msg))
		})
	}
}
