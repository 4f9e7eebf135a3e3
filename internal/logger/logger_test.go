package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("kitchen-service", &buf)

	log.Info("timer_skipped", "order already terminal", "req-1", map[string]interface{}{
		"kitchen_order_id": "k-1",
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "order already terminal", entry["msg"])
	assert.Equal(t, "kitchen-service", entry["service"])
	assert.Equal(t, "timer_skipped", entry["action"])
	assert.Equal(t, "req-1", entry["request_id"])

	fields, ok := entry["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "k-1", fields["kitchen_order_id"])
}

func TestLogger_ErrorGroup(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantGroup bool
	}{
		{name: "with error", err: errors.New("boom"), wantGroup: true},
		{name: "nil error", err: nil, wantGroup: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewWithWriter("svc", &buf).Error("callback_failed", "failed", "", tt.err, nil)

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			group, ok := entry["error"].(map[string]interface{})
			assert.Equal(t, tt.wantGroup, ok)
			if tt.wantGroup {
				assert.Equal(t, "boom", group["msg"])
			}
			_, hasFields := entry["fields"]
			assert.False(t, hasFields)
		})
	}
}

func TestGenerateRequestID_Unique(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
