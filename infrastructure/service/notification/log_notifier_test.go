package notification

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensetrack/expensetrack/infrastructure/service/logger"
)

func TestLogNotifier(t *testing.T) {
	const link = "https://app.example.com/reset?token=abc"
	expires := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("redacts link", func(t *testing.T) {
		var buf bytes.Buffer
		n := NewLogNotifier(logger.NewStructuredLogger(logger.LoggerConfig{Level: "info", Format: "json", Output: &buf}), false)

		require.NoError(t, n.SendPasswordReset(context.Background(), "ann@example.com", link, expires))
		assert.NotContains(t, buf.String(), "token=abc")
		assert.Contains(t, buf.String(), logger.Redacted)
		assert.Contains(t, buf.String(), "2026-01-02T03:04:05Z")
	})

	t.Run("includes link outside production", func(t *testing.T) {
		var buf bytes.Buffer
		n := NewLogNotifier(logger.NewStructuredLogger(logger.LoggerConfig{Level: "info", Format: "json", Output: &buf}), true)

		require.NoError(t, n.SendPasswordReset(context.Background(), "ann@example.com", link, expires))
		assert.Contains(t, buf.String(), "token=abc")
	})
}
