package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorboard/notifier/pkg/logger"
	"github.com/tutorboard/notifier/pkg/requestid"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithFormat(logger.FormatJSON),
			logger.WithOutput(&buf),
			logger.WithAttr(slog.String("service", "notifier")),
		)
		log.Info("broadcast created", slog.Int("recipients", 3))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "broadcast created", record["msg"])
		assert.Equal(t, "notifier", record["service"])
		assert.EqualValues(t, 3, record["recipients"])
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithFormat(logger.FormatText),
			logger.WithOutput(&buf),
		)
		log.Info("worker started")
		assert.Contains(t, buf.String(), "worker started")
	})

	t.Run("development enables debug level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithDevelopment("notifier"),
			logger.WithOutput(&buf),
		)
		log.Debug("claimed task")
		assert.Contains(t, buf.String(), "claimed task")
	})

	t.Run("production suppresses debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithProduction("notifier"),
			logger.WithOutput(&buf),
		)
		log.Debug("claimed task")
		assert.Empty(t, buf.String())
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			logger.New(logger.WithFormat(logger.Format("xml")))
		})
	})
}

func TestWithContextExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithFormat(logger.FormatJSON),
		logger.WithOutput(&buf),
		logger.WithContextExtractor(requestid.LoggerExtractor()),
	)

	ctx := requestid.WithContext(context.Background(), "req-123")
	log.InfoContext(ctx, "claimed task")
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)

	// A context without a request ID logs cleanly, no empty attribute.
	buf.Reset()
	log.Info("worker started")
	assert.NotContains(t, buf.String(), "request_id")
}

func TestAttrHelpers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithFormat(logger.FormatJSON), logger.WithOutput(&buf))

	broadcastID := uuid.New()
	log.Info("email delivered",
		logger.BroadcastID(broadcastID),
		logger.Component("worker"),
		logger.RetryCount(2),
	)

	out := buf.String()
	assert.True(t, strings.Contains(out, broadcastID.String()))
	assert.Contains(t, out, `"component":"worker"`)
	assert.Contains(t, out, `"retry_count":2`)
}
