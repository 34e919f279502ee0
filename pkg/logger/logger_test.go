package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendwerk/outbox/pkg/logger"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestHandler_ExtractsContextAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(logger.NewHandler(
		slog.NewJSONHandler(&buf, nil),
		logger.IntentIDExtractor,
		logger.AccountExtractor,
	))

	id := uuid.New()
	ctx := logger.WithAccount(logger.WithIntentID(context.Background(), id), "team@example.com")
	log.InfoContext(ctx, "batch started")

	m := logLine(t, &buf)
	assert.Equal(t, id.String(), m["intent_id"])
	assert.Equal(t, "team@example.com", m["account"])
}

func TestHandler_SkipsAbsentValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(logger.NewHandler(
		slog.NewJSONHandler(&buf, nil),
		logger.IntentIDExtractor,
		nil, // nil extractors are filtered, not called
	))

	log.InfoContext(context.Background(), "no intent in context")

	m := logLine(t, &buf)
	_, present := m["intent_id"]
	assert.False(t, present)
}

func TestHandler_WithAttrsKeepsExtraction(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(logger.NewHandler(
		slog.NewJSONHandler(&buf, nil),
		logger.AccountExtractor,
	)).With(slog.String("component", "pipeline"))

	ctx := logger.WithAccount(context.Background(), "team@example.com")
	log.InfoContext(ctx, "hello")

	m := logLine(t, &buf)
	assert.Equal(t, "pipeline", m["component"])
	assert.Equal(t, "team@example.com", m["account"])
}

func TestNewNope_Discards(t *testing.T) {
	t.Parallel()

	log := logger.NewNope()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
}
