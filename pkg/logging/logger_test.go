package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(&Config{Level: level, ServiceName: "warehouse-core", Environment: "test", Version: "v0", Output: buf}), buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_BaseAttributes(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.Info("hello")

	entry := decodeLine(t, buf)
	assert.Equal(t, "warehouse-core", entry["service"])
	assert.Equal(t, "test", entry["environment"])
	assert.Equal(t, "v0", entry["version"])
	assert.Equal(t, "hello", entry["msg"])
}

func TestLogger_ContextAttributes(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithCorrelationID(ctx, "corr-1")
	logger.WithContext(ctx).WithComponent("ledger").WithError(errors.New("boom")).Info("with context")

	entry := decodeLine(t, buf)
	assert.Equal(t, "req-1", entry["requestId"])
	assert.Equal(t, "corr-1", entry["correlationId"])
	assert.Equal(t, "ledger", entry["component"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(LevelWarn)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestLogger_Audit(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.Audit(context.Background(), "assign", "task", "t-1", "alice", map[string]any{"priority": "high"})

	entry := decodeLine(t, buf)
	assert.Equal(t, "assign", entry["auditAction"])
	assert.Equal(t, "task", entry["resource"])
	assert.Equal(t, "t-1", entry["resourceId"])
	assert.Equal(t, "alice", entry["actor"])
	assert.Equal(t, "high", entry["priority"])
}
