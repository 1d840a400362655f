package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferedSlogHandler_Captures(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.Info("normalized batch", slog.Int("rows", 3))
	logger.Error("export failed", slog.String("path", "out.csv"))

	assert.Equal(t, 2, handler.Count())
	assert.True(t, handler.ContainsMessage("normalized"))
	assert.True(t, handler.ContainsAttr("rows", int64(3)))
	assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)

	handler.Clear()
	assert.Equal(t, 0, handler.Count())
}

func TestBufferedSlogHandler_DerivedLoggersShareBuffer(t *testing.T) {
	logger, handler := NewTestLogger(t)

	component := logger.With(slog.String("component", "cleaner"))
	component.WithGroup("stats").Warn("duplicate rows", slog.Int("count", 2))

	records := handler.GetRecords()
	assert.Len(t, records, 1)
	assert.Equal(t, "cleaner", records[0].Attrs["component"])
	assert.Equal(t, int64(2), records[0].Attrs["stats.count"])
	AssertLogContains(t, handler, slog.LevelWarn, "duplicate")
}
