package logger

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type memorySink struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (s *memorySink) AddLog(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func TestDBCore(t *testing.T) {
	base, logs := observer.New(zapcore.InfoLevel)
	sink := &memorySink{}
	log := zap.New(NewDBCore(base, sink)).With(zap.String(KeyReport, "trip.detail"))

	log.Debug("not enabled")
	log.Warn("Event retrieval failed",
		zap.String(KeyAccount, "acme"),
		zap.String(KeyDevice, "d1"),
		zap.Error(errors.New("connection reset")))

	require.Len(t, sink.entries, 1)
	got := sink.entries[0]
	assert.Equal(t, zapcore.WarnLevel, got.Level)
	assert.Equal(t, "Event retrieval failed", got.Message)
	assert.Equal(t, "trip.detail", got.Report)
	assert.Equal(t, "acme", got.AccountID)
	assert.Equal(t, "d1", got.DeviceID)
	assert.Equal(t, "connection reset", got.Error)

	assert.Equal(t, 1, logs.Len(), "entries still reach the wrapped core")
}

func TestToRecord(t *testing.T) {
	rec := toRecord(LogEntry{Level: zapcore.ErrorLevel, Message: "boom", Report: "r"}, "go-fleetreport")
	assert.Equal(t, 40, rec.LogLevelID)
	assert.Equal(t, "error", rec.Level)
	assert.Equal(t, "go-fleetreport", rec.AppID)
	assert.False(t, rec.CreatedOnUtc.IsZero())
	assert.Equal(t, 20, mapLevelToInt(zapcore.Level(42)))
}
