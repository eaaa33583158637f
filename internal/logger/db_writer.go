package logger

import (
	"context"
	"fmt"
	"time"

	"go-fleetreport/internal/config"
	"go-fleetreport/internal/database"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zapcore"
)

const logsCollection = "logs"

// LogEntry holds the data passed from zap to the writer.
type LogEntry struct {
	Level     zapcore.Level
	Message   string
	Caller    string
	AccountID string
	Report    string
	DeviceID  string
	Error     string
	Time      time.Time
}

// LogRecord is the stored form of a log entry.
type LogRecord struct {
	AppID        string    `bson:"app_id"`
	LogLevelID   int       `bson:"log_level_id"`
	Level        string    `bson:"level"`
	Message      string    `bson:"message"`
	Caller       string    `bson:"caller,omitempty"`
	AccountID    string    `bson:"account_id,omitempty"`
	Report       string    `bson:"report,omitempty"`
	DeviceID     string    `bson:"device_id,omitempty"`
	Error        string    `bson:"error,omitempty"`
	CreatedOnUtc time.Time `bson:"created_on_utc"`
}

// DBLogWriter inserts log entries from a background worker.
type DBLogWriter struct {
	collection *mongo.Collection
	logChan    chan LogEntry
	appId      string
}

func NewDBLogWriter(mongodb *database.MongodbDB, cfg *config.Config) *DBLogWriter {
	writer := &DBLogWriter{
		collection: mongodb.DB.Collection(logsCollection),
		logChan:    make(chan LogEntry, 1000),
		appId:      cfg.AppId,
	}

	go writer.processLogs()

	return writer
}

// AddLog never blocks; entries are dropped when the buffer is full.
func (w *DBLogWriter) AddLog(entry LogEntry) {
	select {
	case w.logChan <- entry:
	default:
		fmt.Println("DB Log Channel Full! Dropping log:", entry.Message)
	}
}

func (w *DBLogWriter) processLogs() {
	for entry := range w.logChan {
		// insert errors are ignored to keep the service running
		_, _ = w.collection.InsertOne(context.Background(), toRecord(entry, w.appId))
	}
}

func toRecord(entry LogEntry, appID string) LogRecord {
	created := entry.Time
	if created.IsZero() {
		created = time.Now()
	}
	return LogRecord{
		AppID:        appID,
		LogLevelID:   mapLevelToInt(entry.Level),
		Level:        entry.Level.String(),
		Message:      entry.Message,
		Caller:       entry.Caller,
		AccountID:    entry.AccountID,
		Report:       entry.Report,
		DeviceID:     entry.DeviceID,
		Error:        entry.Error,
		CreatedOnUtc: created.UTC(),
	}
}

func mapLevelToInt(l zapcore.Level) int {
	switch l {
	case zapcore.DebugLevel:
		return 10
	case zapcore.InfoLevel:
		return 20
	case zapcore.WarnLevel:
		return 30
	case zapcore.ErrorLevel:
		return 40
	case zapcore.FatalLevel:
		return 50
	default:
		return 20
	}
}
