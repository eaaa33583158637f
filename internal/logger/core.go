package logger

import (
	"go.uber.org/zap/zapcore"
)

// Field keys copied into persisted log entries.
const (
	KeyAccount = "account"
	KeyReport  = "report"
	KeyDevice  = "device"
)

// EntrySink receives log entries for persistence.
type EntrySink interface {
	AddLog(entry LogEntry)
}

// DBCore wraps a core and copies every written entry to a sink.
type DBCore struct {
	zapcore.Core
	sink   EntrySink
	fields []zapcore.Field
}

func NewDBCore(baseCore zapcore.Core, sink EntrySink) zapcore.Core {
	return &DBCore{
		Core: baseCore,
		sink: sink,
	}
}

// With keeps the sink and the accumulated fields on derived loggers.
func (c *DBCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &DBCore{
		Core:   c.Core.With(fields),
		sink:   c.sink,
		fields: merged,
	}
}

func (c *DBCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	rec := LogEntry{
		Level:   entry.Level,
		Message: entry.Message,
		Caller:  entry.Caller.Function,
		Time:    entry.Time,
	}
	for _, set := range [][]zapcore.Field{c.fields, fields} {
		for _, f := range set {
			if f.Type == zapcore.ErrorType {
				if err, ok := f.Interface.(error); ok {
					rec.Error = err.Error()
				}
				continue
			}
			if f.Type != zapcore.StringType {
				continue
			}
			switch f.Key {
			case KeyAccount:
				rec.AccountID = f.String
			case KeyReport:
				rec.Report = f.String
			case KeyDevice:
				rec.DeviceID = f.String
			}
		}
	}
	c.sink.AddLog(rec)

	return c.Core.Write(entry, fields)
}

func (c *DBCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}
