package logger

import (
	"os"

	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap/zapcore"
)

type rollbarSink interface {
	MessageWithExtras(level string, msg string, extras map[string]interface{})
	Wait()
}

// RollbarCore is a zapcore.Core forwarding entries at or above a level to Rollbar.
type RollbarCore struct {
	zapcore.LevelEnabler
	client rollbarSink
	fields []zapcore.Field
}

// NewRollbarCore creates a core backed by a dedicated Rollbar client.
func NewRollbarCore(token, env, version string, min zapcore.Level) *RollbarCore {
	host, _ := os.Hostname()
	client := rollbar.New(token, env, version, host, "")
	return &RollbarCore{LevelEnabler: min, client: client}
}

func newRollbarCoreWithSink(sink rollbarSink, min zapcore.Level) *RollbarCore {
	return &RollbarCore{LevelEnabler: min, client: sink}
}

// With implements zapcore.Core.
func (c *RollbarCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &RollbarCore{LevelEnabler: c.LevelEnabler, client: c.client, fields: merged}
}

// Check implements zapcore.Core.
func (c *RollbarCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write implements zapcore.Core.
func (c *RollbarCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	if ent.Caller.Defined {
		enc.Fields["caller"] = ent.Caller.TrimmedPath()
	}
	if ent.LoggerName != "" {
		enc.Fields["logger"] = ent.LoggerName
	}
	c.client.MessageWithExtras(rollbarLevel(ent.Level), ent.Message, enc.Fields)
	return nil
}

// Sync waits for queued Rollbar items to be delivered.
func (c *RollbarCore) Sync() error {
	c.client.Wait()
	return nil
}

func rollbarLevel(l zapcore.Level) string {
	switch l {
	case zapcore.DebugLevel:
		return rollbar.DEBUG
	case zapcore.InfoLevel:
		return rollbar.INFO
	case zapcore.WarnLevel:
		return rollbar.WARN
	case zapcore.ErrorLevel:
		return rollbar.ERR
	default:
		return rollbar.CRIT
	}
}
