package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type recordedItem struct {
	level  string
	msg    string
	extras map[string]interface{}
}

type fakeSink struct {
	items []recordedItem
	waits int
}

func (f *fakeSink) MessageWithExtras(level string, msg string, extras map[string]interface{}) {
	f.items = append(f.items, recordedItem{level: level, msg: msg, extras: extras})
}

func (f *fakeSink) Wait() { f.waits++ }

func TestRollbarCoreForwardsErrorsOnly(t *testing.T) {
	sink := &fakeSink{}
	l := zap.New(newRollbarCoreWithSink(sink, zapcore.ErrorLevel)).With(zap.String("component", "invites"))

	l.Info("ignored")
	l.Warn("ignored too")
	l.Error("mail failed", zap.String("email", "a@b.test"))
	require.NoError(t, l.Sync())

	require.Len(t, sink.items, 1)
	item := sink.items[0]
	assert.Equal(t, "error", item.level)
	assert.Equal(t, "mail failed", item.msg)
	assert.Equal(t, "invites", item.extras["component"])
	assert.Equal(t, "a@b.test", item.extras["email"])
	assert.Equal(t, 1, sink.waits)
}
