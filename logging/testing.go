package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

// testAppender writes entries to a test's log so they show up next to the test that produced
// them and only when the test fails or runs with -v.
type testAppender struct {
	tb      testing.TB
	encoder zapcore.Encoder
}

// NewTestAppender returns an appender that logs tab separated lines, without colors and in
// local time, through tb.Log.
func NewTestAppender(tb testing.TB) Appender {
	encoderConfig := NewZapLoggerConfig().EncoderConfig
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(DefaultTimeFormatStr)
	return &testAppender{tb: tb, encoder: zapcore.NewConsoleEncoder(encoderConfig)}
}

func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	buf, err := tapp.encoder.EncodeEntry(entry, fields)
	if err != nil {
		tapp.tb.Log(entry.Message)
		return err
	}
	defer buf.Free()
	tapp.tb.Log(strings.TrimSuffix(buf.String(), "\n"))
	return nil
}

func (tapp *testAppender) Sync() error {
	return nil
}
