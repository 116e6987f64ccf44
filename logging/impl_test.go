package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

type BasicStruct struct {
	X int
	y string
}

// newBufferAppender returns a console appender writing into buf without colors.
func newBufferAppender(buf *bytes.Buffer) Appender {
	encoderConfig := NewZapLoggerConfig().EncoderConfig
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(DefaultTimeFormatStr)
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(buf), zapcore.DebugLevel)
}

// assertLogMatches will fuzzy match log lines. It checks the time format, but ignores
// the exact time. And it expects a match on the filename, but the exact line number can be wrong.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualParts := strings.Split(strings.TrimSuffix(output, "\n"), "\t")
	expectedParts := strings.Split(expected, "\t")
	test.That(t, len(actualParts[0]), test.ShouldEqual, len(expectedParts[0]))
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])

	actualFilename, actualLineNumber, found := strings.Cut(actualParts[2], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, found := strings.Cut(expectedParts[2], ":")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)
	_, err = strconv.Atoi(actualLineNumber)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, actualParts[3], test.ShouldEqual, expectedParts[3])

	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))
	if len(actualParts) == 4 {
		return
	}

	expectedMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(expectedParts[4]), &expectedMap), test.ShouldBeNil)
	actualMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(actualParts[4]), &actualMap), test.ShouldBeNil)
	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func TestConsoleOutputFormat(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := newImpl("", DEBUG, false, newBufferAppender(notStdout))

	logger.Infow("impl Info log")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459-0400	INFO	logging/impl_test.go:67	impl Info log`)

	logger.Infow("impl logw", "key", "value")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806-0400	INFO	logging/impl_test.go:71	impl logw	{"key":"value"}`)

	logger.Infow("BasicStruct", "frame", 3, "BasicStruct", BasicStruct{1, "alice"})
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	INFO	logging/impl_test.go:75	BasicStruct	{"BasicStruct":{"X":1},"frame":3}`)

	logger.Warnw("unpaired", "dangling")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	WARN	logging/impl_test.go:79	unpaired	{"dangling":"unpaired log key"}`)

	logger.With("frame", "frame_000001_100").Errorw("stage failed", "stage", "rectify")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:20:47.129-0400	ERROR	logging/impl_test.go:83	stage failed	{"frame":"frame_000001_100","stage":"rectify"}`)
}

func TestLevels(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.SetLevel(WARN)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)

	logger.Debugw("dropped")
	logger.Infow("dropped")
	logger.Warnw("kept")
	logger.Errorw("kept", "n", 2)
	test.That(t, observed.Len(), test.ShouldEqual, 2)
	test.That(t, observed.All()[1].ContextMap()["n"], test.ShouldEqual, int64(2))

	sub := logger.Sublogger("rectifier")
	sub.Infow("sublogger inherits the level", "x", 1)
	test.That(t, observed.Len(), test.ShouldEqual, 2)
	sub.SetLevel(DEBUG)
	sub.Debugw("now visible", "x", 1)
	test.That(t, observed.Len(), test.ShouldEqual, 3)
	test.That(t, observed.All()[2].LoggerName, test.ShouldEqual, "rectifier")
	test.That(t, observed.All()[2].ContextMap()["x"], test.ShouldEqual, int64(1))
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)
}

func TestWithFields(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	frameLogger := logger.Sublogger("pipeline").With("frame", "f1")
	stageLogger := frameLogger.With("stage", "deskew")

	stageLogger.Infow("done", "points", 10)
	frameLogger.Infow("done")
	logger.Infow("plain")

	entries := observed.All()
	test.That(t, len(entries), test.ShouldEqual, 3)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "pipeline")
	test.That(t, entries[0].ContextMap(), test.ShouldResemble, map[string]interface{}{
		"frame": "f1", "stage": "deskew", "points": int64(10),
	})
	test.That(t, entries[1].ContextMap(), test.ShouldResemble, map[string]interface{}{"frame": "f1"})
	test.That(t, entries[2].ContextMap(), test.ShouldBeEmpty)
}

func TestAppendersSharedAcrossSubloggers(t *testing.T) {
	root := NewBlankLogger("avclean")
	sub := root.Sublogger("sink")

	buf := &bytes.Buffer{}
	sub.AddAppender(newBufferAppender(buf))
	root.Infow("from root")
	sub.Infow("from sink")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	test.That(t, len(lines), test.ShouldEqual, 2)
	test.That(t, lines[0], test.ShouldContainSubstring, "avclean\t")
	test.That(t, lines[1], test.ShouldContainSubstring, "avclean.sink")
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"", INFO},
		{"Warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
	}
	_, err := LevelFromString("verbose")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"warn"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	out, err := json.Marshal(ERROR)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `"error"`)
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avclean.log")
	appender, closeFile := NewFileAppender(FileAppenderConfig{Filename: path})

	logger := NewBlankLogger("pipeline")
	logger.AddAppender(appender)
	logger.Infow("frame processed", "frame", 7)
	test.That(t, logger.Sync(), test.ShouldBeNil)
	test.That(t, closeFile(), test.ShouldBeNil)

	raw, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	var line map[string]any
	test.That(t, json.Unmarshal(bytes.TrimSpace(raw), &line), test.ShouldBeNil)
	test.That(t, line["msg"], test.ShouldEqual, "frame processed")
	test.That(t, line["logger"], test.ShouldEqual, "pipeline")
	test.That(t, line["level"], test.ShouldEqual, "INFO")
	test.That(t, line["frame"], test.ShouldEqual, 7.0)
}
