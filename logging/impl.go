package logging

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// appenderSet is shared by a logger and every logger derived from it, so an appender added
// anywhere in the tree receives entries from all of them.
type appenderSet struct {
	mu        sync.RWMutex
	appenders []Appender
}

func newAppenderSet(appenders ...Appender) *appenderSet {
	return &appenderSet{appenders: appenders}
}

func (s *appenderSet) add(a Appender) {
	s.mu.Lock()
	s.appenders = append(s.appenders, a)
	s.mu.Unlock()
}

func (s *appenderSet) snapshot() []Appender {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appenders
}

type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	// context is prepended to the fields of every entry. Frame-scoped loggers carry the
	// frame ID here.
	context []zapcore.Field
	out     *appenderSet
}

func newImpl(name string, level Level, inUTC bool, appenders ...Appender) *impl {
	return &impl{
		name:  name,
		level: NewAtomicLevelAt(level),
		inUTC: inUTC,
		out:   newAppenderSet(appenders...),
	}
}

func (imp *impl) AddAppender(appender Appender) {
	imp.out.add(appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) derive(name string, extra []zapcore.Field) *impl {
	context := make([]zapcore.Field, 0, len(imp.context)+len(extra))
	context = append(context, imp.context...)
	context = append(context, extra...)
	return &impl{
		name:    name,
		level:   NewAtomicLevelAt(imp.level.Get()),
		inUTC:   imp.inUTC,
		context: context,
		out:     imp.out,
	}
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return imp.derive(name, nil)
}

func (imp *impl) With(keysAndValues ...interface{}) Logger {
	return imp.derive(imp.name, toFields(keysAndValues))
}

func (imp *impl) Sync() error {
	var err error
	for _, a := range imp.out.snapshot() {
		err = multierr.Append(err, a.Sync())
	}
	return err
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.write(DEBUG, msg, keysAndValues)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.write(INFO, msg, keysAndValues)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.write(WARN, msg, keysAndValues)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.write(ERROR, msg, keysAndValues)
}

// write must be called directly from one of the exported level methods; the caller lookup
// skips exactly that frame.
func (imp *impl) write(level Level, msg string, keysAndValues []interface{}) {
	if level < imp.level.Get() {
		return
	}

	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     callerAt(2),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}

	fields := imp.context
	if len(keysAndValues) > 0 {
		fields = append(fields[:len(fields):len(fields)], toFields(keysAndValues)...)
	}

	for _, a := range imp.out.snapshot() {
		if err := a.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// toFields pairs up alternating keys and values. A trailing key without a value is kept
// with an error value in its place.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for len(keysAndValues) > 0 {
		key := fmt.Sprint(keysAndValues[0])
		if len(keysAndValues) == 1 {
			fields = append(fields, zap.String(key, "unpaired log key"))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[1]))
		keysAndValues = keysAndValues[2:]
	}
	return fields
}

func callerAt(skip int) zapcore.EntryCaller {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return zapcore.EntryCaller{}
	}
	caller := zapcore.NewEntryCaller(pc, file, line, true)
	if fn := runtime.FuncForPC(pc); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
