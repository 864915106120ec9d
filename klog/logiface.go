package klog

import (
	"github.com/joeycumines/logiface"
)

// logifaceEvent is the minimal logiface.Event implementation backing
// klog.LogifaceLogger, in the same shape as a hand-rolled Event adapter:
// embed UnimplementedEvent for forward compatibility, implement the two
// mandatory methods plus the optional fast-path field setters we care about.
type logifaceEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	msg    string
	err    error
	fields map[string]any
}

func (e *logifaceEvent) Level() logiface.Level { return e.level }

func (e *logifaceEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any, 4)
	}
	e.fields[key] = val
}

func (e *logifaceEvent) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

func (e *logifaceEvent) AddError(err error) bool {
	e.err = err
	return true
}

type logifaceEventFactory struct{}

func (logifaceEventFactory) NewEvent(level logiface.Level) *logifaceEvent {
	return &logifaceEvent{level: level}
}

// LogifaceWriter receives completed events and turns them into klog.Entry
// values delivered to a downstream Logger (typically a Writer, or a caller's
// own sink). It is the bridge between logiface's generic Event model and
// this package's Entry/Logger types.
type LogifaceWriter struct {
	Category string
	Sink     Logger
}

func (w *LogifaceWriter) Write(e *logifaceEvent) error {
	sink := w.Sink
	if sink == nil {
		sink = Global()
	}
	sink.Log(Entry{
		Level:    fromLogifaceLevel(e.level),
		Category: w.Category,
		Message:  e.msg,
		Err:      e.err,
		Fields:   e.fields,
	})
	return nil
}

// logiface orders severities the syslog way: lower numeric value is MORE
// severe (LevelEmergency == 0), the reverse of klog.Level. fromLogifaceLevel
// and toLogifaceLevel do the translation at the boundary.
func fromLogifaceLevel(l logiface.Level) Level {
	switch {
	case l <= logiface.LevelCritical:
		return LevelPanic
	case l <= logiface.LevelError:
		return LevelError
	case l <= logiface.LevelWarning:
		return LevelWarn
	case l <= logiface.LevelInformational:
		return LevelInfo
	default:
		return LevelDebug
	}
}

func toLogifaceLevel(l Level) logiface.Level {
	switch l {
	case LevelPanic:
		return logiface.LevelCritical
	case LevelError:
		return logiface.LevelError
	case LevelWarn:
		return logiface.LevelWarning
	case LevelInfo:
		return logiface.LevelInformational
	default:
		return logiface.LevelDebug
	}
}

// LogifaceLogger implements Logger on top of a real github.com/joeycumines/logiface
// pipeline: structured fields flow through logiface's typed Builder/Event
// machinery instead of a bespoke map, the way a production kernel's log
// subsystem would delegate to an established structured-logging library.
type LogifaceLogger struct {
	typed     *logiface.Logger[*logifaceEvent]
	threshold logiface.Level
}

// NewLogifaceLogger builds a Logger backed by logiface, delivering finished
// entries to sink (category is attached to every entry, e.g. "sched", "mutex").
func NewLogifaceLogger(category string, sink Logger, level Level) *LogifaceLogger {
	writer := &LogifaceWriter{Category: category, Sink: sink}
	threshold := toLogifaceLevel(level)
	typed := logiface.New[*logifaceEvent](
		logiface.WithLevel(threshold),
		logiface.WithEventFactory[*logifaceEvent](logifaceEventFactory{}),
		logiface.WithWriter[*logifaceEvent](writer),
	)
	return &LogifaceLogger{typed: typed, threshold: threshold}
}

func (l *LogifaceLogger) Enabled(lvl Level) bool {
	return toLogifaceLevel(lvl) <= l.threshold
}

func (l *LogifaceLogger) Log(e Entry) {
	b := l.typed.Build(toLogifaceLevel(e.Level))
	if b == nil {
		return
	}
	for k, v := range e.Fields {
		b = b.Any(k, v)
	}
	if e.Err != nil {
		b = b.Err(e.Err)
	}
	b.Log(e.Message)
}
