package klog

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/enclavekernel/libos/logiface"
)

// slogEvent is a pooled Event implementation that accumulates fields for a
// single log call before handing them to a slog.Handler. It is grounded on
// the teacher's logiface-slog bridge shape (Event pool + deferred
// slog.Record construction) rather than that package's literal files, which
// the retrieval snapshot stored with two incompatible package clauses (see
// DESIGN.md).
type slogEvent struct {
	logiface.UnimplementedEvent

	level Level
	msg   string
	attrs []slog.Attr
	err   error
}

// Level is a package-local alias for logiface.Level.
type Level = logiface.Level

var eventPool = sync.Pool{
	New: func() any {
		return &slogEvent{attrs: make([]slog.Attr, 0, 8)}
	},
}

func newSlogEvent(level Level) *slogEvent {
	e := eventPool.Get().(*slogEvent)
	e.level = level
	return e
}

func releaseSlogEvent(e *slogEvent) {
	e.msg = ""
	e.err = nil
	e.attrs = e.attrs[:0]
	eventPool.Put(e)
}

func (e *slogEvent) Level() logiface.Level { return e.level }

func (e *slogEvent) AddField(key string, val any) {
	e.attrs = append(e.attrs, slog.Any(key, val))
}

func (e *slogEvent) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

func (e *slogEvent) AddError(err error) bool {
	e.err = err
	e.attrs = append(e.attrs, slog.Any("error", err))
	return true
}

func (e *slogEvent) AddString(key, val string) bool {
	e.attrs = append(e.attrs, slog.String(key, val))
	return true
}

func (e *slogEvent) AddInt(key string, val int) bool {
	e.attrs = append(e.attrs, slog.Int(key, val))
	return true
}

func (e *slogEvent) AddInt64(key string, val int64) bool {
	e.attrs = append(e.attrs, slog.Int64(key, val))
	return true
}

func (e *slogEvent) AddUint64(key string, val uint64) bool {
	e.attrs = append(e.attrs, slog.Uint64(key, val))
	return true
}

func (e *slogEvent) AddBool(key string, val bool) bool {
	e.attrs = append(e.attrs, slog.Bool(key, val))
	return true
}

func (e *slogEvent) AddFloat64(key string, val float64) bool {
	e.attrs = append(e.attrs, slog.Float64(key, val))
	return true
}

func (e *slogEvent) AddDuration(key string, val time.Duration) bool {
	e.attrs = append(e.attrs, slog.Duration(key, val))
	return true
}

func (e *slogEvent) AddTime(key string, val time.Time) bool {
	e.attrs = append(e.attrs, slog.Time(key, val))
	return true
}

func slogLevel(l logiface.Level) slog.Level {
	switch {
	case l <= logiface.LevelError:
		return slog.LevelError
	case l <= logiface.LevelWarning:
		return slog.LevelWarn
	case l <= logiface.LevelInformational:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// slogWriter adapts a slog.Handler to logiface.Writer[*slogEvent].
type slogWriter struct {
	handler slog.Handler
}

func (w slogWriter) Write(e *slogEvent) error {
	record := slog.NewRecord(time.Now(), slogLevel(e.level), e.msg, 0)
	record.AddAttrs(e.attrs...)
	return w.handler.Handle(context.Background(), record)
}

// NewHandlerWriter lets a caller point klog at an arbitrary slog.Handler
// (e.g. slog.NewJSONHandler for log aggregation, or a pretty text handler
// for an interactive terminal), matching the teacher's DefaultLogger
// terminal-vs-file format switch in eventloop/logging.go.
func NewHandlerWriter(h slog.Handler) logiface.Writer[*slogEvent] {
	return slogWriter{handler: h}
}

var defaultSink = NewHandlerWriter(slog.NewTextHandler(os.Stderr, nil))

// SetHandler replaces the process-wide slog.Handler used by klog loggers.
func SetHandler(h slog.Handler) {
	defaultSink = NewHandlerWriter(h)
	SetLevel(currentLevel)
}

var currentLevel = logiface.LevelInformational
