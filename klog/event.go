// Package klog is the ambient structured-logging facade used by every
// kernel package (runtime, pagecache, socket, vm, lsm, process, ioring).
//
// It wraps the kept github.com/enclavekernel/libos/logiface generic logging
// core the way eventloop/logging.go wraps a package-level swappable logger:
// a process-wide default, a "category" field identifying the kernel
// subsystem, and lazy field evaluation (disabled levels cost nothing).
// klog adds nothing to logiface itself; it only fixes the Event implementation
// (slogEvent, see slog_sink.go) and the field vocabulary used across this
// module.
package klog

import (
	"time"

	"github.com/enclavekernel/libos/logiface"
)

// Category identifies which kernel subsystem emitted a log event, mirroring
// the "timer"/"promise"/"poll" categories the teacher's eventloop/logging.go
// LogEntry.Category field used.
type Category string

const (
	Runtime   Category = "runtime"
	PageCache Category = "pagecache"
	Socket    Category = "socket"
	VM        Category = "vm"
	LSM       Category = "lsm"
	Process   Category = "process"
	IORing    Category = "ioring"
	VFS       Category = "vfs"
)

// Logger is the per-subsystem handle returned by For. It is a thin wrapper
// over *logiface.Logger[*slogEvent] that pre-tags every event with a
// Category field.
type Logger struct {
	category Category
	inner    *logiface.Logger[*slogEvent]
}

var root = logiface.New[*slogEvent](
	logiface.WithEventFactory[*slogEvent](logiface.NewEventFactoryFunc(newSlogEvent)),
	logiface.WithEventReleaser[*slogEvent](logiface.NewEventReleaserFunc(releaseSlogEvent)),
	logiface.WithWriter[*slogEvent](defaultSink),
	logiface.WithLevel[*slogEvent](logiface.LevelInformational),
)

// SetLevel adjusts the minimum level logged by every Logger returned by For.
// It mirrors DefaultLogger.SetLevel in the teacher's eventloop/logging.go.
func SetLevel(level logiface.Level) {
	currentLevel = level
	root = logiface.New[*slogEvent](
		logiface.WithEventFactory[*slogEvent](logiface.NewEventFactoryFunc(newSlogEvent)),
		logiface.WithEventReleaser[*slogEvent](logiface.NewEventReleaserFunc(releaseSlogEvent)),
		logiface.WithWriter[*slogEvent](defaultSink),
		logiface.WithLevel[*slogEvent](level),
	)
}

// For returns a Logger tagged with the given subsystem category.
func For(category Category) Logger {
	return Logger{category: category, inner: root}
}

func (l Logger) build(level logiface.Level) *logiface.Builder[*slogEvent] {
	return l.inner.Build(level).Str("category", string(l.category))
}

func (l Logger) Debug() *logiface.Builder[*slogEvent] { return l.build(logiface.LevelDebug) }
func (l Logger) Info() *logiface.Builder[*slogEvent]   { return l.build(logiface.LevelInformational) }
func (l Logger) Warn() *logiface.Builder[*slogEvent]   { return l.build(logiface.LevelWarning) }
func (l Logger) Error() *logiface.Builder[*slogEvent]  { return l.build(logiface.LevelError) }

// WithTid/WithDuration are small helpers so callers don't repeat field
// names across packages.
func WithTid(b *logiface.Builder[*slogEvent], tid int64) *logiface.Builder[*slogEvent] {
	return b.Int64("tid", tid)
}

func WithDuration(b *logiface.Builder[*slogEvent], key string, d time.Duration) *logiface.Builder[*slogEvent] {
	return b.Dur(key, d)
}
