// Grounded on eventloop/logging.go (package-level swappable structured
// logger, LogEntry.Category) and logiface's Event/EventFactory/Writer
// contract (see DESIGN.md for why the logiface-slog bridge is reimplemented
// here rather than kept verbatim).
package klog
