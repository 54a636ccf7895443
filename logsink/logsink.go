// Package logsink implements the severity-tagged event stream the
// core emits diagnostics through (§6.3). The core only depends on the
// Sink interface; persistence (a rotating file in a per-user temp
// directory) and console mirroring are the sink implementation's
// responsibility, not the core's.
package logsink

import (
	"fmt"
	"log"
	"time"

	"github.com/rs/xid"
)

// Severity is the closed set of event levels (§6.3).
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	FatalError
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case FatalError:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Event is one emitted diagnostic. ID correlates events produced by
// the same operation (e.g. every warning from one Lower call), using
// github.com/rs/xid for a sortable, allocation-free identifier rather
// than a full UUID.
type Event struct {
	ID       xid.ID
	Severity Severity
	Message  string
	Time     time.Time
}

// Sink receives emitted Events. Passes and collaborators hold a Sink,
// never a concrete implementation, so tests can substitute a mock
// (see logsink_test.go) without pulling in console/file I/O.
type Sink interface {
	Emit(ev Event)
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// Mode selects a ConsoleSink's output behavior (§6.3 "an output mode
// (Console or Silent)").
type Mode int

const (
	Console Mode = iota
	Silent
)

// ConsoleSink mirrors events to the standard logger when Mode is
// Console, and discards them when Mode is Silent. CorrelationID, when
// non-zero, is stamped on every emitted Event instead of minting a
// fresh one per call — set it once per top-level operation (an
// import, a compile) so its diagnostics share one id.
type ConsoleSink struct {
	Mode          Mode
	CorrelationID xid.ID
}

// NewConsoleSink creates a ConsoleSink in the given Mode with a fresh
// per-sink correlation id.
func NewConsoleSink(mode Mode) *ConsoleSink {
	return &ConsoleSink{Mode: mode, CorrelationID: xid.New()}
}

func (c *ConsoleSink) Emit(ev Event) {
	if c.Mode == Silent {
		return
	}
	log.Printf("[%s] %s %s", ev.Severity, ev.ID, ev.Message)
}

func (c *ConsoleSink) emitf(sev Severity, format string, args ...interface{}) {
	id := c.CorrelationID
	if id.IsZero() {
		id = xid.New()
	}
	c.Emit(Event{ID: id, Severity: sev, Message: fmt.Sprintf(format, args...), Time: time.Now()})
}

func (c *ConsoleSink) Infof(format string, args ...interface{})    { c.emitf(Info, format, args...) }
func (c *ConsoleSink) Warningf(format string, args ...interface{}) { c.emitf(Warning, format, args...) }
func (c *ConsoleSink) Errorf(format string, args ...interface{})   { c.emitf(Error, format, args...) }
func (c *ConsoleSink) Fatalf(format string, args ...interface{})   { c.emitf(FatalError, format, args...) }

// SilentSink discards every event; it still satisfies Sink so callers
// that want no console noise (batch compiles, tests) don't need a nil
// check.
type SilentSink struct{}

func (SilentSink) Emit(Event)                      {}
func (SilentSink) Infof(string, ...interface{})    {}
func (SilentSink) Warningf(string, ...interface{}) {}
func (SilentSink) Errorf(string, ...interface{})   {}
func (SilentSink) Fatalf(string, ...interface{})   {}

// Recording is a Sink that appends every Event to a slice, used by
// tests that want to assert on emitted diagnostics without a mock.
type Recording struct {
	Events []Event
}

func (r *Recording) Emit(ev Event) { r.Events = append(r.Events, ev) }
func (r *Recording) Infof(format string, args ...interface{}) {
	r.Emit(Event{ID: xid.New(), Severity: Info, Message: fmt.Sprintf(format, args...), Time: time.Now()})
}
func (r *Recording) Warningf(format string, args ...interface{}) {
	r.Emit(Event{ID: xid.New(), Severity: Warning, Message: fmt.Sprintf(format, args...), Time: time.Now()})
}
func (r *Recording) Errorf(format string, args ...interface{}) {
	r.Emit(Event{ID: xid.New(), Severity: Error, Message: fmt.Sprintf(format, args...), Time: time.Now()})
}
func (r *Recording) Fatalf(format string, args ...interface{}) {
	r.Emit(Event{ID: xid.New(), Severity: FatalError, Message: fmt.Sprintf(format, args...), Time: time.Now()})
}
