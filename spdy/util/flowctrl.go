package util

import "errors"

// DefaultWindowSize is the SPDY/3 default initial per-stream send window:
// when a connection is first established, every stream starts with 64KiB
// of send window before any SETTINGS or WINDOW_UPDATE is processed.
const DefaultWindowSize int64 = 64 * 1024

// MaxWindowSize is the largest representable window delta: 2^31-1.
const MaxWindowSize int64 = 0x7FFFFFFF

var ErrWindowOverflow = errors.New("spdy: flow control window overflow")

// Window is a SPDY/3 per-stream send-window accountant. It never blocks:
// callers ask Available()/Use() and get back how much they may send right
// now, matching the engine's single-threaded cooperative model (the
// teacher's condvar-based FlowCtrlWin blocked a sender goroutine until a
// WINDOW_UPDATE arrived; here the session simply leaves DATA queued until
// a later call finds room).
type Window struct {
	size     int64 // Remaining window. Can go negative after INITIAL_WINDOW_SIZE shrinks it.
	initSize int64
}

// NewWindow creates a window with the given initial size.
func NewWindow(initSize uint32) *Window {
	return &Window{size: int64(initSize), initSize: int64(initSize)}
}

// Available returns the number of bytes currently sendable, zero or
// negative meaning none.
func (w *Window) Available() int64 {
	return w.size
}

// Use debits delta bytes of window after sending that many bytes of DATA.
func (w *Window) Use(delta uint32) {
	w.size -= int64(delta)
}

// Return credits delta bytes of window after a WINDOW_UPDATE is received.
func (w *Window) Return(delta uint32) error {
	if delta == 0 {
		return ErrInvalidDelta
	}
	newSize := w.size + int64(delta)
	if newSize > MaxWindowSize {
		return ErrWindowOverflow
	}
	w.size = newSize
	return nil
}

// ErrInvalidDelta is returned by Return for a zero delta.
var ErrInvalidDelta = errors.New("spdy: invalid delta window size")

// Reinit applies a new SETTINGS_INITIAL_WINDOW_SIZE value retroactively:
// the stream's available window shifts by the delta between the new and
// previous initial size, per the SPDY/3 SETTINGS semantics.
func (w *Window) Reinit(newInitSize uint32) {
	w.size += int64(newInitSize) - w.initSize
	w.initSize = int64(newInitSize)
}
