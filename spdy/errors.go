package spdy

import "github.com/pkg/errors"

// Session-level sentinel errors. Stream-level faults are reported through
// Callbacks.OnInvalidCtrlRecv / Callbacks.OnCtrlNotSend instead of being
// returned, per the two error strata in the design (stream-level vs
// session-level).
var (
	// ErrWouldBlock is returned by a Send, Recv, or DataProvider callback to
	// mean "no progress possible right now, call me again later". It is the
	// only non-error return that does not tear the session down.
	ErrWouldBlock = errors.New("spdy: would block")

	ErrSessionClosed        = errors.New("spdy: session is closed")
	ErrGoAwaySent           = errors.New("spdy: GOAWAY already sent, no new streams")
	ErrGoAwayReceived       = errors.New("spdy: GOAWAY received, new local stream ID exceeds peer's last-good")
	ErrStreamIDExhausted    = errors.New("spdy: local stream ID space exhausted")
	ErrStreamNotFound       = errors.New("spdy: unknown stream ID")
	ErrDeferredDataExists   = errors.New("spdy: stream already has a deferred DATA item")
	ErrNoDeferredData       = errors.New("spdy: stream has no deferred DATA item")
	ErrSynReplyAlreadySent  = errors.New("spdy: SYN_REPLY already sent on this stream")
	ErrStreamHalfClosed     = errors.New("spdy: local half of stream is already closed")
	ErrInvalidPriority      = errors.New("spdy: priority out of range for this protocol version")
	ErrEOF                  = errors.New("spdy: connection closed by peer")
	ErrMaxConcurrentStreams = errors.New("spdy: peer's MAX_CONCURRENT_STREAMS limit reached")

	errMissingCallback = errors.New("spdy: Callbacks.Send and Callbacks.Recv are required")
)

// wrap adds caller context to err without discarding its identity, so
// errors.Is/errors.Cause still resolve to the original sentinel.
func wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, context)
}
