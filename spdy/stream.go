package spdy

import "github.com/mkch/spdysession/spdy/util"

// streamState tracks a stream's lifecycle, named after the spec's
// INITIAL/OPENING/OPENED/CLOSING progression.
type streamState int

const (
	stateInitial streamState = iota // Reserved (pushed) but SYN_STREAM not yet sent/received.
	stateOpening                    // SYN_STREAM sent/received, SYN_REPLY outstanding.
	stateOpened                     // Both directions established.
	stateClosing                    // One or both halves shut; awaiting full close.
)

// shutFlags records which half(s) of a stream are done sending data, the
// two bits combining independently of the control-frame FIN flag that
// caused them.
type shutFlags uint8

const (
	shutNone shutFlags = 0
	shutRD   shutFlags = 1 << 0 // Peer will send no more.
	shutWR   shutFlags = 1 << 1 // We will send no more.
)

func (f shutFlags) both() bool { return f&(shutRD|shutWR) == shutRD|shutWR }

// stream is the session's bookkeeping for one SPDY stream. It is never
// exposed directly to the embedder; Session's submit_*/resume_data API and
// the Callbacks parameters are the public surface.
type stream struct {
	id       uint32
	priority byte
	assocID  uint32 // Non-zero for server-pushed streams: the associated client stream.

	state      streamState
	shut       shutFlags
	synReplied bool // SYN_REPLY already sent/received on this stream.

	pushed []uint32 // IDs of streams this one has pushed.

	deferred *outboundItem // At most one pending DATA item held back by ErrWouldBlock.

	window *util.Window // Send-window accountant; nil under SPDY/2 (no flow control).

	userData interface{}
}

// newStream constructs a stream already past stateInitial: by the time a
// submit_* or SYN_STREAM-received handler creates one, the SYN_STREAM
// itself has already been queued or accepted, so the stream starts
// stateOpening. Pushed streams start in stateOpening too; no stream is
// ever created in stateInitial.
func newStream(id uint32, priority byte, initWindow uint32, useWindow bool) *stream {
	s := &stream{id: id, priority: priority, state: stateOpening}
	if useWindow {
		s.window = util.NewWindow(initWindow)
	}
	return s
}

// closed reports whether both halves of the stream have shut, meaning the
// stream is ready to be removed from the session's table.
func (s *stream) closed() bool {
	return s.shut.both()
}

// markSynReplied records that a SYN_REPLY has been sent or received on
// this stream, completing its handshake.
func (s *stream) markSynReplied() {
	s.synReplied = true
	if s.state == stateOpening {
		s.state = stateOpened
	}
}

// shutLocal marks our send side as done because we queued or sent FIN.
// RST_STREAM does not come through here; it removes the stream outright.
func (s *stream) shutLocal() {
	s.shut |= shutWR
	s.state = stateClosing
}

// shutRemote marks the peer's send side as done: a FIN was received.
// A received RST_STREAM removes the stream outright instead.
func (s *stream) shutRemote() {
	s.shut |= shutRD
	s.state = stateClosing
}
