package spdy

import (
	"bytes"
	"io"

	"github.com/mkch/spdysession/spdy/framing"
	"github.com/mkch/spdysession/spdy/framing/fields"
	"github.com/mkch/spdysession/spdy/util"
	"go.uber.org/zap"
)

// switchReader/switchWriter let a single *fields.Decoder/*fields.Encoder
// persist its zlib dictionary state across frames while pointing at a
// different underlying buffer each time one is decoded/encoded, mirroring
// the internal switchReader/switchWriter of the fields package itself
// (unexported there, so duplicated here).
type switchReader struct{ io.Reader }

func (r *switchReader) Switch(nr io.Reader) { r.Reader = nr }

type switchWriter struct{ io.Writer }

func (w *switchWriter) Switch(nw io.Writer) { w.Writer = nw }

// Session drives one SPDY connection. It is not safe for concurrent use:
// Send, Recv, and every submit_* method must be called from a single
// goroutine, matching the cooperative, single-threaded model the callback
// API is built around.
type Session struct {
	role    Role
	version uint16
	cb      Callbacks
	log     *zap.Logger

	// Stream ID allocation.
	nextLocalStreamID uint32
	lastPeerStreamID  uint32

	goAwaySent    bool
	goAwaySentSeq uint64 // Sequence number of the queued GOAWAY item; SynStreams queued before it still transmit.

	goAwayReceived   bool
	localLastGoodID  uint32
	remoteLastGoodID uint32

	streams map[uint32]*stream
	queue   *util.Queue
	seq     uint64

	localMaxConcurrent uint32          // 0 = unlimited; our own cap on peer-initiated streams.
	peerStreams        *util.Semaphore // Acquired by an incoming SYN_STREAM, limited by localMaxConcurrent.
	outgoingStreams    *util.Semaphore // Acquired by an outgoing SYN_STREAM, limited by peer.maxConcurrentStreams.
	peer               peerSettings

	useFlowControl bool // true for version 3.

	recvBuf     []byte
	recvAdapter *switchReader
	recvDecoder *fields.Decoder

	sendAdapter *switchWriter
	sendEncoder *fields.Encoder
	sendPending []byte // Unsent remainder of the frame currently being transmitted.

	closed bool
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithLogger overrides the default no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithMaxConcurrentStreams caps the number of streams this session will
// accept from its peer; SYN_STREAMs beyond the limit are refused.
func WithMaxConcurrentStreams(limit uint32) Option {
	return func(s *Session) { s.localMaxConcurrent = limit }
}

func newSession(role Role, version uint16, cb Callbacks, opts []Option) (*Session, error) {
	if version != 2 && version != 3 {
		return nil, framing.ErrUnsupportedVersion
	}
	if cb.Send == nil || cb.Recv == nil {
		return nil, errMissingCallback
	}
	dict, err := framing.SelectDictionary(version)
	if err != nil {
		return nil, err
	}

	s := &Session{
		role:            role,
		version:         version,
		cb:              cb,
		log:             zap.NewNop(),
		streams:         make(map[uint32]*stream),
		queue:           util.NewQueue(16),
		peerStreams:     util.NewSemaphore(),
		outgoingStreams: util.NewSemaphore(),
		peer:            defaultPeerSettings(),
		useFlowControl:  version == 3,
	}
	if role == Client {
		s.nextLocalStreamID = 1
	} else {
		s.nextLocalStreamID = 2
	}

	s.recvAdapter = &switchReader{}
	s.recvDecoder = fields.NewDecoder(s.recvAdapter)
	s.recvDecoder.SetZlibDict(dict)

	s.sendAdapter = &switchWriter{}
	s.sendEncoder = fields.NewEncoder(s.sendAdapter)
	s.sendEncoder.SetZlibDict(dict)

	for _, opt := range opts {
		opt(s)
	}
	s.peerStreams.SetLimit(s.localMaxConcurrent)
	return s, nil
}

// NewClientSession creates a Session in the client role: it allocates odd
// stream IDs and sends SYN_STREAM to open new streams.
func NewClientSession(version uint16, cb Callbacks, opts ...Option) (*Session, error) {
	return newSession(Client, version, cb, opts)
}

// NewServerSession creates a Session in the server role: it allocates even
// stream IDs (including server-push) and replies to peer-initiated
// SYN_STREAMs.
func NewServerSession(version uint16, cb Callbacks, opts ...Option) (*Session, error) {
	return newSession(Server, version, cb, opts)
}

// Version reports the SPDY protocol version this session negotiated.
func (s *Session) Version() uint16 { return s.version }

// WantRead reports whether the session still expects to receive data:
// false only once the session is closed, which happens when Recv reports
// io.EOF, letting the embedder tear the transport down.
func (s *Session) WantRead() bool {
	return !s.closed
}

// WantWrite reports whether the session has anything queued to send,
// including a partially-sent frame.
func (s *Session) WantWrite() bool {
	return s.queue.Len() > 0 || len(s.sendPending) > 0
}

// GetStreamUserData retrieves the cookie passed at submission time.
func (s *Session) GetStreamUserData(streamID uint32) (interface{}, bool) {
	st, ok := s.streams[streamID]
	if !ok {
		return nil, false
	}
	return st.userData, true
}

func (s *Session) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Session) isLocalID(id uint32) bool {
	if s.role == Client {
		return id%2 == 1
	}
	return id%2 == 0
}

