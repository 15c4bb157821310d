package spdy

import "github.com/mkch/spdysession/spdy/framing"

// Role identifies which end of the connection a Session represents; it
// determines stream ID parity (spec.md §3: odd for client, even for
// server).
type Role int

const (
	Client Role = iota
	Server
)

// CloseStatus records why a stream's on_stream_close fired.
type CloseStatus int

const (
	CloseOK CloseStatus = iota
	CloseProtocolError
	CloseReset
	CloseGoAway
)

// NotSendReason records why an item was dropped instead of transmitted.
type NotSendReason int

const (
	NotSendReasonNotAllowed    NotSendReason = iota // GOAWAY sent/received.
	NotSendReasonStreamGone                         // The stream no longer exists.
	NotSendReasonHalfClosed                         // The sending half of the stream is already shut.
	NotSendReasonAlreadyReplied
)

// DataProvider supplies the payload of a DATA stream. It is called
// repeatedly by the send loop, once per outbound DATA frame, with buf sized
// to the current maximum frame payload. It returns the number of bytes
// written into buf and whether this is the final chunk (fin implies the
// caller should set the FIN flag on the frame). Returning ErrWouldBlock
// defers the item: see Session.ResumeData.
type DataProvider func(s *Session, streamID uint32, buf []byte) (n int, fin bool, err error)

// Callbacks is the full set of events an embedder observes while driving a
// Session. Every field is optional; a nil callback is simply not invoked
// (Send and Recv are the exception — they are required to drive any I/O at
// all).
type Callbacks struct {
	// Send writes data to the transport, returning the number of bytes
	// actually written. A partial write is valid; the session resumes from
	// the remainder on the next Send() drive call. Returning ErrWouldBlock
	// means "wrote nothing more, try again later".
	Send func(s *Session, data []byte) (n int, err error)

	// Recv reads from the transport into buf, returning the number of bytes
	// read. Returning io.EOF means the peer closed the connection.
	// Returning ErrWouldBlock means "nothing available yet".
	Recv func(s *Session, buf []byte) (n int, err error)

	OnCtrlRecv        func(s *Session, frame framing.ControlFrame)
	OnInvalidCtrlRecv func(s *Session, frame framing.ControlFrame, err error)
	// OnDataChunkRecv delivers a slice of a buffer the session reuses on
	// the next chunk; copy data if it must outlive the call.
	OnDataChunkRecv func(s *Session, streamID uint32, data []byte)
	OnDataRecv      func(s *Session, streamID uint32)

	BeforeCtrlSend func(s *Session, frame framing.ControlFrame)
	OnCtrlSend     func(s *Session, frame framing.ControlFrame)
	OnCtrlNotSend  func(s *Session, frame framing.ControlFrame, reason NotSendReason)
	OnDataSend     func(s *Session, streamID uint32, length int, fin bool)

	OnStreamClose func(s *Session, streamID uint32, status CloseStatus)

	// OnRequestRecv fires once a SYN_STREAM has been fully accepted
	// (after validation, before the user's handler would run), letting the
	// embedder look the new stream up via GetStreamUserData's peer.
	OnRequestRecv func(s *Session, streamID uint32)
}
