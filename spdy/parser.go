package spdy

import (
	"bytes"
	"io"

	"github.com/mkch/spdysession/spdy/framing"
	"github.com/mkch/spdysession/spdy/util"
)

const dataChunkSize = 4096

// Recv drives the receive side of the session once: it asks Callbacks.Recv
// for more bytes, then decodes and dispatches as many complete frames as
// are now buffered. It returns ErrWouldBlock if Recv had nothing available,
// ErrEOF if the peer closed the connection, or any other error the
// transport reported. A nil return means progress was made; the caller is
// expected to call Recv again in its event loop.
func (s *Session) Recv() error {
	if s.closed {
		return ErrSessionClosed
	}
	var buf [4096]byte
	n, err := s.cb.Recv(s, buf[:])
	if n > 0 {
		s.recvBuf = append(s.recvBuf, buf[:n]...)
		s.drainRecvBuf()
	}
	if err != nil {
		if err == io.EOF {
			s.closed = true
			return ErrEOF
		}
		if err == ErrWouldBlock {
			return ErrWouldBlock
		}
		return wrap(err, "spdy: recv")
	}
	return nil
}

// drainRecvBuf decodes and dispatches every complete frame currently sitting
// in recvBuf, leaving any trailing partial frame in place for the next
// Recv call.
func (s *Session) drainRecvBuf() {
	for {
		if len(s.recvBuf) < 8 {
			return
		}
		head := s.recvBuf[:8]
		length := uint32(head[5])<<16 | uint32(head[6])<<8 | uint32(head[7])
		total := 8 + int(length)
		if len(s.recvBuf) < total {
			return
		}
		frameBytes := s.recvBuf[:total]
		// Copy out before advancing recvBuf, since the decoder may retain
		// slices of it (DataFrame.Reader) past this loop iteration.
		owned := make([]byte, total)
		copy(owned, frameBytes)
		s.recvBuf = s.recvBuf[total:]

		s.processFrame(owned)
	}
}

func (s *Session) processFrame(raw []byte) {
	s.recvAdapter.Switch(bytes.NewReader(raw))
	frame, err := framing.ReadFrame(s.recvDecoder)
	if err != nil {
		s.logInvalidFrame(err)
		if s.cb.OnInvalidCtrlRecv != nil {
			s.cb.OnInvalidCtrlRecv(s, nil, err)
		}
		return
	}
	switch f := frame.(type) {
	case *framing.DataFrame:
		s.handleDataFrame(f)
	case framing.ControlFrame:
		s.handleControlFrame(f)
	}
}

func (s *Session) handleDataFrame(f *framing.DataFrame) {
	streamID := f.StreamID()
	st, ok := s.streams[streamID]
	if !ok {
		if s.cb.OnInvalidCtrlRecv != nil {
			s.cb.OnInvalidCtrlRecv(s, nil, ErrStreamNotFound)
		}
		return
	}
	var chunk [dataChunkSize]byte
	var total uint32
	for {
		n, err := f.Read(chunk[:])
		if n > 0 {
			total += uint32(n)
			if s.cb.OnDataChunkRecv != nil {
				s.cb.OnDataChunkRecv(s, streamID, chunk[:n])
			}
		}
		if err != nil {
			break
		}
	}
	// The peer's send window for this stream shrank by total when it sent
	// this frame; grant it back immediately so a long transfer never stalls
	// waiting on an embedder that doesn't know to call anything here.
	if s.useFlowControl && total > 0 {
		s.SubmitWindowUpdate(streamID, total)
	}
	if f.Flags()&framing.FLAG_FIN != 0 {
		st.shutRemote()
		if s.cb.OnDataRecv != nil {
			s.cb.OnDataRecv(s, streamID)
		}
		s.reapStream(streamID)
	}
}

func (s *Session) handleControlFrame(f framing.ControlFrame) {
	switch frame := f.(type) {
	case framing.SynStream:
		s.handleSynStream(frame)
	case framing.SynReply:
		s.handleSynReply(frame)
	case framing.RstStream:
		s.handleRstStream(frame)
	case framing.Settings:
		s.handleSettings(frame)
	case framing.Ping:
		s.handlePing(frame)
	case framing.GoAway:
		s.handleGoAway(frame)
	case framing.Headers:
		s.handleHeaders(frame)
	case framing.WindowUpdate:
		s.handleWindowUpdate(frame)
	}
	if s.cb.OnCtrlRecv != nil {
		s.cb.OnCtrlRecv(s, f)
	}
}

// maxPriority returns the highest SYN_STREAM priority value valid for the
// session's protocol version (SPDY/2's priority field is 2 bits, SPDY/3's
// is 3).
func (s *Session) maxPriority() byte {
	if s.version == 2 {
		return framing.MAX_PRIORITY_V2
	}
	return framing.MAX_PRIORITY_V3
}

func (s *Session) handleSynStream(frame framing.SynStream) {
	id := frame.StreamID()
	if s.isLocalID(id) || id <= s.lastPeerStreamID {
		s.logProtocolError(id, "stream ID not monotonically increasing or wrong parity")
		if s.cb.OnInvalidCtrlRecv != nil {
			s.cb.OnInvalidCtrlRecv(s, frame, framing.ErrInvalidStreamID)
		}
		s.resetProtocolError(id)
		return
	}
	s.lastPeerStreamID = id
	if frame.Priority() > s.maxPriority() {
		// Decodable but semantically invalid: unlike a structural decode
		// failure, a real frame exists here, so the embedder gets it
		// (instead of nil) alongside the RST_STREAM this stream-level fault
		// gets reset with. The ID is still consumed (lastPeerStreamID
		// already advanced above) since the peer did allocate it.
		s.logProtocolError(id, "priority exceeds the protocol version's range")
		if s.cb.OnInvalidCtrlRecv != nil {
			s.cb.OnInvalidCtrlRecv(s, frame, framing.ErrInvalidPriority)
		}
		s.resetProtocolError(id)
		return
	}
	if s.goAwaySent {
		s.resetStatus(id, framing.StatusCodeStreamInUse(s.version))
		return
	}
	if !s.peerStreams.TryAcquire() {
		s.logProtocolError(id, "MAX_CONCURRENT_STREAMS exceeded")
		s.resetStatus(id, framing.STATUS_REFUSED_STREAM)
		return
	}
	st := newStream(id, frame.Priority(), s.peer.initialWindowSize, s.useFlowControl)
	if frame.Flags()&framing.FLAG_FIN != 0 {
		st.shutRemote()
	}
	s.streams[id] = st
	if s.cb.OnRequestRecv != nil {
		s.cb.OnRequestRecv(s, id)
	}
}

func (s *Session) handleSynReply(frame framing.SynReply) {
	id := frame.StreamID()
	st, ok := s.streams[id]
	if !ok {
		return
	}
	st.markSynReplied()
	if frame.Flags()&framing.FLAG_FIN != 0 {
		st.shutRemote()
		s.reapStream(id)
	}
}

func (s *Session) handleRstStream(frame framing.RstStream) {
	id := frame.StreamID()
	if _, ok := s.streams[id]; ok {
		s.purgeQueuedStream(id)
		s.removeStream(id, CloseReset)
	}
}

// purgeQueuedStream drops every still-queued outbound item belonging to a
// stream that is being torn down (reset locally or by the peer), so the
// send loop never transmits a frame for a stream that no longer exists.
func (s *Session) purgeQueuedStream(id uint32) {
	s.queue.RemoveMatching(func(item util.PriorityItem) bool {
		return item.(*outboundItem).streamID == id
	})
}

func (s *Session) handleSettings(frame framing.Settings) {
	maxChanged, winChanged := s.peer.apply(frame.Entries())
	if maxChanged {
		// The peer just told us how many streams it will let us have open
		// at once; this bounds our own outgoing SYN_STREAMs, not theirs.
		s.outgoingStreams.SetLimit(s.peer.maxConcurrentStreams)
	}
	if winChanged && s.useFlowControl {
		for _, st := range s.streams {
			if st.window != nil {
				st.window.Reinit(s.peer.initialWindowSize)
			}
		}
	}
}

func (s *Session) handlePing(frame framing.Ping) {
	// Only echo IDs the peer itself initiated (odd when we are server,
	// even when we are client): replying to our own PING would loop.
	id := frame.ID()
	peerInitiated := s.isLocalID(id) == false
	if peerInitiated {
		s.SubmitPing(id)
	}
}

// handleGoAway records the peer's last-good-stream-id and cancels every
// locally-initiated stream whose SYN_STREAM is still queued (not yet sent)
// and whose ID exceeds it: the peer has already said it won't process
// those.
func (s *Session) handleGoAway(frame framing.GoAway) {
	s.goAwayReceived = true
	s.remoteLastGoodID = frame.LastGoodStreamID()

	cancelled := s.queue.ExtractMatching(func(item util.PriorityItem) bool {
		f, ok := item.(*outboundItem).ctrl.(framing.SynStream)
		return ok && s.isLocalID(f.StreamID()) && f.StreamID() > s.remoteLastGoodID
	})
	for _, item := range cancelled {
		ctrl := item.(*outboundItem).ctrl
		id := ctrl.(framing.SynStream).StreamID()
		s.purgeQueuedStream(id) // Drop any DATA queued alongside the cancelled SYN_STREAM.
		delete(s.streams, id)
		if s.cb.OnCtrlNotSend != nil {
			s.cb.OnCtrlNotSend(s, ctrl, NotSendReasonNotAllowed)
		}
	}
}

func (s *Session) handleHeaders(frame framing.Headers) {
	id := frame.StreamID()
	st, ok := s.streams[id]
	if !ok {
		return
	}
	if frame.Flags()&framing.FLAG_FIN != 0 {
		st.shutRemote()
		s.reapStream(id)
	}
}

// handleWindowUpdate credits the stream's send window and, if a DATA item
// was held back purely because the window was exhausted, requeues it:
// the embedder has no visibility into window-level blocking (unlike a
// provider-signaled ErrWouldBlock), so this engine resumes it automatically.
func (s *Session) handleWindowUpdate(frame framing.WindowUpdate) {
	st, ok := s.streams[frame.StreamID()]
	if !ok || st.window == nil {
		return
	}
	if err := st.window.Return(frame.DeltaWindowSize()); err != nil {
		// Both failure modes (zero delta, overflow past 2^31-1) are flow
		// control protocol violations with their own dedicated status code,
		// distinct from the generic STATUS_PROTOCOL_ERROR other malformed
		// frames reset with.
		s.logProtocolError(frame.StreamID(), err.Error())
		s.resetStatus(frame.StreamID(), framing.STATUS_FLOW_CONTROL_ERROR)
		return
	}
	if st.deferred != nil && st.window.Available() > 0 {
		item := st.deferred
		st.deferred = nil
		s.queue.Push(item)
	}
}

func (s *Session) resetProtocolError(id uint32) {
	s.resetStatus(id, framing.STATUS_PROTOCOL_ERROR)
}

func (s *Session) resetStatus(id uint32, status uint32) {
	s.SubmitRstStream(id, status)
}

func (s *Session) reapStream(id uint32) {
	if st, ok := s.streams[id]; ok && st.closed() {
		s.removeStream(id, CloseOK)
	}
}

func (s *Session) removeStream(id uint32, status CloseStatus) {
	if _, ok := s.streams[id]; !ok {
		return
	}
	delete(s.streams, id)
	if s.isLocalID(id) {
		s.outgoingStreams.Release()
	} else {
		s.peerStreams.Release()
	}
	if s.cb.OnStreamClose != nil {
		s.cb.OnStreamClose(s, id, status)
	}
}
