package spdy

import "github.com/mkch/spdysession/spdy/framing"

// Headers is the name/value block an embedder passes to the submit_*
// methods. Names follow the SPDY/3 ":"-prefixed convention
// (":method", ":scheme", ":path", ":version", ":host", ":status");
// TranslateNamesForVersion fills in the SPDY/2 equivalents automatically.
type Headers map[string][]string

func (s *Session) allocLocalStreamID() (uint32, error) {
	if s.goAwaySent {
		return 0, ErrGoAwaySent
	}
	id := s.nextLocalStreamID
	if id == 0 || id > framing.MAX_STREAM_ID {
		return 0, ErrStreamIDExhausted
	}
	if s.goAwayReceived && id > s.remoteLastGoodID {
		return 0, ErrGoAwayReceived
	}
	s.nextLocalStreamID += 2
	return id, nil
}

func applyHeaders(block framing.HeaderBlock, h Headers, version uint16) error {
	for name, values := range h {
		if err := block.Add(name, values...); err != nil {
			return err
		}
	}
	return framing.TranslateNamesForVersion(version, block)
}

// SubmitRequest queues a new client-initiated stream. If provider is nil
// the SYN_STREAM carries FLAG_FIN (no request body); otherwise a DATA
// stream sourced from provider follows it. It returns the newly allocated
// stream ID.
func (s *Session) SubmitRequest(priority byte, h Headers, provider DataProvider, cookie interface{}) (uint32, error) {
	if !s.outgoingStreams.TryAcquire() {
		return 0, ErrMaxConcurrentStreams
	}
	id, err := s.allocLocalStreamID()
	if err != nil {
		s.outgoingStreams.Release()
		return 0, err
	}
	flags := framing.FLAG_NONE
	if provider == nil {
		flags = framing.FLAG_FIN
	}
	frame, err := framing.NewSynStream(s.version, id, flags)
	if err != nil {
		s.outgoingStreams.Release()
		return 0, err
	}
	if err := frame.SetPriority(priority); err != nil {
		s.outgoingStreams.Release()
		return 0, err
	}
	if err := applyHeaders(frame.Headers(), h, s.version); err != nil {
		s.outgoingStreams.Release()
		return 0, err
	}

	st := newStream(id, priority, s.peer.initialWindowSize, s.useFlowControl)
	st.userData = cookie
	if provider != nil {
		st.deferred = nil
	} else {
		st.shutLocal()
	}
	s.streams[id] = st

	s.queueControl(id, priority, frame)
	if provider != nil {
		s.queueData(id, priority, provider, framing.FLAG_NONE)
	}
	return id, nil
}

// SubmitResponse queues a SYN_REPLY on a peer-initiated stream, with the
// same FIN rule as SubmitRequest.
func (s *Session) SubmitResponse(streamID uint32, h Headers, provider DataProvider) error {
	st, ok := s.streams[streamID]
	if !ok {
		return ErrStreamNotFound
	}
	if st.synReplied {
		return ErrSynReplyAlreadySent
	}
	frame, err := framing.NewSynReply(s.version, streamID)
	if err != nil {
		return err
	}
	if err := applyHeaders(frame.Headers(), h, s.version); err != nil {
		return err
	}
	fin := provider == nil
	if fin {
		if err := frame.SetFlags(framing.FLAG_FIN); err != nil {
			return err
		}
		st.shutLocal()
	}
	st.markSynReplied()
	s.queueControl(streamID, st.priority, frame)
	if provider != nil {
		s.queueData(streamID, st.priority, provider, framing.FLAG_NONE)
	}
	return nil
}

// SubmitSynStream is the low-level variant of SubmitRequest with an
// explicit flags byte and no implicit data stream. assocStreamID is the
// client stream this one is pushed in response to, or 0 for a regular,
// non-pushed stream; when non-zero it is recorded in the SYN_STREAM's
// associated-to-stream-id field and appended to the associated stream's
// list of pushed children.
func (s *Session) SubmitSynStream(priority byte, flags byte, h Headers, cookie interface{}, assocStreamID uint32) (uint32, error) {
	if !s.outgoingStreams.TryAcquire() {
		return 0, ErrMaxConcurrentStreams
	}
	id, err := s.allocLocalStreamID()
	if err != nil {
		s.outgoingStreams.Release()
		return 0, err
	}
	frame, err := framing.NewSynStream(s.version, id, flags)
	if err != nil {
		s.outgoingStreams.Release()
		return 0, err
	}
	if err := frame.SetPriority(priority); err != nil {
		s.outgoingStreams.Release()
		return 0, err
	}
	if assocStreamID != 0 {
		if err := frame.SetAssociatedToStreamID(assocStreamID); err != nil {
			s.outgoingStreams.Release()
			return 0, err
		}
	}
	if err := applyHeaders(frame.Headers(), h, s.version); err != nil {
		s.outgoingStreams.Release()
		return 0, err
	}
	st := newStream(id, priority, s.peer.initialWindowSize, s.useFlowControl)
	st.userData = cookie
	st.assocID = assocStreamID
	if flags&framing.FLAG_FIN != 0 {
		st.shutLocal()
	}
	s.streams[id] = st
	if assocStreamID != 0 {
		if parent, ok := s.streams[assocStreamID]; ok {
			parent.pushed = append(parent.pushed, id)
		}
	}
	s.queueControl(id, priority, frame)
	return id, nil
}

// SubmitSynReply is the low-level variant of SubmitResponse.
func (s *Session) SubmitSynReply(streamID uint32, flags byte, h Headers) error {
	st, ok := s.streams[streamID]
	if !ok {
		return ErrStreamNotFound
	}
	if st.synReplied {
		return ErrSynReplyAlreadySent
	}
	frame, err := framing.NewSynReply(s.version, streamID)
	if err != nil {
		return err
	}
	if err := applyHeaders(frame.Headers(), h, s.version); err != nil {
		return err
	}
	if flags&framing.FLAG_FIN != 0 {
		if err := frame.SetFlags(framing.FLAG_FIN); err != nil {
			return err
		}
		st.shutLocal()
	}
	st.markSynReplied()
	s.queueControl(streamID, st.priority, frame)
	return nil
}

// SubmitWindowUpdate queues a WINDOW_UPDATE crediting delta bytes back to
// the peer's send window for streamID. Called internally as DATA is
// consumed under SPDY/3 flow control; also available for an embedder that
// wants finer control over its own credit schedule (e.g. batching credits
// instead of returning them per frame).
func (s *Session) SubmitWindowUpdate(streamID uint32, delta uint32) error {
	frame, err := framing.NewWindowUpdate(s.version, streamID, delta)
	if err != nil {
		return err
	}
	var priority byte
	if st, ok := s.streams[streamID]; ok {
		priority = st.priority
	}
	s.queueControl(streamID, priority, frame)
	return nil
}

// SubmitHeaders queues a HEADERS frame on an existing stream.
func (s *Session) SubmitHeaders(streamID uint32, flags byte, h Headers) error {
	st, ok := s.streams[streamID]
	if !ok {
		return ErrStreamNotFound
	}
	frame, err := framing.NewHeaders(s.version, streamID, flags)
	if err != nil {
		return err
	}
	if err := applyHeaders(frame.Headers(), h, s.version); err != nil {
		return err
	}
	if flags&framing.FLAG_FIN != 0 {
		st.shutLocal()
	}
	s.queueControl(streamID, st.priority, frame)
	return nil
}

// SubmitData queues a DATA stream sourced from provider on an existing
// stream.
func (s *Session) SubmitData(streamID uint32, flags byte, provider DataProvider) error {
	st, ok := s.streams[streamID]
	if !ok {
		return ErrStreamNotFound
	}
	if st.deferred != nil {
		return ErrDeferredDataExists
	}
	if st.shut&shutWR != 0 {
		return ErrStreamHalfClosed
	}
	s.queueData(streamID, st.priority, provider, flags)
	return nil
}

// SubmitRstStream immediately queues an RST_STREAM; it is not subject to
// the usual priority ordering beyond the normal control-frame class.
func (s *Session) SubmitRstStream(streamID uint32, status uint32) error {
	frame, err := framing.NewRstStream(s.version, streamID, status)
	if err != nil {
		return err
	}
	s.purgeQueuedStream(streamID)
	s.queueControl(streamID, 0, frame)
	return nil
}

// SubmitPing queues a PING; the peer is expected to echo it back, and the
// echo surfaces to Callbacks.OnCtrlRecv like any other control frame.
func (s *Session) SubmitPing(id uint32) error {
	frame, err := framing.NewPing(s.version, id)
	if err != nil {
		return err
	}
	s.queueControl(0, 0, frame)
	return nil
}

// SubmitGoAway queues a GOAWAY with the given status. After this call
// returns, SubmitRequest and SubmitSynStream fail with ErrGoAwaySent and
// queue nothing; OnCtrlNotSend does not fire for such a rejected
// submission. SYN_STREAMs queued before this call are still transmitted.
func (s *Session) SubmitGoAway(status uint32) error {
	frame, err := framing.NewGoAway(s.version, s.lastPeerStreamID)
	if err != nil {
		return err
	}
	if sc, ok := frame.(framing.ControlFrameWithSetStatusCode); ok {
		if err := sc.SetStatusCode(status); err != nil {
			return err
		}
	}
	seq := s.nextSeq()
	s.goAwaySent = true
	s.goAwaySentSeq = seq
	s.queue.Push(&outboundItem{class: classControl, seq: seq, ctrl: frame})
	return nil
}

// ResumeData moves a stream's deferred DATA item back onto the outbound
// queue after its provider previously returned ErrWouldBlock.
func (s *Session) ResumeData(streamID uint32) error {
	st, ok := s.streams[streamID]
	if !ok {
		return ErrStreamNotFound
	}
	if st.deferred == nil {
		return ErrNoDeferredData
	}
	item := st.deferred
	st.deferred = nil
	s.queue.Push(item)
	return nil
}

func (s *Session) queueControl(streamID uint32, priority byte, frame framing.ControlFrame) {
	s.queue.Push(&outboundItem{
		class:    classControl,
		priority: priority,
		seq:      s.nextSeq(),
		streamID: streamID,
		ctrl:     frame,
	})
}

func (s *Session) queueData(streamID uint32, priority byte, provider DataProvider, flags byte) {
	s.queue.Push(&outboundItem{
		class:    classData,
		priority: priority,
		seq:      s.nextSeq(),
		streamID: streamID,
		provider: provider,
		flags:    flags,
	})
}
