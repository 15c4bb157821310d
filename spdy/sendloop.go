package spdy

import (
	"bytes"

	"github.com/mkch/spdysession/spdy/framing"
)

const maxDataFramePayload = 4096

// Send drives the send side of the session once: it pops the
// highest-precedence outbound item, checks whether it is still admissible,
// serializes it, and hands the bytes to Callbacks.Send. A partial write is
// remembered and resumed on the next call before anything new is popped.
// It returns ErrWouldBlock if the queue is empty or the transport did not
// take the whole frame this round, nil if progress was made (the caller
// should call Send again as long as WantWrite is true), or a transport error.
func (s *Session) Send() error {
	if s.closed {
		return ErrSessionClosed
	}
	if len(s.sendPending) > 0 {
		return s.flushPending()
	}

	item, _ := s.queue.Pop().(*outboundItem)
	if item == nil {
		return ErrWouldBlock
	}

	if reason, ok := s.admissible(item); !ok {
		if s.cb.OnCtrlNotSend != nil && item.ctrl != nil {
			s.cb.OnCtrlNotSend(s, item.ctrl, reason)
		}
		return nil
	}

	var raw []byte
	var err error
	var fin bool
	var payloadLen int
	if item.ctrl != nil {
		raw, err = s.serializeControl(item.ctrl)
	} else {
		raw, payloadLen, fin, err = s.serializeData(item)
		if err == ErrWouldBlock {
			s.deferItem(item)
			return nil
		}
	}
	if err != nil {
		return wrap(err, "spdy: serialize")
	}

	if item.ctrl != nil && s.cb.BeforeCtrlSend != nil {
		s.cb.BeforeCtrlSend(s, item.ctrl)
	}

	s.sendPending = raw
	if err := s.flushPending(); err != nil {
		return err
	}

	if item.ctrl != nil {
		s.afterControlSent(item.ctrl)
	} else {
		s.afterDataSent(item, payloadLen, fin)
		if !fin {
			// The provider has more to give but didn't fill this frame's
			// quota; re-queue for the next round rather than dropping the
			// rest of the stream. A new sequence number sends it to the
			// back of its priority class instead of monopolizing the
			// scheduler.
			item.seq = s.nextSeq()
			s.queue.Push(item)
		}
	}
	return nil
}

// admissible re-checks, at pop time, the conditions that may have changed
// since submission: GOAWAY sent in the meantime, or, for a DATA item, the
// target stream having gone away.
func (s *Session) admissible(item *outboundItem) (NotSendReason, bool) {
	// A SynStream queued before GOAWAY was submitted still transmits; only
	// ones submitted after it are rejected, so wire order matches
	// submission order regardless of where GOAWAY itself sits in the queue.
	if _, ok := item.ctrl.(framing.SynStream); ok && s.goAwaySent && item.seq > s.goAwaySentSeq {
		return NotSendReasonNotAllowed, false
	}
	if item.ctrl == nil && item.streamID != 0 {
		if _, ok := s.streams[item.streamID]; !ok {
			return NotSendReasonStreamGone, false
		}
	}
	return 0, true
}

func (s *Session) serializeControl(frame framing.ControlFrame) ([]byte, error) {
	var buf bytes.Buffer
	s.sendAdapter.Switch(&buf)
	if err := framing.WriteFrame(s.sendEncoder, frame); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Session) serializeData(item *outboundItem) ([]byte, int, bool, error) {
	max := maxDataFramePayload
	if st, ok := s.streams[item.streamID]; ok && st.window != nil {
		if avail := st.window.Available(); avail <= 0 {
			return nil, 0, false, ErrWouldBlock
		} else if avail < int64(max) {
			max = int(avail)
		}
	}
	payload := make([]byte, max)
	n, fin, err := item.provider(s, item.streamID, payload)
	if err != nil {
		return nil, 0, false, err
	}
	payload = payload[:n]
	if st, ok := s.streams[item.streamID]; ok && st.window != nil {
		st.window.Use(uint32(n))
	}

	flags := item.flags
	if fin {
		flags |= framing.FLAG_FIN
	}
	df := framing.NewDataFrameBytes(item.streamID, payload)
	if err := df.SetFlags(flags); err != nil {
		return nil, 0, false, err
	}

	var buf bytes.Buffer
	s.sendAdapter.Switch(&buf)
	if err := framing.WriteFrame(s.sendEncoder, df); err != nil {
		return nil, 0, false, err
	}
	return buf.Bytes(), n, fin, nil
}

func (s *Session) deferItem(item *outboundItem) {
	if st, ok := s.streams[item.streamID]; ok {
		st.deferred = item
	}
}

// flushPending hands as much of sendPending as the transport will take.
func (s *Session) flushPending() error {
	for len(s.sendPending) > 0 {
		n, err := s.cb.Send(s, s.sendPending)
		if n > 0 {
			s.sendPending = s.sendPending[n:]
		}
		if err != nil {
			if err == ErrWouldBlock {
				return ErrWouldBlock
			}
			return wrap(err, "spdy: send")
		}
		if n == 0 {
			return ErrWouldBlock
		}
	}
	return nil
}

func (s *Session) afterControlSent(frame framing.ControlFrame) {
	if s.cb.OnCtrlSend != nil {
		s.cb.OnCtrlSend(s, frame)
	}
	switch f := frame.(type) {
	case framing.RstStream:
		s.removeStream(f.StreamID(), CloseReset)
	case framing.SynReply:
		if id := f.StreamID(); s.streams[id] != nil && s.streams[id].closed() {
			s.reapStream(id)
		}
	case framing.Headers:
		if id := f.StreamID(); s.streams[id] != nil && s.streams[id].closed() {
			s.reapStream(id)
		}
	}
}

func (s *Session) afterDataSent(item *outboundItem, length int, fin bool) {
	if s.cb.OnDataSend != nil {
		s.cb.OnDataSend(s, item.streamID, length, fin)
	}
	if fin {
		if st, ok := s.streams[item.streamID]; ok {
			st.shutLocal()
			s.reapStream(item.streamID)
		}
	}
}
