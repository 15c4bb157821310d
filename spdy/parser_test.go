package spdy

import (
	"testing"

	"github.com/mkch/spdysession/spdy/framing"
)

// priorityOverride wraps a legitimately-built framing.SynStream and reports
// a caller-chosen Priority(), standing in for a peer that sent a
// structurally valid but semantically out-of-range priority. The wire codec
// itself can't produce such a frame (its priority field is exactly as wide
// as the valid range), so this is how the out-of-range path is exercised
// without hand-rolling wire bytes.
type priorityOverride struct {
	framing.SynStream
	priority byte
}

func (p *priorityOverride) Priority() byte { return p.priority }

func noopTransport() (func(*Session, []byte) (int, error), func(*Session, []byte) (int, error)) {
	send := func(s *Session, data []byte) (int, error) { return len(data), nil }
	recv := func(s *Session, buf []byte) (int, error) { return 0, ErrWouldBlock }
	return send, recv
}

func TestInvalidPrioritySynStreamCallbackAndReset(t *testing.T) {
	var gotFrame framing.ControlFrame
	var gotErr error

	send, recv := noopTransport()
	server, err := NewServerSession(2, Callbacks{
		Send: send,
		Recv: recv,
		OnInvalidCtrlRecv: func(s *Session, frame framing.ControlFrame, err error) {
			gotFrame = frame
			gotErr = err
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	base, err := framing.NewSynStream(2, 1, framing.FLAG_NONE)
	if err != nil {
		t.Fatal(err)
	}
	if err := base.SetPriority(framing.MAX_PRIORITY_V2); err != nil {
		t.Fatal(err)
	}
	bad := &priorityOverride{SynStream: base, priority: framing.MAX_PRIORITY_V2 + 1}

	server.handleSynStream(bad)

	if gotFrame == nil {
		t.Fatal("OnInvalidCtrlRecv never fired; want it called with the real frame")
	}
	if gotFrame != framing.ControlFrame(bad) {
		t.Fatalf("OnInvalidCtrlRecv got %v, want the original frame (not nil)", gotFrame)
	}
	if gotErr != framing.ErrInvalidPriority {
		t.Fatalf("err = %v, want ErrInvalidPriority", gotErr)
	}
	if _, ok := server.streams[1]; ok {
		t.Fatal("a stream was registered despite the invalid priority")
	}
	if server.queue.Len() != 1 {
		t.Fatalf("queue len = %d, want 1 (RST_STREAM enqueued)", server.queue.Len())
	}
	item, _ := server.queue.Pop().(*outboundItem)
	rst, ok := item.ctrl.(framing.RstStream)
	if !ok {
		t.Fatalf("queued control frame is %T, want framing.RstStream", item.ctrl)
	}
	if rst.StreamID() != 1 || rst.StatusCode() != framing.STATUS_PROTOCOL_ERROR {
		t.Fatalf("RST_STREAM = {stream %d, status %d}, want {1, %d}",
			rst.StreamID(), rst.StatusCode(), framing.STATUS_PROTOCOL_ERROR)
	}
}

func TestWrongParitySynStreamCallbackAndReset(t *testing.T) {
	var gotFrame framing.ControlFrame
	var gotErr error

	send, recv := noopTransport()
	server, err := NewServerSession(2, Callbacks{
		Send: send,
		Recv: recv,
		OnInvalidCtrlRecv: func(s *Session, frame framing.ControlFrame, err error) {
			gotFrame = frame
			gotErr = err
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	// A server session expects peer-initiated (client) streams to carry odd
	// IDs; 2 is even, so this is the server's own parity instead.
	frame, err := framing.NewSynStream(2, 2, framing.FLAG_NONE)
	if err != nil {
		t.Fatal(err)
	}

	server.handleSynStream(frame)

	if gotFrame == nil {
		t.Fatal("OnInvalidCtrlRecv never fired; want it called with the real frame")
	}
	if gotErr != framing.ErrInvalidStreamID {
		t.Fatalf("err = %v, want ErrInvalidStreamID", gotErr)
	}
	if server.queue.Len() != 1 {
		t.Fatalf("queue len = %d, want 1 (RST_STREAM enqueued)", server.queue.Len())
	}
}
