package spdy

import (
	"bytes"
	"testing"

	"github.com/mkch/spdysession/spdy/framing"
)

// pipe is a one-directional in-memory transport: bytes written by one
// session become available to the other's Recv. It never blocks: Recv
// reports ErrWouldBlock when empty instead of parking the caller, matching
// the engine's non-blocking contract.
type pipe struct {
	buf bytes.Buffer
}

func (p *pipe) write(data []byte) (int, error) {
	return p.buf.Write(data)
}

func (p *pipe) read(buf []byte) (int, error) {
	if p.buf.Len() == 0 {
		return 0, ErrWouldBlock
	}
	return p.buf.Read(buf)
}

// drive round-robins Send/Recv on both sessions until neither makes
// progress, standing in for the embedder's event loop in these tests.
func drive(t *testing.T, a, b *Session) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		progressed := false
		for _, s := range []*Session{a, b} {
			for {
				err := s.Send()
				if err == nil {
					progressed = true
					continue
				}
				break
			}
		}
		for _, s := range []*Session{a, b} {
			for {
				err := s.Recv()
				if err == nil {
					progressed = true
					continue
				}
				break
			}
		}
		if !progressed {
			return
		}
	}
	t.Fatal("drive: no quiescence after 1000 rounds")
}

func newSessionPair(t *testing.T, version uint16, clientCB, serverCB Callbacks) (*Session, *Session) {
	t.Helper()
	c2s := &pipe{}
	s2c := &pipe{}

	clientCB.Send = func(s *Session, data []byte) (int, error) { return c2s.write(data) }
	clientCB.Recv = func(s *Session, buf []byte) (int, error) { return s2c.read(buf) }
	serverCB.Send = func(s *Session, data []byte) (int, error) { return s2c.write(data) }
	serverCB.Recv = func(s *Session, buf []byte) (int, error) { return c2s.read(buf) }

	client, err := NewClientSession(version, clientCB)
	if err != nil {
		t.Fatal(err)
	}
	server, err := NewServerSession(version, serverCB)
	if err != nil {
		t.Fatal(err)
	}
	return client, server
}

func TestRequestResponseRoundTrip(t *testing.T) {
	var gotRequest uint32
	var gotReply bool

	serverCB := Callbacks{
		OnRequestRecv: func(s *Session, streamID uint32) {
			gotRequest = streamID
			if err := s.SubmitResponse(streamID, Headers{":status": {"200"}}, nil); err != nil {
				t.Errorf("SubmitResponse: %v", err)
			}
		},
	}
	clientCB := Callbacks{
		OnCtrlRecv: func(s *Session, frame framing.ControlFrame) {
			if _, ok := frame.(framing.SynReply); ok {
				gotReply = true
			}
		},
	}

	client, server := newSessionPair(t, 3, clientCB, serverCB)

	id, err := client.SubmitRequest(1, Headers{":method": {"GET"}, ":path": {"/"}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	drive(t, client, server)

	if gotRequest != id {
		t.Fatalf("server saw request for stream %d, want %d", gotRequest, id)
	}
	if !gotReply {
		t.Fatal("client never observed a SYN_REPLY")
	}
	if len(client.streams) != 0 {
		t.Fatalf("client has %d streams left, want 0 (both sides sent FIN)", len(client.streams))
	}
	if len(server.streams) != 0 {
		t.Fatalf("server has %d streams left, want 0", len(server.streams))
	}
}

func TestServerPushRecordedOnAssociatedStream(t *testing.T) {
	var pushedID uint32

	serverCB := Callbacks{
		OnRequestRecv: func(s *Session, streamID uint32) {
			id, err := s.SubmitSynStream(0, framing.FLAG_UNIDIRECTIONAL|framing.FLAG_FIN,
				Headers{":path": {"/style.css"}}, nil, streamID)
			if err != nil {
				t.Fatalf("SubmitSynStream (push): %v", err)
			}
			pushedID = id
		},
	}

	client, server := newSessionPair(t, 3, Callbacks{}, serverCB)

	reqID, err := client.SubmitRequest(1, Headers{":method": {"GET"}, ":path": {"/"}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	drive(t, client, server)

	if pushedID == 0 || pushedID%2 != 0 {
		t.Fatalf("pushed stream ID = %d, want a nonzero even ID", pushedID)
	}
	parent, ok := server.streams[reqID]
	if !ok {
		// The request stream may already have closed; assocID/pushed were
		// recorded at submit time either way, so re-derive it isn't needed
		// here — the assertion below covers the property scenario S2 cares
		// about regardless.
		t.Fatal("server lost the parent stream before push bookkeeping could be checked")
	}
	found := false
	for _, id := range parent.pushed {
		if id == pushedID {
			found = true
		}
	}
	if !found {
		t.Fatalf("stream %d's pushed list = %v, want it to contain %d", reqID, parent.pushed, pushedID)
	}
}

func TestDataStreamingWithProvider(t *testing.T) {
	body := []byte("the quick brown fox jumps over the lazy dog")
	var sent int
	provider := func(s *Session, streamID uint32, buf []byte) (int, bool, error) {
		n := copy(buf, body[sent:])
		sent += n
		return n, sent == len(body), nil
	}

	var received bytes.Buffer
	var fin bool
	serverCB := Callbacks{
		OnRequestRecv: func(s *Session, streamID uint32) {},
		OnDataChunkRecv: func(s *Session, streamID uint32, data []byte) {
			received.Write(data)
		},
		OnDataRecv: func(s *Session, streamID uint32) {
			fin = true
		},
	}

	client, server := newSessionPair(t, 3, Callbacks{}, serverCB)

	_, err := client.SubmitRequest(0, Headers{":method": {"POST"}}, provider, nil)
	if err != nil {
		t.Fatal(err)
	}

	drive(t, client, server)

	if !fin {
		t.Fatal("server never saw FIN on the data stream")
	}
	if received.String() != string(body) {
		t.Fatalf("received = %q, want %q", received.String(), body)
	}
}

func TestStreamsQueuedBeforeGoAwaySurviveIt(t *testing.T) {
	var accepted int
	client, server := newSessionPair(t, 3, Callbacks{}, Callbacks{
		OnRequestRecv: func(s *Session, streamID uint32) { accepted++ },
	})

	for i := 0; i < 5; i++ {
		if _, err := client.SubmitRequest(0, Headers{}, nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := client.SubmitGoAway(0); err != nil {
		t.Fatal(err)
	}

	drive(t, client, server)

	if accepted != 5 {
		t.Fatalf("server accepted %d streams, want 5 (all queued before GOAWAY)", accepted)
	}
}

func TestSubmitRequestAfterGoAwayRejectedImmediately(t *testing.T) {
	client, _ := newSessionPair(t, 3, Callbacks{}, Callbacks{})
	if err := client.SubmitGoAway(0); err != nil {
		t.Fatal(err)
	}
	if _, err := client.SubmitRequest(0, Headers{}, nil, nil); err != ErrGoAwaySent {
		t.Fatalf("err = %v, want ErrGoAwaySent", err)
	}
}

func TestDataProviderSpanningMultipleFrames(t *testing.T) {
	// Each call hands back one byte and fin=false until the body is
	// exhausted, forcing serializeData/Send to requeue the item across many
	// rounds instead of a single frame carrying everything.
	body := []byte("twelve-bytes")
	var sent int
	provider := func(s *Session, streamID uint32, buf []byte) (int, bool, error) {
		if sent >= len(body) {
			return 0, true, nil
		}
		buf[0] = body[sent]
		sent++
		return 1, sent == len(body), nil
	}

	var received bytes.Buffer
	serverCB := Callbacks{
		OnRequestRecv: func(s *Session, streamID uint32) {},
		OnDataChunkRecv: func(s *Session, streamID uint32, data []byte) {
			received.Write(data)
		},
	}
	client, server := newSessionPair(t, 3, Callbacks{}, serverCB)

	if _, err := client.SubmitRequest(0, Headers{}, provider, nil); err != nil {
		t.Fatal(err)
	}
	drive(t, client, server)

	if received.String() != string(body) {
		t.Fatalf("received = %q, want %q", received.String(), body)
	}
}

func TestFlowControlDeferralAndWindowUpdateResume(t *testing.T) {
	body := bytes.Repeat([]byte("x"), 200)
	var sent int
	provider := func(s *Session, streamID uint32, buf []byte) (int, bool, error) {
		n := copy(buf, body[sent:])
		sent += n
		return n, sent == len(body), nil
	}

	var received bytes.Buffer
	var windowUpdatesSeen int
	clientCB := Callbacks{
		OnCtrlRecv: func(s *Session, frame framing.ControlFrame) {
			if _, ok := frame.(framing.WindowUpdate); ok {
				windowUpdatesSeen++
			}
		},
	}
	serverCB := Callbacks{
		OnRequestRecv: func(s *Session, streamID uint32) {},
		OnDataChunkRecv: func(s *Session, streamID uint32, data []byte) {
			received.Write(data)
		},
	}
	client, server := newSessionPair(t, 3, clientCB, serverCB)

	// Shrink the client's send window well below the body size, forcing
	// serializeData to defer with ErrWouldBlock until the server's
	// handleDataFrame credits it back via WINDOW_UPDATE.
	settings, err := framing.NewSettings(3, framing.FLAG_NONE)
	if err != nil {
		t.Fatal(err)
	}
	if err := settings.Entries().Set(framing.ID_SETTINGS_INITIAL_WINDOW_SIZE, 0, 32); err != nil {
		t.Fatal(err)
	}
	server.queueControl(0, 0, settings)
	if err := server.Send(); err != nil {
		t.Fatal(err)
	}
	if err := client.Recv(); err != nil {
		t.Fatal(err)
	}

	if _, err := client.SubmitRequest(0, Headers{}, provider, nil); err != nil {
		t.Fatal(err)
	}
	drive(t, client, server)

	if received.String() != string(body) {
		t.Fatalf("received %d bytes, want %d (data lost across a deferral)", received.Len(), len(body))
	}
	if windowUpdatesSeen == 0 {
		t.Fatal("expected at least one WINDOW_UPDATE round trip")
	}
}

func TestStreamsQueuedAfterPeerLastGoodIDCancelledOnGoAwayReceived(t *testing.T) {
	var notSent []uint32
	clientCB := Callbacks{
		OnCtrlNotSend: func(s *Session, frame framing.ControlFrame, reason NotSendReason) {
			if f, ok := frame.(framing.SynStream); ok && reason == NotSendReasonNotAllowed {
				notSent = append(notSent, f.StreamID())
			}
		},
	}
	client, server := newSessionPair(t, 3, clientCB, Callbacks{})

	// Three requests queued back to back; none have been popped off the
	// client's send queue yet.
	var ids []uint32
	for i := 0; i < 3; i++ {
		id, err := client.SubmitRequest(0, Headers{}, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	// Server immediately GOAWAYs before ever seeing any of them: its
	// last-good-stream-id is 0, so all three are cancelled client-side.
	if err := server.SubmitGoAway(0); err != nil {
		t.Fatal(err)
	}
	if err := server.Send(); err != nil {
		t.Fatal(err)
	}
	if err := client.Recv(); err != nil {
		t.Fatal(err)
	}

	if len(notSent) != 3 {
		t.Fatalf("on_ctrl_not_send fired for %d streams, want 3 (got %v)", len(notSent), notSent)
	}
	for _, id := range ids {
		if _, ok := client.streams[id]; ok {
			t.Fatalf("stream %d should have been cancelled client-side", id)
		}
	}
	if _, err := client.SubmitRequest(0, Headers{}, nil, nil); err != ErrGoAwayReceived {
		t.Fatalf("err = %v, want ErrGoAwayReceived", err)
	}
}

func TestOutgoingStreamCappedByPeerMaxConcurrentStreams(t *testing.T) {
	client, server := newSessionPair(t, 3, Callbacks{}, Callbacks{})

	// Server advertises a SETTINGS limiting the client to one open stream at
	// a time. Queued directly via queueControl rather than through a public
	// submit_* method, since the submission API has no submit_settings
	// (spec.md's §4.6 operation list never names one).
	settings, err := framing.NewSettings(3, framing.FLAG_NONE)
	if err != nil {
		t.Fatal(err)
	}
	if err := settings.Entries().Set(framing.ID_SETTINGS_MAX_CONCURRENT_STREAMS, 0, 1); err != nil {
		t.Fatal(err)
	}
	server.queueControl(0, 0, settings)
	if err := server.Send(); err != nil {
		t.Fatal(err)
	}
	if err := client.Recv(); err != nil {
		t.Fatal(err)
	}

	id1, err := client.SubmitRequest(0, Headers{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := client.SubmitRequest(0, Headers{}, nil, nil); err != ErrMaxConcurrentStreams {
		t.Fatalf("err = %v, want ErrMaxConcurrentStreams", err)
	}

	// Closing the first stream releases its slot.
	client.removeStream(id1, CloseOK)

	id2, err := client.SubmitRequest(0, Headers{}, nil, nil)
	if err != nil {
		t.Fatalf("SubmitRequest after slot freed: %v", err)
	}
	if id2 == id1 {
		t.Fatalf("expected a fresh stream ID, got reused %d", id2)
	}
}

func TestResumeDataAfterDeferral(t *testing.T) {
	calls := 0
	gate := make(chan struct{}, 1)
	provider := func(s *Session, streamID uint32, buf []byte) (int, bool, error) {
		calls++
		select {
		case <-gate:
			n := copy(buf, []byte("ok"))
			return n, true, nil
		default:
			return 0, false, ErrWouldBlock
		}
	}

	client, server := newSessionPair(t, 3, Callbacks{}, Callbacks{
		OnRequestRecv: func(s *Session, streamID uint32) {},
	})

	id, err := client.SubmitRequest(0, Headers{}, provider, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := client.Send(); err != nil { // SYN_STREAM
		t.Fatal(err)
	}
	if err := client.Send(); err != nil { // DATA: provider defers.
		t.Fatal(err)
	}
	if client.streams[id].deferred == nil {
		t.Fatal("expected DATA item to be deferred")
	}

	gate <- struct{}{}
	if err := client.ResumeData(id); err != nil {
		t.Fatal(err)
	}
	if client.streams[id].deferred != nil {
		t.Fatal("deferred item should have been requeued")
	}

	drive(t, client, server)
	if calls < 2 {
		t.Fatalf("provider called %d times, want at least 2", calls)
	}
}

func TestNPNSelection(t *testing.T) {
	cases := []struct {
		in      []byte
		version int
		proto   string
	}{
		{encodeNPN("spdy/3", "spdy/2", "http/1.1"), 3, "spdy/3"},
		{encodeNPN("http/1.1"), 0, "http/1.1"},
		{encodeNPN("h2-14"), -1, ""},
	}
	for _, c := range cases {
		v, p := SelectNextProtocol(c.in)
		if v != c.version || p != c.proto {
			t.Fatalf("SelectNextProtocol(%v) = (%d,%q), want (%d,%q)", c.in, v, p, c.version, c.proto)
		}
	}
}

func encodeNPN(protos ...string) []byte {
	var out []byte
	for _, p := range protos {
		out = append(out, byte(len(p)))
		out = append(out, p...)
	}
	return out
}
