package framing

import (
	"bytes"
	"io"
	"testing"

	"github.com/mkch/spdysession/spdy/framing/fields"
)

func roundTrip(t *testing.T, version uint16, frame Frame) Frame {
	t.Helper()
	var buf bytes.Buffer
	enc := fields.NewEncoder(&buf)
	dict, err := SelectDictionary(version)
	if err != nil {
		t.Fatal(err)
	}
	enc.SetZlibDict(dict)
	if err := WriteFrame(enc, frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	dec := fields.NewDecoder(&buf)
	dec.SetZlibDict(dict)
	got, err := ReadFrame(dec)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	return got
}

func TestSynStreamRoundTripV3(t *testing.T) {
	f, err := NewSynStream(3, 1, FLAG_FIN)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetPriority(5); err != nil {
		t.Fatal(err)
	}
	if err := f.Headers().Add(":method", "GET"); err != nil {
		t.Fatal(err)
	}

	got := roundTrip(t, 3, f).(SynStream)
	if got.StreamID() != 1 {
		t.Fatalf("stream id = %d", got.StreamID())
	}
	if got.Priority() != 5 {
		t.Fatalf("priority = %d", got.Priority())
	}
	if got.Flags() != FLAG_FIN {
		t.Fatalf("flags = %d", got.Flags())
	}
	if v := got.Headers().GetFirst(":method"); v != "GET" {
		t.Fatalf("method = %q", v)
	}
}

func TestSynStreamRoundTripV2(t *testing.T) {
	f, err := NewSynStream(2, 3, FLAG_NONE)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetPriority(MAX_PRIORITY_V2); err != nil {
		t.Fatal(err)
	}
	if err := f.Headers().Add("method", "POST"); err != nil {
		t.Fatal(err)
	}
	got := roundTrip(t, 2, f).(SynStream)
	if got.StreamID() != 3 || got.Priority() != MAX_PRIORITY_V2 {
		t.Fatalf("got %+v", got)
	}
}

func TestSynStreamInvalidPriorityV2(t *testing.T) {
	f, err := NewSynStream(2, 1, FLAG_NONE)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetPriority(MAX_PRIORITY_V2 + 1); err != ErrInvalidPriority {
		t.Fatalf("err = %v, want ErrInvalidPriority", err)
	}
}

func TestNewPingV2DoesNotSilentlyFail(t *testing.T) {
	f, err := NewPing(2, 42)
	if err != nil {
		t.Fatal(err)
	}
	if f == nil {
		t.Fatal("NewPing(2, ...) returned a nil frame")
	}
	if f.ID() != 42 {
		t.Fatalf("id = %d", f.ID())
	}
}

// TestValidateDecodedAllowsOutOfRangePriority confirms priority-range
// checking no longer lives in ValidateDecoded: a SYN_STREAM whose Priority_
// exceeds the protocol version's range still decodes into a usable frame,
// so the session layer (not the codec) can reset the stream and hand the
// embedder a real frame instead of nil. The codec's own 2-bit/3-bit
// priority field can't produce such a value through an honest encode, so
// the out-of-range value is set directly on the decoded struct, standing in
// for whatever validation produced it further up the stack.
func TestValidateDecodedAllowsOutOfRangePriority(t *testing.T) {
	f := &synStreamV2{StreamID_: 1, Priority_: MAX_PRIORITY_V2 + 1}
	f.setVersion(2)
	if err := ValidateDecoded(f); err != nil {
		t.Fatalf("ValidateDecoded = %v, want nil (priority range is the session's job now)", err)
	}
}

func TestValidateDecodedStillRejectsZeroStreamID(t *testing.T) {
	f := &synStreamV2{StreamID_: 0}
	f.setVersion(2)
	if err := ValidateDecoded(f); err != ErrInvalidStreamID {
		t.Fatalf("ValidateDecoded = %v, want ErrInvalidStreamID", err)
	}
}

func TestReadDataFrameZeroStreamIDRejected(t *testing.T) {
	var buf bytes.Buffer
	enc := fields.NewEncoder(&buf)
	if err := WriteFrame(enc, NewDataFrameBytes(0, []byte("x"))); err != nil {
		t.Fatal(err)
	}
	_, err := ReadFrame(fields.NewDecoder(&buf))
	if err != ErrInvalidStreamID {
		t.Fatalf("err = %v, want ErrInvalidStreamID", err)
	}
}

func TestDataFrameRoundTrip(t *testing.T) {
	payload := []byte("hello spdy")
	var buf bytes.Buffer
	enc := fields.NewEncoder(&buf)
	df := NewDataFrameBytes(7, payload)
	if err := df.SetFlags(FLAG_FIN); err != nil {
		t.Fatal(err)
	}
	if err := WriteFrame(enc, df); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFrame(fields.NewDecoder(&buf))
	if err != nil {
		t.Fatal(err)
	}
	gotData := got.(*DataFrame)
	if gotData.StreamID() != 7 || gotData.Flags() != FLAG_FIN {
		t.Fatalf("got %+v", gotData)
	}
	read, err := io.ReadAll(gotData)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(read, payload) {
		t.Fatalf("payload = %q, want %q", read, payload)
	}
}

func TestTranslateNamesForVersion(t *testing.T) {
	f, err := NewSynStream(2, 1, FLAG_NONE)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Headers().Add(":path", "/x"); err != nil {
		t.Fatal(err)
	}
	if err := TranslateNamesForVersion(2, f.Headers()); err != nil {
		t.Fatal(err)
	}
	if v := f.Headers().GetFirst("url"); v != "/x" {
		t.Fatalf("url = %q", v)
	}
}

func TestHeaderCompressionDictionaryPersistsAcrossFrames(t *testing.T) {
	// Two SYN_STREAMs sharing a single Encoder/Decoder pair should
	// compress shorter the second time, because the shared zlib context
	// carries the first header block's dictionary state forward.
	dict, err := SelectDictionary(3)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	enc := fields.NewEncoder(&buf)
	enc.SetZlibDict(dict)

	f1, _ := NewSynStream(3, 1, FLAG_NONE)
	f1.Headers().Add(":method", "GET")
	f1.Headers().Add(":path", "/a/b/c/d/e/f/g")
	if err := WriteFrame(enc, f1); err != nil {
		t.Fatal(err)
	}
	afterFirst := buf.Len()

	f3, _ := NewSynStream(3, 3, FLAG_NONE)
	f3.Headers().Add(":method", "GET")
	f3.Headers().Add(":path", "/a/b/c/d/e/f/g")
	if err := WriteFrame(enc, f3); err != nil {
		t.Fatal(err)
	}
	secondFrameLen := buf.Len() - afterFirst

	if secondFrameLen >= afterFirst {
		t.Fatalf("second frame (%d bytes) not smaller than first (%d bytes); dictionary context not carried forward", secondFrameLen, afterFirst)
	}

	dec := fields.NewDecoder(&buf)
	dec.SetZlibDict(dict)
	got1, err := ReadFrame(dec)
	if err != nil {
		t.Fatal(err)
	}
	got3, err := ReadFrame(dec)
	if err != nil {
		t.Fatal(err)
	}
	if got1.(SynStream).StreamID() != 1 || got3.(SynStream).StreamID() != 3 {
		t.Fatalf("got %+v %+v", got1, got3)
	}
}
