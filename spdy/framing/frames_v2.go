package framing

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"
	"strings"
)

// nameValueV2 is one entry of a SPDY/2 header block: 16-bit length-prefixed
// name and value, the value itself possibly a NUL-joined multi-value list.
type nameValueV2 struct {
	Name  string `field:"lenbits:16"`
	Value string `field:"lenbits:16"`
}

// headerBlockV2 is a SPDY/2 header block kept sorted by (lower-cased) name,
// as the wire format requires.
type headerBlockV2 []nameValueV2

func (h headerBlockV2) indexOf(name string) (i int, found bool) {
	return sortedIndex(h, name, func(nv nameValueV2) string { return nv.Name })
}

func (h *headerBlockV2) Add(name string, value ...string) error {
	if len(name) == 0 {
		return ErrInvalidHeaderName
	}
	name = strings.ToLower(name)
	v := strings.Join(value, "\x00")
	i, found := h.indexOf(name)
	if found {
		(*h)[i].Value += "\x00" + v
		return nil
	}
	sortedInsert((*[]nameValueV2)(h), i, nameValueV2{Name: name, Value: v})
	return nil
}

func (h headerBlockV2) GetFirst(name string) string {
	name = strings.ToLower(name)
	i, found := h.indexOf(name)
	if !found {
		return ""
	}
	v := h[i].Value
	if j := strings.IndexByte(v, 0); j != -1 {
		return v[:j]
	}
	return v
}

func (h headerBlockV2) Get(name string) []string {
	name = strings.ToLower(name)
	i, found := h.indexOf(name)
	if !found {
		return nil
	}
	return strings.Split(h[i].Value, "\x00")
}

func (h headerBlockV2) Names() (names []string) {
	for _, nv := range h {
		names = append(names, nv.Name)
	}
	return
}

// synStreamV2 is the SPDY/2 SYN_STREAM control frame layout: a 2-bit
// priority field (MAX_PRIORITY_V2) and no server-push credential slot,
// unlike its v3 counterpart.
type synStreamV2 struct {
	controlFrame  `field:"-"`
	Flags_        byte          `field:"bits:8"`
	Length        uint32        `field:"bits:24,limit"`
	X1            byte          `field:"bits:1"`
	StreamID_     uint32        `field:"bits:31"`
	X2            byte          `field:"bits:1"`
	AssociatedTo_ uint32        `field:"bits:31"`
	Priority_     byte          `field:"bits:2"`
	Unused        uint16        `field:"bits:14"`
	HeaderBlock_  []nameValueV2 `field:"lenbits:16,zlib"`
}

func newSynStreamV2(streamID uint32, flags byte) (*synStreamV2, error) {
	if streamID == 0 || streamID > MAX_STREAM_ID {
		return nil, ErrInvalidStreamID
	}
	if flags&^(FLAG_FIN|FLAG_UNIDIRECTIONAL) != 0 {
		return nil, ErrInvalidFlags
	}
	return &synStreamV2{StreamID_: streamID, Flags_: flags}, nil
}

func (f *synStreamV2) Type() uint16 { return FRAME_SYN_STREAM }

func (f *synStreamV2) AssociatedToStreamID() uint32 { return f.AssociatedTo_ }

func (f *synStreamV2) SetAssociatedToStreamID(to uint32) error {
	if to > MAX_STREAM_ID {
		return ErrInvalidStreamID
	}
	f.AssociatedTo_ = to
	return nil
}

func (f *synStreamV2) Priority() byte { return f.Priority_ }

func (f *synStreamV2) SetPriority(pri byte) error {
	if pri > MAX_PRIORITY_V2 {
		return ErrInvalidPriority
	}
	f.Priority_ = pri
	return nil
}

func (f *synStreamV2) StreamID() uint32 { return f.StreamID_ }

func (f *synStreamV2) Flags() byte { return f.Flags_ }

func (f *synStreamV2) Headers() HeaderBlock { return (*headerBlockV2)(&f.HeaderBlock_) }

// settingEntryV2 is one SETTINGS entry on the wire. The ID field holds the
// buggy byte order the original SPDY/2 implementations shipped with: see
// toV2BuggySettingID.
type settingEntryV2 struct {
	ID    uint32 `field:"bits:24"`
	Flags byte   `field:"bits:8"`
	Value uint32 `field:"bits:32"`
}

// toV2BuggySettingID reproduces the byte-order mistake in the original
// SPDY/2 SETTINGS encoder: the 24-bit ID is written big-endian with its
// bytes pre-shuffled as if for little-endian, so a spec-correct v2 peer
// must apply the same shuffle to interoperate.
func toV2BuggySettingID(id uint32) uint32 {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, id)
	copy(b[1:], b[:3])
	b[0] = 0
	return binary.BigEndian.Uint32(b)
}

// fromV2BuggySettingID inverts toV2BuggySettingID, recovering the plain
// setting ID from its on-the-wire SPDY/2 encoding.
func fromV2BuggySettingID(wire uint32) uint32 {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, wire)
	copy(b[:3], b[1:])
	b[3] = 0
	return binary.LittleEndian.Uint32(b)
}

// settingEntriesV2 stores entries by their buggy wire ID but keeps the
// slice sorted by the decoded, human-readable ID, since that's the order
// a SETTINGS frame's entries are expected to be looked up and iterated in.
type settingEntriesV2 []settingEntryV2

func (s settingEntriesV2) indexOf(id uint32) (i int, found bool) {
	return sortedIndex(s, id, func(e settingEntryV2) uint32 { return fromV2BuggySettingID(e.ID) })
}

func (s *settingEntriesV2) Set(id uint32, flags byte, value uint32) error {
	if id < 1 || id > 7 {
		return ErrInvalidSettingID
	}
	if flags != FLAG_NONE && flags != FLAG_SETTINGS_PERSIST_VALUE && flags != FLAG_SETTINGS_PERSISTED {
		return ErrInvalidSettingFlags
	}
	i, found := s.indexOf(id)
	if found {
		(*s)[i].Flags = flags
		(*s)[i].Value = value
		return nil
	}
	sortedInsert((*[]settingEntryV2)(s), i, settingEntryV2{ID: toV2BuggySettingID(id), Flags: flags, Value: value})
	return nil
}

func (s settingEntriesV2) Get(id uint32) (flags byte, value uint32, exists bool) {
	i, found := s.indexOf(id)
	if !found {
		return 0, 0, false
	}
	return s[i].Flags, s[i].Value, true
}

// IDs returns the decoded (non-buggy) IDs of every entry, in the sorted
// order the list is kept in.
func (s settingEntriesV2) IDs() (ids []uint32) {
	for _, e := range s {
		ids = append(ids, fromV2BuggySettingID(e.ID))
	}
	return
}

type settingsV2 struct {
	controlFrame `field:"-"`
	Flags_       byte             `field:"bits:8"`
	Length       uint32           `field:"bits:24,limit"`
	Entries_     []settingEntryV2 `field:"lenbits:32"`
}

func newSettingsV2(flags byte) (*settingsV2, error) {
	if flags != FLAG_NONE && flags != FLAG_SETTINGS_CLEAR_SETTINGS {
		return nil, ErrInvalidSettingFlags
	}
	return &settingsV2{Flags_: flags}, nil
}

func (s *settingsV2) Flags() byte { return s.Flags_ }

func (s *settingsV2) Entries() SettingEntries { return (*settingEntriesV2)(&s.Entries_) }

func (s *settingsV2) Type() uint16 { return FRAME_SETTINGS }

// goAwayV2 is the SPDY/2 GOAWAY layout: unlike v3, it carries no status
// code field.
type goAwayV2 struct {
	controlFrame      `field:"-"`
	Flags             byte   `field:"bits:8"`
	Length            uint32 `field:"bits:24,limit"`
	X                 byte   `field:"bits:1"`
	LastGoodStreamID_ uint32 `field:"bits:31"`
}

func newGoAwayV2(lastGood uint32) *goAwayV2 {
	return &goAwayV2{LastGoodStreamID_: lastGood}
}

func (f *goAwayV2) LastGoodStreamID() uint32 { return f.LastGoodStreamID_ }

func (f *goAwayV2) Type() uint16 { return FRAME_GOAWAY }

type rstStreamV2 struct {
	controlFrame `field:"-"`
	Flags        byte   `field:"bits:8"`
	Length       uint32 `field:"bits:24,limit"`
	X            byte   `field:"bits:1"`
	StreamID_    uint32 `field:"bits:31"`
	StatusCode_  uint32 `field:"bits:32"`
}

func newRstStreamV2(streamID uint32, statusCode uint32) (*rstStreamV2, error) {
	if streamID == 0 || streamID > MAX_STREAM_ID {
		return nil, ErrInvalidStreamID
	}
	if statusCode < 1 || statusCode > 7 {
		return nil, ErrInvalidStatausCode
	}
	return &rstStreamV2{StreamID_: streamID, StatusCode_: statusCode}, nil
}

func (f *rstStreamV2) Type() uint16 { return FRAME_RST_STREAM }

func (f *rstStreamV2) StreamID() uint32 { return f.StreamID_ }

func (f *rstStreamV2) StatusCode() uint32 { return f.StatusCode_ }

type synReplyV2 struct {
	controlFrame `field:"-"`
	Flags_       byte          `field:"bits:8"`
	Length       uint32        `field:"bits:24,limit"`
	X            byte          `field:"bits:1"`
	StreamID_    uint32        `field:"bits:31"`
	Unused       uint16        `field:"bits:16"`
	HeaderBlock_ []nameValueV2 `field:"lenbits:16,zlib"`
}

func newSynReplyV2(streamID uint32) (*synReplyV2, error) {
	if streamID == 0 || streamID > MAX_STREAM_ID {
		return nil, ErrInvalidStreamID
	}
	return &synReplyV2{StreamID_: streamID}, nil
}

func (f *synReplyV2) Headers() HeaderBlock { return (*headerBlockV2)(&f.HeaderBlock_) }

func (f *synReplyV2) Flags() byte { return f.Flags_ }

func (f *synReplyV2) SetFlags(flags byte) error {
	if flags != FLAG_NONE && flags != FLAG_FIN {
		return ErrInvalidFlags
	}
	f.Flags_ = flags
	return nil
}

func (f *synReplyV2) StreamID() uint32 { return f.StreamID_ }

func (f *synReplyV2) Type() uint16 { return FRAME_SYN_REPLY }

type noopV2 struct {
	controlFrame `field:"-"`
	Flags        byte   `field:"bits:8"`
	Length       uint32 `field:"bits:24,limit"`
}

func (f *noopV2) Type() uint16 { return FRAME_NOOP }

type pingV2 struct {
	controlFrame `field:"-"`
	Flags        byte   `field:"bits:8"`
	Length       uint32 `field:"bits:24,limit"`
	ID_          uint32 `field:"bits:32"`
}

func (f *pingV2) Type() uint16 { return FRAME_PING }

func newPingV2(id uint32) *pingV2 { return &pingV2{ID_: id} }

func (f *pingV2) ID() uint32 { return f.ID_ }

type headersV2 struct {
	controlFrame `field:"-"`
	Flags_       byte          `field:"bits:8"`
	Length       uint32        `field:"bits:24,limit"`
	X            byte          `field:"bits:1"`
	StreamID_    uint32        `field:"bits:31"`
	Unused       uint16        `field:"bits:16"`
	HeaderBlock  []nameValueV2 `field:"lenbits:16,zlib"`
}

func newHeadersV2(streamID uint32, flags byte) (*headersV2, error) {
	if streamID == 0 || streamID > MAX_STREAM_ID {
		return nil, ErrInvalidStreamID
	}
	if flags != FLAG_NONE && flags != FLAG_FIN {
		return nil, ErrInvalidFlags
	}
	return &headersV2{StreamID_: streamID, Flags_: flags}, nil
}

func (f *headersV2) StreamID() uint32 { return f.StreamID_ }

func (f *headersV2) Flags() byte { return f.Flags_ }

func (f *headersV2) Headers() HeaderBlock { return (*headerBlockV2)(&f.HeaderBlock) }

func (f *headersV2) Type() uint16 { return FRAME_HEADERS }

// DataFrame is the version-agnostic SPDY DATA frame: framing for a
// stream's body, layered over an io.Reader the caller supplies.
type DataFrame struct {
	io.Reader
	streamID uint32
	flags    byte
	length   uint32
}

func (d *DataFrame) IsControl() bool { return false }

func (d *DataFrame) Close() (err error) {
	_, err = io.Copy(ioutil.Discard, d)
	return
}

func (d *DataFrame) StreamID() uint32 { return d.streamID }

func (d *DataFrame) SetStreamID(id uint32) error {
	if id == 0 || id > MAX_STREAM_ID {
		return ErrInvalidStreamID
	}
	d.streamID = id
	return nil
}

func (d *DataFrame) Flags() byte { return d.flags }

func (d *DataFrame) SetFlags(flags byte) error {
	if flags != FLAG_NONE && flags != FLAG_FIN {
		return ErrInvalidFlags
	}
	d.flags = flags
	return nil
}

func (d *DataFrame) SetLen(n uint32) { d.length = n }

func (d *DataFrame) Len() uint32 { return d.length }

func NewDataFrame(streamID uint32, r io.Reader, length uint32) *DataFrame {
	return &DataFrame{streamID: streamID, Reader: r, length: length}
}

func NewDataFrameBytes(streamID uint32, p []byte) *DataFrame {
	return NewDataFrame(streamID, bytes.NewBuffer(p), uint32(len(p)))
}

func NewDataFrameString(streamID uint32, s string) *DataFrame {
	return NewDataFrameBytes(streamID, []byte(s))
}
