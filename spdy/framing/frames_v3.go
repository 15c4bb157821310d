package framing

import (
	"strings"
)

// nameValueV3 is one entry of a SPDY/3 header block: 32-bit length-prefixed
// name and value, twice as wide as v2's 16-bit fields.
type nameValueV3 struct {
	Name  string `field:"lenbits:32"`
	Value string `field:"lenbits:32"`
}

// headerBlockV3 is a SPDY/3 header block kept sorted by (lower-cased) name.
// v3 names are the ":"-prefixed pseudo-headers (":method", ":path", ...)
// TranslateNamesForVersion maps to/from v2's plain names.
type headerBlockV3 []nameValueV3

func (h headerBlockV3) indexOf(name string) (i int, found bool) {
	return sortedIndex(h, name, func(nv nameValueV3) string { return nv.Name })
}

func (h *headerBlockV3) Add(name string, value ...string) error {
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
	sortedInsert((*[]nameValueV3)(h), i, nameValueV3{Name: name, Value: v})
	return nil
}

func (h headerBlockV3) GetFirst(name string) string {
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

func (h headerBlockV3) Get(name string) []string {
	name = strings.ToLower(name)
	i, found := h.indexOf(name)
	if !found {
		return nil
	}
	return strings.Split(h[i].Value, "\x00")
}

func (h headerBlockV3) Names() (names []string) {
	for _, nv := range h {
		names = append(names, nv.Name)
	}
	return
}

// synStreamV3 is the SPDY/3 SYN_STREAM layout: a 3-bit priority field
// (MAX_PRIORITY_V3) plus the server-push credential Slot_ byte v2 has no
// equivalent of.
type synStreamV3 struct {
	controlFrame  `field:"-"`
	Flags_        byte          `field:"bits:8"`
	Length        uint32        `field:"bits:24,limit"`
	X1            byte          `field:"bits:1"`
	StreamID_     uint32        `field:"bits:31"`
	X2            byte          `field:"bits:1"`
	AssociatedTo_ uint32        `field:"bits:31"`
	Priority_     byte          `field:"bits:3"`
	Unused        uint16        `field:"bits:5"`
	Slot_         byte          `field:"bits:8"`
	HeaderBlock_  []nameValueV3 `field:"lenbits:32,zlib"`
}

func newSynStreamV3(streamID uint32, flags byte) (*synStreamV3, error) {
	if streamID == 0 || streamID > MAX_STREAM_ID {
		return nil, ErrInvalidStreamID
	}
	if flags&^(FLAG_FIN|FLAG_UNIDIRECTIONAL) != 0 {
		return nil, ErrInvalidFlags
	}
	return &synStreamV3{StreamID_: streamID, Flags_: flags}, nil
}

func (f *synStreamV3) Type() uint16 { return FRAME_SYN_STREAM }

func (f *synStreamV3) AssociatedToStreamID() uint32 { return f.AssociatedTo_ }

func (f *synStreamV3) SetAssociatedToStreamID(to uint32) error {
	if to > MAX_STREAM_ID {
		return ErrInvalidStreamID
	}
	f.AssociatedTo_ = to
	return nil
}

func (f *synStreamV3) Priority() byte { return f.Priority_ }

func (f *synStreamV3) SetPriority(pri byte) error {
	if pri > MAX_PRIORITY_V3 {
		return ErrInvalidPriority
	}
	f.Priority_ = pri
	return nil
}

func (f *synStreamV3) StreamID() uint32 { return f.StreamID_ }

func (f *synStreamV3) Flags() byte { return f.Flags_ }

func (f *synStreamV3) Headers() HeaderBlock { return (*headerBlockV3)(&f.HeaderBlock_) }

func (f *synStreamV3) Slot() byte { return f.Slot_ }

func (f *synStreamV3) SetSlot(slot byte) { f.Slot_ = slot }

type synReplyV3 struct {
	controlFrame `field:"-"`
	Flags_       byte          `field:"bits:8"`
	Length       uint32        `field:"bits:24,limit"`
	X            byte          `field:"bits:1"`
	StreamID_    uint32        `field:"bits:31"`
	HeaderBlock_ []nameValueV3 `field:"lenbits:32,zlib"`
}

func newSynReplyV3(streamID uint32) (*synReplyV3, error) {
	if streamID == 0 || streamID > MAX_STREAM_ID {
		return nil, ErrInvalidStreamID
	}
	return &synReplyV3{StreamID_: streamID}, nil
}

func (f *synReplyV3) Headers() HeaderBlock { return (*headerBlockV3)(&f.HeaderBlock_) }

func (f *synReplyV3) Flags() byte { return f.Flags_ }

func (f *synReplyV3) SetFlags(flags byte) error {
	if flags != FLAG_NONE && flags != FLAG_FIN {
		return ErrInvalidFlags
	}
	f.Flags_ = flags
	return nil
}

func (f *synReplyV3) StreamID() uint32 { return f.StreamID_ }

func (f *synReplyV3) Type() uint16 { return FRAME_SYN_REPLY }

type rstStreamV3 struct {
	controlFrame `field:"-"`
	Flags        byte   `field:"bits:8"`
	Length       uint32 `field:"bits:24,limit"`
	X            byte   `field:"bits:1"`
	StreamID_    uint32 `field:"bits:31"`
	StatusCode_  uint32 `field:"bits:32"`
}

func newRstStreamV3(streamID uint32, statusCode uint32) (*rstStreamV3, error) {
	if streamID == 0 || streamID > MAX_STREAM_ID {
		return nil, ErrInvalidStreamID
	}
	if statusCode < STATUS_PROTOCOL_ERROR || statusCode > STATUS_FRAME_TOO_LARGE {
		return nil, ErrInvalidStatausCode
	}
	return &rstStreamV3{StreamID_: streamID, StatusCode_: statusCode}, nil
}

func (f *rstStreamV3) Type() uint16 { return FRAME_RST_STREAM }

func (f *rstStreamV3) StreamID() uint32 { return f.StreamID_ }

func (f *rstStreamV3) StatusCode() uint32 { return f.StatusCode_ }

// settingEntryV3 is one SETTINGS entry on the wire. Unlike v2, the ID is
// stored plain: SPDY/3 fixed the byte-order bug toV2BuggySettingID works
// around.
type settingEntryV3 struct {
	ID    uint32 `field:"bits:24"`
	Flags byte   `field:"bits:8"`
	Value uint32 `field:"bits:32"`
}

type settingEntriesV3 []settingEntryV3

func (s settingEntriesV3) indexOf(id uint32) (i int, found bool) {
	return sortedIndex(s, id, func(e settingEntryV3) uint32 { return e.ID })
}

func (s *settingEntriesV3) Set(id uint32, flags byte, value uint32) error {
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
	sortedInsert((*[]settingEntryV3)(s), i, settingEntryV3{ID: id, Flags: flags, Value: value})
	return nil
}

func (s settingEntriesV3) Get(id uint32) (flags byte, value uint32, exists bool) {
	i, found := s.indexOf(id)
	if !found {
		return 0, 0, false
	}
	return s[i].Flags, s[i].Value, true
}

func (s settingEntriesV3) IDs() (ids []uint32) {
	for _, e := range s {
		ids = append(ids, e.ID)
	}
	return
}

type settingsV3 struct {
	controlFrame `field:"-"`
	Flags_       byte             `field:"bits:8"`
	Length       uint32           `field:"bits:24,limit"`
	Entries_     []settingEntryV3 `field:"lenbits:32"`
}

func newSettingsV3(flags byte) (*settingsV3, error) {
	if flags != FLAG_NONE && flags != FLAG_SETTINGS_CLEAR_SETTINGS {
		return nil, ErrInvalidSettingFlags
	}
	return &settingsV3{Flags_: flags}, nil
}

func (s *settingsV3) Flags() byte { return s.Flags_ }

func (s *settingsV3) Entries() SettingEntries { return (*settingEntriesV3)(&s.Entries_) }

func (f *settingsV3) Type() uint16 { return FRAME_SETTINGS }

// goAwayV3 is the SPDY/3 GOAWAY layout: unlike v2, it carries a status
// code.
type goAwayV3 struct {
	controlFrame      `field:"-"`
	Flags             byte   `field:"bits:8"`
	Length            uint32 `field:"bits:24,limit"`
	X                 byte   `field:"bits:1"`
	LastGoodStreamID_ uint32 `field:"bits:31"`
	StatusCode_       uint32 `field:"bits:32"`
}

func newGoAwayV3(lastGood uint32) *goAwayV3 {
	return &goAwayV3{LastGoodStreamID_: lastGood}
}

func (f *goAwayV3) LastGoodStreamID() uint32 { return f.LastGoodStreamID_ }

func (f *goAwayV3) Type() uint16 { return FRAME_GOAWAY }

func (f *goAwayV3) StatusCode() uint32 { return f.StatusCode_ }

func (f *goAwayV3) SetStatusCode(statusCode uint32) error {
	if statusCode != STATUS_GOAWAY_OK && statusCode != STATUS_GOAWAY_PROTOCOL_ERROR &&
		statusCode != STATUS_GOAWAY_INTERNAL_ERROR {
		return ErrInvalidStatausCode
	}
	f.StatusCode_ = statusCode
	return nil
}

type headersV3 struct {
	controlFrame `field:"-"`
	Flags_       byte          `field:"bits:8"`
	Length       uint32        `field:"bits:24,limit"`
	X            byte          `field:"bits:1"`
	StreamID_    uint32        `field:"bits:31"`
	HeaderBlock  []nameValueV3 `field:"lenbits:16,zlib"`
}

func newHeadersV3(streamID uint32, flags byte) (*headersV3, error) {
	if streamID == 0 || streamID > MAX_STREAM_ID {
		return nil, ErrInvalidStreamID
	}
	if flags != FLAG_NONE && flags != FLAG_FIN {
		return nil, ErrInvalidFlags
	}
	return &headersV3{StreamID_: streamID, Flags_: flags}, nil
}

func (f *headersV3) StreamID() uint32 { return f.StreamID_ }

func (f *headersV3) Flags() byte { return f.Flags_ }

func (f *headersV3) Headers() HeaderBlock { return (*headerBlockV3)(&f.HeaderBlock) }

func (f *headersV3) Type() uint16 { return FRAME_HEADERS }

// windowUpdateV3 is flow control's own control frame, v3-only: v2 predates
// SPDY's flow-control addition.
type windowUpdateV3 struct {
	controlFrame     `field:"-"`
	Flags_           byte   `field:"bits:8"`
	Length           uint32 `field:"bits:24,limit"`
	X                byte   `field:"bits:1"`
	StreamID_        uint32 `field:"bits:31"`
	X1               byte   `field:"bits:1"`
	DeltaWindowSize_ uint32 `field:"bits:31"`
}

func newWindowUpdateV3(streamID uint32, deltaWindowSize uint32) (*windowUpdateV3, error) {
	if streamID == 0 || streamID > MAX_STREAM_ID {
		return nil, ErrInvalidStreamID
	}
	if deltaWindowSize < MIN_DELTA_WINDOW_SIZE || deltaWindowSize > MAX_DELTA_WINDOW_SIZE {
		return nil, ErrInvalidDeltaWindowSize
	}
	return &windowUpdateV3{StreamID_: streamID, DeltaWindowSize_: deltaWindowSize}, nil
}

func (f *windowUpdateV3) StreamID() uint32 { return f.StreamID_ }

func (f *windowUpdateV3) DeltaWindowSize() uint32 { return f.DeltaWindowSize_ }

func (f *windowUpdateV3) Type() uint16 { return FRAME_WINDOW_UPDATE }
