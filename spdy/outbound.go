package spdy

import (
	"github.com/mkch/spdysession/spdy/framing"
	"github.com/mkch/spdysession/spdy/util"
)

// priorityClass partitions the outbound queue the way the submission API
// promises: control frames always outrank DATA of the same stream
// priority, and within a class items drain in submission order.
type priorityClass int

const (
	classControl priorityClass = iota
	classData
)

// outboundItem is the unit stored in the session's priority queue: either a
// fully-built control frame or a DATA stream backed by a DataProvider.
// It implements util.PriorityItem.
type outboundItem struct {
	class    priorityClass
	priority byte // Stream priority for DATA and for stream-bound control frames; 0 for session-wide control frames and RST_STREAM.
	seq      uint64

	streamID uint32
	ctrl     framing.ControlFrame // nil for DATA items.
	provider DataProvider         // nil for control items.
	flags    byte                 // Flags requested for the DATA item (e.g. FLAG_FIN already known, FLAG_UNIDIRECTIONAL n/a).
}

// TakePrecedenceOver implements util.PriorityItem: lower class drains
// first; within a class, lower priority number drains first; ties break by
// insertion order (lower sequence number first).
func (it *outboundItem) TakePrecedenceOver(other util.PriorityItem) bool {
	o := other.(*outboundItem)
	if it.class != o.class {
		return it.class < o.class
	}
	if it.priority != o.priority {
		return it.priority < o.priority
	}
	return it.seq < o.seq
}
