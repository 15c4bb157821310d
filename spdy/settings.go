package spdy

import "github.com/mkch/spdysession/spdy/framing"

// peerSettings holds the subset of the peer's SETTINGS values the session
// core acts on. Unrecognized/unused IDs (bandwidth, RTT, cwnd, and the
// others the spec treats as advisory-only) are not tracked; nothing in
// this engine changes behavior based on them.
type peerSettings struct {
	maxConcurrentStreams uint32 // 0 means unset/unlimited.
	initialWindowSize    uint32
	haveInitialWindow    bool
}

func defaultPeerSettings() peerSettings {
	return peerSettings{initialWindowSize: uint32(0x10000)}
}

// apply merges the entries of a received SETTINGS frame into s,
// reporting whether MAX_CONCURRENT_STREAMS or INITIAL_WINDOW_SIZE changed so
// the caller can push the new limits into the semaphore and per-stream
// windows.
func (s *peerSettings) apply(entries framing.SettingEntries) (maxStreamsChanged, windowChanged bool) {
	for _, id := range entries.IDs() {
		_, value, ok := entries.Get(id)
		if !ok {
			continue
		}
		switch id {
		case framing.ID_SETTINGS_MAX_CONCURRENT_STREAMS:
			s.maxConcurrentStreams = value
			maxStreamsChanged = true
		case framing.ID_SETTINGS_INITIAL_WINDOW_SIZE:
			s.initialWindowSize = value
			s.haveInitialWindow = true
			windowChanged = true
		}
	}
	return
}
