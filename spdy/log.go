package spdy

import "go.uber.org/zap"

// logInvalidFrame records a frame the peer sent that failed validation or
// decoding; these are routed to Callbacks.OnInvalidCtrlRecv as well, but a
// log line survives even when the embedder doesn't wire that callback.
func (s *Session) logInvalidFrame(err error, fields ...zap.Field) {
	s.log.Warn("spdy: invalid frame received", append(fields, zap.Error(err))...)
}

func (s *Session) logProtocolError(streamID uint32, reason string) {
	s.log.Warn("spdy: protocol error", zap.Uint32("stream_id", streamID), zap.String("reason", reason))
}
