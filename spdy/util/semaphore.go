package util

// Semaphore is a non-blocking counting semaphore. Unlike the condvar-based
// semaphore a multi-goroutine SPDY server would use to gate work across
// connections, this one never parks a goroutine: the engine is
// single-threaded and cooperative (see the session package), so "would
// block" is reported to the caller as a boolean instead.
//
// It is used to gate the number of locally-open streams against the peer's
// SETTINGS_MAX_CONCURRENT_STREAMS limit.
type Semaphore struct {
	value uint32
	limit uint32 // 0 means unlimited.
}

// NewSemaphore creates a semaphore with no limit (TryAcquire always
// succeeds) until SetLimit is called.
func NewSemaphore() *Semaphore {
	return &Semaphore{}
}

// SetLimit changes the maximum number of concurrently acquired slots. A
// limit of 0 means unlimited. Lowering the limit below the current in-use
// count does not revoke already-acquired slots; it only blocks further
// acquisition until enough are released.
func (s *Semaphore) SetLimit(limit uint32) {
	s.limit = limit
}

// TryAcquire reports whether a slot was acquired. It fails without blocking
// if the limit has been reached.
func (s *Semaphore) TryAcquire() bool {
	if s.limit != 0 && s.value >= s.limit {
		return false
	}
	s.value++
	return true
}

// Release returns one previously acquired slot.
func (s *Semaphore) Release() {
	if s.value > 0 {
		s.value--
	}
}

// InUse reports the number of currently acquired slots.
func (s *Semaphore) InUse() uint32 {
	return s.value
}
