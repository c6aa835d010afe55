package live

import (
	"sync"
	"time"
)

// reconnectSchedule paces connection attempts. It walks delays in order
// and stays on the last one. The walk starts over only after a session
// that stayed up for stableAfter, so a hub that accepts connections and
// drops them right away is retried at the slowest pace.
type reconnectSchedule struct {
	mu          sync.Mutex
	delays      []time.Duration
	stableAfter time.Duration
	now         func() time.Time

	started     bool
	attempt     int
	retries     int
	connectedAt time.Time
}

func newReconnectSchedule(delays []time.Duration, stableAfter time.Duration) *reconnectSchedule {
	return &reconnectSchedule{
		delays:      append([]time.Duration(nil), delays...),
		stableAfter: stableAfter,
		now:         time.Now,
	}
}

// next returns the wait before the coming connection attempt. The first
// attempt never waits.
func (s *reconnectSchedule) next() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.started = true
		return 0
	}
	if !s.connectedAt.IsZero() && s.now().Sub(s.connectedAt) >= s.stableAfter {
		s.attempt = 0
	}
	s.connectedAt = time.Time{}
	s.retries++

	if len(s.delays) == 0 {
		return 0
	}
	i := s.attempt
	if i >= len(s.delays) {
		i = len(s.delays) - 1
	}
	s.attempt++
	return s.delays[i]
}

// connected marks the start of a session and reports whether an attempt
// failed or a session was lost before it.
func (s *reconnectSchedule) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectedAt = s.now()
	return s.retries > 0
}
