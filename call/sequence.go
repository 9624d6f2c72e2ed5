package call

import "sync"

// MaxTag is the largest correlation tag handed out before wrapping to 1.
const MaxTag int64 = 1<<31 - 1

// Sequence allocates correlation tags: strictly positive, increasing, and
// wrapping from MaxTag back to 1. 0 is never returned; it means "no
// correlation".
type Sequence struct {
	mu   sync.Mutex
	last int64
}

func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = s.last%MaxTag + 1
	return s.last
}
