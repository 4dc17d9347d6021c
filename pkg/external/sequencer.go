package external

import "sync"

// Sequencer orders overlapping fetches so that the most recently issued one wins.
// A response whose ticket has been superseded is discarded even if it resolves last.
type Sequencer struct {
	mu     sync.Mutex
	latest uint64
}

// Next issues a ticket newer than every ticket issued before.
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	return s.latest
}

// Commit runs apply only if ticket is still the newest one. It reports whether apply ran.
func (s *Sequencer) Commit(ticket uint64, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.latest {
		return false
	}
	apply()
	return true
}

// Current returns the newest ticket issued.
func (s *Sequencer) Current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}
