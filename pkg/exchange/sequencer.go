package exchange

import "sync/atomic"

// Sequencer hands out exchange-wide, strictly increasing admission numbers.
type Sequencer struct {
	next atomic.Uint64
}

// NewSequencer starts counting after start; the first Next returns start+1.
func NewSequencer(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current is the last number issued.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}
