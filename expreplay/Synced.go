package expreplay

import (
	"sync"

	"github.com/samuelfneumann/autoracer/timestep"
)

// Synced wraps a ReplayBuffer so that a single writer and any number
// of readers can use it from separate goroutines. Samples are copies,
// so a reader never observes a partially written transition.
type Synced struct {
	mu  sync.RWMutex
	buf *ReplayBuffer
}

// NewSynced returns a new Synced buffer around buf
func NewSynced(buf *ReplayBuffer) *Synced {
	return &Synced{buf: buf}
}

// Store implements the ExperienceReplayer interface
func (s *Synced) Store(t timestep.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Store(t)
}

// Sample implements the ExperienceReplayer interface. The sampling RNG
// is shared state, so sampling takes the write lock.
func (s *Synced) Sample(k int) (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Sample(k)
}

// Latest implements the ExperienceReplayer interface
func (s *Synced) Latest() (Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Latest()
}

// Len implements the ExperienceReplayer interface
func (s *Synced) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Len()
}

// Capacity implements the ExperienceReplayer interface
func (s *Synced) Capacity() int {
	return s.buf.Capacity()
}
