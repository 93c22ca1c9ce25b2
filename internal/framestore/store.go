package framestore

import "sync"

// Store is a single slot holding the latest frame. Publishing overwrites;
// readers get a copy, so they never hold the lock while using the pixels and
// never observe a partially written frame.
type Store struct {
	mu    sync.Mutex
	frame *Frame
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Publish stores f and returns the frame it displaced, or nil. The store
// takes ownership of f; the returned frame is no longer referenced by the
// store and may be reused by the producer as its next conversion target.
func (s *Store) Publish(f *Frame) *Frame {
	s.mu.Lock()
	prev := s.frame
	s.frame = f
	s.mu.Unlock()
	return prev
}

// Current returns a deep copy of the latest frame, or an empty frame if
// nothing has been published.
func (s *Store) Current() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil {
		return &Frame{}
	}
	return s.frame.Clone()
}

// CopyInto copies the latest frame into dst, reusing dst's buffer, and
// reports whether a frame was available.
func (s *Store) CopyInto(dst *Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil {
		return false
	}
	pix := dst.Pix
	*dst = *s.frame
	dst.Pix = append(pix[:0], s.frame.Pix...)
	return true
}

// Sequence returns the sequence number of the latest frame, 0 if none.
func (s *Store) Sequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil {
		return 0
	}
	return s.frame.Sequence
}
