package hashing

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// MemoHasher memoizes an underlying FileHasher. Concurrent requests for the
// same path hash the file once and share the result; failures are not
// cached. Entries live until invalidated.
type MemoHasher struct {
	inner  FileHasher
	flight singleflight.Group

	mu      sync.RWMutex
	digests map[string]Digest
}

// NewMemoHasher wraps inner with a memo.
func NewMemoHasher(inner FileHasher) *MemoHasher {
	return &MemoHasher{
		inner:   inner,
		digests: make(map[string]Digest),
	}
}

// Hash implements FileHasher.
func (m *MemoHasher) Hash(path string) (Digest, error) {
	m.mu.RLock()
	d, ok := m.digests[path]
	m.mu.RUnlock()
	if ok {
		return d, nil
	}

	v, err, _ := m.flight.Do(path, func() (any, error) {
		d, err := m.inner.Hash(path)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.digests[path] = d
		m.mu.Unlock()
		return d, nil
	})
	if err != nil {
		return Digest{}, err
	}
	return v.(Digest), nil
}

// Invalidate drops the memoized digest for path, if any.
func (m *MemoHasher) Invalidate(path string) {
	m.mu.Lock()
	delete(m.digests, path)
	m.mu.Unlock()
}

// InvalidateAll drops every memoized digest.
func (m *MemoHasher) InvalidateAll() {
	m.mu.Lock()
	m.digests = make(map[string]Digest)
	m.mu.Unlock()
}

// Len reports the number of memoized entries.
func (m *MemoHasher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.digests)
}
