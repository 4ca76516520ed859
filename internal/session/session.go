// Package session supplies the current subscriber identity. Every ingestion
// entry point no-ops when no subscriber is signed in.
package session

import "sync"

type Provider interface {
	// CurrentSubscriber returns the signed-in subscriber id, or false when
	// nobody is signed in.
	CurrentSubscriber() (string, bool)
}

// Static holds a fixed subscriber id from configuration. An empty id means
// signed out.
type Static struct {
	mu sync.RWMutex
	id string
}

func NewStatic(id string) *Static {
	return &Static{id: id}
}

func (s *Static) CurrentSubscriber() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.id != ""
}

// Set replaces the signed-in subscriber; empty signs out.
func (s *Static) Set(id string) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}
