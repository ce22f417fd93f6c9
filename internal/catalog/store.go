package catalog

import (
	"context"
	"fmt"
	"sync"
)

// Store holds the session's catalog. It starts empty; readers get
// ErrCatalogUnavailable until a load succeeds.
type Store struct {
	mu      sync.RWMutex
	catalog *Catalog
	source  string
	lastErr error
	loader  *Loader
}

// NewStore creates an empty store that loads through l (a default Loader if nil).
func NewStore(l *Loader) *Store {
	if l == nil {
		l = NewLoader(DefaultTimeout)
	}
	return &Store{loader: l}
}

// Set publishes a catalog. Passing nil clears the store.
func (s *Store) Set(c *Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = c
	s.lastErr = nil
}

// Get returns the current catalog, or ErrCatalogUnavailable wrapping the
// last load failure.
func (s *Store) Get() (*Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.catalog != nil {
		return s.catalog, nil
	}
	if s.lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, s.lastErr)
	}
	return nil, ErrCatalogUnavailable
}

// Source returns the source of the last load attempt.
func (s *Store) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Load loads source synchronously and publishes the result.
func (s *Store) Load(ctx context.Context, source string) error {
	s.mu.Lock()
	s.source = source
	s.mu.Unlock()

	cat, err := s.loader.Load(ctx, source)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		return err
	}
	s.catalog = cat
	s.lastErr = nil
	return nil
}

// LoadAsync loads source in the background. The returned channel receives
// the outcome once and is then closed. A failed load leaves any previously
// published catalog in place.
func (s *Store) LoadAsync(ctx context.Context, source string) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- s.Load(ctx, source)
	}()
	return done
}
