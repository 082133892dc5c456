package sessions

import (
	"fmt"
	"sync"
)

// Listener receives every committed snapshot, in commit order.
type Listener func(Snapshot)

// Store is the observable session container. Only the session controller
// writes to it; the UI layer reads with Get and Subscribe.
type Store struct {
	writeMu sync.Mutex // serialises commits and their notifications

	mu        sync.RWMutex
	current   Snapshot
	listeners map[uint64]Listener
	nextID    uint64
}

// NewStore returns a store in the Unauthenticated state.
func NewStore() *Store {
	return &Store{
		current:   Snapshot{State: Unauthenticated},
		listeners: make(map[uint64]Listener),
	}
}

// Get returns the current snapshot.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers fn for future commits and returns a function that
// removes it. fn runs synchronously on the committing goroutine and must not
// call Update.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Update applies fn to the current snapshot and commits the result if the
// transition is allowed and the result is consistent. Returning an error from
// fn aborts the update without notifying anyone. The committed snapshot is
// returned.
func (s *Store) Update(fn func(Snapshot) (Snapshot, error)) (Snapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev := s.Get()
	next, err := fn(prev)
	if err != nil {
		return prev, err
	}
	if !CanTransition(prev.State, next.State) {
		return prev, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev.State, next.State)
	}
	if err := next.Validate(); err != nil {
		return prev, err
	}

	s.mu.Lock()
	s.current = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return next, nil
}
