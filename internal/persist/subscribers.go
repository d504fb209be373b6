package persist

import "sync"

// Subscribers fans store snapshots out to consumers.
type Subscribers[T any] struct {
	// Clone, when set, gives every subscriber its own copy of a snapshot.
	// Without it all subscribers share one value and must treat it as read-only.
	Clone func(T) T

	mutex  sync.Mutex
	nextID uint64
	funcs  map[uint64]func(T)
}

// Subscribe registers fn and returns a function removing it again.
// Calling the returned function more than once is fine.
func (s *Subscribers[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.funcs == nil {
		s.funcs = make(map[uint64]func(T))
	}
	id := s.nextID
	s.nextID++
	s.funcs[id] = fn

	return func() {
		s.mutex.Lock()
		delete(s.funcs, id)
		s.mutex.Unlock()
	}
}

// Notify calls every subscriber with snapshot, in no particular order.
func (s *Subscribers[T]) Notify(snapshot T) {
	s.mutex.Lock()
	funcs := make([]func(T), 0, len(s.funcs))
	for _, fn := range s.funcs {
		funcs = append(funcs, fn)
	}
	s.mutex.Unlock()

	for _, fn := range funcs {
		if s.Clone != nil {
			fn(s.Clone(snapshot))
			continue
		}
		fn(snapshot)
	}
}

func (s *Subscribers[T]) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.funcs)
}
