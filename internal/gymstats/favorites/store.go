// Package favorites keeps the set of exercises marked as favorite.
package favorites

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/2beens/gymtracker/internal/persist"
	"github.com/2beens/gymtracker/internal/storage"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
)

const storeName = "favorites"

// Store is the in-memory authoritative favorites set. Every mutation is
// visible immediately and scheduled for a write-behind to storage.
type Store struct {
	// serializes mutations, so snapshots reach the writer and the
	// subscribers in mutation order
	mutations sync.Mutex

	mutex    sync.RWMutex
	ids      map[string]struct{}
	revision uint64

	storage     storage.Storage
	key         string
	writer      *persist.Writer
	subscribers persist.Subscribers[[]string]
	metrics     *metrics.Manager
}

type Params struct {
	Storage      storage.Storage
	Key          string
	WriteTimeout time.Duration
	Metrics      *metrics.Manager
}

// NewStore creates an empty store. Call Hydrate to load the persisted set.
func NewStore(params Params) *Store {
	return &Store{
		ids:     make(map[string]struct{}),
		storage: params.Storage,
		key:     params.Key,
		writer: persist.NewWriter(persist.WriterParams{
			Storage:      params.Storage,
			Key:          params.Key,
			Name:         storeName,
			WriteTimeout: params.WriteTimeout,
			Metrics:      params.Metrics,
		}),
		subscribers: persist.Subscribers[[]string]{Clone: slices.Clone[[]string]},
		metrics:     params.Metrics,
	}
}

// Hydrate replaces the in-memory set with the persisted one. On any failure
// the set stays empty; the failure is logged and counted, never returned.
func (s *Store) Hydrate(ctx context.Context) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "favorites.hydrate")
	defer span.End()

	var ids []string
	if !persist.Hydrate(ctx, persist.HydrateParams{
		Storage: s.storage,
		Key:     s.key,
		Name:    storeName,
		Metrics: s.metrics,
	}, &ids) {
		return
	}

	s.mutations.Lock()
	defer s.mutations.Unlock()

	s.mutex.Lock()
	s.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	s.revision++
	snapshot := s.snapshotLocked()
	s.mutex.Unlock()

	s.setGauge(len(snapshot))
	log.Debugf("favorites: hydrated %d exercises", len(snapshot))
	s.subscribers.Notify(snapshot)
}

func (s *Store) IsFavorite(id string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Toggle adds id if absent and removes it if present.
// Returns whether id is a favorite afterwards.
func (s *Store) Toggle(id string) bool {
	s.mutations.Lock()
	defer s.mutations.Unlock()

	s.mutex.Lock()
	_, present := s.ids[id]
	if present {
		delete(s.ids, id)
	} else {
		s.ids[id] = struct{}{}
	}
	snapshot := s.commitLocked()
	s.mutex.Unlock()

	if s.metrics != nil {
		s.metrics.CounterFavoriteToggles.Inc()
	}
	s.subscribers.Notify(snapshot)

	return !present
}

// Add marks id as favorite. No-op if it already is one.
func (s *Store) Add(id string) {
	s.mutations.Lock()
	defer s.mutations.Unlock()

	s.mutex.Lock()
	if _, ok := s.ids[id]; ok {
		s.mutex.Unlock()
		return
	}
	s.ids[id] = struct{}{}
	snapshot := s.commitLocked()
	s.mutex.Unlock()

	s.subscribers.Notify(snapshot)
}

// Remove unmarks id. No-op if it is not a favorite.
func (s *Store) Remove(id string) {
	s.mutations.Lock()
	defer s.mutations.Unlock()

	s.mutex.Lock()
	if _, ok := s.ids[id]; !ok {
		s.mutex.Unlock()
		return
	}
	delete(s.ids, id)
	snapshot := s.commitLocked()
	s.mutex.Unlock()

	s.subscribers.Notify(snapshot)
}

// Snapshot returns the favorite ids, sorted.
func (s *Store) Snapshot() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.ids)
}

// Revision changes every time the set changes.
func (s *Store) Revision() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.revision
}

// Subscribe registers fn to receive the sorted set after every change.
// Every subscriber gets its own copy of the set. fn must not mutate the store.
func (s *Store) Subscribe(fn func(ids []string)) (unsubscribe func()) {
	return s.subscribers.Subscribe(fn)
}

// Flush waits until every mutation so far is durably stored, or ctx is done.
func (s *Store) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.writer.Close(ctx)
}

// commitLocked bumps the revision and schedules the write-behind.
// Must be called with s.mutex held.
func (s *Store) commitLocked() []string {
	s.revision++
	snapshot := s.snapshotLocked()
	s.setGauge(len(snapshot))

	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Errorf("favorites: marshal snapshot: %s", err)
		return snapshot
	}
	s.writer.Schedule(data)

	return snapshot
}

func (s *Store) setGauge(count int) {
	if s.metrics != nil {
		s.metrics.GaugeFavorites.Set(float64(count))
	}
}

func (s *Store) snapshotLocked() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
