// Package history keeps the personal record of every performed exercise
// and detects new personal records.
package history

import (
	"context"
	"encoding/json"
	"maps"
	"sync"
	"time"

	"github.com/2beens/gymtracker/internal/persist"
	"github.com/2beens/gymtracker/internal/storage"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
)

const storeName = "history"

type Store struct {
	mutations sync.Mutex

	mutex   sync.RWMutex
	records map[string]PersonalRecord

	storage     storage.Storage
	key         string
	writer      *persist.Writer
	subscribers persist.Subscribers[map[string]PersonalRecord]
	metrics     *metrics.Manager
	now         func() time.Time
}

type Params struct {
	Storage      storage.Storage
	Key          string
	WriteTimeout time.Duration
	Metrics      *metrics.Manager
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewStore(params Params) *Store {
	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		records: make(map[string]PersonalRecord),
		storage: params.Storage,
		key:     params.Key,
		writer: persist.NewWriter(persist.WriterParams{
			Storage:      params.Storage,
			Key:          params.Key,
			Name:         storeName,
			WriteTimeout: params.WriteTimeout,
			Metrics:      params.Metrics,
		}),
		subscribers: persist.Subscribers[map[string]PersonalRecord]{
			Clone: maps.Clone[map[string]PersonalRecord],
		},
		metrics: params.Metrics,
		now:     now,
	}
}

// Hydrate replaces the in-memory records with the persisted ones. On any
// failure the store stays empty; the failure is logged and counted.
func (s *Store) Hydrate(ctx context.Context) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "history.hydrate")
	defer span.End()

	var records map[string]PersonalRecord
	if !persist.Hydrate(ctx, persist.HydrateParams{
		Storage: s.storage,
		Key:     s.key,
		Name:    storeName,
		Metrics: s.metrics,
	}, &records) {
		return
	}
	if records == nil {
		// a stored "null"
		records = make(map[string]PersonalRecord)
	}

	s.mutations.Lock()
	defer s.mutations.Unlock()

	s.mutex.Lock()
	s.records = records
	snapshot := maps.Clone(s.records)
	s.mutex.Unlock()

	s.setGauge(len(snapshot))
	log.Debugf("history: hydrated %d records", len(snapshot))
	s.subscribers.Notify(snapshot)
}

func (s *Store) Get(id string) (PersonalRecord, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// All returns a copy of every record, keyed by exercise id.
func (s *Store) All() map[string]PersonalRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return maps.Clone(s.records)
}

func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.records)
}

// CheckIsPR reports whether weight x reps strictly beats the recorded best
// weight or best reps of id. False when id has no record yet. Must be asked
// before Update, which overwrites the record it compares against.
func (s *Store) CheckIsPR(id, weight, reps string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	prev, ok := s.records[id]
	return isPR(prev, ok, weight, reps)
}

// Update records a performed set and returns the committed record.
func (s *Store) Update(id, weight, reps string) PersonalRecord {
	rec, _ := s.record(id, weight, reps)
	return rec
}

// RecordSet checks for a personal record and records the set in one step.
func (s *Store) RecordSet(id, weight, reps string) (PersonalRecord, bool) {
	rec, pr := s.record(id, weight, reps)
	if pr {
		if s.metrics != nil {
			s.metrics.CounterPersonalRecords.Inc()
		}
		log.Debugf("history: new personal record for [%s]: %s x %s", id, weight, reps)
	}
	return rec, pr
}

func (s *Store) record(id, weight, reps string) (PersonalRecord, bool) {
	s.mutations.Lock()
	defer s.mutations.Unlock()

	s.mutex.Lock()
	prev, exists := s.records[id]
	pr := isPR(prev, exists, weight, reps)
	rec := next(prev, exists, weight, reps, s.now())
	s.records[id] = rec
	snapshot := s.commitLocked()
	s.mutex.Unlock()

	s.subscribers.Notify(snapshot)
	return rec, pr
}

// Subscribe registers fn to receive a copy of all records after every change.
// Every subscriber gets its own copy. fn must not mutate the store.
func (s *Store) Subscribe(fn func(records map[string]PersonalRecord)) (unsubscribe func()) {
	return s.subscribers.Subscribe(fn)
}

func (s *Store) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.writer.Close(ctx)
}

// commitLocked schedules the write-behind. Must be called with s.mutex held.
func (s *Store) commitLocked() map[string]PersonalRecord {
	snapshot := maps.Clone(s.records)
	s.setGauge(len(snapshot))

	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Errorf("history: marshal snapshot: %s", err)
		return snapshot
	}
	s.writer.Schedule(data)

	return snapshot
}

func (s *Store) setGauge(count int) {
	if s.metrics != nil {
		s.metrics.GaugeHistoryEntries.Set(float64(count))
	}
}
