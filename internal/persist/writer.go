// Package persist implements the write-behind policy of the preference stores:
// mutations commit to memory synchronously and hand a full snapshot to a Writer,
// which stores it in the background.
package persist

import (
	"context"
	"sync"
	"time"

	"github.com/2beens/gymtracker/internal/storage"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
)

const DefaultWriteTimeout = 5 * time.Second

// Writer owns one storage key and persists the latest scheduled snapshot
// from a single background goroutine. Snapshots scheduled while a write is
// in flight are coalesced, so the last scheduled one is always the last one
// written and an older snapshot never lands after a newer one.
type Writer struct {
	storage      storage.Storage
	key          string
	name         string
	writeTimeout time.Duration
	metrics      *metrics.Manager

	mutex     sync.Mutex
	pending   []byte
	scheduled uint64 // version of the latest scheduled snapshot
	attempted uint64 // version of the latest snapshot a write finished for
	lastErr   error
	progress  chan struct{} // closed after every finished write
	closed    bool

	notify    chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type WriterParams struct {
	Storage storage.Storage
	Key     string
	// Name identifies the owning store in logs and metrics.
	Name         string
	WriteTimeout time.Duration
	Metrics      *metrics.Manager
}

func NewWriter(params WriterParams) *Writer {
	writeTimeout := params.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	w := &Writer{
		storage:      params.Storage,
		key:          params.Key,
		name:         params.Name,
		writeTimeout: writeTimeout,
		metrics:      params.Metrics,
		progress:     make(chan struct{}),
		notify:       make(chan struct{}, 1),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go w.loop()

	return w
}

func (w *Writer) Key() string {
	return w.key
}

// Schedule hands over a full snapshot to be persisted. Never blocks on I/O.
// The caller must not modify snapshot afterwards.
func (w *Writer) Schedule(snapshot []byte) {
	w.mutex.Lock()
	if w.closed {
		w.mutex.Unlock()
		log.Warnf("persist [%s]: snapshot scheduled after close, dropped", w.name)
		return
	}
	w.pending = snapshot
	w.scheduled++
	w.mutex.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
		// a wake up is already pending, it will pick up this snapshot
	}
}

// Flush waits until every snapshot scheduled before the call has been written
// (or attempted) and returns the error of the latest write. A ctx expiry only
// stops the waiting, the write itself goes on.
func (w *Writer) Flush(ctx context.Context) error {
	w.mutex.Lock()
	target := w.scheduled
	w.mutex.Unlock()

	for {
		w.mutex.Lock()
		if w.attempted >= target {
			err := w.lastErr
			w.mutex.Unlock()
			return err
		}
		progress := w.progress
		w.mutex.Unlock()

		select {
		case <-progress:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close writes whatever is still pending and stops the background goroutine.
func (w *Writer) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		w.mutex.Lock()
		w.closed = true
		w.mutex.Unlock()
		close(w.quit)
	})

	select {
	case <-w.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.lastErr
}

func (w *Writer) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.notify:
			w.writePending()
		case <-w.quit:
			w.writePending()
			return
		}
	}
}

func (w *Writer) writePending() {
	for {
		w.mutex.Lock()
		if w.attempted == w.scheduled {
			w.mutex.Unlock()
			return
		}
		payload, version := w.pending, w.scheduled
		w.mutex.Unlock()

		err := w.write(payload)

		w.mutex.Lock()
		w.attempted = version
		w.lastErr = err
		close(w.progress)
		w.progress = make(chan struct{})
		w.mutex.Unlock()
	}
}

func (w *Writer) write(payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
	defer cancel()

	begin := time.Now()
	err := w.storage.Set(ctx, w.key, payload)
	if w.metrics != nil {
		w.metrics.HistPersistDuration.WithLabelValues(w.name).Observe(time.Since(begin).Seconds())
	}

	if err != nil {
		// in-memory state stays as is, the next mutation writes a full snapshot again
		log.Errorf("persist [%s]: write key [%s]: %s", w.name, w.key, err)
		w.countWrite(metrics.StatusError)
		return err
	}

	log.Tracef("persist [%s]: key [%s] written, %d bytes", w.name, w.key, len(payload))
	w.countWrite(metrics.StatusOK)
	return nil
}

func (w *Writer) countWrite(status string) {
	if w.metrics != nil {
		w.metrics.CounterPersistWrites.WithLabelValues(w.name, status).Inc()
	}
}
