package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/2beens/gymtracker/internal/storage"
	"github.com/2beens/gymtracker/internal/storage/mocks"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// blockingStorage blocks every Set until release is closed.
type blockingStorage struct {
	*storage.MemoryStorage
	started chan struct{}
	release chan struct{}

	mutex  sync.Mutex
	writes [][]byte
}

func newBlockingStorage() *blockingStorage {
	return &blockingStorage{
		MemoryStorage: storage.NewMemoryStorage(),
		started:       make(chan struct{}, 100),
		release:       make(chan struct{}),
	}
}

func (b *blockingStorage) Set(ctx context.Context, key string, value []byte) error {
	b.started <- struct{}{}
	<-b.release

	b.mutex.Lock()
	b.writes = append(b.writes, value)
	b.mutex.Unlock()

	return b.MemoryStorage.Set(ctx, key, value)
}

func (b *blockingStorage) writesCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.writes)
}

func closeWriter(t *testing.T, w *Writer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, w.Close(ctx))
}

func TestWriter_ScheduleAndFlush(t *testing.T) {
	memStorage := storage.NewMemoryStorage()
	metricsManager := metrics.NewTestManager()
	w := NewWriter(WriterParams{
		Storage: memStorage,
		Key:     "gymtracker::favorites",
		Name:    "favorites",
		Metrics: metricsManager,
	})
	defer closeWriter(t, w)

	assert.Equal(t, "gymtracker::favorites", w.Key())

	// nothing scheduled yet
	require.NoError(t, w.Flush(context.Background()))

	w.Schedule([]byte(`["1"]`))
	w.Schedule([]byte(`["1","2"]`))
	w.Schedule([]byte(`["2"]`))
	require.NoError(t, w.Flush(context.Background()))

	doc, err := memStorage.Get(context.Background(), "gymtracker::favorites")
	require.NoError(t, err)
	assert.Equal(t, `["2"]`, string(doc))

	okWrites := testutil.ToFloat64(metricsManager.CounterPersistWrites.WithLabelValues("favorites", metrics.StatusOK))
	assert.GreaterOrEqual(t, okWrites, float64(1))
	assert.LessOrEqual(t, okWrites, float64(3))
}

func TestWriter_CoalescesWhileWriteInFlight(t *testing.T) {
	blocking := newBlockingStorage()
	w := NewWriter(WriterParams{
		Storage: blocking,
		Key:     "gymtracker::exercise-history",
		Name:    "history",
	})
	defer closeWriter(t, w)

	w.Schedule([]byte(`{"v":1}`))
	<-blocking.started // first write in flight

	w.Schedule([]byte(`{"v":2}`))
	w.Schedule([]byte(`{"v":3}`))
	w.Schedule([]byte(`{"v":4}`))

	close(blocking.release)
	require.NoError(t, w.Flush(context.Background()))

	assert.Equal(t, 2, blocking.writesCount())
	doc, err := blocking.Get(context.Background(), "gymtracker::exercise-history")
	require.NoError(t, err)
	assert.Equal(t, `{"v":4}`, string(doc))
}

func TestWriter_FlushContextExpiry(t *testing.T) {
	blocking := newBlockingStorage()
	w := NewWriter(WriterParams{
		Storage: blocking,
		Key:     "k",
		Name:    "favorites",
	})

	w.Schedule([]byte(`[]`))
	<-blocking.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := w.Flush(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the write itself was not cancelled
	close(blocking.release)
	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, 1, blocking.writesCount())

	closeWriter(t, w)
}

func TestWriter_WriteErrorIsReportedOnFlushOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	storageMock := mocks.NewMockStorage(ctrl)
	metricsManager := metrics.NewTestManager()

	w := NewWriter(WriterParams{
		Storage:      storageMock,
		Key:          "gymtracker::favorites",
		Name:         "favorites",
		WriteTimeout: time.Second,
		Metrics:      metricsManager,
	})
	defer closeWriter(t, w)

	storageMock.EXPECT().
		Set(gomock.Any(), "gymtracker::favorites", []byte(`["1"]`)).
		Return(errors.New("disk full")).
		Times(1)
	w.Schedule([]byte(`["1"]`))
	err := w.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, "disk full", err.Error())
	assert.Equal(t, float64(1), testutil.ToFloat64(
		metricsManager.CounterPersistWrites.WithLabelValues("favorites", metrics.StatusError),
	))

	// next snapshot goes through again
	storageMock.EXPECT().
		Set(gomock.Any(), "gymtracker::favorites", []byte(`["1","2"]`)).
		Return(nil).
		Times(1)
	w.Schedule([]byte(`["1","2"]`))
	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		metricsManager.CounterPersistWrites.WithLabelValues("favorites", metrics.StatusOK),
	))
}

func TestWriter_CloseWritesPendingAndDropsLateSnapshots(t *testing.T) {
	memStorage := storage.NewMemoryStorage()
	w := NewWriter(WriterParams{
		Storage: memStorage,
		Key:     "k",
		Name:    "favorites",
	})

	w.Schedule([]byte(`["last"]`))
	closeWriter(t, w)

	doc, err := memStorage.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, `["last"]`, string(doc))

	w.Schedule([]byte(`["too-late"]`))
	require.NoError(t, w.Flush(context.Background()))
	doc, err = memStorage.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, `["last"]`, string(doc))

	// closing twice is fine
	closeWriter(t, w)
}
