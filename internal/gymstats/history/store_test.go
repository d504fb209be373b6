package history

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
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

const testKey = "gymtracker::exercise-history"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newTestStore(t *testing.T, s storage.Storage) (*Store, *metrics.Manager, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	metricsManager := metrics.NewTestManager()
	store := NewStore(Params{
		Storage: s,
		Key:     testKey,
		Metrics: metricsManager,
		Now:     clock.Now,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(ctx)
	})
	return store, metricsManager, clock
}

func TestStore_UpdateAndCheckIsPR(t *testing.T) {
	memStorage := storage.NewMemoryStorage()
	store, _, clock := newTestStore(t, memStorage)

	assert.False(t, store.CheckIsPR("1", "80", "8"), "first performance is not a PR")

	store.Update("1", "80", "8")
	firstDate := clock.now
	assert.True(t, store.CheckIsPR("1", "85", "5"), "weight axis improved")
	assert.False(t, store.CheckIsPR("1", "80", "8"), "ties are not a PR")

	rec := store.Update("1", "85", "5")
	assert.Equal(t, PersonalRecord{
		LastWeight: "85",
		LastReps:   "5",
		BestWeight: "85",
		BestReps:   "8",
		LastDate:   clock.now,
	}, rec)
	assert.True(t, rec.LastDate.After(firstDate))

	got, ok := store.Get("1")
	require.True(t, ok)
	assert.Equal(t, "85", got.BestWeight)
	assert.Equal(t, "8", got.BestReps)

	_, ok = store.Get("2")
	assert.False(t, ok)

	require.NoError(t, store.Flush(context.Background()))
	data, err := memStorage.Get(context.Background(), testKey)
	require.NoError(t, err)

	var stored map[string]PersonalRecord
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, store.All(), stored)
	assert.Contains(t, string(data), `"bestWeight":"85"`)
	assert.Contains(t, string(data), `"lastDate":"2024-05-01T10:02:00Z"`)
}

func TestStore_BestsAreMonotonic(t *testing.T) {
	store, _, _ := newTestStore(t, storage.NewMemoryStorage())
	rnd := rand.New(rand.NewSource(42))

	var maxWeight float64
	var maxReps int64
	for i := 0; i < 200; i++ {
		weight := strconv.FormatFloat(float64(rnd.Intn(400))/2, 'f', -1, 64)
		reps := strconv.Itoa(rnd.Intn(20))
		if rnd.Intn(10) == 0 {
			weight = "n/a"
		}

		rec := store.Update("deadlift", weight, reps)
		maxWeight = max(maxWeight, ParseWeight(weight))
		maxReps = max(maxReps, ParseReps(reps))

		require.GreaterOrEqual(t, ParseWeight(rec.BestWeight), maxWeight, "iteration %d", i)
		require.GreaterOrEqual(t, ParseReps(rec.BestReps), maxReps, "iteration %d", i)
		require.Equal(t, weight, rec.LastWeight)
		require.Equal(t, reps, rec.LastReps)
	}
}

func TestStore_RecordSet(t *testing.T) {
	store, metricsManager, _ := newTestStore(t, storage.NewMemoryStorage())

	rec, isPR := store.RecordSet("1", "80", "8")
	assert.False(t, isPR)
	assert.Equal(t, "80", rec.BestWeight)

	_, isPR = store.RecordSet("1", "80", "8")
	assert.False(t, isPR)

	rec, isPR = store.RecordSet("1", "70", "10")
	assert.True(t, isPR)
	assert.Equal(t, "80", rec.BestWeight)
	assert.Equal(t, "10", rec.BestReps)

	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterPersonalRecords))
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.GaugeHistoryEntries))
}

func TestStore_AllReturnsCopy(t *testing.T) {
	store, _, _ := newTestStore(t, storage.NewMemoryStorage())
	store.Update("1", "80", "8")

	all := store.All()
	all["1"] = PersonalRecord{BestWeight: "999"}
	all["2"] = PersonalRecord{}

	got, _ := store.Get("1")
	assert.Equal(t, "80", got.BestWeight)
	assert.Equal(t, 1, store.Len())
}

func TestStore_Hydrate(t *testing.T) {
	memStorage := storage.NewMemoryStorage()
	require.NoError(t, memStorage.Set(context.Background(), testKey, []byte(`{
		"1": {"lastWeight":"80","lastReps":"8","bestWeight":"90","bestReps":"10","lastDate":"2024-04-01T08:00:00Z"}
	}`)))

	store, metricsManager, _ := newTestStore(t, memStorage)
	var notified map[string]PersonalRecord
	unsubscribe := store.Subscribe(func(records map[string]PersonalRecord) { notified = records })
	defer unsubscribe()

	store.Hydrate(context.Background())

	rec, ok := store.Get("1")
	require.True(t, ok)
	assert.Equal(t, "90", rec.BestWeight)
	assert.Equal(t, time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC), rec.LastDate)
	assert.Len(t, notified, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.GaugeHistoryEntries))

	assert.False(t, store.CheckIsPR("1", "85", "9"))
	assert.True(t, store.CheckIsPR("1", "85", "11"))
}

func TestStore_HydrateFailuresLeaveEmptyStore(t *testing.T) {
	for name, stored := range map[string][]byte{
		"missing key":  nil,
		"corrupt json": []byte(`{"1": {"lastWeight":`),
		"wrong shape":  []byte(`["1","2"]`),
		"null":         []byte(`null`),
	} {
		t.Run(name, func(t *testing.T) {
			memStorage := storage.NewMemoryStorage()
			if stored != nil {
				require.NoError(t, memStorage.Set(context.Background(), testKey, stored))
			}

			store, _, _ := newTestStore(t, memStorage)
			store.Hydrate(context.Background())
			assert.Equal(t, 0, store.Len())

			store.Update("1", "80", "8")
			assert.Equal(t, 1, store.Len())
		})
	}
}

func TestStore_PersistenceFailureKeepsInMemoryState(t *testing.T) {
	ctrl := gomock.NewController(t)
	storageMock := mocks.NewMockStorage(ctrl)
	storageMock.EXPECT().
		Set(gomock.Any(), testKey, gomock.Any()).
		Return(storage.ErrNotFound).
		AnyTimes()

	store, metricsManager, _ := newTestStore(t, storageMock)

	rec := store.Update("1", "80", "8")
	assert.Error(t, store.Flush(context.Background()))

	got, ok := store.Get("1")
	require.True(t, ok)
	assert.Equal(t, rec, got)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		metricsManager.CounterPersistWrites.WithLabelValues("history", metrics.StatusError),
	))
}

func TestStore_Subscribe(t *testing.T) {
	store, _, _ := newTestStore(t, storage.NewMemoryStorage())

	var got []map[string]PersonalRecord
	unsubscribe := store.Subscribe(func(records map[string]PersonalRecord) {
		got = append(got, records)
	})

	store.Update("1", "80", "8")
	store.Update("2", "100", "3")
	unsubscribe()
	store.Update("3", "20", "12")

	require.Len(t, got, 2)
	assert.Len(t, got[0], 1)
	assert.Len(t, got[1], 2)
}

func TestStore_WithoutMetrics(t *testing.T) {
	memStorage := storage.NewMemoryStorage()
	store := NewStore(Params{Storage: memStorage, Key: testKey})
	defer func() {
		assert.NoError(t, store.Close(context.Background()))
	}()

	store.Hydrate(context.Background())

	assert.NotPanics(t, func() {
		_, pr := store.RecordSet("0001", "80", "5")
		assert.False(t, pr)
		_, pr = store.RecordSet("0001", "85", "5")
		assert.True(t, pr)
	})

	require.NoError(t, store.Flush(context.Background()))
	data, err := memStorage.Get(context.Background(), testKey)
	require.NoError(t, err)
	var stored map[string]PersonalRecord
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, "85", stored["0001"].BestWeight)
}

func TestStore_SubscribersGetOwnSnapshot(t *testing.T) {
	store, _, _ := newTestStore(t, storage.NewMemoryStorage())

	var got map[string]PersonalRecord
	store.Subscribe(func(records map[string]PersonalRecord) {
		delete(records, "0001")
		records["bogus"] = PersonalRecord{}
	})
	store.Subscribe(func(records map[string]PersonalRecord) {
		got = records
	})

	store.Update("0001", "60", "10")

	require.Len(t, got, 1)
	assert.Equal(t, "60", got["0001"].BestWeight)
	assert.Equal(t, 1, store.Len())
}
