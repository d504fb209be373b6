// Package gymstats wires the exercise catalog, the preference stores and
// the browse engine into one Tracker.
package gymstats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/gymstats/browse"
	"github.com/2beens/gymtracker/internal/gymstats/catalog"
	"github.com/2beens/gymtracker/internal/gymstats/favorites"
	"github.com/2beens/gymtracker/internal/gymstats/history"
	"github.com/2beens/gymtracker/internal/storage"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

var ErrSharedStorageKey = errors.New("stores cannot share a storage key")

type TrackerParams struct {
	Catalog          *catalog.Catalog
	Storage          storage.Storage
	FavoritesKey     string
	HistoryKey       string
	WriteTimeout     time.Duration
	QueryCacheSizeMB int
	Metrics          *metrics.Manager
	// Now is the clock of the history store, defaults to time.Now.
	Now func() time.Time
}

// Tracker owns the hydrated stores of one user. There is no global
// instance: create one at start-up and pass it to whoever needs it.
type Tracker struct {
	Catalog   *catalog.Catalog
	Favorites *favorites.Store
	History   *history.Store
	Browse    *browse.Engine
}

// NewTracker creates both stores and hydrates them. A failed hydration
// leaves the affected store empty, it does not fail the bootstrap.
func NewTracker(ctx context.Context, params TrackerParams) (_ *Tracker, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "gymstats.tracker.new")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if params.Catalog == nil {
		return nil, errors.New("catalog not set")
	}
	if params.Storage == nil {
		return nil, errors.New("storage not set")
	}
	if params.Metrics == nil {
		return nil, errors.New("metrics manager not set")
	}
	if params.FavoritesKey == "" || params.HistoryKey == "" {
		return nil, errors.New("storage keys not set")
	}
	if params.FavoritesKey == params.HistoryKey {
		return nil, fmt.Errorf("key [%s]: %w", params.FavoritesKey, ErrSharedStorageKey)
	}

	favoritesStore := favorites.NewStore(favorites.Params{
		Storage:      params.Storage,
		Key:          params.FavoritesKey,
		WriteTimeout: params.WriteTimeout,
		Metrics:      params.Metrics,
	})
	historyStore := history.NewStore(history.Params{
		Storage:      params.Storage,
		Key:          params.HistoryKey,
		WriteTimeout: params.WriteTimeout,
		Metrics:      params.Metrics,
		Now:          params.Now,
	})

	favoritesStore.Hydrate(ctx)
	historyStore.Hydrate(ctx)

	log.Infof(
		"tracker ready: %d exercises in catalog, %d favorites, %d history records",
		params.Catalog.Len(), favoritesStore.Count(), historyStore.Len(),
	)

	return &Tracker{
		Catalog:   params.Catalog,
		Favorites: favoritesStore,
		History:   historyStore,
		Browse: browse.NewEngine(browse.EngineParams{
			Catalog:     params.Catalog,
			Favorites:   favoritesStore,
			CacheSizeMB: params.QueryCacheSizeMB,
			Metrics:     params.Metrics,
		}),
	}, nil
}

// NewPicker creates the transient browse state for one screen.
func (t *Tracker) NewPicker(onSelect func([]catalog.Exercise)) *browse.Picker {
	return browse.NewPicker(t.Browse, onSelect)
}

func (t *Tracker) SetupRoutes(router *mux.Router) {
	favorites.NewHandler(t.Favorites, t.Catalog).SetupRoutes(router)
	history.NewHandler(t.History, t.Catalog).SetupRoutes(router)
	browse.NewHandler(t.Browse).SetupRoutes(router)
}

// Flush waits until both stores have durably written every mutation so far.
func (t *Tracker) Flush(ctx context.Context) error {
	return multierr.Combine(
		t.Favorites.Flush(ctx),
		t.History.Flush(ctx),
	)
}

// Close writes what is still pending and stops both stores' writers.
func (t *Tracker) Close(ctx context.Context) error {
	var err error
	if closeErr := t.Favorites.Close(ctx); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("close favorites: %w", closeErr))
	}
	if closeErr := t.History.Close(ctx); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("close history: %w", closeErr))
	}
	return err
}
