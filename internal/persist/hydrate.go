package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2beens/gymtracker/internal/storage"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
)

var ErrCorruptDocument = errors.New("corrupt document")

// Load reads the document stored under key and decodes it into dst.
// Returns storage.ErrNotFound for a missing key and ErrCorruptDocument
// for a document that is not valid JSON for dst.
func Load(ctx context.Context, s storage.Storage, key string, dst any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %s", ErrCorruptDocument, err)
	}
	return nil
}

type HydrateParams struct {
	Storage storage.Storage
	Key     string
	Name    string
	Metrics *metrics.Manager
}

// Hydrate loads the document into dst, logging and counting any failure.
// It reports whether dst holds a loaded document; on false the caller keeps
// its empty state. Never returns an error: a store always comes up.
func Hydrate(ctx context.Context, params HydrateParams, dst any) bool {
	err := Load(ctx, params.Storage, params.Key, dst)
	status := hydrationStatus(err)
	if params.Metrics != nil {
		params.Metrics.CounterHydrations.WithLabelValues(params.Name, status).Inc()
	}

	switch status {
	case metrics.StatusOK:
		log.Debugf("hydrate [%s]: key [%s] loaded", params.Name, params.Key)
		return true
	case metrics.StatusNotFound:
		log.Debugf("hydrate [%s]: key [%s] not stored yet, starting empty", params.Name, params.Key)
	default:
		log.Warnf("hydrate [%s]: key [%s]: %s, starting empty", params.Name, params.Key, err)
	}
	return false
}

func hydrationStatus(err error) string {
	switch {
	case err == nil:
		return metrics.StatusOK
	case errors.Is(err, storage.ErrNotFound):
		return metrics.StatusNotFound
	case errors.Is(err, ErrCorruptDocument):
		return metrics.StatusCorrupt
	default:
		return metrics.StatusError
	}
}
