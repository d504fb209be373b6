package storage

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Copy copies the documents stored under keys from src to dst, overwriting
// what dst has. Keys missing in src are skipped. Returns the number of
// documents copied.
func Copy(ctx context.Context, src, dst Storage, keys ...string) (int, error) {
	copied := 0
	for _, key := range keys {
		doc, err := src.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			log.Debugf("copy: key [%s] not in source, skipping", key)
			continue
		}
		if err != nil {
			return copied, fmt.Errorf("read [%s]: %w", key, err)
		}

		if err := dst.Set(ctx, key, doc); err != nil {
			return copied, fmt.Errorf("write [%s]: %w", key, err)
		}
		log.Debugf("copy: key [%s] copied, %d bytes", key, len(doc))
		copied++
	}
	return copied, nil
}
