package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var _ Storage = (*DiskStorage)(nil)

// DiskStorage keeps one JSON file per key under rootPath.
// Writes go to a temp file first and are renamed into place, so a crash
// mid-write never leaves a half written document behind.
type DiskStorage struct {
	rootPath string
}

func NewDiskStorage(rootPath string) (*DiskStorage, error) {
	if rootPath == "" {
		return nil, errors.New("disk storage root path cannot be empty")
	}
	if err := pkg.EnsureDir(rootPath); err != nil {
		return nil, fmt.Errorf("ensure root dir: %w", err)
	}
	log.Debugf("disk storage root: %s", rootPath)
	return &DiskStorage{
		rootPath: rootPath,
	}, nil
}

func (d *DiskStorage) pathFor(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key [%s]", key)
	}
	return filepath.Join(d.rootPath, url.PathEscape(key)+".json"), nil
}

func (d *DiskStorage) Get(ctx context.Context, key string) (_ []byte, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "storage.disk.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("key", key))

	path, err := d.pathFor(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read [%s]: %w", path, err)
	}
	return data, nil
}

func (d *DiskStorage) Set(ctx context.Context, key string, value []byte) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "storage.disk.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("key", key))
	span.SetAttributes(attribute.Int("size", len(value)))

	path, err := d.pathFor(key)
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(d.rootPath, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmpFile.Write(value); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (d *DiskStorage) Close() error {
	return nil
}
