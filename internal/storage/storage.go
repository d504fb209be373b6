// Package storage holds the durable key-value drivers behind the preference stores.
// Every driver stores whole documents: Set overwrites, there are no partial writes.
package storage

//go:generate mockgen -source=storage.go -destination=mocks/storage_mock.go -package=mocks

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("storage key not found")

type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverDisk     Driver = "disk"
	DriverRedis    Driver = "redis"
	DriverSqlite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverS3       Driver = "s3"
)

type Storage interface {
	// Get returns the document stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the document stored under key.
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}
