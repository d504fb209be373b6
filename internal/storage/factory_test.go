package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/2beens/gymtracker/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()

	s, err := New(ctx, NewParams{Config: &config.Config{StorageDriver: "memory"}})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = New(ctx, NewParams{Config: &config.Config{
		StorageDriver: "DISK",
		DiskRootPath:  filepath.Join(tempDir, "disk"),
	}})
	require.NoError(t, err)
	assert.IsType(t, &DiskStorage{}, s)

	s, err = New(ctx, NewParams{Config: &config.Config{
		StorageDriver: "sqlite",
		SqlitePath:    filepath.Join(tempDir, "gymtracker.db"),
	}})
	require.NoError(t, err)
	assert.IsType(t, &SqliteStorage{}, s)
	assert.NoError(t, s.Close())

	s, err = New(ctx, NewParams{Config: &config.Config{StorageDriver: "floppy"}})
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Equal(t, "unknown storage driver: floppy", err.Error())
}
