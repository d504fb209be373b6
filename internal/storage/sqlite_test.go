package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqliteStorage_RoundTrip(t *testing.T) {
	s, err := NewSqliteStorage(context.Background(), filepath.Join(t.TempDir(), "data", "gymtracker.db"))
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, s.Close())
	}()

	checkRoundTrip(t, s)
}

func TestSqliteStorage_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gymtracker.db")

	s, err := NewSqliteStorage(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "gymtracker::exercise-history", []byte(`{"1":{"lastWeight":"80"}}`)))
	require.NoError(t, s.Close())

	s, err = NewSqliteStorage(ctx, path)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, s.Close())
	}()

	doc, err := s.Get(ctx, "gymtracker::exercise-history")
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"lastWeight":"80"}}`, string(doc))
}
