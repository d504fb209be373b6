package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStorage_Get(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := NewRedisStorage(rdb)
	defer func() {
		assert.NoError(t, s.Close())
	}()

	ctx := context.Background()

	mock.ExpectGet("gymtracker::favorites").SetVal(`["1","5"]`)
	doc, err := s.Get(ctx, "gymtracker::favorites")
	require.NoError(t, err)
	assert.Equal(t, `["1","5"]`, string(doc))

	mock.ExpectGet("gymtracker::favorites").RedisNil()
	doc, err = s.Get(ctx, "gymtracker::favorites")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, doc)

	mock.ExpectGet("gymtracker::favorites").SetErr(errors.New("connection reset"))
	_, err = s.Get(ctx, "gymtracker::favorites")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "connection reset")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStorage_Set(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := NewRedisStorage(rdb)
	defer func() {
		assert.NoError(t, s.Close())
	}()

	ctx := context.Background()

	mock.ExpectSet("gymtracker::exercise-history", `{}`, 0).SetVal("OK")
	require.NoError(t, s.Set(ctx, "gymtracker::exercise-history", []byte(`{}`)))

	mock.ExpectSet("gymtracker::exercise-history", `{}`, 0).SetErr(errors.New("OOM"))
	err := s.Set(ctx, "gymtracker::exercise-history", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OOM")

	assert.NoError(t, mock.ExpectationsWereMet())
}
