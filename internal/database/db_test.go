package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitchdreamers/pitch-booking/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{User: "app", Password: "s3cret", Host: "db", Port: "3306", Name: "pitch"})
	assert.True(t, strings.HasPrefix(dsn, "app:s3cret@tcp(db:3306)/pitch?"))
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestAcquireReturnsPoolExhausted(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	held, err := Acquire(context.Background(), db, time.Second)
	require.NoError(t, err)

	_, err = Acquire(context.Background(), db, 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPoolExhausted))

	require.NoError(t, held.Close())
	again, err := Acquire(context.Background(), db, time.Second)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestAcquireHonoursCallerCancellation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	held, err := Acquire(context.Background(), db, time.Second)
	require.NoError(t, err)
	defer held.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Acquire(ctx, db, time.Second)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPoolExhausted))
}
