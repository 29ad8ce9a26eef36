package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrPoolExhausted is returned by Acquire when every pooled connection
// stayed busy for the whole wait.
var ErrPoolExhausted = errors.New("database: connection pool exhausted")

// Acquire reserves a dedicated connection from the pool, waiting at most
// wait.  The returned connection must be closed by the caller to give it
// back to the pool.
func Acquire(ctx context.Context, db *sql.DB, wait time.Duration) (*sql.Conn, error) {
	if wait <= 0 {
		return db.Conn(ctx)
	}
	acqCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	conn, err := db.Conn(acqCtx)
	if err != nil {
		// Only our own deadline means the pool is saturated; a cancelled
		// caller is reported as such.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrPoolExhausted, wait)
		}
		return nil, err
	}
	return conn, nil
}
