package utils

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"

	"gorm.io/gorm"
)

// sweepLockName identifies the background-sweep advisory lock. Hashed to
// the int64 key space pg_try_advisory_lock expects.
const sweepLockName = "rollcall.sweep"

// SweepLock is a Postgres session-scoped advisory lock that guarantees a
// single process runs the background sweeps even when several instances
// share the database. The lock is tied to a dedicated connection pinned
// out of the pool and held for the process lifetime.
type SweepLock struct {
	conn *sql.Conn
	held bool
}

// AcquireSweepLock makes one non-blocking attempt to take the lock.
// Held() reports false when another instance already owns it.
func AcquireSweepLock(ctx context.Context, db *gorm.DB) (*SweepLock, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get DB instance: %w", err)
	}

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to pin lock connection: %w", err)
	}

	var held bool
	if err := conn.QueryRowContext(ctx,
		"SELECT pg_try_advisory_lock($1)", lockKey(sweepLockName),
	).Scan(&held); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}

	if !held {
		conn.Close()
		return &SweepLock{}, nil
	}
	return &SweepLock{conn: conn, held: true}, nil
}

func (l *SweepLock) Held() bool {
	return l.held
}

// Release unlocks and returns the pinned connection. Safe to call on a
// lock that was never held.
func (l *SweepLock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false

	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", lockKey(sweepLockName))
	closeErr := l.conn.Close()
	if err != nil {
		return err
	}
	return closeErr
}

func lockKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}
