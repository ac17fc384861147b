// Package lock provides named, time-bounded mutual exclusion across process
// instances, built on Postgres session-level advisory locks. It exists so
// that exactly one instance of a horizontally scaled deployment runs a given
// periodic maintenance task per tick.
package lock

import (
	"context"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opsdeck/authguard/internal/database"
)

const pollInterval = 250 * time.Millisecond

// Locker acquires advisory locks from the shared relational backend
type Locker struct {
	db       *database.DB
	logger   *slog.Logger
	runnerID string
}

// New creates a Locker. Each process instance gets its own runner id for log
// attribution.
func New(db *database.DB, logger *slog.Logger) *Locker {
	return &Locker{
		db:       db,
		logger:   logger,
		runnerID: uuid.NewString(),
	}
}

// Key maps a lock name into the 64-bit advisory lock keyspace
func Key(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}

// WithLock runs fn while holding the named lock, releasing it afterward even
// when fn fails. ran reports whether fn executed: false means another
// instance holds the lock or acquisition itself failed — both are expected
// skip conditions under horizontal scaling, never propagated as errors.
func (l *Locker) WithLock(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error) (ran bool, err error) {
	conn, err := l.db.Pool.Acquire(ctx)
	if err != nil {
		l.logger.Error("failed to acquire connection for advisory lock",
			slog.String("lock", name),
			slog.Any("error", err),
		)
		return false, nil
	}
	defer conn.Release()

	lockKey := Key(name)
	deadline := time.Now().Add(timeout)

	for {
		var acquired bool
		if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, lockKey).Scan(&acquired); err != nil {
			l.logger.Error("advisory lock acquisition failed",
				slog.String("lock", name),
				slog.Any("error", err),
			)
			return false, nil
		}
		if acquired {
			break
		}
		if time.Now().After(deadline) {
			// Another instance holds it; skip this tick
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, nil
		case <-time.After(pollInterval):
		}
	}

	l.logger.Debug("advisory lock acquired",
		slog.String("lock", name),
		slog.String("runner", l.runnerID),
	)

	defer func() {
		// Release on a fresh context so a cancelled task still unlocks;
		// if the session drops anyway, the backend reclaims the lock
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, uerr := conn.Exec(releaseCtx, `SELECT pg_advisory_unlock($1)`, lockKey); uerr != nil {
			l.logger.Error("failed to release advisory lock",
				slog.String("lock", name),
				slog.Any("error", uerr),
			)
		}
	}()

	return true, fn(ctx)
}
