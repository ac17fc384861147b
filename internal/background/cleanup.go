// Package background runs the periodic maintenance tasks: sweeping expired
// blocks out of the in-memory guard and archiving old audit log partitions.
// The sweep is process-local; the archive sweep is serialized across instances
// through an advisory lock so only one instance touches the shared log
// directory per tick.
package background

import (
	"context"
	"log/slog"
	"time"
)

// ArchiveLockName names the advisory lock serializing the archive sweep
const ArchiveLockName = "authguard_audit_archive"

// Sweeper removes expired block records
type Sweeper interface {
	SweepExpired() int
}

// Archiver moves partitions older than the retention window
type Archiver interface {
	Archive(daysToKeep int) (int, error)
}

// LockRunner runs fn under a named cross-instance lock
type LockRunner interface {
	WithLock(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error) (bool, error)
}

// CleanupManager drives both maintenance cadences
type CleanupManager struct {
	guard           Sweeper
	store           Archiver
	locker          LockRunner
	logger          *slog.Logger
	sweepInterval   time.Duration
	archiveInterval time.Duration
	lockTimeout     time.Duration
	retentionDays   int
	stopCh          chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	guard Sweeper,
	store Archiver,
	locker LockRunner,
	logger *slog.Logger,
	sweepInterval time.Duration,
	archiveInterval time.Duration,
	lockTimeout time.Duration,
	retentionDays int,
) *CleanupManager {
	return &CleanupManager{
		guard:           guard,
		store:           store,
		locker:          locker,
		logger:          logger,
		sweepInterval:   sweepInterval,
		archiveInterval: archiveInterval,
		lockTimeout:     lockTimeout,
		retentionDays:   retentionDays,
		stopCh:          make(chan struct{}),
	}
}

// Start begins the periodic maintenance tasks
func (cm *CleanupManager) Start(ctx context.Context) {
	sweepTicker := time.NewTicker(cm.sweepInterval)
	defer sweepTicker.Stop()
	archiveTicker := time.NewTicker(cm.archiveInterval)
	defer archiveTicker.Stop()

	// Run immediately on startup
	cm.runSweep()
	cm.runArchive(ctx)

	for {
		select {
		case <-sweepTicker.C:
			cm.runSweep()
		case <-archiveTicker.C:
			cm.runArchive(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runSweep drops expired block records from the in-memory guard
func (cm *CleanupManager) runSweep() {
	removed := cm.guard.SweepExpired()
	if removed > 0 {
		cm.logger.Info("expired block sweep completed", slog.Int("removed", removed))
	}
}

// runArchive moves old audit partitions under the cross-instance lock. Not
// winning the lock means another instance is archiving; this one skips.
func (cm *CleanupManager) runArchive(ctx context.Context) {
	archiveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ran, err := cm.locker.WithLock(archiveCtx, ArchiveLockName, cm.lockTimeout, func(taskCtx context.Context) error {
		archived, aerr := cm.store.Archive(cm.retentionDays)
		if aerr != nil {
			return aerr
		}
		if archived > 0 {
			cm.logger.Info("audit log archive completed",
				slog.Int("archived", archived),
				slog.Int("retention_days", cm.retentionDays),
			)
		}
		return nil
	})
	if err != nil {
		cm.logger.Error("audit log archive failed", slog.Any("error", err))
		return
	}
	if !ran {
		cm.logger.Debug("audit log archive skipped, another instance holds the lock")
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
