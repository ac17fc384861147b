package background_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/opsdeck/authguard/internal/background"
)

type mockSweeper struct {
	calls atomic.Int32
}

func (m *mockSweeper) SweepExpired() int {
	m.calls.Add(1)
	return 3
}

type mockArchiver struct {
	calls atomic.Int32
	days  atomic.Int32
}

func (m *mockArchiver) Archive(daysToKeep int) (int, error) {
	m.days.Store(int32(daysToKeep))
	m.calls.Add(1)
	return 1, nil
}

// passthroughLocker runs the task without contention
type passthroughLocker struct {
	calls atomic.Int32
	name  string
}

func (l *passthroughLocker) WithLock(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error) (bool, error) {
	l.name = name
	l.calls.Add(1)
	return true, fn(ctx)
}

// heldLocker simulates another instance holding the lock
type heldLocker struct{}

func (heldLocker) WithLock(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error) (bool, error) {
	return false, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanupManager_RunsBothTasksOnStartup(t *testing.T) {
	sweeper := &mockSweeper{}
	archiver := &mockArchiver{}
	locker := &passthroughLocker{}

	cm := background.NewCleanupManager(sweeper, archiver, locker, discardLogger(),
		time.Hour, time.Hour, time.Second, 90)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return sweeper.calls.Load() >= 1 && archiver.calls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, background.ArchiveLockName, locker.name)
	assert.Equal(t, int32(90), archiver.days.Load())

	cancel()
	<-done
}

func TestCleanupManager_SweepsOnInterval(t *testing.T) {
	sweeper := &mockSweeper{}
	archiver := &mockArchiver{}

	cm := background.NewCleanupManager(sweeper, archiver, &passthroughLocker{}, discardLogger(),
		20*time.Millisecond, time.Hour, time.Second, 90)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cm.Start(ctx)

	assert.Eventually(t, func() bool {
		return sweeper.calls.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCleanupManager_SkipsArchiveWhenLockHeld(t *testing.T) {
	sweeper := &mockSweeper{}
	archiver := &mockArchiver{}

	cm := background.NewCleanupManager(sweeper, archiver, heldLocker{}, discardLogger(),
		time.Hour, time.Hour, time.Second, 90)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cm.Start(ctx)

	assert.Eventually(t, func() bool {
		return sweeper.calls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// The archiver itself never ran
	assert.Equal(t, int32(0), archiver.calls.Load())
}

func TestCleanupManager_StopTerminates(t *testing.T) {
	cm := background.NewCleanupManager(&mockSweeper{}, &mockArchiver{}, &passthroughLocker{}, discardLogger(),
		time.Hour, time.Hour, time.Second, 90)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cm.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}
