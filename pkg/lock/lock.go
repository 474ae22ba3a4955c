// Package lock provides advisory file locking for the state store: one
// lock file per VPC plus a global lock for teardown-all and any
// operation spanning two VPCs (peering).
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/vpcnet/vpcctl/pkg/util"
)

// globalLockName is the lock file guarding multi-VPC operations.
const globalLockName = "_global.lock"

// pollInterval is how often Acquire retries a non-blocking flock attempt
// while waiting for the configured timeout to elapse.
const pollInterval = 50 * time.Millisecond

// Lock is a held advisory file lock. Release may be called more than once;
// calls after the first do nothing.
type Lock struct {
	file *os.File
}

// AcquireVPC takes the per-VPC lock file under dir, blocking up to timeout.
func AcquireVPC(ctx context.Context, dir, vpc string, timeout time.Duration) (*Lock, error) {
	return acquire(ctx, filepath.Join(dir, vpc+".lock"), timeout)
}

// AcquireGlobal takes the shared global lock file under dir, blocking up
// to timeout.
func AcquireGlobal(ctx context.Context, dir string, timeout time.Duration) (*Lock, error) {
	return acquire(ctx, filepath.Join(dir, globalLockName), timeout)
}

func acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Lock{file: f}, nil
		}
		if err != unix.EWOULDBLOCK {
			_ = f.Close()
			return nil, fmt.Errorf("lock %s: %w", path, err)
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("%w: %s", util.ErrLockTimeout, path)
		}
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release unlocks and closes the lock file. Safe to call once; subsequent
// calls are no-ops.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return err
	}
	return closeErr
}
