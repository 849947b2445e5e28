package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nholik/deploy-sentinel/internal/deploy"
)

// LockContentionError reports that another orchestration run already
// holds the target. The caller must not retry concurrently.
type LockContentionError struct {
	Target deploy.Target
	Path   string
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("target %s is locked by another run (%s)", e.Target.Key(), e.Path)
}

// targetLocker serializes orchestration runs per deployment target.
// An in-process map catches races inside one orchestrator process; an
// exclusively-created lockfile catches concurrent processes on the
// same host.
type targetLocker struct {
	dir  string
	mu   sync.Mutex
	held map[string]bool
}

func newTargetLocker(dir string) *targetLocker {
	return &targetLocker{
		dir:  dir,
		held: make(map[string]bool),
	}
}

type targetLock struct {
	key  string
	path string
}

// Acquire fails fast with LockContentionError when the target is
// already locked; it never blocks.
func (l *targetLocker) Acquire(target deploy.Target, runID string) (*targetLock, error) {
	key := target.Key()
	path := l.lockPath(key)

	l.mu.Lock()
	if l.held[key] {
		l.mu.Unlock()
		return nil, &LockContentionError{Target: target, Path: path}
	}
	l.held[key] = true
	l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		l.release(key)
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		l.release(key)
		if errors.Is(err, os.ErrExist) {
			return nil, &LockContentionError{Target: target, Path: path}
		}
		return nil, fmt.Errorf("create lockfile: %w", err)
	}
	_, _ = fmt.Fprintln(file, runID)
	_ = file.Close()

	return &targetLock{key: key, path: path}, nil
}

// Release frees the lock. Safe to call with a nil lock.
func (l *targetLocker) Release(lock *targetLock) {
	if lock == nil {
		return
	}
	_ = os.Remove(lock.path)
	l.release(lock.key)
}

func (l *targetLocker) release(key string) {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
}

func (l *targetLocker) lockPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(l.dir, "deploy-sentinel-"+hex.EncodeToString(sum[:8])+".lock")
}
