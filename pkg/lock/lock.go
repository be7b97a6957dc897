// Package lock implements a lockfile guarding a state file against concurrent writers.
// Two orchestrator runs interleaving saves of the same fleet config would trade torn
// backups, so each run holds the lock for the duration.
package lock

import (
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	// ErrLockHeld signifies the lockfile exists and is fresh
	ErrLockHeld = errors.New("lock held by another process")
	// ErrLockNotHeld signifies an attempt to operate on a released/lost lock
	ErrLockNotHeld = errors.New("lock not held")

	// errStale signals the acquire loop to retry after breaking a stale lockfile
	errStale = errors.New("stale lock broken")
)

const pollInterval = 500 * time.Millisecond

// Lock is an exclusively created lockfile next to the guarded path
type Lock struct {
	path string
	ttl  time.Duration
	held bool
}

// Path returns the lockfile's own path for a guarded file
func Path(guarded string) string {
	return guarded + ".lock"
}

func tryAcquire(path string, ttl time.Duration) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err == nil {
		_, _ = fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().Format(time.RFC3339))
		return f.Close()
	}
	if !os.IsExist(err) {
		return err
	}

	// a crashed run leaves its lockfile behind; break it once it outlives the ttl
	info, serr := os.Stat(path)
	if serr == nil && ttl > 0 && time.Since(info.ModTime()) > ttl {
		_ = os.Remove(path)
		return errStale
	}
	return ErrLockHeld
}

// Acquire attempts to take the lock guarding a path. With blocking set, it polls until
// the holder releases or the lockfile goes stale; otherwise a held lock is an immediate
// ErrLockHeld.
func Acquire(guarded string, ttl time.Duration, blocking bool) (*Lock, error) {
	path := Path(guarded)
	for {
		err := tryAcquire(path, ttl)
		if err == nil {
			return &Lock{path: path, ttl: ttl, held: true}, nil
		}
		if errors.Is(err, errStale) {
			continue
		}
		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}
		if !blocking {
			return nil, err
		}
		time.Sleep(pollInterval)
	}
}

// Refresh re-stamps the lockfile so a long run is not mistaken for a stale one
func (l *Lock) Refresh() error {
	if !l.held {
		return ErrLockNotHeld
	}
	now := time.Now()
	if err := os.Chtimes(l.path, now, now); err != nil {
		l.held = false
		return err
	}
	return nil
}

// Release removes the lockfile
func (l *Lock) Release() error {
	if !l.held {
		return ErrLockNotHeld
	}
	l.held = false
	return os.Remove(l.path)
}
