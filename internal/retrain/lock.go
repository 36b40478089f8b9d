package retrain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var ErrRetrainInProgress = errors.New("retrain already in progress")

type lockInfo struct {
	RunID      string    `json:"run_id"`
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// fileLock is an advisory lock held by creating a file with O_EXCL. A lock
// older than the stale duration is assumed abandoned and broken once.
type fileLock struct {
	path string
}

func acquireLock(path, runID string, stale time.Duration, now time.Time) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			host, _ := os.Hostname()
			werr := json.NewEncoder(f).Encode(lockInfo{RunID: runID, PID: os.Getpid(), Host: host, AcquiredAt: now.UTC()})
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("write lock: %w", errors.Join(werr, cerr))
			}
			return &fileLock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock: %w", err)
		}
		if attempt > 0 || !lockIsStale(path, stale, now) {
			break
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("break stale lock: %w", err)
		}
	}
	holder := "unknown run"
	if info, err := readLock(path); err == nil && info.RunID != "" {
		holder = info.RunID
	}
	return nil, fmt.Errorf("%w: held by %s", ErrRetrainInProgress, holder)
}

func lockIsStale(path string, stale time.Duration, now time.Time) bool {
	if stale <= 0 {
		return false
	}
	acquired := time.Time{}
	if info, err := readLock(path); err == nil {
		acquired = info.AcquiredAt
	}
	if acquired.IsZero() {
		st, err := os.Stat(path)
		if err != nil {
			return false
		}
		acquired = st.ModTime()
	}
	return now.Sub(acquired) > stale
}

func readLock(path string) (lockInfo, error) {
	var info lockInfo
	b, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	err = json.Unmarshal(b, &info)
	return info, err
}

func (l *fileLock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
