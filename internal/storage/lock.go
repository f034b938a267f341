package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"
)

// StoreLock is the lock file written next to a store while an analyze run owns it.
// Two runs saving to the same store would otherwise overwrite each other's clusters.
type StoreLock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version"`
}

// LockPath returns the lock file for a store, or "" for stores that need none
func LockPath(storePath string) string {
	if storePath == "" || storePath == ":memory:" {
		return ""
	}
	return storePath + ".lock"
}

// AcquireLock claims the store at storePath. A lock left by a dead process on this
// host is taken over. Returns the lock file path for ReleaseLock.
func AcquireLock(storePath, version string) (lockPath string, err error) {
	lockPath = LockPath(storePath)
	if lockPath == "" {
		return "", nil
	}

	if data, err := os.ReadFile(lockPath); err == nil {
		var existing StoreLock
		if json.Unmarshal(data, &existing) == nil {
			if existing.PID != os.Getpid() && isProcessAlive(existing.PID, existing.Hostname) {
				return "", fmt.Errorf("store %s is in use by another gripes run (PID %d on %s, started %s)",
					storePath, existing.PID, existing.Hostname, existing.StartedAt.Format(time.RFC3339))
			}
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}

	lock := StoreLock{
		Holder:    "gripes-analyze",
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		Version:   version,
	}
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}
	if err := os.WriteFile(lockPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to create store lock: %w", err)
	}
	return lockPath, nil
}

// ReleaseLock removes the lock file. Releasing "" or a missing lock is not an error.
func ReleaseLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove store lock: %w", err)
	}
	return nil
}

// isProcessAlive reports whether pid exists on hostname. Processes on other hosts
// can't be checked and count as alive.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}
	if !strings.EqualFold(hostname, currentHost) {
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes without delivering anything
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM: exists but owned by someone else
	return err == syscall.EPERM
}
