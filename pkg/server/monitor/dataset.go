package monitor

import (
	"os"
	"sync"
	"time"
)

// DatasetMonitor reports the on-disk size of the dataset files, caching the
// result to avoid a stat storm on every status request.
type DatasetMonitor struct {
	paths         []string
	cachedUsage   int64
	lastCheck     time.Time
	cacheDuration time.Duration
	mu            sync.Mutex
}

// NewDatasetMonitor creates a monitor over the given files.
func NewDatasetMonitor(paths []string) *DatasetMonitor {
	copied := make([]string, len(paths))
	copy(copied, paths)
	return &DatasetMonitor{
		paths:         copied,
		cacheDuration: 10 * time.Second,
	}
}

// GetUsage returns the summed disk usage of all files in bytes (cached).
func (dm *DatasetMonitor) GetUsage() (int64, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if !dm.lastCheck.IsZero() && time.Since(dm.lastCheck) < dm.cacheDuration {
		return dm.cachedUsage, nil
	}

	usage, err := calculateFilesSize(dm.paths)
	if err != nil {
		return 0, err
	}

	dm.cachedUsage = usage
	dm.lastCheck = time.Now()
	return usage, nil
}

// Files returns the number of monitored files.
func (dm *DatasetMonitor) Files() int {
	return len(dm.paths)
}

// calculateFilesSize sums actual disk usage (not logical size) so sparse
// files are not overcounted.
func calculateFilesSize(paths []string) (int64, error) {
	var size int64
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return 0, err
		}
		actualSize, err := getActualFileSize(path, info)
		if err != nil {
			size += info.Size()
			continue
		}
		size += actualSize
	}
	return size, nil
}

// getActualFileSize is implemented in platform-specific files:
// - filesize_unix.go (Linux/Mac): Uses syscall.Stat_t.Blocks
// - filesize_windows.go (Windows): Uses GetCompressedFileSizeW API
