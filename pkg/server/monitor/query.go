package monitor

import (
	"sync"
	"time"
)

// maxConsecutiveFailures is how many lookups in a row may fail before the
// monitor reports unhealthy.
const maxConsecutiveFailures = 3

// QueryMonitor tracks the outcome of lookups that required a scan. Cache
// hits never reach it.
type QueryMonitor struct {
	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	successes         int64
	failures          int64
	totalElapsed      time.Duration
	consecutiveErrors int
	lastError         string
}

// RecordSuccess records a completed scan.
func (qm *QueryMonitor) RecordSuccess(elapsed time.Duration) {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	now := time.Now()
	qm.lastSuccess = now
	qm.lastAttempt = now
	qm.successes++
	qm.totalElapsed += elapsed
	qm.consecutiveErrors = 0
	qm.lastError = ""
}

// RecordFailure records a failed scan.
func (qm *QueryMonitor) RecordFailure(err error) {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	qm.lastAttempt = time.Now()
	qm.failures++
	qm.consecutiveErrors++
	if err != nil {
		qm.lastError = err.Error()
	}
}

// IsHealthy returns false once more than three scans in a row have failed.
// A monitor that has not seen any scan yet is healthy.
func (qm *QueryMonitor) IsHealthy() bool {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.healthyLocked()
}

func (qm *QueryMonitor) healthyLocked() bool {
	return qm.consecutiveErrors <= maxConsecutiveFailures
}

// QueryStatus is the monitor's state as reported by /api/status.
type QueryStatus struct {
	Healthy           bool   `json:"healthy"`
	Scans             int64  `json:"scans"`
	Failures          int64  `json:"failures"`
	AverageScan       string `json:"average_scan,omitempty"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns the current query status.
func (qm *QueryMonitor) Status() QueryStatus {
	qm.mu.RLock()
	defer qm.mu.RUnlock()

	status := QueryStatus{
		Healthy:  qm.healthyLocked(),
		Scans:    qm.successes + qm.failures,
		Failures: qm.failures,
	}

	if qm.successes > 0 {
		status.AverageScan = (qm.totalElapsed / time.Duration(qm.successes)).String()
	}

	if !qm.lastSuccess.IsZero() {
		status.LastSuccess = qm.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(qm.lastSuccess).String()
	}

	if !qm.lastAttempt.IsZero() {
		status.LastAttempt = qm.lastAttempt.Format(time.RFC3339)
	}

	if qm.consecutiveErrors > 0 {
		status.ConsecutiveErrors = qm.consecutiveErrors
		status.LastError = qm.lastError
	}

	return status
}
