// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"sync"
	"time"
)

// Status is the engine liveness report.
type Status struct {
	Healthy        bool       `json:"healthy"`
	EngineVersion  uint64     `json:"engineVersion"`
	LastCommitTime *time.Time `json:"lastCommitTime"`
}

// Health tracks committed engine activity. Healthy means storage is
// reachable; the last commit time and engine version are reported alongside
// for freshness monitoring.
type Health struct {
	lock          sync.RWMutex
	lastCommit    time.Time
	engineVersion uint64
	storageProbe  func() error
}

// New creates the tracker. probe is consulted per status request to verify
// storage reachability; nil disables the check.
func New(probe func() error) *Health {
	return &Health{storageProbe: probe}
}

// CommitObserved records a committed mutation at the given engine version.
func (h *Health) CommitObserved(version uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.lastCommit = time.Now()
	h.engineVersion = version
}

// Status reports the current liveness.
func (h *Health) Status() (*Status, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	healthy := true
	if h.storageProbe != nil {
		healthy = h.storageProbe() == nil
	}

	status := &Status{
		Healthy:       healthy,
		EngineVersion: h.engineVersion,
	}
	if !h.lastCommit.IsZero() {
		t := h.lastCommit
		status.LastCommitTime = &t
	}
	return status, nil
}
