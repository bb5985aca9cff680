// Package progress tracks how far a pipeline run has got, for logs and the
// operator endpoint.
package progress

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of a run's counters.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	Command   string    `json:"command"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished,omitzero"`
	Total     int       `json:"total"`
	Done      int       `json:"done"`
	Failed    int       `json:"failed"`
	Images    int       `json:"images"`
	Remaining int       `json:"remaining"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker starts tracking a run of total items.
func NewTracker(runID, command string, total int, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now: now,
		snap: Snapshot{
			RunID:   runID,
			Command: command,
			Started: now().UTC(),
			Total:   total,
		},
	}
}

// Record marks one item finished. image reports whether it ended with an
// image; failed whether it errored.
func (t *Tracker) Record(image, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Done++
	if failed {
		t.snap.Failed++
	}
	if image {
		t.snap.Images++
	}
}

// Finish stamps the end time.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Finished = t.now().UTC()
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.snap
	s.Remaining = max(s.Total-s.Done, 0)
	return s
}
