package pipeline

import (
	"sync"
	"time"

	"github.com/phenix995/ai-instagram-organizer/internal/governor"
	"github.com/phenix995/ai-instagram-organizer/internal/metrics"
	"github.com/phenix995/ai-instagram-organizer/internal/web"
)

// Tracker publishes live progress of a run for the status endpoint.
// Stage callbacks update it from worker goroutines.
type Tracker struct {
	mu      sync.Mutex
	phase   string
	current int
	total   int
	photoID string
	started time.Time

	gov *governor.Governor
}

func newTracker(gov *governor.Governor) *Tracker {
	return &Tracker{
		phase:   "idle",
		started: time.Now().UTC(),
		gov:     gov,
	}
}

// SetPhase switches the run to a new phase with total work items.
func (t *Tracker) SetPhase(phase string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
	t.current = 0
	t.total = total
	t.photoID = ""
}

// Observe records progress inside the current phase. An empty photoID
// keeps the last one, so coarse batch callbacks do not blank it out.
func (t *Tracker) Observe(current, total int, photoID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = current
	t.total = total
	if photoID != "" {
		t.photoID = photoID
	}
}

// Status returns the current run state. It satisfies web.StatusFunc and
// refreshes the governor gauges on every scrape.
func (t *Tracker) Status() web.Status {
	t.mu.Lock()
	status := web.Status{
		Phase:     t.phase,
		Current:   t.current,
		Total:     t.total,
		PhotoID:   t.photoID,
		StartedAt: t.started,
	}
	t.mu.Unlock()

	if t.gov != nil {
		status.Governor = t.gov.Snapshot()
		metrics.ObserveGovernor(status.Governor)
	}
	return status
}
