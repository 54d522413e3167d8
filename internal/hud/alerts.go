// Package hud holds the transient display state layered over the cockpit
// view.
package hud

import (
	"sync"
	"time"

	"safedrive-monitor/internal/models"
)

// DefaultDismissAfter is how long a violation alert stays on screen. The
// dismissal is purely visual; the ledger keeps the record.
const DefaultDismissAfter = 3000 * time.Millisecond

type entry struct {
	id  uint64
	rec models.ViolationRecord
}

// Alerts is a set of transient violation alerts with auto-dismissal. Safe
// for concurrent use: the trip session pushes, the display polls.
type Alerts struct {
	ttl time.Duration

	mu     sync.Mutex
	seq    uint64
	active []entry
	timers []*time.Timer
}

// NewAlerts returns an alert store with the given time-to-live; zero means
// DefaultDismissAfter.
func NewAlerts(ttl time.Duration) *Alerts {
	if ttl <= 0 {
		ttl = DefaultDismissAfter
	}
	return &Alerts{ttl: ttl}
}

// Push surfaces a violation and schedules its dismissal.
func (a *Alerts) Push(rec models.ViolationRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	id := a.seq
	a.active = append(a.active, entry{id: id, rec: rec})
	a.timers = append(a.timers, time.AfterFunc(a.ttl, func() { a.dismiss(id) }))
}

// Active returns the alerts currently on screen, oldest first.
func (a *Alerts) Active() []models.ViolationRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]models.ViolationRecord, len(a.active))
	for i, e := range a.active {
		out[i] = e.rec
	}
	return out
}

// Clear dismisses everything and cancels pending timers. Called on trip end.
func (a *Alerts) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, t := range a.timers {
		t.Stop()
	}
	a.timers = nil
	a.active = nil
}

func (a *Alerts) dismiss(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, e := range a.active {
		if e.id == id {
			a.active = append(a.active[:i], a.active[i+1:]...)
			break
		}
	}
}
