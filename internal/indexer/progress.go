package indexer

import (
	"sync"
	"time"

	"github.com/mpetrun/semcode/pkg/types"
)

// progressReporter throttles progress callbacks to at most one per
// interval, except that phase transitions and the terminal 100% update
// are always delivered. Finish is guaranteed to emit exactly one final
// update even when no work was done.
type progressReporter struct {
	mu       sync.Mutex
	callback types.ProgressFunc
	interval time.Duration
	last     time.Time
	phase    types.Phase
	finished bool
}

func newProgressReporter(callback types.ProgressFunc, interval time.Duration) *progressReporter {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &progressReporter{callback: callback, interval: interval}
}

// Report emits a progress update if enough time has passed since the last
// one, or if the phase changed.
func (p *progressReporter) Report(phase types.Phase, completed, total int) {
	if p.callback == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}

	now := time.Now()
	phaseChanged := phase != p.phase
	if !phaseChanged && now.Sub(p.last) < p.interval {
		return
	}
	p.phase = phase
	p.last = now
	p.callback(types.Progress{
		Phase:      phase,
		Completed:  completed,
		Total:      total,
		Percentage: percentage(completed, total),
	})
}

// Finish emits the terminal update at 100% and suppresses any further
// reports. Safe to call multiple times.
func (p *progressReporter) Finish(phase types.Phase, completed, total int) {
	if p.callback == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finished = true
	p.callback(types.Progress{
		Phase:      phase,
		Completed:  completed,
		Total:      total,
		Percentage: 100,
	})
}

func percentage(completed, total int) float64 {
	if total <= 0 {
		return 100
	}
	pct := float64(completed) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
