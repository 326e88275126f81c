package upload

import "sync"

// Progress is a snapshot of the upload pipeline.
type Progress struct {
	Percent int
	Status  string
}

// ProgressFunc receives progress updates. It may be nil.
type ProgressFunc func(Progress)

// reporter forwards updates and never lets the percentage go backwards.
type reporter struct {
	mu   sync.Mutex
	last int
	fn   ProgressFunc
}

func newReporter(fn ProgressFunc) *reporter {
	return &reporter{last: -1, fn: fn}
}

func (r *reporter) report(percent int, status string) {
	r.mu.Lock()
	if percent < r.last {
		percent = r.last
	}
	if percent > 100 {
		percent = 100
	}
	r.last = percent
	fn := r.fn
	r.mu.Unlock()
	if fn != nil {
		fn(Progress{Percent: percent, Status: status})
	}
}
