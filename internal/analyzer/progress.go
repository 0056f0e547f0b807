package analyzer

import (
	"context"
	"sync/atomic"
)

// ProgressFunc receives the number of files done, the number expected and
// the file just finished.
type ProgressFunc func(current, total int, path string)

// Tracker counts finished files across workers. It is safe for concurrent
// use.
type Tracker struct {
	total    atomic.Int32
	current  atomic.Int32
	callback ProgressFunc
}

// NewTracker creates a tracker that calls callback after every file.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// Add grows the expected total by n.
func (t *Tracker) Add(n int) {
	t.total.Add(int32(n))
}

// Tick marks path as done.
func (t *Tracker) Tick(path string) {
	current := int(t.current.Add(1))
	if t.callback != nil {
		t.callback(current, int(t.total.Load()), path)
	}
}

// Current returns the number of files done.
func (t *Tracker) Current() int { return int(t.current.Load()) }

// Total returns the number of files expected.
func (t *Tracker) Total() int { return int(t.total.Load()) }

type trackerKey struct{}

// WithTracker returns a context carrying t. Session.Analyze reports to it.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext returns the tracker carried by ctx, or nil.
func TrackerFromContext(ctx context.Context) *Tracker {
	t, _ := ctx.Value(trackerKey{}).(*Tracker)
	return t
}
