package progress

import (
	"sync"
	"time"
)

// Stage represents an export stage
type Stage string

const (
	StageValidate Stage = "validate"
	StageProbe    Stage = "probe"
	StageRender   Stage = "render"
	StageDone     Stage = "done"
)

// Update holds a progress update for one export job
type Update struct {
	JobID     string
	ClipID    string
	Stage     Stage
	Percent   float64
	Message   string
	Timestamp time.Time
}

// Reporter is the interface for progress reporting
type Reporter interface {
	Report(update Update)
}

// ChannelReporter sends updates to a channel
type ChannelReporter struct {
	ch chan<- Update
}

// NewChannelReporter creates a reporter that sends updates to ch
func NewChannelReporter(ch chan<- Update) *ChannelReporter {
	return &ChannelReporter{ch: ch}
}

func (r *ChannelReporter) Report(update Update) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}
	select {
	case r.ch <- update:
	default: // non-blocking: drop if channel is full
	}
}

// MultiReporter fans out to multiple reporters
type MultiReporter struct {
	mu        sync.RWMutex
	reporters []Reporter
}

func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	return &MultiReporter{reporters: reporters}
}

func (m *MultiReporter) Add(r Reporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporters = append(m.reporters, r)
}

func (m *MultiReporter) Report(update Update) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reporters {
		r.Report(update)
	}
}

// FuncReporter adapts a function to Reporter.
type FuncReporter func(Update)

func (f FuncReporter) Report(update Update) { f(update) }

// NoopReporter discards all updates
type NoopReporter struct{}

func (n NoopReporter) Report(_ Update) {}
