package state

import (
	"sync"

	"github.com/Skryldev/voiceclip/domain/model"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"go.uber.org/zap"
)

// Coordinator owns the state of one clip and fans notifications out to
// observers. Callbacks run one at a time, in report order, on the goroutine
// that is draining the delivery queue. A panicking observer is logged and
// skipped.
type Coordinator struct {
	clipID string
	log    *logger.Logger

	mu    sync.Mutex
	state State

	reg   *registry
	queue *serialQueue
}

func NewCoordinator(clipID string, log *logger.Logger) *Coordinator {
	l := logger.OrNop(log).Named("state").With(zap.String("clip_id", clipID))
	return &Coordinator{
		clipID: clipID,
		log:    l,
		state:  Idle(),
		reg:    &registry{},
		queue:  &serialQueue{log: l},
	}
}

func (c *Coordinator) ClipID() string { return c.clipID }

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transition applies ev and returns the new state. Illegal moves and items
// belonging to another clip are rejected and leave the state unchanged.
func (c *Coordinator) Transition(ev Event, item model.AudioItem) (State, error) {
	if item.ID != c.clipID {
		return c.State(), pkgerrors.NewValidationError("item", item.ID, "item belongs to another clip")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := Next(c.state, ev, item)
	if err != nil {
		c.log.Debug("transition rejected",
			zap.String("from", c.state.String()),
			zap.String("event", string(ev)),
		)
		return c.state, err
	}
	c.log.Debug("transition",
		zap.String("from", c.state.String()),
		zap.String("event", string(ev)),
		zap.String("to", next.String()),
	)
	c.state = next
	return next, nil
}

// Subscribe registers v in every observer category it implements.
func (c *Coordinator) Subscribe(v any) (*Subscription, error) {
	id, err := c.reg.add(v)
	if err != nil {
		return nil, err
	}
	return &Subscription{reg: c.reg, id: id}, nil
}

// Observers returns the number of live subscriptions.
func (c *Coordinator) Observers() int { return c.reg.count() }

func (c *Coordinator) stamp(s State) State {
	if s.Kind == "" {
		return c.State()
	}
	return s
}

func (c *Coordinator) ReportPlayback(ev PlaybackEvent) {
	ev.State = c.stamp(ev.State)
	c.queue.submit(func() {
		for _, e := range snapshot(c.reg, &c.reg.playback) {
			c.queue.call(func() { e.obs.OnPlayback(ev) })
		}
	})
}

func (c *Coordinator) ReportRecorder(ev RecorderEvent) {
	ev.State = c.stamp(ev.State)
	c.queue.submit(func() {
		for _, e := range snapshot(c.reg, &c.reg.recorder) {
			c.queue.call(func() { e.obs.OnRecorder(ev) })
		}
	})
}

// ReportEdit routes ev to the cropper, cutter or inserter observers.
func (c *Coordinator) ReportEdit(ev EditEvent) {
	ev.State = c.stamp(ev.State)
	c.queue.submit(func() {
		switch ev.Kind {
		case model.EditCrop:
			for _, e := range snapshot(c.reg, &c.reg.cropper) {
				c.queue.call(func() { e.obs.OnCropper(ev) })
			}
		case model.EditCut:
			for _, e := range snapshot(c.reg, &c.reg.cutter) {
				c.queue.call(func() { e.obs.OnCutter(ev) })
			}
		case model.EditInsert:
			for _, e := range snapshot(c.reg, &c.reg.inserter) {
				c.queue.call(func() { e.obs.OnInserter(ev) })
			}
		}
	})
}

func (c *Coordinator) ReportTranscriptionJob(ev TranscriptionJobEvent) {
	c.queue.submit(func() {
		for _, e := range snapshot(c.reg, &c.reg.jobs) {
			c.queue.call(func() { e.obs.OnTranscriptionJob(ev) })
		}
	})
}

func (c *Coordinator) ReportTranscript(ev TranscriptEvent) {
	c.queue.submit(func() {
		for _, e := range snapshot(c.reg, &c.reg.transcript) {
			c.queue.call(func() { e.obs.OnTranscript(ev) })
		}
	})
}
