package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Skryldev/voiceclip/application/state"
	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/domain/ports"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"go.uber.org/zap"
)

// ErrNoStream is returned by transport calls before a clip is loaded.
var ErrNoStream = errors.New("no stream loaded")

// Rates is the fixed set CycleRate steps through.
var Rates = []float64{1.0, 1.3, 1.5}

// NextRate returns the rate after r in Rates, wrapping around. Unknown rates
// restart the cycle.
func NextRate(r float64) float64 {
	for i, v := range Rates {
		if v == r {
			return Rates[(i+1)%len(Rates)]
		}
	}
	return Rates[0]
}

// DefaultTickInterval is how often position is reported while playing.
const DefaultTickInterval = 50 * time.Millisecond

// Reporter receives state transitions and progress. *state.Coordinator
// implements it.
type Reporter interface {
	Transition(ev state.Event, item model.AudioItem) (state.State, error)
	ReportPlayback(ev state.PlaybackEvent)
}

type Config struct {
	Device       ports.AudioDevice
	Inhibitor    ports.SleepInhibitor
	Reporter     Reporter
	TickInterval time.Duration
	Logger       *logger.Logger
}

// Engine is the transport for one clip. Notifications are sent after the
// engine lock is released so observers may call back into it.
type Engine struct {
	device    ports.AudioDevice
	inhibitor ports.SleepInhibitor
	reporter  Reporter
	tick      time.Duration
	log       *logger.Logger

	mu        sync.Mutex
	item      model.AudioItem
	path      string
	stream    ports.PlaybackStream
	rate      float64
	playing   bool
	inhibited bool
	gen       uint64
	stopTick  chan struct{}
}

func NewEngine(cfg Config) *Engine {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &Engine{
		device:    cfg.Device,
		inhibitor: cfg.Inhibitor,
		reporter:  cfg.Reporter,
		tick:      tick,
		log:       logger.OrNop(cfg.Logger).Named("playback"),
		rate:      Rates[0],
	}
}

// Play starts or resumes playback of item from the file at path. The stream
// is reopened when path differs from the loaded one.
func (e *Engine) Play(ctx context.Context, item model.AudioItem, path string) error {
	e.mu.Lock()
	if e.playing && e.path == path {
		e.mu.Unlock()
		return nil
	}
	if e.stream == nil || e.path != path {
		if e.playing {
			e.mu.Unlock()
			return errors.New("cannot switch files while playing")
		}
		if err := e.openLocked(ctx, item, path); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	e.item = item

	if _, err := e.reporter.Transition(state.EventPlay, item); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := e.stream.Play(); err != nil {
		_, _ = e.reporter.Transition(state.EventStop, item)
		e.mu.Unlock()
		e.log.Error("stream failed to start", zap.String("clip_id", item.ID), zap.Error(err))
		return err
	}

	e.playing = true
	if !e.inhibited && e.inhibitor != nil {
		e.inhibitor.Inhibit()
		e.inhibited = true
	}
	e.restartTickerLocked()
	ev := e.eventLocked(state.PlaybackStarted)
	e.mu.Unlock()

	e.reporter.ReportPlayback(ev)
	return nil
}

func (e *Engine) openLocked(ctx context.Context, item model.AudioItem, path string) error {
	if e.stream != nil {
		_ = e.stream.Close()
		e.stream = nil
	}
	stream, err := e.device.Open(ctx, path)
	if err != nil {
		e.log.Error("open stream failed",
			zap.String("clip_id", item.ID),
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}
	if err := stream.SetRate(e.rate); err != nil {
		e.log.Warn("set rate failed", zap.Float64("rate", e.rate), zap.Error(err))
	}
	e.stream = stream
	e.path = path
	return nil
}

// Pause stops the clock and the device and keeps the position.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.stream == nil {
		e.mu.Unlock()
		return ErrNoStream
	}
	if _, err := e.reporter.Transition(state.EventPause, e.item); err != nil {
		e.mu.Unlock()
		return err
	}
	e.stopTickerLocked()
	e.playing = false
	if err := e.stream.Pause(); err != nil {
		e.log.Warn("stream pause failed", zap.String("clip_id", e.item.ID), zap.Error(err))
	}
	ev := e.eventLocked(state.PlaybackPaused)
	e.mu.Unlock()

	e.reporter.ReportPlayback(ev)
	return nil
}

// Stop halts playback, rewinds to zero and lets the host sleep again.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.stream == nil {
		e.mu.Unlock()
		return ErrNoStream
	}
	ev, err := e.stopLocked(state.EventStop)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.reporter.ReportPlayback(ev)
	return nil
}

func (e *Engine) stopLocked(trigger state.Event) (state.PlaybackEvent, error) {
	if _, err := e.reporter.Transition(trigger, e.item); err != nil {
		return state.PlaybackEvent{}, err
	}
	e.stopTickerLocked()
	e.playing = false
	if err := e.stream.Pause(); err != nil {
		e.log.Warn("stream pause failed", zap.String("clip_id", e.item.ID), zap.Error(err))
	}
	if err := e.stream.Seek(0); err != nil {
		e.log.Warn("stream rewind failed", zap.String("clip_id", e.item.ID), zap.Error(err))
	}
	e.releaseLocked()
	return e.eventLocked(state.PlaybackStopped), nil
}

func (e *Engine) releaseLocked() {
	if e.inhibited && e.inhibitor != nil {
		e.inhibitor.Release()
	}
	e.inhibited = false
}

// Seek jumps to pos, clamped to the clip. The report carries SeekActive so
// observers jump instead of animating.
func (e *Engine) Seek(pos time.Duration) error {
	e.mu.Lock()
	if e.stream == nil {
		e.mu.Unlock()
		return ErrNoStream
	}
	pos = max(pos, 0)
	if d := e.stream.Duration(); d > 0 && pos > d {
		pos = d
	}
	if err := e.stream.Seek(pos); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.playing {
		e.restartTickerLocked()
	}
	ev := e.eventLocked(state.PlaybackProgress)
	ev.Position = pos
	ev.SeekActive = true
	e.mu.Unlock()

	e.reporter.ReportPlayback(ev)
	return nil
}

// CycleRate moves to the next rate in Rates and returns it.
func (e *Engine) CycleRate() (float64, error) {
	e.mu.Lock()
	e.rate = NextRate(e.rate)
	rate := e.rate
	if e.stream != nil {
		if err := e.stream.SetRate(rate); err != nil {
			e.mu.Unlock()
			return rate, err
		}
	}
	ev := e.eventLocked(state.PlaybackRateChanged)
	e.mu.Unlock()

	e.reporter.ReportPlayback(ev)
	return rate, nil
}

// Unload stops playback if needed and closes the stream. The next Play
// reopens the file, which is required after the file is replaced.
func (e *Engine) Unload() error {
	e.mu.Lock()
	if e.stream == nil {
		e.mu.Unlock()
		return nil
	}

	// a rejected stop means the clip was already idle
	ev, stopErr := e.stopLocked(state.EventStop)
	e.stopTickerLocked()
	e.playing = false
	e.releaseLocked()

	err := e.stream.Close()
	e.stream = nil
	e.path = ""
	e.mu.Unlock()

	if stopErr == nil {
		e.reporter.ReportPlayback(ev)
	}
	return err
}

// Close releases the stream and any idle-sleep hold.
func (e *Engine) Close() error {
	err := e.Unload()
	e.mu.Lock()
	e.stopTickerLocked()
	e.releaseLocked()
	e.mu.Unlock()
	return err
}

func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return 0
	}
	return e.stream.Position()
}

func (e *Engine) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Loaded reports whether a stream is open.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stream != nil
}

func (e *Engine) eventLocked(action state.PlaybackAction) state.PlaybackEvent {
	ev := state.PlaybackEvent{
		Action: action,
		Item:   e.item,
		Rate:   e.rate,
	}
	if e.stream != nil {
		ev.Position = e.stream.Position()
		ev.Duration = e.stream.Duration()
	}
	return ev
}

func (e *Engine) restartTickerLocked() {
	e.stopTickerLocked()
	stop := make(chan struct{})
	e.stopTick = stop
	go e.runTicker(e.gen, stop)
}

func (e *Engine) stopTickerLocked() {
	e.gen++
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}

func (e *Engine) runTicker(gen uint64, stop <-chan struct{}) {
	t := time.NewTicker(e.tick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if !e.onTick(gen) {
				return
			}
		}
	}
}

// onTick reports progress, or completion once the end is reached. It returns
// false when the ticker should exit.
func (e *Engine) onTick(gen uint64) bool {
	e.mu.Lock()
	if gen != e.gen || !e.playing || e.stream == nil {
		e.mu.Unlock()
		return false
	}

	pos, dur := e.stream.Position(), e.stream.Duration()
	if dur > 0 && pos >= dur {
		clipID := e.item.ID
		ev, err := e.stopLocked(state.EventFinish)
		e.mu.Unlock()
		if err != nil {
			e.log.Warn("completion rejected", zap.String("clip_id", clipID), zap.Error(err))
			return false
		}
		e.reporter.ReportPlayback(ev)
		return false
	}

	ev := e.eventLocked(state.PlaybackProgress)
	e.mu.Unlock()
	e.reporter.ReportPlayback(ev)
	return true
}
