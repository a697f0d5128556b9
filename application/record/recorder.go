package record

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Skryldev/voiceclip/application/pipeline"
	"github.com/Skryldev/voiceclip/application/state"
	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/domain/ports"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// ErrNotRecording is returned by Stop when no capture is running.
	ErrNotRecording = errors.New("not recording")
	// ErrAlreadyRecording is returned by Start while a capture is running.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrCaptureExited is reported when ffmpeg ends a capture by itself.
	ErrCaptureExited = errors.New("capture process exited unexpectedly")
)

// Reporter receives recorder transitions and events. *state.Coordinator
// implements it.
type Reporter interface {
	Transition(ev state.Event, item model.AudioItem) (state.State, error)
	ReportRecorder(ev state.RecorderEvent)
}

// Prober measures a finished recording. ports.Exporter satisfies it.
type Prober interface {
	Probe(ctx context.Context, path string) (*model.AudioMetadata, error)
}

type Config struct {
	Executor ports.FFmpegExecutor
	Store    ports.ClipStore
	Prober   Prober
	Reporter Reporter
	// InputFormat and InputDevice are passed to ffmpeg as -f and -i, for
	// example "pulse"/"default" or "avfoundation"/":0".
	InputFormat  string
	InputDevice  string
	Encoding     pipeline.ExportOptions
	TickInterval time.Duration
	Logger       *logger.Logger
}

// Recorder captures audio into a clip's canonical file with ffmpeg.
type Recorder struct {
	cfg Config
	log *logger.Logger

	mu       sync.Mutex
	proc     ports.Process
	item     model.AudioItem
	started  time.Time
	stopping bool
	stopTick chan struct{}
}

func New(cfg Config) *Recorder {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	return &Recorder{cfg: cfg, log: logger.OrNop(cfg.Logger).Named("recorder")}
}

// Start begins capturing into item's canonical file, replacing its content.
func (r *Recorder) Start(ctx context.Context, item model.AudioItem) error {
	r.mu.Lock()
	if r.proc != nil {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	if _, err := r.cfg.Reporter.Transition(state.EventRecord, item); err != nil {
		r.mu.Unlock()
		return err
	}

	name := item.CanonicalName(r.cfg.Encoding.Container)
	proc, err := r.startCapture(ctx, name)
	if err != nil {
		_, _ = r.cfg.Reporter.Transition(state.EventRecordStop, item)
		r.mu.Unlock()
		r.log.Error("start capture failed", zap.String("clip_id", item.ID), zap.Error(err))
		return err
	}

	r.proc = proc
	r.item = item.WithPath(name)
	r.started = time.Now()
	r.stopping = false
	r.stopTick = make(chan struct{})
	go r.watch(proc)
	go r.tick(r.stopTick, r.started)
	ev := state.RecorderEvent{Action: state.RecorderStarted, Item: r.item}
	r.mu.Unlock()

	r.log.Info("recording started", zap.String("clip_id", item.ID))
	r.cfg.Reporter.ReportRecorder(ev)
	return nil
}

func (r *Recorder) startCapture(ctx context.Context, name string) (ports.Process, error) {
	if err := r.cfg.Store.Create(ctx, name); err != nil {
		return nil, err
	}

	args := []string{"-y"}
	if r.cfg.InputFormat != "" {
		args = append(args, "-f", r.cfg.InputFormat)
	}
	args = append(args, "-i", r.cfg.InputDevice, "-vn")
	args = append(args, pipeline.CodecArgs(r.cfg.Encoding)...)
	if r.cfg.Encoding.SampleRate > 0 {
		args = append(args, "-ar", fmt.Sprintf("%d", r.cfg.Encoding.SampleRate))
	}
	if r.cfg.Encoding.Channels > 0 {
		args = append(args, "-ac", fmt.Sprintf("%d", r.cfg.Encoding.Channels))
	}
	args = append(args, r.cfg.Store.Resolve(name))

	return r.cfg.Executor.Start(context.WithoutCancel(ctx), args)
}

// Stop finishes the capture and returns the item with its measured duration.
func (r *Recorder) Stop(ctx context.Context) (model.AudioItem, error) {
	r.mu.Lock()
	if r.proc == nil {
		r.mu.Unlock()
		return model.AudioItem{}, ErrNotRecording
	}
	proc := r.proc
	r.stopping = true
	r.mu.Unlock()

	stopErr := proc.Stop()

	r.mu.Lock()
	elapsed := time.Since(r.started)
	item := r.finishLocked()
	r.mu.Unlock()

	if stopErr != nil {
		r.log.Error("capture did not stop cleanly", zap.String("clip_id", item.ID), zap.Error(stopErr))
		r.cfg.Reporter.ReportRecorder(state.RecorderEvent{Action: state.RecorderFailed, Item: item, Elapsed: elapsed, Err: stopErr})
		return item, stopErr
	}

	item = item.WithDuration(r.measure(ctx, item, elapsed)).WithUpdatedAt(time.Now().UTC())
	r.log.Info("recording stopped", zap.String("clip_id", item.ID), zap.Duration("duration", item.Duration))
	r.cfg.Reporter.ReportRecorder(state.RecorderEvent{Action: state.RecorderStopped, Item: item, Elapsed: elapsed})
	return item, nil
}

func (r *Recorder) measure(ctx context.Context, item model.AudioItem, elapsed time.Duration) time.Duration {
	if r.cfg.Prober == nil {
		return elapsed
	}
	meta, err := r.cfg.Prober.Probe(ctx, r.cfg.Store.Resolve(item.Path))
	if err != nil || meta.Duration <= 0 {
		r.log.Warn("probe of recording failed, using wall clock",
			zap.String("clip_id", item.ID),
			zap.String("path", item.Path),
			zap.Error(err),
		)
		return elapsed
	}
	return meta.Duration
}

func (r *Recorder) finishLocked() model.AudioItem {
	item := r.item
	r.proc = nil
	r.stopping = false
	if r.stopTick != nil {
		close(r.stopTick)
		r.stopTick = nil
	}
	if _, err := r.cfg.Reporter.Transition(state.EventRecordStop, item); err != nil {
		r.log.Warn("record stop transition rejected", zap.String("clip_id", item.ID), zap.Error(err))
	}
	return item
}

// watch reports a capture that ends without Stop being called.
func (r *Recorder) watch(proc ports.Process) {
	<-proc.Done()

	r.mu.Lock()
	if r.proc != proc || r.stopping {
		r.mu.Unlock()
		return
	}
	elapsed := time.Since(r.started)
	item := r.finishLocked()
	r.mu.Unlock()

	err := proc.Wait()
	if err == nil {
		err = ErrCaptureExited
	} else {
		err = multierr.Append(ErrCaptureExited, err)
	}
	r.log.Error("capture ended unexpectedly", zap.String("clip_id", item.ID), zap.Error(err))
	r.cfg.Reporter.ReportRecorder(state.RecorderEvent{Action: state.RecorderFailed, Item: item, Elapsed: elapsed, Err: err})
}

func (r *Recorder) tick(stop <-chan struct{}, started time.Time) {
	t := time.NewTicker(r.cfg.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			r.mu.Lock()
			item := r.item
			r.mu.Unlock()
			r.cfg.Reporter.ReportRecorder(state.RecorderEvent{
				Action:  state.RecorderProgress,
				Item:    item,
				Elapsed: time.Since(started),
			})
		}
	}
}

// Recording reports whether a capture is running.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proc != nil
}

// Close kills a running capture without reporting.
func (r *Recorder) Close() error {
	r.mu.Lock()
	proc := r.proc
	if proc != nil {
		r.stopping = true
	}
	r.mu.Unlock()
	if proc == nil {
		return nil
	}
	err := proc.Kill()
	r.mu.Lock()
	r.finishLocked()
	r.mu.Unlock()
	return err
}
