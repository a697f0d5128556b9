package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Skryldev/voiceclip/application/edit"
	"github.com/Skryldev/voiceclip/application/pipeline"
	"github.com/Skryldev/voiceclip/application/playback"
	"github.com/Skryldev/voiceclip/application/record"
	"github.com/Skryldev/voiceclip/application/state"
	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/domain/ports"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// ErrNoEditSession is returned by edit calls when no session of that
	// kind has begun.
	ErrNoEditSession = errors.New("no edit session in progress")
	// ErrNoTranscriber is returned by Transcribe when none is configured.
	ErrNoTranscriber = errors.New("no transcriber configured")
)

// Deps are the collaborators shared by every clip manager.
type Deps struct {
	Store       ports.ClipStore
	Exporter    ports.Exporter
	Executor    ports.FFmpegExecutor
	Device      ports.AudioDevice
	Inhibitor   ports.SleepInhibitor
	Catalog     ports.Catalog
	Saver       ports.Saver
	Transcriber ports.Transcriber

	Encoding     pipeline.ExportOptions
	InputFormat  string
	InputDevice  string
	TickInterval time.Duration
	Logger       *logger.Logger
}

type editEvents struct {
	begin, end state.Event
}

var editTransitions = map[model.EditKind]editEvents{
	model.EditCrop:   {state.EventCropBegin, state.EventCropEnd},
	model.EditCut:    {state.EventCutBegin, state.EventCutEnd},
	model.EditInsert: {state.EventInsertBegin, state.EventInsertEnd},
}

// ClipManager drives one clip: playback, recording and edits, with every
// change reported through its coordinator.
type ClipManager struct {
	deps     Deps
	log      *logger.Logger
	coord    *state.Coordinator
	engine   *playback.Engine
	recorder *record.Recorder

	mu       sync.Mutex
	item     model.AudioItem
	session  *edit.Session
	cropper  *edit.Cropper
	cutter   *edit.Cutter
	inserter *edit.Inserter
}

func NewClipManager(item model.AudioItem, deps Deps) *ClipManager {
	log := logger.OrNop(deps.Logger).With(zap.String("clip_id", item.ID))
	coord := state.NewCoordinator(item.ID, log)
	return &ClipManager{
		deps:  deps,
		log:   log.Named("manager"),
		coord: coord,
		item:  item,
		engine: playback.NewEngine(playback.Config{
			Device:       deps.Device,
			Inhibitor:    deps.Inhibitor,
			Reporter:     coord,
			TickInterval: deps.TickInterval,
			Logger:       log,
		}),
		recorder: record.New(record.Config{
			Executor:    deps.Executor,
			Store:       deps.Store,
			Prober:      deps.Exporter,
			Reporter:    coord,
			InputFormat: deps.InputFormat,
			InputDevice: deps.InputDevice,
			Encoding:    deps.Encoding,
			Logger:      log,
		}),
	}
}

func (m *ClipManager) ID() string { return m.coord.ClipID() }

// Item returns the current value of the clip.
func (m *ClipManager) Item() model.AudioItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.item
}

func (m *ClipManager) State() state.State { return m.coord.State() }

// Subscribe registers an observer for every category it implements.
func (m *ClipManager) Subscribe(observer any) (*state.Subscription, error) {
	return m.coord.Subscribe(observer)
}

func (m *ClipManager) path() string {
	return m.deps.Store.Resolve(m.Item().Path)
}

func (m *ClipManager) Play(ctx context.Context) error {
	return m.engine.Play(ctx, m.Item(), m.path())
}

func (m *ClipManager) Pause() error { return m.engine.Pause() }

func (m *ClipManager) Stop() error { return m.engine.Stop() }

func (m *ClipManager) Seek(pos time.Duration) error { return m.engine.Seek(pos) }

func (m *ClipManager) CycleRate() (float64, error) { return m.engine.CycleRate() }

func (m *ClipManager) Position() time.Duration { return m.engine.Position() }

// Record starts capturing into the clip, replacing its content.
func (m *ClipManager) Record(ctx context.Context) error {
	if err := m.engine.Unload(); err != nil {
		return err
	}
	return m.recorder.Start(ctx, m.Item())
}

// StopRecording finishes the capture and persists the new clip value.
func (m *ClipManager) StopRecording(ctx context.Context) (model.AudioItem, error) {
	item, err := m.recorder.Stop(ctx)
	if err != nil {
		return model.AudioItem{}, err
	}
	item = m.persist(ctx, item)
	return item, nil
}

// Duration returns the cached duration, probing the file when it is unknown.
func (m *ClipManager) Duration(ctx context.Context) (time.Duration, error) {
	item := m.Item()
	if item.Duration > 0 {
		return item.Duration, nil
	}
	meta, err := m.deps.Exporter.Probe(ctx, m.deps.Store.Resolve(item.Path))
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	if m.item.ID == item.ID && m.item.Path == item.Path {
		m.item = m.item.WithDuration(meta.Duration)
		item = m.item
	}
	m.mu.Unlock()
	if err := m.deps.Catalog.Put(ctx, item); err != nil {
		m.log.Warn("catalog update failed", zap.Error(err))
	}
	return meta.Duration, nil
}

func (m *ClipManager) BeginCrop(ctx context.Context) error { return m.begin(ctx, model.EditCrop) }

func (m *ClipManager) BeginCut(ctx context.Context) error { return m.begin(ctx, model.EditCut) }

func (m *ClipManager) BeginInsert(ctx context.Context) error { return m.begin(ctx, model.EditInsert) }

// begin unloads playback, enters the edit state and opens a session.
func (m *ClipManager) begin(ctx context.Context, kind model.EditKind) error {
	if err := m.engine.Unload(); err != nil {
		return err
	}
	if _, err := m.Duration(ctx); err != nil {
		m.log.Warn("duration unknown before edit", zap.String("kind", string(kind)), zap.Error(err))
	}

	m.mu.Lock()
	item := m.item
	if _, err := m.coord.Transition(editTransitions[kind].begin, item); err != nil {
		m.mu.Unlock()
		return err
	}
	deps := edit.Deps{
		Store:     m.deps.Store,
		Exporter:  m.deps.Exporter,
		Container: m.deps.Encoding.Container,
		Logger:    m.deps.Logger,
	}
	switch kind {
	case model.EditCrop:
		m.cropper = edit.NewCropper(item, deps)
		m.session = m.cropper.Session
	case model.EditCut:
		m.cutter = edit.NewCutter(item, deps)
		m.session = m.cutter.Session
	case model.EditInsert:
		m.inserter = edit.NewInserter(item, deps)
		m.session = m.inserter.Session
	}
	m.mu.Unlock()

	m.coord.ReportEdit(state.EditEvent{Kind: kind, Action: state.EditBegan, Item: item})
	return nil
}

// Crop stages the range [start,end).
func (m *ClipManager) Crop(ctx context.Context, start, end time.Duration) (model.AudioItem, error) {
	m.mu.Lock()
	c := m.cropper
	m.mu.Unlock()
	if c == nil {
		return model.AudioItem{}, fmt.Errorf("crop: %w", ErrNoEditSession)
	}
	return m.staged(model.EditCrop, c.Session)(c.Crop(ctx, start, end))
}

// Cut stages the clip without ranges, in one export.
func (m *ClipManager) Cut(ctx context.Context, ranges ...model.TimeRange) (model.AudioItem, error) {
	m.mu.Lock()
	c := m.cutter
	m.mu.Unlock()
	if c == nil {
		return model.AudioItem{}, fmt.Errorf("cut: %w", ErrNoEditSession)
	}
	return m.staged(model.EditCut, c.Session)(c.Cut(ctx, ranges...))
}

// CutPreview returns the ranges a cut would keep. Nothing is rendered.
func (m *ClipManager) CutPreview(ctx context.Context, ranges ...model.TimeRange) ([]model.TimeRange, error) {
	total, err := m.Duration(ctx)
	if err != nil {
		return nil, err
	}
	return model.KeepRanges(ranges, total), nil
}

// Insert stages other spliced in at offset at.
func (m *ClipManager) Insert(ctx context.Context, at time.Duration, other model.AudioItem) (model.AudioItem, error) {
	m.mu.Lock()
	i := m.inserter
	m.mu.Unlock()
	if i == nil {
		return model.AudioItem{}, fmt.Errorf("insert: %w", ErrNoEditSession)
	}
	return m.staged(model.EditInsert, i.Session)(i.Insert(ctx, at, other))
}

// staged reports the outcome of a Stage call to the kind's observers.
func (m *ClipManager) staged(kind model.EditKind, s *edit.Session) func(model.AudioItem, error) (model.AudioItem, error) {
	return func(item model.AudioItem, err error) (model.AudioItem, error) {
		if err != nil {
			m.coord.ReportEdit(state.EditEvent{Kind: kind, Action: state.EditFailed, Item: s.Original(), Err: err})
			return model.AudioItem{}, err
		}
		staged := item
		m.coord.ReportEdit(state.EditEvent{Kind: kind, Action: state.EditAdjusted, Item: s.Original(), Staged: &staged})
		return item, nil
	}
}

// Apply commits the staged edit over the clip and returns the new value.
func (m *ClipManager) Apply(ctx context.Context) (model.AudioItem, error) {
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()
	if s == nil {
		return model.AudioItem{}, ErrNoEditSession
	}

	applied, err := s.Apply(ctx)
	if err != nil {
		m.coord.ReportEdit(state.EditEvent{Kind: s.Kind(), Action: state.EditFailed, Item: s.Original(), Err: err})
		return model.AudioItem{}, err
	}
	m.endSession(s, applied)
	applied = m.persist(ctx, applied)

	m.coord.ReportEdit(state.EditEvent{Kind: s.Kind(), Action: state.EditFinished, Item: applied})
	return applied, nil
}

// Cancel discards the staged edit and returns the unchanged clip.
func (m *ClipManager) Cancel(ctx context.Context) (model.AudioItem, error) {
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()
	if s == nil {
		return model.AudioItem{}, ErrNoEditSession
	}

	original, err := s.Cancel(ctx)
	if err != nil {
		m.coord.ReportEdit(state.EditEvent{Kind: s.Kind(), Action: state.EditFailed, Item: s.Original(), Err: err})
		return model.AudioItem{}, err
	}
	m.endSession(s, original)
	m.coord.ReportEdit(state.EditEvent{Kind: s.Kind(), Action: state.EditCancelled, Item: original})
	return original, nil
}

func (m *ClipManager) endSession(s *edit.Session, item model.AudioItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.item = item
	if m.session == s {
		m.session, m.cropper, m.cutter, m.inserter = nil, nil, nil, nil
	}
	if _, err := m.coord.Transition(editTransitions[s.Kind()].end, item); err != nil {
		m.log.Warn("edit end transition rejected", zap.String("kind", string(s.Kind())), zap.Error(err))
	}
}

// persist records item in the catalog and uploads it when a saver is set.
// Failures are logged; the local file stays authoritative.
func (m *ClipManager) persist(ctx context.Context, item model.AudioItem) model.AudioItem {
	// a stream opened during the edit points at the replaced file
	if err := m.engine.Unload(); err != nil {
		m.log.Warn("unload stale stream failed", zap.Error(err))
	}
	if m.deps.Saver != nil {
		url, err := m.deps.Saver.Save(ctx, item, m.deps.Store.Resolve(item.Path))
		if err != nil {
			m.log.Warn("upload failed, keeping local clip", zap.String("path", item.Path), zap.Error(err))
		} else {
			item = item.WithRemoteURL(url)
		}
	}
	if err := m.deps.Catalog.Put(ctx, item); err != nil {
		m.log.Warn("catalog update failed", zap.String("path", item.Path), zap.Error(err))
	}

	m.mu.Lock()
	m.item = item
	m.mu.Unlock()
	return item
}

// Transcribe runs the configured transcriber over the clip, reporting job
// progress and the final transcript.
func (m *ClipManager) Transcribe(ctx context.Context) (model.Transcript, error) {
	if m.deps.Transcriber == nil {
		return model.Transcript{}, ErrNoTranscriber
	}
	item := m.Item()
	m.coord.ReportTranscriptionJob(state.TranscriptionJobEvent{Action: state.JobStarted, Item: item})

	tr, err := m.deps.Transcriber.Transcribe(ctx, m.deps.Store.Resolve(item.Path), func(p float64) {
		m.coord.ReportTranscriptionJob(state.TranscriptionJobEvent{Action: state.JobProgress, Item: item, Progress: p})
	})
	if err != nil {
		m.log.Warn("transcription failed", zap.Error(err))
		m.coord.ReportTranscriptionJob(state.TranscriptionJobEvent{Action: state.JobFailed, Item: item, Err: err})
		return model.Transcript{}, err
	}
	tr.ClipID = item.ID

	m.coord.ReportTranscriptionJob(state.TranscriptionJobEvent{Action: state.JobFinished, Item: item, Progress: 1})
	m.coord.ReportTranscript(state.TranscriptEvent{Item: item, Transcript: tr})
	return tr, nil
}

// Close stops playback and recording and cancels an open edit.
func (m *ClipManager) Close() error {
	err := multierr.Combine(m.engine.Close(), m.recorder.Close())
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()
	if s != nil {
		_, cancelErr := m.Cancel(context.Background())
		err = multierr.Append(err, cancelErr)
	}
	return err
}
