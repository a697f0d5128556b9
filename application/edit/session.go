package edit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/domain/ports"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// ErrSessionClosed is returned by any call on an applied or cancelled
	// session.
	ErrSessionClosed = errors.New("edit session already applied or cancelled")
	// ErrNothingStaged is returned by Apply before a successful Stage.
	ErrNothingStaged = errors.New("no staged edit to apply")
)

// Phase is where a session is in its none -> staged -> applied|cancelled life.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseStaged
	PhaseApplied
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseStaged:
		return "staged"
	case PhaseApplied:
		return "applied"
	case PhaseCancelled:
		return "cancelled"
	}
	return "unknown"
}

func (p Phase) terminal() bool { return p == PhaseApplied || p == PhaseCancelled }

// Deps are the collaborators every edit session needs.
type Deps struct {
	Store     ports.ClipStore
	Exporter  ports.Exporter
	Container model.Container
	Logger    *logger.Logger
}

// Session stages edits of one kind for one clip. Each successful Stage leaves
// its result in the clip's staged file; Apply swaps it over the canonical file
// and Cancel throws it away. Calls are serialised.
type Session struct {
	mu       sync.Mutex
	kind     model.EditKind
	original model.AudioItem
	staged   model.AudioItem
	phase    Phase
	passes   int
	deps     Deps
	log      *logger.Logger
}

func NewSession(kind model.EditKind, item model.AudioItem, deps Deps) *Session {
	return &Session{
		kind:     kind,
		original: item,
		phase:    PhaseNone,
		deps:     deps,
		log: logger.OrNop(deps.Logger).Named("edit").With(
			zap.String("clip_id", item.ID),
			zap.String("kind", string(kind)),
		),
	}
}

func (s *Session) Kind() model.EditKind { return s.kind }

// Original returns the item the session was opened on.
func (s *Session) Original() model.AudioItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.original
}

// Staged returns the current staged item, if any.
func (s *Session) Staged() (model.AudioItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staged, s.phase == PhaseStaged
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Passes is the number of successful exports this session ran.
func (s *Session) Passes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passes
}

func (s *Session) canonicalName() string { return s.original.CanonicalName(s.deps.Container) }

func (s *Session) stagedName() string { return s.original.StagedName(s.kind, s.deps.Container) }

func (s *Session) pendingName() string { return s.original.PendingName(s.kind, s.deps.Container) }

// Stage renders e into the pending file and moves it over the staged file once
// the render succeeds. Staging again replaces the previous result. On failure
// the previous staged result, if any, is kept.
func (s *Session) Stage(ctx context.Context, e model.Edit) (model.AudioItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.terminal() {
		return model.AudioItem{}, ErrSessionClosed
	}
	if e == nil || e.Kind() != s.kind {
		return model.AudioItem{}, pkgerrors.NewValidationError("edit", e, "edit does not match session kind "+string(s.kind))
	}

	job := model.ExportJob{
		ID:     uuid.NewString(),
		ClipID: s.original.ID,
		Source: s.deps.Store.Resolve(s.canonicalName()),
		Target: s.deps.Store.Resolve(s.pendingName()),
		Edit:   e,
	}
	result, err := s.deps.Exporter.Export(ctx, job)
	if err != nil {
		s.log.Warn("stage failed", zap.String("job_id", job.ID), zap.Error(err))
		return model.AudioItem{}, err
	}
	if err := s.deps.Store.Rename(ctx, s.pendingName(), s.stagedName()); err != nil {
		s.log.Error("promote staged result failed", zap.String("job_id", job.ID), zap.Error(err))
		if rmErr := s.deps.Store.Delete(ctx, s.pendingName()); rmErr != nil {
			s.log.Warn("remove pending result failed", zap.Error(rmErr))
		}
		return model.AudioItem{}, err
	}

	s.passes++
	s.staged = s.original.
		WithPath(s.stagedName()).
		WithDuration(result.OutputDuration()).
		WithUpdatedAt(time.Now().UTC())
	s.phase = PhaseStaged
	s.log.Debug("edit staged",
		zap.String("path", s.staged.Path),
		zap.Duration("duration", s.staged.Duration),
	)
	return s.staged, nil
}

// Apply replaces the canonical file with the staged one and returns the
// canonical item carrying the new duration.
func (s *Session) Apply(ctx context.Context) (model.AudioItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.terminal() {
		return model.AudioItem{}, ErrSessionClosed
	}
	if s.phase != PhaseStaged {
		return model.AudioItem{}, ErrNothingStaged
	}

	if err := s.deps.Store.Rename(ctx, s.stagedName(), s.canonicalName()); err != nil {
		s.log.Error("apply failed", zap.Error(err))
		return model.AudioItem{}, err
	}

	applied := s.original.
		WithPath(s.canonicalName()).
		WithDuration(s.staged.Duration).
		WithUpdatedAt(time.Now().UTC())
	s.phase = PhaseApplied
	s.log.Info("edit applied", zap.Duration("duration", applied.Duration))
	return applied, nil
}

// Cancel removes any staged file and returns the original item. A failed
// delete leaves the session open so Cancel can be retried.
func (s *Session) Cancel(ctx context.Context) (model.AudioItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.terminal() {
		return model.AudioItem{}, ErrSessionClosed
	}
	if err := multierr.Combine(
		s.deps.Store.Delete(ctx, s.stagedName()),
		s.deps.Store.Delete(ctx, s.pendingName()),
	); err != nil {
		s.log.Error("cancel failed", zap.Error(err))
		return model.AudioItem{}, err
	}
	s.phase = PhaseCancelled
	s.staged = model.AudioItem{}
	s.log.Debug("edit cancelled")
	return s.original, nil
}
