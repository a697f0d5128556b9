package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Skryldev/voiceclip/application/pipeline"
	"github.com/Skryldev/voiceclip/domain/model"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"github.com/Skryldev/voiceclip/pkg/retry"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ClipService is the main application service. It creates and deletes clips
// and hands out one ClipManager per open clip.
type ClipService struct {
	deps Deps
	pool *pipeline.WorkerPool
	log  *logger.Logger

	mu       sync.Mutex
	managers map[string]*ClipManager
	closed   bool
}

// Config holds ClipService configuration
type Config struct {
	Deps
	Workers     int
	RetryConfig retry.Config
}

// NewClipService creates a new clip service
func NewClipService(cfg Config) (*ClipService, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("clip store is required")
	}
	if cfg.Exporter == nil {
		return nil, fmt.Errorf("exporter is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("ffmpeg executor is required")
	}
	if cfg.Device == nil {
		return nil, fmt.Errorf("audio device is required")
	}
	if cfg.Inhibitor == nil {
		return nil, fmt.Errorf("sleep inhibitor is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Encoding.Container == "" {
		cfg.Encoding = pipeline.DefaultExportOptions()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}

	log := logger.OrNop(cfg.Logger)
	cfg.Deps.Logger = log
	return &ClipService{
		deps:     cfg.Deps,
		pool:     pipeline.NewWorkerPool(cfg.Exporter, cfg.Workers, cfg.RetryConfig, log),
		log:      log.Named("service"),
		managers: make(map[string]*ClipManager),
	}, nil
}

// Create registers a new empty clip and opens its manager.
func (s *ClipService) Create(ctx context.Context, title string) (*ClipManager, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, pkgerrors.NewValidationError("title", title, "title must not be empty")
	}

	item := model.NewAudioItem(uuid.NewString(), title, s.deps.Encoding.Container)
	if err := s.deps.Store.Create(ctx, item.Path); err != nil {
		return nil, err
	}
	if err := s.deps.Catalog.Put(ctx, item); err != nil {
		if derr := s.deps.Store.Delete(ctx, item.Path); derr != nil {
			s.log.Warn("remove orphan clip file failed", zap.String("path", item.Path), zap.Error(derr))
		}
		return nil, err
	}

	s.log.Info("clip created", zap.String("clip_id", item.ID), zap.String("title", title))
	return s.manager(item)
}

// Open returns the manager of clip id, creating it on first use.
func (s *ClipService) Open(ctx context.Context, id string) (*ClipManager, error) {
	s.mu.Lock()
	if m, ok := s.managers[id]; ok {
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()

	item, err := s.deps.Catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.manager(item)
}

func (s *ClipService) manager(item model.AudioItem) (*ClipManager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("clip service is closed")
	}
	if m, ok := s.managers[item.ID]; ok {
		return m, nil
	}
	m := NewClipManager(item, s.deps)
	s.managers[item.ID] = m
	return m, nil
}

// List returns every catalogued clip.
func (s *ClipService) List(ctx context.Context) ([]model.AudioItem, error) {
	return s.deps.Catalog.List(ctx)
}

// Delete closes the clip's manager and removes its files, catalog record
// and remote copy. Every step is attempted; failures are combined.
func (s *ClipService) Delete(ctx context.Context, id string) error {
	item, err := s.deps.Catalog.Get(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	m := s.managers[id]
	delete(s.managers, id)
	s.mu.Unlock()

	var errs error
	if m != nil {
		errs = multierr.Append(errs, m.Close())
	}

	c := s.deps.Encoding.Container
	names := []string{item.Path, item.CanonicalName(c)}
	for _, kind := range []model.EditKind{model.EditCrop, model.EditCut, model.EditInsert} {
		names = append(names, item.StagedName(kind, c), item.PendingName(kind, c))
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		errs = multierr.Append(errs, s.deps.Store.Delete(ctx, name))
	}

	if item.RemoteURL != "" && s.deps.Saver != nil {
		errs = multierr.Append(errs, s.deps.Saver.Delete(ctx, item))
	}
	errs = multierr.Append(errs, s.deps.Catalog.Delete(ctx, id))

	if errs != nil {
		s.log.Warn("clip delete incomplete", zap.String("clip_id", id), zap.Error(errs))
		return errs
	}
	s.log.Info("clip deleted", zap.String("clip_id", id))
	return nil
}

// Probe reads the metadata of clip id's canonical file.
func (s *ClipService) Probe(ctx context.Context, id string) (*model.AudioMetadata, error) {
	item, err := s.deps.Catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.deps.Exporter.Probe(ctx, s.deps.Store.Resolve(item.Path))
}

// ExportBatch runs stateless exports concurrently. Every job yields one
// result on the returned channel.
func (s *ClipService) ExportBatch(ctx context.Context, jobs []model.BatchJob) <-chan model.BatchResult {
	s.log.Info("starting batch export", zap.Int("jobs", len(jobs)))
	return s.pool.Run(ctx, jobs)
}

// Close releases every open manager.
func (s *ClipService) Close() error {
	s.mu.Lock()
	managers := s.managers
	s.managers = make(map[string]*ClipManager)
	s.closed = true
	s.mu.Unlock()

	var errs error
	for _, m := range managers {
		errs = multierr.Append(errs, m.Close())
	}
	return errs
}
