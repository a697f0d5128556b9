package voiceclip

import (
	"context"
	"time"

	"github.com/Skryldev/voiceclip/application/pipeline"
	"github.com/Skryldev/voiceclip/application/state"
	"github.com/Skryldev/voiceclip/application/usecase"
	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/domain/ports"
	"github.com/Skryldev/voiceclip/infrastructure/catalog"
	"github.com/Skryldev/voiceclip/infrastructure/device"
	"github.com/Skryldev/voiceclip/infrastructure/ffmpeg"
	"github.com/Skryldev/voiceclip/infrastructure/s3"
	"github.com/Skryldev/voiceclip/infrastructure/storage"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"github.com/Skryldev/voiceclip/pkg/progress"
	"github.com/Skryldev/voiceclip/pkg/retry"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Re-export types for convenient use by callers
type (
	AudioItem      = model.AudioItem
	AudioMetadata  = model.AudioMetadata
	TimeRange      = model.TimeRange
	Container      = model.Container
	BatchJob       = model.BatchJob
	BatchResult    = model.BatchResult
	Trim           = model.Trim
	RemoveRanges   = model.RemoveRanges
	Splice         = model.Splice
	ExportOptions  = pipeline.ExportOptions
	ClipManager    = usecase.ClipManager
	State          = state.State
	Observers      = state.Funcs
	ProgressUpdate = progress.Update
	S3Config       = s3.Config
)

const (
	ContainerM4A  = model.ContainerM4A
	ContainerOpus = model.ContainerOpus
	ContainerMP3  = model.ContainerMP3
)

// DefaultExportOptions is the encoding used for every clip unless overridden.
var DefaultExportOptions = pipeline.DefaultExportOptions

// Config holds top-level configuration for the studio
type Config struct {
	// FFmpegPath, FFprobePath and FFplayPath are auto-detected if empty.
	FFmpegPath  string
	FFprobePath string
	FFplayPath  string

	// DataDir is the private directory holding every clip file.
	DataDir string

	// CatalogDir holds the clip catalog. Empty keeps it in memory.
	CatalogDir string

	// Export is the encoding of every clip. Defaults to DefaultExportOptions.
	Export ExportOptions

	// InputFormat and InputDevice select the capture source, for example
	// "pulse" and "default".
	InputFormat string
	InputDevice string

	// SilentPlayback uses a position-only clock instead of ffplay.
	SilentPlayback bool
	TickInterval   time.Duration

	// S3 enables uploads of applied clips when configured.
	S3 S3Config

	// Transcriber is optional.
	Transcriber ports.Transcriber

	// Logger is an optional custom logger. Uses production zap if nil.
	Logger *logger.Logger

	// ZapLogger allows passing a *zap.Logger directly
	ZapLogger *zap.Logger

	// ProgressCh is an optional channel for receiving export progress
	ProgressCh chan<- ProgressUpdate

	// Workers sets the number of parallel batch workers (default: 4)
	Workers int

	// RetryConfig overrides default retry behavior
	RetryConfig *retry.Config
}

// Studio is the main entry point
type Studio struct {
	service *usecase.ClipService
	catalog *catalog.BadgerCatalog
	log     *logger.Logger
}

// New wires the ffmpeg executor, clip store, catalog, playback device and
// optional saver into a clip service.
func New(cfg Config) (*Studio, error) {
	log := cfg.Logger
	if log == nil && cfg.ZapLogger != nil {
		log = logger.FromZap(cfg.ZapLogger)
	}
	if log == nil {
		var err error
		log, err = logger.New(false)
		if err != nil {
			return nil, err
		}
	}

	exec, err := ffmpeg.NewExecutor(ffmpeg.ExecutorConfig{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}

	store, err := storage.NewLocalStorage(cfg.DataDir, log)
	if err != nil {
		return nil, err
	}

	progressLog := log.Named("progress")
	reporter := progress.NewMultiReporter(progress.FuncReporter(func(u progress.Update) {
		progressLog.Debug("export progress",
			zap.String("job_id", u.JobID),
			zap.String("clip_id", u.ClipID),
			zap.String("stage", string(u.Stage)),
			zap.Float64("percent", u.Percent),
		)
	}))
	if cfg.ProgressCh != nil {
		reporter.Add(progress.NewChannelReporter(cfg.ProgressCh))
	}

	opts := cfg.Export
	if opts.Container == "" {
		opts = pipeline.DefaultExportOptions()
	}
	exporter := pipeline.NewExporter(exec, opts, reporter, log)

	var dev ports.AudioDevice
	if cfg.SilentPlayback {
		dev = device.NewClockDevice(exporter)
	} else {
		dev, err = device.NewFFplayDevice(cfg.FFplayPath, exporter, log)
		if err != nil {
			return nil, err
		}
	}

	retryCfg := retry.DefaultConfig()
	if cfg.RetryConfig != nil {
		retryCfg = *cfg.RetryConfig
	}

	var saver ports.Saver
	if cfg.S3.IsConfigured() {
		saver = s3.NewSaver(s3.NewClient(cfg.S3), cfg.S3, retryCfg, log)
	}

	cat, err := catalog.OpenBadger(cfg.CatalogDir, log)
	if err != nil {
		return nil, err
	}

	svc, err := usecase.NewClipService(usecase.Config{
		Deps: usecase.Deps{
			Store:        store,
			Exporter:     exporter,
			Executor:     exec,
			Device:       dev,
			Inhibitor:    device.NewNoopInhibitor(log),
			Catalog:      cat,
			Saver:        saver,
			Transcriber:  cfg.Transcriber,
			Encoding:     opts,
			InputFormat:  cfg.InputFormat,
			InputDevice:  cfg.InputDevice,
			TickInterval: cfg.TickInterval,
			Logger:       log,
		},
		Workers:     cfg.Workers,
		RetryConfig: retryCfg,
	})
	if err != nil {
		_ = cat.Close()
		return nil, err
	}

	return &Studio{service: svc, catalog: cat, log: log}, nil
}

// Service exposes the underlying clip service, for the HTTP server.
func (s *Studio) Service() *usecase.ClipService { return s.service }

// Create registers a new empty clip.
func (s *Studio) Create(ctx context.Context, title string) (*ClipManager, error) {
	return s.service.Create(ctx, title)
}

// Open returns the manager of an existing clip.
func (s *Studio) Open(ctx context.Context, id string) (*ClipManager, error) {
	return s.service.Open(ctx, id)
}

func (s *Studio) List(ctx context.Context) ([]AudioItem, error) {
	return s.service.List(ctx)
}

func (s *Studio) Delete(ctx context.Context, id string) error {
	return s.service.Delete(ctx, id)
}

// Probe returns metadata about a clip's file
func (s *Studio) Probe(ctx context.Context, id string) (*AudioMetadata, error) {
	return s.service.Probe(ctx, id)
}

// ExportBatch runs stateless exports concurrently
func (s *Studio) ExportBatch(ctx context.Context, jobs []BatchJob) <-chan BatchResult {
	return s.service.ExportBatch(ctx, jobs)
}

// Close releases clips and the catalog and flushes the logger
func (s *Studio) Close() error {
	err := multierr.Combine(s.service.Close(), s.catalog.Close())
	_ = s.log.Sync()
	return err
}
