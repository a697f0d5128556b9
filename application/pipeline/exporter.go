package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/domain/ports"
	"github.com/Skryldev/voiceclip/infrastructure/ffmpeg"
	"github.com/Skryldev/voiceclip/infrastructure/storage"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"github.com/Skryldev/voiceclip/pkg/progress"
	"go.uber.org/zap"
)

// ffprobeOutput maps key fields from ffprobe JSON
type ffprobeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
		Size       string `json:"size"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		BitRate    string `json:"bit_rate"`
	} `json:"streams"`
}

// ExportOptions fixes the encoding of every file the exporter writes.
type ExportOptions struct {
	Container  model.Container
	Bitrate    int // bits per second
	SampleRate int
	Channels   int
	// Timeout bounds one ffmpeg run. Zero means no limit beyond ctx.
	Timeout time.Duration
}

func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Container:  model.ContainerM4A,
		Bitrate:    128000,
		SampleRate: 44100,
		Channels:   1,
		Timeout:    2 * time.Minute,
	}
}

// Exporter renders Trim, RemoveRanges and Splice edits with ffmpeg. It
// implements ports.Exporter.
type Exporter struct {
	executor ports.FFmpegExecutor
	opts     ExportOptions
	reporter progress.Reporter
	log      *logger.Logger
}

// NewExporter creates an exporter. A nil reporter discards progress.
func NewExporter(executor ports.FFmpegExecutor, opts ExportOptions, reporter progress.Reporter, log *logger.Logger) *Exporter {
	if reporter == nil {
		reporter = progress.NoopReporter{}
	}
	return &Exporter{
		executor: executor,
		opts:     opts,
		reporter: reporter,
		log:      logger.OrNop(log).Named("exporter"),
	}
}

func (e *Exporter) Options() ExportOptions { return e.opts }

// Export runs one job to completion. Stale output at the target is removed
// first; ffmpeg itself refuses to overwrite.
func (e *Exporter) Export(ctx context.Context, job model.ExportJob) (*model.ExportResult, error) {
	start := time.Now()
	log := e.log.With(
		zap.String("job_id", job.ID),
		zap.String("clip_id", job.ClipID),
	)

	if err := e.validateJob(job); err != nil {
		return nil, err
	}
	e.report(job, progress.StageValidate, 5, "job validated")

	sourceMeta, err := e.probeFile(ctx, job.Source)
	if err != nil {
		return nil, pkgerrors.NewProcessingError("probe", "failed to probe source file", err)
	}
	var insertMeta *model.AudioMetadata
	if sp, ok := job.Edit.(model.Splice); ok {
		insertMeta, err = e.probeFile(ctx, sp.Source)
		if err != nil {
			return nil, pkgerrors.NewProcessingError("probe", "failed to probe insert file", err)
		}
	}
	e.report(job, progress.StageProbe, 15, "inputs probed")

	if err := job.Edit.Validate(sourceMeta.Duration); err != nil {
		return nil, err
	}
	insertDur := time.Duration(0)
	if insertMeta != nil {
		insertDur = insertMeta.Duration
	}
	// an explicit Trim is rendered as asked, even when empty
	if _, isTrim := job.Edit.(model.Trim); !isTrim && job.Edit.OutputDuration(sourceMeta.Duration, insertDur) <= 0 {
		return nil, pkgerrors.NewValidationError("edit", job.Edit.Kind(), "edit would produce an empty clip")
	}

	args := e.buildArgs(job, sourceMeta.Duration)

	if err := storage.RemoveFile(job.Target); err != nil {
		return nil, pkgerrors.NewIOError("remove stale output", job.Target, err)
	}

	e.report(job, progress.StageRender, 20, "render started")
	runCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}
	if err := e.executor.Execute(runCtx, args); err != nil {
		if rmErr := storage.RemoveFile(job.Target); rmErr != nil {
			log.Warn("failed to remove partial output", zap.String("path", job.Target), zap.Error(rmErr))
		}
		log.Error("export failed", zap.String("kind", string(job.Edit.Kind())), zap.Error(err))
		return nil, err
	}
	e.report(job, progress.StageRender, 90, "render complete")

	outputMeta, err := e.probeFile(ctx, job.Target)
	if err != nil {
		// non-fatal: the file is written, callers fall back to timeline math
		log.Warn("failed to probe output file", zap.String("path", job.Target), zap.Error(err))
		outputMeta = nil
	}

	e.report(job, progress.StageDone, 100, "done")

	result := &model.ExportResult{
		Job:        job,
		SourceMeta: sourceMeta,
		InsertMeta: insertMeta,
		OutputMeta: outputMeta,
		Elapsed:    time.Since(start),
		ExportedAt: time.Now(),
	}
	log.Info("export finished",
		zap.String("kind", string(job.Edit.Kind())),
		zap.Duration("output_duration", result.OutputDuration()),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// Probe probes audio metadata for a path.
func (e *Exporter) Probe(ctx context.Context, path string) (*model.AudioMetadata, error) {
	return e.probeFile(ctx, path)
}

func (e *Exporter) validateJob(job model.ExportJob) error {
	if job.Source == "" {
		return pkgerrors.NewValidationError("source", "", "source path must not be empty")
	}
	if job.Target == "" {
		return pkgerrors.NewValidationError("target", "", "target path must not be empty")
	}
	if job.Source == job.Target {
		return pkgerrors.NewValidationError("target", job.Target, "target must differ from source")
	}
	if job.Edit == nil {
		return pkgerrors.NewValidationError("edit", nil, "edit must not be empty")
	}

	inputs := []string{job.Source}
	if sp, ok := job.Edit.(model.Splice); ok {
		if sp.Source == job.Target {
			return pkgerrors.NewValidationError("insert", sp.Source, "insert source must differ from target")
		}
		inputs = append(inputs, sp.Source)
	}
	for _, in := range inputs {
		if in == "" {
			continue
		}
		exists, err := storage.FileExists(in)
		if err != nil {
			return pkgerrors.NewProcessingError("validate", "failed to check input file", err)
		}
		if !exists {
			return pkgerrors.NewValidationError("source", in, "input file does not exist")
		}
	}
	return nil
}

// buildArgs turns the edit into one ffmpeg invocation over a concat graph.
func (e *Exporter) buildArgs(job model.ExportJob, sourceDur time.Duration) []string {
	args := []string{"-n", "-i", job.Source}

	var segments []ffmpeg.Segment
	switch ed := job.Edit.(type) {
	case model.Trim:
		segments = []ffmpeg.Segment{{Input: 0, Start: ed.Range.Start, End: ed.Range.End}}
	case model.RemoveRanges:
		for _, keep := range model.KeepRanges(ed.Ranges, sourceDur) {
			segments = append(segments, ffmpeg.Segment{Input: 0, Start: keep.Start, End: keep.End})
		}
	case model.Splice:
		args = append(args, "-i", ed.Source)
		if ed.At > 0 {
			segments = append(segments, ffmpeg.Segment{Input: 0, Start: 0, End: ed.At})
		}
		segments = append(segments, ffmpeg.Segment{Input: 1})
		if sourceDur <= 0 || ed.At < sourceDur {
			segments = append(segments, ffmpeg.Segment{Input: 0, Start: ed.At})
		}
	}

	graph := ffmpeg.BuildConcatGraph(segments, e.opts.SampleRate, e.opts.Channels)
	args = append(args, "-filter_complex", graph, "-map", ffmpeg.GraphOutput, "-vn")
	args = append(args, CodecArgs(e.opts)...)
	if e.opts.SampleRate > 0 {
		args = append(args, "-ar", fmt.Sprintf("%d", e.opts.SampleRate))
	}
	if e.opts.Channels > 0 {
		args = append(args, "-ac", fmt.Sprintf("%d", e.opts.Channels))
	}
	return append(args, job.Target)
}

// CodecArgs returns the encoder flags for opts.
func CodecArgs(opts ExportOptions) []string {
	bitrate := fmt.Sprintf("%dk", opts.Bitrate/1000)
	var args []string
	switch opts.Container.Codec() {
	case model.CodecOpus:
		args = []string{"-c:a", "libopus"}
	case model.CodecMP3:
		args = []string{"-c:a", "libmp3lame"}
	default:
		args = []string{"-c:a", "aac"}
	}
	if opts.Bitrate > 0 {
		args = append(args, "-b:a", bitrate)
	}
	return args
}

func (e *Exporter) probeFile(ctx context.Context, path string) (*model.AudioMetadata, error) {
	data, err := e.executor.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	meta := &model.AudioMetadata{
		Format: probe.Format.FormatName,
	}

	var durationSec float64
	if _, err := fmt.Sscanf(probe.Format.Duration, "%f", &durationSec); err == nil {
		meta.Duration = time.Duration(durationSec * float64(time.Second))
	}
	fmt.Sscanf(probe.Format.Size, "%d", &meta.Size)

	for _, s := range probe.Streams {
		meta.Codec = s.CodecName
		meta.Channels = s.Channels
		fmt.Sscanf(s.SampleRate, "%d", &meta.SampleRate)
		fmt.Sscanf(s.BitRate, "%d", &meta.Bitrate)
		break // first audio stream
	}
	if meta.Bitrate == 0 {
		fmt.Sscanf(probe.Format.BitRate, "%d", &meta.Bitrate)
	}

	return meta, nil
}

func (e *Exporter) report(job model.ExportJob, stage progress.Stage, percent float64, msg string) {
	e.reporter.Report(progress.Update{
		JobID:   job.ID,
		ClipID:  job.ClipID,
		Stage:   stage,
		Percent: percent,
		Message: msg,
	})
}
