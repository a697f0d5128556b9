package ports

import (
	"context"
	"time"

	"github.com/Skryldev/voiceclip/domain/model"
)

// FFmpegExecutor is the abstraction for FFmpeg command execution
type FFmpegExecutor interface {
	// Execute runs an ffmpeg command to completion
	Execute(ctx context.Context, args []string) error

	// Probe runs ffprobe and returns JSON output
	Probe(ctx context.Context, inputPath string) ([]byte, error)

	// Start launches a long-running ffmpeg process, such as a capture.
	Start(ctx context.Context, args []string) (Process, error)
}

// Process is a running external process.
type Process interface {
	// Stop asks the process to finish cleanly and waits for it.
	Stop() error
	// Kill terminates the process without letting it finalise output.
	Kill() error
	// Wait blocks until the process exits.
	Wait() error
	// Done is closed when the process has exited.
	Done() <-chan struct{}
}

// ClipStore maps clip file names to locations under one private root.
// Names are bare file names; Resolve joins them with the root.
type ClipStore interface {
	Root() string
	Resolve(name string) string
	// Create ensures an empty file exists at name. Existing files are kept.
	Create(ctx context.Context, name string) error
	// Rename moves from onto to, replacing to if it exists.
	Rename(ctx context.Context, from, to string) error
	// Delete removes name. A missing file is not an error.
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	Size(ctx context.Context, name string) (int64, error)
}

// Exporter renders a declarative edit into a new audio file.
type Exporter interface {
	Export(ctx context.Context, job model.ExportJob) (*model.ExportResult, error)
	Probe(ctx context.Context, path string) (*model.AudioMetadata, error)
}

// AudioDevice opens playable streams for clip files.
type AudioDevice interface {
	Open(ctx context.Context, path string) (PlaybackStream, error)
}

// PlaybackStream is the transport of one opened file.
type PlaybackStream interface {
	Play() error
	Pause() error
	Seek(pos time.Duration) error
	SetRate(rate float64) error
	Position() time.Duration
	Duration() time.Duration
	Close() error
}

// SleepInhibitor keeps the host from idling while audio plays.
type SleepInhibitor interface {
	Inhibit()
	Release()
}

// Catalog persists clip metadata by id.
type Catalog interface {
	Put(ctx context.Context, item model.AudioItem) error
	Get(ctx context.Context, id string) (model.AudioItem, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.AudioItem, error)
}

// Saver uploads an applied clip to remote storage.
type Saver interface {
	// Save uploads the file at localPath and returns its remote URL.
	Save(ctx context.Context, item model.AudioItem, localPath string) (string, error)
	Delete(ctx context.Context, item model.AudioItem) error
}

// Transcriber turns a clip file into text. progress receives values in [0,1].
type Transcriber interface {
	Transcribe(ctx context.Context, path string, progress func(float64)) (model.Transcript, error)
}
