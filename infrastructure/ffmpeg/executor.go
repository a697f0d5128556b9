package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/Skryldev/voiceclip/domain/ports"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Executor implements ports.FFmpegExecutor
type Executor struct {
	ffmpegPath  string
	ffprobePath string
	stopTimeout time.Duration
	log         *logger.Logger
}

// ExecutorConfig holds configuration for the FFmpeg executor
type ExecutorConfig struct {
	FFmpegPath  string
	FFprobePath string
	// StopTimeout bounds how long Stop waits for a started process to exit
	// after asking it to quit. Default 5s.
	StopTimeout time.Duration
	Logger      *logger.Logger
}

// NewExecutor creates a new FFmpeg executor
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	ffmpegPath, err := lookPath(cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobePath, err := lookPath(cfg.FFprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}

	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = 5 * time.Second
	}

	return &Executor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		stopTimeout: stopTimeout,
		log:         logger.OrNop(cfg.Logger).Named("ffmpeg"),
	}, nil
}

func lookPath(configured, name string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}

// FFmpegPath returns the resolved ffmpeg binary.
func (e *Executor) FFmpegPath() string { return e.ffmpegPath }

// Execute runs ffmpeg with the given arguments
func (e *Executor) Execute(ctx context.Context, args []string) error {
	args = withQuietFlags(args)
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.log.Debug("executing ffmpeg",
		zap.Strings("args", args),
	)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = multierr.Append(ctxErr, err)
		}
		return pkgerrors.NewFFmpegError(
			"ffmpeg execution failed",
			args,
			exitCode(err),
			stderr.String(),
			err,
		)
	}

	return nil
}

// Probe runs ffprobe and returns JSON output
func (e *Executor) Probe(ctx context.Context, inputPath string) ([]byte, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "a:0",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, pkgerrors.NewFFmpegError(
			"ffprobe execution failed",
			args,
			exitCode(err),
			stderr.String(),
			err,
		)
	}

	return stdout.Bytes(), nil
}

// Start launches ffmpeg and returns without waiting. The process reads
// commands from stdin so Stop can let it finalise the output container.
func (e *Executor) Start(ctx context.Context, args []string) (ports.Process, error) {
	args = withQuietFlags(args)
	e.log.Debug("starting ffmpeg",
		zap.Strings("args", args),
	)
	return StartProcess(ctx, e.ffmpegPath, args, e.stopTimeout)
}

func withQuietFlags(args []string) []string {
	for _, a := range args {
		if a == "-loglevel" || a == "-v" {
			return args
		}
	}
	out := make([]string, 0, len(args)+3)
	out = append(out, "-hide_banner", "-loglevel", "error")
	return append(out, args...)
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
