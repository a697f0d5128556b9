package device

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/Skryldev/voiceclip/domain/ports"
	"github.com/Skryldev/voiceclip/infrastructure/ffmpeg"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"go.uber.org/zap"
)

// FFplayDevice plays clips audibly through an ffplay child process. ffplay
// cannot be steered once running, so every seek or rate change restarts it
// at the position kept by a ClockStream.
type FFplayDevice struct {
	ffplayPath string
	clock      *ClockDevice
	log        *logger.Logger
}

func NewFFplayDevice(ffplayPath string, p Prober, log *logger.Logger) (*FFplayDevice, error) {
	if ffplayPath == "" {
		path, err := exec.LookPath("ffplay")
		if err != nil {
			return nil, fmt.Errorf("ffplay not found in PATH: %w", err)
		}
		ffplayPath = path
	}
	return &FFplayDevice{
		ffplayPath: ffplayPath,
		clock:      NewClockDevice(p),
		log:        logger.OrNop(log).Named("ffplay"),
	}, nil
}

func (d *FFplayDevice) Open(ctx context.Context, path string) (ports.PlaybackStream, error) {
	clock, err := d.clock.OpenClock(ctx, path)
	if err != nil {
		return nil, err
	}
	return &ffplayStream{
		ClockStream: clock,
		ctx:         context.WithoutCancel(ctx),
		binary:      d.ffplayPath,
		path:        path,
		log:         d.log.With(zap.String("path", path)),
	}, nil
}

type ffplayStream struct {
	*ClockStream

	ctx    context.Context
	binary string
	path   string
	log    *logger.Logger

	mu   sync.Mutex
	proc *ffmpeg.Process
}

func (s *ffplayStream) Play() error {
	if err := s.ClockStream.Play(); err != nil {
		return err
	}
	return s.restart()
}

func (s *ffplayStream) Pause() error {
	s.kill()
	return s.ClockStream.Pause()
}

func (s *ffplayStream) Seek(pos time.Duration) error {
	if err := s.ClockStream.Seek(pos); err != nil {
		return err
	}
	if s.Playing() {
		return s.restart()
	}
	return nil
}

func (s *ffplayStream) SetRate(rate float64) error {
	if err := s.ClockStream.SetRate(rate); err != nil {
		return err
	}
	if s.Playing() {
		return s.restart()
	}
	return nil
}

func (s *ffplayStream) Close() error {
	s.kill()
	return s.ClockStream.Close()
}

func (s *ffplayStream) restart() error {
	s.kill()

	args := []string{"-nodisp", "-autoexit", "-loglevel", "error",
		"-ss", ffmpeg.Seconds(s.Position())}
	if chain := ffmpeg.NewFilterChainBuilder().AddTempo(s.Rate()); !chain.IsEmpty() {
		args = append(args, "-af", chain.Build())
	}
	args = append(args, s.path)

	proc, err := ffmpeg.StartProcess(s.ctx, s.binary, args, time.Second)
	if err != nil {
		s.log.Error("start ffplay failed", zap.Error(err))
		return err
	}
	s.log.Debug("ffplay started", zap.Strings("args", args), zap.String("rate", strconv.FormatFloat(s.Rate(), 'f', 1, 64)))

	s.mu.Lock()
	s.proc = proc
	s.mu.Unlock()
	return nil
}

func (s *ffplayStream) kill() {
	s.mu.Lock()
	proc := s.proc
	s.proc = nil
	s.mu.Unlock()
	if proc != nil {
		_ = proc.Kill()
	}
}
