package device

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/domain/ports"
)

// ErrStreamClosed is returned by transport calls on a closed stream.
var ErrStreamClosed = errors.New("stream closed")

// Prober reads file metadata. ports.Exporter satisfies it.
type Prober interface {
	Probe(ctx context.Context, path string) (*model.AudioMetadata, error)
}

// ClockDevice produces headless streams whose position is driven by the wall
// clock scaled by the playback rate. It makes no sound; it is the position
// authority for servers and for FFplayDevice.
type ClockDevice struct {
	prober Prober
	now    func() time.Time
}

func NewClockDevice(p Prober) *ClockDevice {
	return &ClockDevice{prober: p, now: time.Now}
}

// WithClock replaces the time source. Tests use it to step time by hand.
func (d *ClockDevice) WithClock(now func() time.Time) *ClockDevice {
	d.now = now
	return d
}

func (d *ClockDevice) Open(ctx context.Context, path string) (ports.PlaybackStream, error) {
	return d.OpenClock(ctx, path)
}

// OpenClock is Open returning the concrete stream.
func (d *ClockDevice) OpenClock(ctx context.Context, path string) (*ClockStream, error) {
	meta, err := d.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	return &ClockStream{
		now:      d.now,
		duration: meta.Duration,
		rate:     1,
	}, nil
}

// ClockStream is a stream position computed as base + elapsed*rate.
type ClockStream struct {
	mu        sync.Mutex
	now       func() time.Time
	duration  time.Duration
	base      time.Duration
	startedAt time.Time
	rate      float64
	playing   bool
	closed    bool
}

func (s *ClockStream) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if s.playing {
		return nil
	}
	s.startedAt = s.now()
	s.playing = true
	return nil
}

func (s *ClockStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.base = s.positionLocked()
	s.playing = false
	return nil
}

func (s *ClockStream) Seek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.base = s.clamp(pos)
	s.startedAt = s.now()
	return nil
}

func (s *ClockStream) SetRate(rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.base = s.positionLocked()
	s.startedAt = s.now()
	s.rate = rate
	return nil
}

func (s *ClockStream) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *ClockStream) Duration() time.Duration { return s.duration }

// Playing reports whether the clock is running.
func (s *ClockStream) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Rate returns the current playback rate.
func (s *ClockStream) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

func (s *ClockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.playing = false
	return nil
}

func (s *ClockStream) positionLocked() time.Duration {
	if !s.playing {
		return s.base
	}
	elapsed := s.now().Sub(s.startedAt)
	return s.clamp(s.base + time.Duration(float64(elapsed)*s.rate))
}

func (s *ClockStream) clamp(pos time.Duration) time.Duration {
	if pos < 0 {
		return 0
	}
	if s.duration > 0 && pos > s.duration {
		return s.duration
	}
	return pos
}
