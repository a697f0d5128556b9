package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Skryldev/voiceclip/domain/model"
)

type fixedProber time.Duration

func (p fixedProber) Probe(context.Context, string) (*model.AudioMetadata, error) {
	return &model.AudioMetadata{Duration: time.Duration(p)}, nil
}

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func openClock(t *testing.T, total time.Duration) (*ClockStream, *manualClock) {
	t.Helper()
	clk := &manualClock{t: time.Unix(1000, 0)}
	s, err := NewClockDevice(fixedProber(total)).WithClock(clk.now).OpenClock(context.Background(), "x.m4a")
	if err != nil {
		t.Fatalf("OpenClock: %v", err)
	}
	return s, clk
}

func TestClockAdvancesOnlyWhilePlaying(t *testing.T) {
	s, clk := openClock(t, 10*time.Second)

	clk.advance(time.Second)
	if got := s.Position(); got != 0 {
		t.Fatalf("position before play = %v", got)
	}

	_ = s.Play()
	clk.advance(2 * time.Second)
	if got := s.Position(); got != 2*time.Second {
		t.Fatalf("position after 2s = %v", got)
	}

	_ = s.Pause()
	clk.advance(5 * time.Second)
	if got := s.Position(); got != 2*time.Second {
		t.Fatalf("position while paused = %v", got)
	}
}

func TestClockRateAndClamp(t *testing.T) {
	s, clk := openClock(t, 10*time.Second)
	_ = s.Play()
	_ = s.SetRate(1.5)
	clk.advance(2 * time.Second)
	if got := s.Position(); got != 3*time.Second {
		t.Fatalf("position at 1.5x = %v, want 3s", got)
	}

	clk.advance(time.Minute)
	if got := s.Position(); got != 10*time.Second {
		t.Fatalf("position past end = %v, want clamp to 10s", got)
	}

	_ = s.Seek(-time.Second)
	if got := s.Position(); got != 0 {
		t.Fatalf("negative seek = %v", got)
	}
}

func TestClosedStreamRejectsTransport(t *testing.T) {
	s, _ := openClock(t, time.Second)
	_ = s.Close()
	if err := s.Play(); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("Play after close = %v", err)
	}
}
