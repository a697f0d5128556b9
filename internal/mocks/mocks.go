package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/domain/ports"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
)

// MockFFmpegExecutor is a test double for ports.FFmpegExecutor
type MockFFmpegExecutor struct {
	ExecuteFunc func(ctx context.Context, args []string) error
	ProbeFunc   func(ctx context.Context, inputPath string) ([]byte, error)
	StartFunc   func(ctx context.Context, args []string) (ports.Process, error)

	mu           sync.Mutex
	ExecutedArgs [][]string
	StartedArgs  [][]string
}

func (m *MockFFmpegExecutor) Execute(ctx context.Context, args []string) error {
	m.mu.Lock()
	m.ExecutedArgs = append(m.ExecutedArgs, args)
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, args)
	}
	return nil
}

func (m *MockFFmpegExecutor) Probe(ctx context.Context, inputPath string) ([]byte, error) {
	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, inputPath)
	}
	return ProbeResponse(120500 * time.Millisecond), nil
}

func (m *MockFFmpegExecutor) Start(ctx context.Context, args []string) (ports.Process, error) {
	m.mu.Lock()
	m.StartedArgs = append(m.StartedArgs, args)
	m.mu.Unlock()
	if m.StartFunc != nil {
		return m.StartFunc(ctx, args)
	}
	return NewFakeProcess(), nil
}

// Executed returns a copy of the recorded Execute calls.
func (m *MockFFmpegExecutor) Executed() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.ExecutedArgs...)
}

// ProbeResponse renders ffprobe JSON for a mono aac file of duration d.
func ProbeResponse(d time.Duration) []byte {
	resp := map[string]interface{}{
		"format": map[string]interface{}{
			"duration":    fmt.Sprintf("%.6f", d.Seconds()),
			"bit_rate":    "128000",
			"size":        "2880000",
			"format_name": "mov,mp4,m4a,3gp,3g2,mj2",
		},
		"streams": []map[string]interface{}{
			{
				"codec_name":  "aac",
				"sample_rate": "44100",
				"channels":    1,
				"bit_rate":    "128000",
			},
		},
	}
	b, _ := json.Marshal(resp)
	return b
}

// FakeProcess is a ports.Process that exits when told to.
type FakeProcess struct {
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	exitErr error
	Stops   int
	Kills   int
}

func NewFakeProcess() *FakeProcess {
	return &FakeProcess{done: make(chan struct{})}
}

// Exit ends the process as if it terminated on its own with err.
func (p *FakeProcess) Exit(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *FakeProcess) Stop() error {
	p.mu.Lock()
	p.Stops++
	p.mu.Unlock()
	p.Exit(nil)
	return p.Wait()
}

func (p *FakeProcess) Kill() error {
	p.mu.Lock()
	p.Kills++
	p.mu.Unlock()
	p.Exit(nil)
	return nil
}

func (p *FakeProcess) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

func (p *FakeProcess) Done() <-chan struct{} { return p.done }

// FakeExporter implements ports.Exporter without ffmpeg. It tracks a duration
// per path, predicts output length from the edit and writes a placeholder
// file at the target.
type FakeExporter struct {
	mu        sync.Mutex
	durations map[string]time.Duration
	Jobs      []model.ExportJob
	// FailWith, when set, is returned by the next Export and then cleared.
	FailWith error
}

func NewFakeExporter() *FakeExporter {
	return &FakeExporter{durations: make(map[string]time.Duration)}
}

// SetDuration registers path as an asset of length d.
func (f *FakeExporter) SetDuration(path string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations[path] = d
}

// Passes returns how many exports ran.
func (f *FakeExporter) Passes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Jobs)
}

func (f *FakeExporter) Export(_ context.Context, job model.ExportJob) (*model.ExportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Jobs = append(f.Jobs, job)

	if err := f.FailWith; err != nil {
		f.FailWith = nil
		return nil, err
	}
	src, ok := f.durations[job.Source]
	if !ok {
		return nil, pkgerrors.NewValidationError("source", job.Source, "input file does not exist")
	}
	var ins time.Duration
	if sp, isSplice := job.Edit.(model.Splice); isSplice {
		if ins, ok = f.durations[sp.Source]; !ok {
			return nil, pkgerrors.NewValidationError("source", sp.Source, "input file does not exist")
		}
	}
	if err := job.Edit.Validate(src); err != nil {
		return nil, err
	}
	out := job.Edit.OutputDuration(src, ins)
	if _, isTrim := job.Edit.(model.Trim); !isTrim && out <= 0 {
		return nil, pkgerrors.NewValidationError("edit", job.Edit.Kind(), "edit would produce an empty clip")
	}
	if err := os.WriteFile(job.Target, []byte(job.Edit.Kind()), 0o644); err != nil {
		return nil, pkgerrors.NewIOError("write", job.Target, err)
	}
	f.durations[job.Target] = out

	return &model.ExportResult{
		Job:        job,
		SourceMeta: &model.AudioMetadata{Duration: src},
		OutputMeta: &model.AudioMetadata{Duration: out},
		ExportedAt: time.Now(),
	}, nil
}

func (f *FakeExporter) Probe(_ context.Context, path string) (*model.AudioMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.durations[path]
	if !ok {
		return nil, pkgerrors.NewFFmpegError("ffprobe execution failed", []string{path}, 1, "No such file or directory", os.ErrNotExist)
	}
	return &model.AudioMetadata{Duration: d, Codec: "aac", SampleRate: 44100, Channels: 1}, nil
}

// FakeDevice opens FakeStreams.
type FakeDevice struct {
	mu       sync.Mutex
	Duration time.Duration
	OpenErr  error
	Opened   []string
	Streams  []*FakeStream
}

func (d *FakeDevice) Open(_ context.Context, path string) (ports.PlaybackStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Opened = append(d.Opened, path)
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	s := &FakeStream{duration: d.Duration, rate: 1}
	d.Streams = append(d.Streams, s)
	return s, nil
}

// Last returns the most recently opened stream.
func (d *FakeDevice) Last() *FakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Streams) == 0 {
		return nil
	}
	return d.Streams[len(d.Streams)-1]
}

// OpenCount returns the number of Open calls.
func (d *FakeDevice) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Opened)
}

// FakeStream is a PlaybackStream whose position only moves when the test
// moves it.
type FakeStream struct {
	mu       sync.Mutex
	duration time.Duration
	pos      time.Duration
	rate     float64
	playing  bool
	closed   bool
	closeErr error
	Seeks    []time.Duration
}

// FailClose makes the next Close return err.
func (s *FakeStream) FailClose(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeErr = err
}

func (s *FakeStream) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	return nil
}

func (s *FakeStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	return nil
}

func (s *FakeStream) Seek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = pos
	s.Seeks = append(s.Seeks, pos)
	return nil
}

func (s *FakeStream) SetRate(rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = rate
	return nil
}

func (s *FakeStream) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *FakeStream) Duration() time.Duration { return s.duration }

func (s *FakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.playing = false
	err := s.closeErr
	s.closeErr = nil
	return err
}

// SetPosition moves the playhead as if audio had played.
func (s *FakeStream) SetPosition(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = pos
}

func (s *FakeStream) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *FakeStream) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CountingInhibitor records Inhibit and Release calls.
type CountingInhibitor struct {
	mu       sync.Mutex
	Inhibits int
	Releases int
}

func (c *CountingInhibitor) Inhibit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Inhibits++
}

func (c *CountingInhibitor) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Releases++
}

// Counts returns the number of Inhibit and Release calls so far.
func (c *CountingInhibitor) Counts() (inhibits, releases int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Inhibits, c.Releases
}

// FakeSaver records uploads.
type FakeSaver struct {
	mu      sync.Mutex
	Err     error
	Saved   []string
	Deleted []string
}

func (s *FakeSaver) Save(_ context.Context, item model.AudioItem, localPath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.Saved = append(s.Saved, localPath)
	return "https://cdn.example.com/" + item.Path, nil
}

func (s *FakeSaver) Delete(_ context.Context, item model.AudioItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, item.ID)
	return s.Err
}

// FakeTranscriber returns a fixed transcript after reporting progress.
type FakeTranscriber struct {
	Text string
	Err  error
}

func (f FakeTranscriber) Transcribe(_ context.Context, _ string, progress func(float64)) (model.Transcript, error) {
	if progress != nil {
		progress(0.5)
		progress(1)
	}
	if f.Err != nil {
		return model.Transcript{}, f.Err
	}
	return model.Transcript{
		Language: "en",
		Segments: []model.TranscriptSegment{{Text: f.Text}},
	}, nil
}
