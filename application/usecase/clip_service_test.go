package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Skryldev/voiceclip/application/state"
	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/infrastructure/catalog"
	"github.com/Skryldev/voiceclip/infrastructure/storage"
	"github.com/Skryldev/voiceclip/internal/mocks"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
)

type harness struct {
	svc      *ClipService
	store    *storage.LocalStorage
	exporter *mocks.FakeExporter
	catalog  *catalog.MemoryCatalog
	saver    *mocks.FakeSaver
	device   *mocks.FakeDevice
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "clips"), nil)
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{
		store:    store,
		exporter: mocks.NewFakeExporter(),
		catalog:  catalog.NewMemory(),
		saver:    &mocks.FakeSaver{},
		device:   &mocks.FakeDevice{Duration: 10 * time.Second},
	}
	h.svc, err = NewClipService(Config{
		Deps: Deps{
			Store:       store,
			Exporter:    h.exporter,
			Executor:    &mocks.MockFFmpegExecutor{},
			Device:      h.device,
			Inhibitor:   &mocks.CountingInhibitor{},
			Catalog:     h.catalog,
			Saver:       h.saver,
			Transcriber: mocks.FakeTranscriber{Text: "hello there"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.svc.Close() })
	return h
}

// clip creates a clip whose canonical file holds total of audio.
func (h *harness) clip(t *testing.T, title string, total time.Duration) *ClipManager {
	t.Helper()
	m, err := h.svc.Create(context.Background(), title)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	path := h.store.Resolve(m.Item().Path)
	if err := os.WriteFile(path, []byte("pcm"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.exporter.SetDuration(path, total)
	return m
}

type editLog struct {
	mu      sync.Mutex
	actions []state.EditAction
	last    state.EditEvent
}

func (l *editLog) record(e state.EditEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actions = append(l.actions, e.Action)
	l.last = e
}

func (l *editLog) got() []state.EditAction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]state.EditAction(nil), l.actions...)
}

func equalActions(a, b []state.EditAction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewClipServiceRequiresDeps(t *testing.T) {
	if _, err := NewClipService(Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestCropEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.clip(t, "memo", 10*time.Second)

	var crops editLog
	if _, err := m.Subscribe(state.Funcs{Cropper: crops.record}); err != nil {
		t.Fatal(err)
	}

	if err := m.BeginCrop(ctx); err != nil {
		t.Fatalf("BeginCrop: %v", err)
	}
	if m.State().Kind != state.KindCropping {
		t.Fatalf("state = %s, want cropping", m.State())
	}
	if _, err := m.Crop(ctx, 2*time.Second, 8*time.Second); err != nil {
		t.Fatalf("Crop: %v", err)
	}
	applied, err := m.Apply(ctx)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if applied.Duration != 6*time.Second {
		t.Errorf("duration = %v, want 6s", applied.Duration)
	}
	if applied.Path != m.Item().Path || applied.Path != applied.CanonicalName(model.ContainerM4A) {
		t.Errorf("applied path = %q", applied.Path)
	}
	if !m.State().IsIdle() {
		t.Errorf("state = %s, want idle", m.State())
	}
	want := []state.EditAction{state.EditBegan, state.EditAdjusted, state.EditFinished}
	if got := crops.got(); !equalActions(got, want) {
		t.Errorf("cropper events = %v, want %v", got, want)
	}

	stored, err := h.catalog.Get(ctx, applied.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Duration != 6*time.Second {
		t.Errorf("catalog duration = %v", stored.Duration)
	}
	if stored.RemoteURL == "" || len(h.saver.Saved) != 1 {
		t.Errorf("remote url = %q, uploads = %d", stored.RemoteURL, len(h.saver.Saved))
	}
	if ok, _ := h.store.Exists(ctx, applied.StagedName(model.EditCrop, model.ContainerM4A)); ok {
		t.Error("staged file left behind")
	}
}

func TestCutIsOneExportPass(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.clip(t, "memo", 10*time.Second)

	if err := m.BeginCut(ctx); err != nil {
		t.Fatal(err)
	}
	ranges := []model.TimeRange{
		{Start: 1 * time.Second, End: 2 * time.Second},
		{Start: 5 * time.Second, End: 6 * time.Second},
	}
	keep, err := m.CutPreview(ctx, ranges...)
	if err != nil {
		t.Fatal(err)
	}
	if model.TotalLen(keep) != 8*time.Second {
		t.Errorf("preview keeps %v, want 8s", model.TotalLen(keep))
	}
	if h.exporter.Passes() != 0 {
		t.Fatalf("preview rendered %d passes", h.exporter.Passes())
	}

	if _, err := m.Cut(ctx, ranges...); err != nil {
		t.Fatalf("Cut: %v", err)
	}
	applied, err := m.Apply(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if applied.Duration != 8*time.Second {
		t.Errorf("duration = %v, want 8s", applied.Duration)
	}
	if h.exporter.Passes() != 1 {
		t.Errorf("export passes = %d, want 1", h.exporter.Passes())
	}
}

func TestInsertSplicesOtherClip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.clip(t, "base", 10*time.Second)
	other := h.clip(t, "extra", 3*time.Second)

	if err := m.BeginInsert(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Insert(ctx, 4*time.Second, other.Item()); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	applied, err := m.Apply(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if applied.Duration != 13*time.Second {
		t.Errorf("duration = %v, want 13s", applied.Duration)
	}
}

func TestFailedExportKeepsEditState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.clip(t, "memo", 10*time.Second)

	var crops editLog
	if _, err := m.Subscribe(state.Funcs{Cropper: crops.record}); err != nil {
		t.Fatal(err)
	}
	if err := m.BeginCrop(ctx); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("encoder crashed")
	h.exporter.FailWith = boom
	if _, err := m.Crop(ctx, time.Second, 3*time.Second); !errors.Is(err, boom) {
		t.Fatalf("Crop err = %v, want %v", err, boom)
	}
	if m.State().Kind != state.KindCropping {
		t.Errorf("state = %s, want cropping", m.State())
	}
	crops.mu.Lock()
	lastErr := crops.last.Err
	crops.mu.Unlock()
	if !errors.Is(lastErr, boom) {
		t.Errorf("failed event err = %v", lastErr)
	}

	original, err := m.Cancel(ctx)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if original.Duration != 10*time.Second {
		t.Errorf("cancel returned duration %v", original.Duration)
	}
	if !m.State().IsIdle() {
		t.Errorf("state = %s, want idle", m.State())
	}
	want := []state.EditAction{state.EditBegan, state.EditFailed, state.EditCancelled}
	if got := crops.got(); !equalActions(got, want) {
		t.Errorf("cropper events = %v, want %v", got, want)
	}
}

func TestEditWithoutSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.clip(t, "memo", 10*time.Second)

	if _, err := m.Crop(ctx, 0, time.Second); !errors.Is(err, ErrNoEditSession) {
		t.Errorf("Crop err = %v", err)
	}
	if _, err := m.Apply(ctx); !errors.Is(err, ErrNoEditSession) {
		t.Errorf("Apply err = %v", err)
	}
}

func TestPlayRejectedDuringEdit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.clip(t, "memo", 10*time.Second)

	if err := m.BeginCut(ctx); err != nil {
		t.Fatal(err)
	}
	err := m.Play(ctx)
	if pkgerrors.CodeOf(err) != pkgerrors.ErrCodeTransition {
		t.Fatalf("Play err = %v, want transition error", err)
	}
	if err := m.BeginCrop(ctx); pkgerrors.CodeOf(err) != pkgerrors.ErrCodeTransition {
		t.Errorf("BeginCrop while cutting err = %v", err)
	}
}

func TestBeginEditStopsPlayback(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.clip(t, "memo", 10*time.Second)

	if err := m.Play(ctx); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := m.BeginCrop(ctx); err != nil {
		t.Fatalf("BeginCrop: %v", err)
	}
	if !h.device.Last().Closed() {
		t.Error("stream should be closed before editing")
	}
	if m.State().Kind != state.KindCropping {
		t.Errorf("state = %s", m.State())
	}
}

func TestCloseCancelsOpenEdit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.clip(t, "memo", 10*time.Second)

	if err := m.BeginCrop(ctx); err != nil {
		t.Fatal(err)
	}
	staged, err := m.Crop(ctx, 2*time.Second, 8*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !m.State().IsIdle() {
		t.Errorf("state = %s, want idle", m.State())
	}
	if ok, _ := h.store.Exists(ctx, staged.Path); ok {
		t.Error("staged file left after Close")
	}
}

func TestCloseReturnsStreamError(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.clip(t, "memo", 10*time.Second)

	if err := m.Play(ctx); err != nil {
		t.Fatal(err)
	}
	closeErr := errors.New("device busy")
	h.device.Last().FailClose(closeErr)
	if err := m.Close(); !errors.Is(err, closeErr) {
		t.Errorf("Close = %v, want %v", err, closeErr)
	}
}

func TestSaverFailureKeepsLocalApply(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.saver.Err = errors.New("bucket unreachable")
	m := h.clip(t, "memo", 10*time.Second)

	if err := m.BeginCrop(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Crop(ctx, 0, 4*time.Second); err != nil {
		t.Fatal(err)
	}
	applied, err := m.Apply(ctx)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if applied.RemoteURL != "" {
		t.Errorf("remote url = %q, want empty", applied.RemoteURL)
	}
	if applied.Duration != 4*time.Second {
		t.Errorf("duration = %v", applied.Duration)
	}
}

func TestTranscribeReportsJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.clip(t, "memo", 10*time.Second)

	var mu sync.Mutex
	var jobs []state.JobAction
	var text string
	_, err := m.Subscribe(state.Funcs{
		TranscriptionJob: func(e state.TranscriptionJobEvent) {
			mu.Lock()
			defer mu.Unlock()
			jobs = append(jobs, e.Action)
		},
		Transcript: func(e state.TranscriptEvent) {
			mu.Lock()
			defer mu.Unlock()
			text = e.Transcript.Text()
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	tr, err := m.Transcribe(ctx)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.ClipID != m.ID() {
		t.Errorf("transcript clip id = %q", tr.ClipID)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(jobs) != 4 || jobs[0] != state.JobStarted || jobs[3] != state.JobFinished {
		t.Errorf("job events = %v", jobs)
	}
	if text != "hello there" {
		t.Errorf("transcript text = %q", text)
	}
}

func TestDeleteRemovesEverything(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.clip(t, "memo", 10*time.Second)

	if err := m.BeginCrop(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Crop(ctx, 0, 5*time.Second); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Apply(ctx); err != nil {
		t.Fatal(err)
	}
	id := m.ID()
	item := m.Item()

	if err := h.svc.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := h.store.Exists(ctx, item.Path); ok {
		t.Error("canonical file still exists")
	}
	if len(h.saver.Deleted) != 1 || h.saver.Deleted[0] != id {
		t.Errorf("remote deletes = %v", h.saver.Deleted)
	}
	if _, err := h.svc.Open(ctx, id); pkgerrors.CodeOf(err) != pkgerrors.ErrCodeNotFound {
		t.Errorf("Open after delete err = %v, want not found", err)
	}
	items, err := h.svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("List = %v", items)
	}
}

func TestOpenReturnsCachedManager(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.clip(t, "memo", time.Second)

	again, err := h.svc.Open(ctx, m.ID())
	if err != nil {
		t.Fatal(err)
	}
	if again != m {
		t.Error("Open returned a different manager for an open clip")
	}
	if _, err := h.svc.Create(ctx, "   "); pkgerrors.CodeOf(err) != pkgerrors.ErrCodeValidation {
		t.Errorf("blank title err = %v", err)
	}
}

func TestProbeUsesCanonicalFile(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.clip(t, "memo", 7*time.Second)

	meta, err := h.svc.Probe(ctx, m.ID())
	if err != nil {
		t.Fatal(err)
	}
	if meta.Duration != 7*time.Second {
		t.Errorf("probe duration = %v", meta.Duration)
	}
	d, err := m.Duration(ctx)
	if err != nil || d != 7*time.Second {
		t.Errorf("Duration = %v, %v", d, err)
	}
}

func TestExportBatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "in.m4a")
	if err := os.WriteFile(src, []byte("pcm"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.exporter.SetDuration(src, 10*time.Second)

	jobs := []model.BatchJob{
		{ID: "a", Source: src, Target: filepath.Join(dir, "a.m4a"), Edit: model.Trim{Range: model.TimeRange{End: 2 * time.Second}}},
		{ID: "b", Source: src, Target: filepath.Join(dir, "b.m4a"), Edit: model.Trim{Range: model.TimeRange{Start: 20 * time.Second, End: 30 * time.Second}}},
	}
	results := map[string]model.BatchResult{}
	for r := range h.svc.ExportBatch(ctx, jobs) {
		results[r.JobID] = r
	}
	if results["a"].Err != nil {
		t.Errorf("job a: %v", results["a"].Err)
	}
	if results["b"].Err == nil {
		t.Error("job b should fail validation")
	}
}
