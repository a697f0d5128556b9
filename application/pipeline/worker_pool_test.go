package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/internal/mocks"
	"github.com/Skryldev/voiceclip/pkg/retry"
)

type flakyExporter struct {
	*mocks.FakeExporter
	failures atomic.Int32
}

func (f *flakyExporter) Export(ctx context.Context, job model.ExportJob) (*model.ExportResult, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, errors.New("transient")
	}
	return f.FakeExporter.Export(ctx, job)
}

func TestWorkerPoolRunsEveryJob(t *testing.T) {
	dir := t.TempDir()
	fake := mocks.NewFakeExporter()
	src := filepath.Join(dir, "src.m4a")
	fake.SetDuration(src, 10*time.Second)

	flaky := &flakyExporter{FakeExporter: fake}
	flaky.failures.Store(1)

	pool := NewWorkerPool(flaky, 2, retry.Config{MaxAttempts: 3, Delay: time.Millisecond}, nil)
	jobs := []model.BatchJob{
		{ID: "a", Source: src, Target: filepath.Join(dir, "a.m4a"), Edit: model.Trim{Range: model.TimeRange{End: 2 * time.Second}}},
		{ID: "b", Source: src, Target: filepath.Join(dir, "b.m4a"), Edit: model.RemoveRanges{Ranges: []model.TimeRange{{Start: 0, End: time.Second}}}},
		{ID: "bad", Source: src, Target: filepath.Join(dir, "c.m4a"), Edit: model.Trim{Range: model.TimeRange{Start: time.Second, End: time.Minute}}},
	}

	results := pool.Collect(context.Background(), jobs)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if r := results["a"]; r.Err != nil || r.Result.OutputDuration() != 2*time.Second {
		t.Errorf("a = %+v", r)
	}
	if r := results["b"]; r.Err != nil || r.Result.OutputDuration() != 9*time.Second {
		t.Errorf("b = %+v", r)
	}
	if results["bad"].Err == nil {
		t.Error("expected validation failure for job bad")
	}
}

func TestWorkerPoolValidationIsNotRetried(t *testing.T) {
	fake := mocks.NewFakeExporter()
	pool := NewWorkerPool(fake, 1, retry.Config{MaxAttempts: 5, Delay: time.Millisecond}, nil)
	results := pool.Collect(context.Background(), []model.BatchJob{
		{ID: "x", Source: "/missing.m4a", Target: "/tmp/out.m4a", Edit: model.Trim{Range: model.TimeRange{End: time.Second}}},
	})
	if results["x"].Err == nil {
		t.Fatal("expected error")
	}
	if fake.Passes() != 1 {
		t.Errorf("export attempted %d times, want 1", fake.Passes())
	}
}

func TestWorkerPoolCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool := NewWorkerPool(mocks.NewFakeExporter(), 1, retry.DefaultConfig(), nil)
	results := pool.Collect(ctx, []model.BatchJob{{ID: "x"}, {ID: "y"}})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for id, r := range results {
		if r.Err == nil {
			t.Errorf("job %s: expected error", id)
		}
	}
}
