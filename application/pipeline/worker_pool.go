package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/domain/ports"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"github.com/Skryldev/voiceclip/pkg/retry"
	"go.uber.org/zap"
)

// WorkerPool runs stateless batch exports concurrently
type WorkerPool struct {
	exporter ports.Exporter
	workers  int
	retry    retry.Config
	log      *logger.Logger
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(exporter ports.Exporter, workers int, retryCfg retry.Config, log *logger.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 4
	}
	return &WorkerPool{
		exporter: exporter,
		workers:  workers,
		retry:    retryCfg,
		log:      logger.OrNop(log).Named("batch"),
	}
}

// Run processes batch jobs concurrently and sends results to the returned
// channel. Every job yields exactly one result. The channel is closed when
// all jobs are complete or the context is canceled.
func (wp *WorkerPool) Run(ctx context.Context, jobs []model.BatchJob) <-chan model.BatchResult {
	results := make(chan model.BatchResult, len(jobs))

	go func() {
		defer close(results)

		var wg sync.WaitGroup
		semaphore := make(chan struct{}, wp.workers)

		for _, job := range jobs {
			select {
			case <-ctx.Done():
				results <- model.BatchResult{
					JobID: job.ID,
					Err:   ctx.Err(),
				}
				continue
			case semaphore <- struct{}{}:
			}

			wg.Add(1)
			go func(j model.BatchJob) {
				defer wg.Done()
				defer func() { <-semaphore }()

				result, err := wp.processJob(ctx, j)
				results <- model.BatchResult{
					JobID:  j.ID,
					Result: result,
					Err:    err,
				}
			}(job)
		}

		wg.Wait()
	}()

	return results
}

// Collect drains Run into a map keyed by job id.
func (wp *WorkerPool) Collect(ctx context.Context, jobs []model.BatchJob) map[string]model.BatchResult {
	out := make(map[string]model.BatchResult, len(jobs))
	for r := range wp.Run(ctx, jobs) {
		out[r.JobID] = r
	}
	return out
}

func (wp *WorkerPool) processJob(ctx context.Context, job model.BatchJob) (*model.ExportResult, error) {
	wp.log.Info("processing batch job",
		zap.String("job_id", job.ID),
		zap.String("input", job.Source),
	)

	var result *model.ExportResult
	err := retry.Do(ctx, wp.retry, func() error {
		r, err := wp.exporter.Export(ctx, model.ExportJob{
			ID:     job.ID,
			Source: job.Source,
			Target: job.Target,
			Edit:   job.Edit,
		})
		if err != nil {
			if _, ok := pkgerrors.As[*pkgerrors.ValidationError](err); ok {
				return retry.Permanent(err)
			}
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		wp.log.Error("batch job failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("job %s failed: %w", job.ID, err)
	}

	return result, nil
}
