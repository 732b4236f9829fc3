// Package batch fans whole document pipelines out across worker goroutines.
// Documents share no state, so the fan-out needs no locks: each job runs its
// own load, mutate and serialize steps and reports one result. Ordering
// between jobs is not guaranteed; results are returned in input order.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/docsuite/pdfengine/observability"
	"github.com/docsuite/pdfengine/pdferr"
)

// Job is one unit of work: an upload plus the pipeline to run over it. The
// pipeline owns its document end to end and must not touch state shared with
// other jobs.
type Job struct {
	// Name identifies the job in results and log events, typically the
	// upload filename.
	Name string
	// Input is the raw upload.
	Input []byte
	// Run is the pipeline. It receives the job's input and returns the
	// produced bytes.
	Run func(ctx context.Context, input []byte) ([]byte, error)
}

// Result is the outcome of one job. Exactly one of Output and Err is
// meaningful.
type Result struct {
	Name     string
	Output   []byte
	Err      error
	Duration time.Duration
}

// Options bounds and instruments a batch run.
type Options struct {
	// Workers caps concurrent pipelines; runtime.NumCPU() when zero.
	Workers int
	Logger  observability.Logger
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

func (o Options) logger() observability.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return observability.NopLogger{}
}

// Process runs every job and collects per-job results in input order. A
// failed job does not stop the others; its error lands in its Result.
// Cancelling the context stops handing out new jobs and marks the undispatched
// ones with the context error.
func Process(ctx context.Context, jobs []Job, opts Options) ([]Result, error) {
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: no jobs", pdferr.InvalidParameter)
	}
	for i, job := range jobs {
		if job.Run == nil {
			return nil, fmt.Errorf("%w: job %d (%s) has no pipeline", pdferr.InvalidParameter, i, job.Name)
		}
	}
	log := opts.logger()
	results := make([]Result, len(jobs))

	sem := make(chan struct{}, opts.workers())
	var wg sync.WaitGroup
	for i := range jobs {
		select {
		case <-ctx.Done():
			for j := i; j < len(jobs); j++ {
				results[j] = Result{Name: jobs[j].Name, Err: ctx.Err()}
			}
			wg.Wait()
			return results, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = runJob(ctx, jobs[i], log)
		}(i)
	}
	wg.Wait()
	return results, nil
}

func runJob(ctx context.Context, job Job, log observability.Logger) Result {
	start := time.Now()
	out, err := job.Run(ctx, job.Input)
	res := Result{Name: job.Name, Output: out, Err: err, Duration: time.Since(start)}
	if err != nil {
		log.Error("batch job failed",
			observability.String("job", job.Name),
			observability.Error("error", err))
		return res
	}
	log.Info("batch job done",
		observability.String("job", job.Name),
		observability.Int("bytes.in", len(job.Input)),
		observability.Int("bytes.out", len(out)),
		observability.Int64("elapsed.ms", res.Duration.Milliseconds()))
	return res
}
