package batch_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/docsuite/pdfengine/batch"
	"github.com/docsuite/pdfengine/pdferr"
)

func TestProcessRunsEveryJob(t *testing.T) {
	jobs := make([]batch.Job, 8)
	for i := range jobs {
		i := i
		jobs[i] = batch.Job{
			Name:  fmt.Sprintf("doc-%d", i),
			Input: []byte("in"),
			Run: func(ctx context.Context, input []byte) ([]byte, error) {
				return []byte(fmt.Sprintf("out-%d", i)), nil
			},
		}
	}
	results, err := batch.Process(context.Background(), jobs, batch.Options{Workers: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 8 {
		t.Fatalf("results %d", len(results))
	}
	// Results keep input order regardless of completion order.
	for i, res := range results {
		if res.Err != nil {
			t.Fatalf("job %d: %v", i, res.Err)
		}
		if string(res.Output) != fmt.Sprintf("out-%d", i) {
			t.Fatalf("job %d output %q", i, res.Output)
		}
	}
}

func TestProcessBoundsConcurrency(t *testing.T) {
	const workers = 2
	var active, peak int32
	var mu sync.Mutex
	jobs := make([]batch.Job, 10)
	for i := range jobs {
		jobs[i] = batch.Job{
			Name: "job",
			Run: func(ctx context.Context, input []byte) ([]byte, error) {
				n := atomic.AddInt32(&active, 1)
				mu.Lock()
				if n > peak {
					peak = n
				}
				mu.Unlock()
				defer atomic.AddInt32(&active, -1)
				return nil, nil
			},
		}
	}
	if _, err := batch.Process(context.Background(), jobs, batch.Options{Workers: workers}); err != nil {
		t.Fatal(err)
	}
	if peak > workers {
		t.Fatalf("observed %d concurrent jobs with %d workers", peak, workers)
	}
}

func TestProcessIsolatesFailures(t *testing.T) {
	boom := errors.New("corrupt upload")
	jobs := []batch.Job{
		{Name: "good", Run: func(ctx context.Context, in []byte) ([]byte, error) { return []byte("ok"), nil }},
		{Name: "bad", Run: func(ctx context.Context, in []byte) ([]byte, error) { return nil, boom }},
		{Name: "also good", Run: func(ctx context.Context, in []byte) ([]byte, error) { return []byte("ok"), nil }},
	}
	results, err := batch.Process(context.Background(), jobs, batch.Options{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("healthy jobs failed: %+v", results)
	}
	if !errors.Is(results[1].Err, boom) {
		t.Fatalf("bad job error %v", results[1].Err)
	}
}

func TestProcessCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	jobs := make([]batch.Job, 5)
	for i := range jobs {
		jobs[i] = batch.Job{
			Name: fmt.Sprintf("job-%d", i),
			Run: func(ctx context.Context, in []byte) ([]byte, error) {
				once.Do(func() { close(started) })
				<-release
				return []byte("done"), nil
			},
		}
	}
	go func() {
		<-started
		cancel()
		close(release)
	}()
	results, err := batch.Process(ctx, jobs, batch.Options{Workers: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("results %d", len(results))
	}
	var canceled int
	for _, res := range results {
		if errors.Is(res.Err, context.Canceled) {
			canceled++
		}
	}
	if canceled == 0 {
		t.Fatal("no job marked canceled")
	}
}

func TestProcessValidation(t *testing.T) {
	if _, err := batch.Process(context.Background(), nil, batch.Options{}); !errors.Is(err, pdferr.InvalidParameter) {
		t.Fatalf("no jobs: %v", err)
	}
	jobs := []batch.Job{{Name: "no pipeline"}}
	_, err := batch.Process(context.Background(), jobs, batch.Options{})
	if !errors.Is(err, pdferr.InvalidParameter) || !strings.Contains(err.Error(), "no pipeline") {
		t.Fatalf("got %v", err)
	}
}
