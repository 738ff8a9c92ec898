package fetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mypybite/newsriver/internal/logger"
	"github.com/mypybite/newsriver/internal/sources"
)

// Result is one source's fetch outcome. Exactly one of Body or Err is
// meaningful; Skipped marks sources never attempted because the budget
// ran out first.
type Result struct {
	Spec    sources.Spec
	Body    []byte
	Err     error
	Elapsed time.Duration
	Skipped bool
}

// Pool fans source fetches out over a bounded set of workers sharing one
// Client. The ctx passed to FetchAll carries the global wall-clock
// budget: once it expires no new fetch starts and the remaining sources
// are reported as skipped, never silently dropped.
type Pool struct {
	client  *Client
	workers int
}

func NewPool(client *Client, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{client: client, workers: workers}
}

func (p *Pool) FetchAll(ctx context.Context, specs []sources.Spec) []Result {
	jobs := make(chan int)
	results := make([]Result, len(specs))

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				spec := specs[i]
				if ctx.Err() != nil {
					results[i] = Result{Spec: spec, Skipped: true}
					continue
				}
				start := time.Now()
				body, err := p.client.Get(ctx, spec.URL)
				elapsed := time.Since(start)
				if err != nil && ctx.Err() != nil && !attempted(err) {
					results[i] = Result{Spec: spec, Skipped: true, Elapsed: elapsed}
					continue
				}
				results[i] = Result{Spec: spec, Body: body, Err: err, Elapsed: elapsed}
			}
		}()
	}

	for i := range specs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		skipped := 0
		for _, r := range results {
			if r.Skipped {
				skipped++
			}
		}
		logger.Warn("global budget exhausted during fetch", "skipped", skipped, "total", len(specs))
	}
	return results
}

// attempted reports whether an error represents a real attempt rather
// than a request the budget cancelled before it could run.
func attempted(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind != NetworkError || !errors.Is(fe.Err, context.Canceled)
	}
	return true
}
