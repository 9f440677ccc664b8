package rollout

import (
	"context"
	"fmt"
	"sync"

	"github.com/san-kum/quadsim/internal/dynamo"
)

// Factory builds the environment for one episode.
type Factory func(seed uint64) (Environment, error)

// Ensemble runs independent episodes concurrently. Every episode gets its
// own environment, policy and metrics, so nothing is shared between
// goroutines.
type Ensemble struct {
	Workers    int
	NewPolicy  func() dynamo.Controller
	NewMetrics func() []dynamo.Metric
}

func NewEnsemble(workers int, newPolicy func() dynamo.Controller) *Ensemble {
	return &Ensemble{Workers: workers, NewPolicy: newPolicy}
}

// Run executes n episodes with seeds seedStart..seedStart+n-1. Results are
// ordered by seed. The first error in seed order is returned.
func (e *Ensemble) Run(ctx context.Context, factory Factory, n int, seedStart uint64) ([]*Episode, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: episode count %d", dynamo.ErrParameterBounds, n)
	}
	workers := e.Workers
	if workers <= 0 || workers > n {
		workers = n
	}

	results := make([]*Episode, n)
	errs := make([]error, n)
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			seed := seedStart + uint64(idx)
			env, err := factory(seed)
			if err != nil {
				errs[idx] = fmt.Errorf("episode %d: %w", idx, err)
				return
			}

			runner := NewRunner()
			if e.NewMetrics != nil {
				for _, m := range e.NewMetrics() {
					runner.AddMetric(m)
				}
			}

			ep, err := runner.Run(ctx, env, e.NewPolicy())
			if ep != nil {
				ep.Seed = seed
			}
			results[idx], errs[idx] = ep, err
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
