package engine

import (
	"context"
	"sync"
)

// Call names one task invocation for ExecuteParallel.
type Call struct {
	Task   string
	Inputs map[string]any
}

// ExecuteParallel runs all invocations concurrently on a bounded worker pool
// and returns results in the same order as the input list, not completion
// order. The first error encountered is returned after all in-flight work for
// the batch has settled; successful siblings still run to completion. The
// caller's context (including any active trace span) is inherited by every
// invocation.
func (e *Engine) ExecuteParallel(ctx context.Context, calls []Call) ([]map[string]any, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	workers := e.config.ParallelWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(calls) {
		workers = len(calls)
	}

	results := make([]map[string]any, len(calls))
	errCh := make(chan error, len(calls))
	indexCh := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexCh {
				outputs, err := e.Execute(ctx, calls[i].Task, calls[i].Inputs)
				if err != nil {
					errCh <- err
					continue
				}
				results[i] = outputs
			}
		}()
	}

	for i := range calls {
		indexCh <- i
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, err
	}
	return results, nil
}
