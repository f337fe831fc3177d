package engine

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchResult pairs a request with its outcome.
type BatchResult struct {
	Request Request
	Result  *Result
	Err     error
}

// RunAll runs reqs concurrently, at most the configured concurrency at a time.
// Results keep the order of reqs. A failing request does not stop the others;
// cancelling ctx does.
func (e *Engine) RunAll(ctx context.Context, reqs []Request) []BatchResult {
	results := make([]BatchResult, len(reqs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency)

	for i, req := range reqs {
		i, req := i, req // per-iteration copies (module targets go 1.21 loop semantics)
		results[i].Request = req
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			res, err := e.Run(egCtx, req)
			results[i].Result = res
			results[i].Err = err
			return nil
		})
	}
	_ = eg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	e.logger.Info("batch finished", zap.Int("requests", len(reqs)), zap.Int("failed", failed))
	return results
}
