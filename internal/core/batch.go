package core

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runBatch applies fn to every part with at most limit calls in flight.
// A failing part is logged and collected; it never stops the others.
func runBatch(ctx context.Context, job string, parts []string, limit int,
	log *zap.Logger, obs Observer, fn func(ctx context.Context, partNumber string) (bool, error)) BatchResult {

	if limit < 1 {
		limit = 1
	}

	var (
		mu  sync.Mutex
		res = BatchResult{Processed: len(parts)}
	)

	var g errgroup.Group
	g.SetLimit(limit)
	for _, pn := range parts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				res.Failures = append(res.Failures, PartFailure{PartNumber: pn, Err: err.Error()})
				mu.Unlock()
				return nil
			}

			updated, err := fn(ctx, pn)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn("batch part failed", zap.String("job", job), zap.String("part_number", pn), zap.Error(err))
				res.Failures = append(res.Failures, PartFailure{PartNumber: pn, Err: err.Error()})
				return nil
			}
			if updated {
				res.Updated++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Failures, func(i, j int) bool {
		return res.Failures[i].PartNumber < res.Failures[j].PartNumber
	})

	log.Info("batch completed",
		zap.String("job", job),
		zap.Int("processed", res.Processed),
		zap.Int("updated", res.Updated),
		zap.Int("failed", len(res.Failures)),
	)
	obs.BatchCompleted(job, res)
	return res
}
