// Package fanout maps a function over a slice with a fixed number of workers.
package fanout

import (
	"context"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/whoop-cli/pkg/metrics"
)

var itemsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
	Name: "whoop_fanout_items_total",
	Help: "Fan-out items by result",
}, []string{"result"}) // success, error

// DefaultConcurrency bounds parallel detail requests.
const DefaultConcurrency = 5

// Map applies fn to every item using min(concurrency, len(items)) workers and
// returns the results in input order. Workers take the next unclaimed index,
// so at most `concurrency` calls are in flight.
//
// The first error cancels the context passed to fn, stops workers from
// claiming further items, and is returned; partial results are discarded.
func Map[T, R any](ctx context.Context, items []T, concurrency int, fn func(ctx context.Context, item T, index int) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return []R{}, nil
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]R, len(items))
	var next atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < min(concurrency, len(items)); w++ {
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				i := int(next.Add(1) - 1)
				if i >= len(items) {
					return nil
				}
				r, err := fn(gctx, items[i], i)
				if err != nil {
					itemsTotal.WithLabelValues("error").Inc()
					return err
				}
				itemsTotal.WithLabelValues("success").Inc()
				results[i] = r
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
