// Package dispatcher fans independent entries out to a fixed pool of workers
// and gathers their results in input order.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/pubimage/internal/metrics"
)

// DefaultWorkers is used when a non-positive pool size is requested.
const DefaultWorkers = 4

// Entry results.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// ErrPanic marks a task that panicked.
var ErrPanic = errors.New("task panicked")

// Task processes one input and may produce any number of outputs.
type Task[In, Out any] func(ctx context.Context, item In) ([]Out, error)

// Result is the outcome for the input at Index.
type Result[Out any] struct {
	Index int
	Items []Out
	Err   error
}

// Dispatcher runs tasks on a bounded pool.
type Dispatcher struct {
	workers int
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(workers int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{
		workers: workers,
		logger:  logger.Named("dispatcher"),
	}
}

// Workers reports the pool size.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Run calls task once per item and blocks until every item is accounted for.
// The i-th result belongs to items[i]. Once ctx is done, items that have not
// started are marked with ctx.Err() instead of being run.
func Run[In, Out any](ctx context.Context, d *Dispatcher, items []In, task Task[In, Out]) []Result[Out] {
	results := make([]Result[Out], len(items))
	indexes := make(chan int)

	workers := min(d.workers, len(items))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = process(ctx, d.logger, i, items[i], task)
			}
		}()
	}

feed:
	for i := range items {
		select {
		case <-ctx.Done():
			for j := i; j < len(items); j++ {
				results[j] = Result[Out]{Index: j, Err: ctx.Err()}
				metrics.ObserveEntry(ResultCancelled)
			}
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()
	return results
}

func process[In, Out any](ctx context.Context, logger *zap.Logger, index int, item In, task Task[In, Out]) (res Result[Out]) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	res.Index = index
	defer func() {
		if p := recover(); p != nil {
			logger.Error("task panicked", zap.Int("index", index), zap.Any("panic", p))
			res = Result[Out]{Index: index, Err: fmt.Errorf("%w: %v", ErrPanic, p)}
		}
		if res.Err != nil {
			metrics.ObserveEntry(ResultError)
		} else {
			metrics.ObserveEntry(ResultOK)
		}
	}()

	res.Items, res.Err = task(ctx, item)
	return res
}

// Collect concatenates successful outputs in input order and returns the
// failed results separately.
func Collect[Out any](results []Result[Out]) ([]Out, []Result[Out]) {
	var (
		out    []Out
		failed []Result[Out]
	)
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
			continue
		}
		out = append(out, r.Items...)
	}
	return out, failed
}
