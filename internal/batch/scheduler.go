// Package batch runs the verification sweep over many files under a fixed
// concurrency ceiling.
package batch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wanghaisheng/brand-qr-checker-verify/internal/logging"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/verify"
)

// DefaultConcurrency bounds how many files are verified simultaneously
// when no ceiling is configured.
const DefaultConcurrency = 5

// RequestFactory builds the verification request for one file: it reads
// the source bytes and attaches the resize target and the active profile's
// candidates. A factory error is a fatal read error for that file only.
type RequestFactory func(ctx context.Context, path string) (*verify.Request, error)

// Verifier is the per-file sweep the scheduler drives. *verify.Sequencer
// satisfies it.
type Verifier interface {
	Verify(ctx context.Context, taskID string, req *verify.Request) verify.Outcome
}

// Result is the terminal state of one file: either an outcome or a read
// error, never both, never neither.
type Result struct {
	Path    string
	TaskID  string
	Outcome verify.Outcome
	Err     error
}

// Totals aggregates the batch. Read errors are tracked separately so they
// are never miscounted as "not scannable".
type Totals struct {
	Scannable   int64
	Unscannable int64
	ReadErrors  int64
}

// Scheduler fans file paths out to a fixed pool of workers; each worker
// runs one file's full sweep to completion before pulling the next, so at
// most `workers` files are ever in flight.
type Scheduler struct {
	verifier Verifier
	factory  RequestFactory
	workers  int
	logger   *zap.Logger
}

// NewScheduler constructs a scheduler. A non-positive worker count falls
// back to DefaultConcurrency.
func NewScheduler(verifier Verifier, factory RequestFactory, workers int, logger *zap.Logger) *Scheduler {
	if workers < 1 {
		workers = DefaultConcurrency
	}
	return &Scheduler{
		verifier: verifier,
		factory:  factory,
		workers:  workers,
		logger:   logger.Named("batch"),
	}
}

// Run verifies every path and returns one Result per path, in submission
// order. Outcomes complete out of order internally but each worker writes
// only its own slot, so no file is dropped or duplicated. A read error on
// one file never aborts the others.
func (s *Scheduler) Run(ctx context.Context, paths []string) ([]Result, Totals) {
	results := make([]Result, len(paths))
	jobs := make(chan int)

	var totals struct {
		scannable   atomic.Int64
		unscannable atomic.Int64
		readErrors  atomic.Int64
	}

	var wg sync.WaitGroup
	wg.Add(s.workers)
	for w := 0; w < s.workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				result := s.runOne(ctx, paths[i])
				switch {
				case result.Err != nil:
					totals.readErrors.Add(1)
				case result.Outcome.Decoded:
					totals.scannable.Add(1)
				default:
					totals.unscannable.Add(1)
				}
				results[i] = result
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results, Totals{
		Scannable:   totals.scannable.Load(),
		Unscannable: totals.unscannable.Load(),
		ReadErrors:  totals.readErrors.Load(),
	}
}

// runOne builds and verifies a single file's request.
func (s *Scheduler) runOne(ctx context.Context, path string) Result {
	taskID := uuid.NewString()
	opLogger := logging.WithOperation(s.logger, "batch.file", taskID).With(zap.String("path", path))

	req, err := s.factory(ctx, path)
	if err != nil {
		wrapped := logging.NewOperationError("batch.read_source", taskID, err)
		opLogger.Error("source image unreadable", zap.Error(wrapped))
		return Result{Path: path, TaskID: taskID, Err: wrapped}
	}

	outcome := s.verifier.Verify(ctx, taskID, req)
	if outcome.Decoded {
		opLogger.Info("scannable", zap.String("text", outcome.Text))
	} else {
		opLogger.Info("not scannable")
	}
	return Result{Path: path, TaskID: taskID, Outcome: outcome}
}
