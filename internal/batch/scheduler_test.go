package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wanghaisheng/brand-qr-checker-verify/internal/verify"
)

// stubVerifier tracks how many sweeps run at once and resolves each file
// by the marker the factory planted in its source bytes.
type stubVerifier struct {
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	delay       time.Duration
}

func (s *stubVerifier) Verify(ctx context.Context, taskID string, req *verify.Request) verify.Outcome {
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		observed := s.maxInFlight.Load()
		if current <= observed || s.maxInFlight.CompareAndSwap(observed, current) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	source := string(req.Source)
	if source == "blank" {
		return verify.Outcome{}
	}
	return verify.Outcome{Text: source, Decoded: true}
}

func markerFactory(unreadable map[string]bool, blank map[string]bool) RequestFactory {
	return func(ctx context.Context, path string) (*verify.Request, error) {
		if unreadable[path] {
			return nil, errors.New("corrupt header")
		}
		source := "decoded:" + path
		if blank[path] {
			source = "blank"
		}
		return &verify.Request{Source: []byte(source), ResizeTarget: 512}, nil
	}
}

func TestRunRespectsConcurrencyCeiling(t *testing.T) {
	const files = 20
	const ceiling = 3

	paths := make([]string, files)
	for i := range paths {
		paths[i] = fmt.Sprintf("img-%02d.png", i)
	}

	verifier := &stubVerifier{delay: 5 * time.Millisecond}
	s := NewScheduler(verifier, markerFactory(nil, nil), ceiling, zap.NewNop())

	results, totals := s.Run(context.Background(), paths)

	if got := verifier.maxInFlight.Load(); got > ceiling {
		t.Fatalf("expected at most %d files in flight, observed %d", ceiling, got)
	}
	if len(results) != files {
		t.Fatalf("expected %d results, got %d", files, len(results))
	}
	if totals.Scannable != files {
		t.Fatalf("expected %d scannable, got %d", files, totals.Scannable)
	}
}

func TestRunAttributesEveryOutcomeToItsFile(t *testing.T) {
	paths := []string{"a.png", "b.png", "c.png", "d.png"}
	s := NewScheduler(&stubVerifier{}, markerFactory(nil, nil), 2, zap.NewNop())

	results, _ := s.Run(context.Background(), paths)

	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}
	for i, result := range results {
		if result.Path != paths[i] {
			t.Fatalf("expected result %d for %s, got %s", i, paths[i], result.Path)
		}
		if result.Outcome.Text != "decoded:"+paths[i] {
			t.Fatalf("outcome for %s carries wrong payload %q", paths[i], result.Outcome.Text)
		}
		if result.TaskID == "" {
			t.Fatalf("expected a task id for %s", paths[i])
		}
	}
}

func TestRunIsolatesReadErrors(t *testing.T) {
	paths := []string{"ok1.png", "broken.png", "ok2.png", "blank.png"}
	factory := markerFactory(
		map[string]bool{"broken.png": true},
		map[string]bool{"blank.png": true},
	)
	s := NewScheduler(&stubVerifier{}, factory, 2, zap.NewNop())

	results, totals := s.Run(context.Background(), paths)

	if totals.ReadErrors != 1 {
		t.Fatalf("expected 1 read error, got %d", totals.ReadErrors)
	}
	if totals.Scannable != 2 {
		t.Fatalf("expected 2 scannable, got %d", totals.Scannable)
	}
	if totals.Unscannable != 1 {
		t.Fatalf("expected 1 unscannable, got %d", totals.Unscannable)
	}

	for _, result := range results {
		switch result.Path {
		case "broken.png":
			if result.Err == nil {
				t.Fatal("expected read error for broken.png")
			}
			if result.Outcome.Decoded {
				t.Fatal("read error must not carry a decoded outcome")
			}
		default:
			if result.Err != nil {
				t.Fatalf("expected %s to resolve, got error %v", result.Path, result.Err)
			}
		}
	}
}

func TestNewSchedulerDefaultsWorkerCount(t *testing.T) {
	s := NewScheduler(&stubVerifier{}, markerFactory(nil, nil), 0, zap.NewNop())
	if s.workers != DefaultConcurrency {
		t.Fatalf("expected default concurrency %d, got %d", DefaultConcurrency, s.workers)
	}
}
