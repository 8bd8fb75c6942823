// Package report renders the end-of-batch summary.
package report

import (
	"fmt"
	"io"

	"github.com/wanghaisheng/brand-qr-checker-verify/internal/batch"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/classify"
)

// Summary aggregates a finished batch for display.
type Summary struct {
	TotalFiles  int64
	Scannable   int64
	Unscannable int64
	ReadErrors  int64
	SuccessRate float64
	Moved       int64
	Copied      int64
}

// Build computes the summary from the scheduler totals and the applied
// classifications.
func Build(totals batch.Totals, classifications []classify.Classification, copied bool) Summary {
	s := Summary{
		TotalFiles:  totals.Scannable + totals.Unscannable + totals.ReadErrors,
		Scannable:   totals.Scannable,
		Unscannable: totals.Unscannable,
		ReadErrors:  totals.ReadErrors,
	}
	verdicts := totals.Scannable + totals.Unscannable
	if verdicts > 0 {
		s.SuccessRate = float64(totals.Scannable) / float64(verdicts)
	}
	for _, c := range classifications {
		if c.Destination == classify.LeaveInPlace {
			continue
		}
		if copied {
			s.Copied++
		} else {
			s.Moved++
		}
	}
	return s
}

// Render writes the summary box plus one line per read error.
func Render(w io.Writer, s Summary, results []batch.Result) {
	fmt.Fprintln(w, "+----------------------------------------+")
	fmt.Fprintf(w, "| files checked     %20d |\n", s.TotalFiles)
	fmt.Fprintf(w, "| scannable         %20d |\n", s.Scannable)
	fmt.Fprintf(w, "| not scannable     %20d |\n", s.Unscannable)
	fmt.Fprintf(w, "| read errors       %20d |\n", s.ReadErrors)
	fmt.Fprintf(w, "| success rate      %19.1f%% |\n", s.SuccessRate*100)
	if s.Moved > 0 {
		fmt.Fprintf(w, "| moved             %20d |\n", s.Moved)
	}
	if s.Copied > 0 {
		fmt.Fprintf(w, "| copied            %20d |\n", s.Copied)
	}
	fmt.Fprintln(w, "+----------------------------------------+")

	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "read error: %s: %v\n", r.Path, r.Err)
		}
	}
}
