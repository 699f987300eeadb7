package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/desertthunder/onyx/internal/tasks"
)

// Summary counts terminal phases seen by a [Reporter].
type Summary struct {
	Completed int
	Skipped   int
	Failed    int
}

// Reporter prints prefetch progress as it arrives.
type Reporter struct {
	w       io.Writer
	palette *Palette
	verbose bool

	mu      sync.Mutex
	summary Summary
}

// NewReporter writes to w. With verbose unset, only terminal phases are printed.
func NewReporter(w io.Writer, verbose bool) *Reporter {
	return &Reporter{w: w, palette: Styles, verbose: verbose}
}

// Consume prints every update until ch is closed.
func (r *Reporter) Consume(ch <-chan tasks.ProgressUpdate) {
	for u := range ch {
		r.Print(u)
	}
}

// Print renders a single update.
func (r *Reporter) Print(u tasks.ProgressUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var line string
	switch u.Phase {
	case tasks.Completed:
		r.summary.Completed++
		line = r.palette.OK(u.Message)
	case tasks.Skipped:
		r.summary.Skipped++
		line = r.palette.Warn(u.Message)
	case tasks.Failed:
		r.summary.Failed++
		line = r.palette.Err(u.Message)
	default:
		if !r.verbose {
			return
		}
		line = r.palette.Help(u.Message)
	}
	fmt.Fprintln(r.w, line)
}

// Summary returns the counts seen so far.
func (r *Reporter) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// PrintSummary writes a one-line tally.
func (r *Reporter) PrintSummary() {
	s := r.Summary()
	fmt.Fprintf(r.w, "%s %d cached, %d skipped, %d failed\n", r.palette.Title("Prefetch:"), s.Completed, s.Skipped, s.Failed)
}
