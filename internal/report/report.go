// Package report formats the summary printed at the end of a run: how long
// the run took on the wall clock compared to the time its tasks spent working.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Summary describes a finished run.
type Summary struct {
	RunID   string
	Mode    string
	Workers int
	Tasks   int
	Wall    time.Duration
	Work    time.Duration
	Outputs []string
}

// New starts a summary for a run with a fresh run ID.
func New(mode string, workers int) *Summary {
	return &Summary{
		RunID:   uuid.NewString(),
		Mode:    mode,
		Workers: workers,
	}
}

// Speedup returns the ratio of task time to wall time, or 0 when no wall time was recorded.
func (s *Summary) Speedup() float64 {
	if s.Wall <= 0 {
		return 0
	}
	return float64(s.Work) / float64(s.Wall)
}

// WriteTo writes the summary line followed by every captured output.
func (s *Summary) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Overall run complete. Run: %s, Mode: %s, Workers: %d, Tasks: %d\n",
		s.RunID, s.Mode, s.Workers, s.Tasks)
	fmt.Fprintf(&b, "Wall time: %v, Sum task time: %v, Speedup: %.2fx\n",
		s.Wall.Round(time.Microsecond), s.Work.Round(time.Microsecond), s.Speedup())

	if len(s.Outputs) > 0 {
		b.WriteString("Output:\n")
		for _, output := range s.Outputs {
			b.WriteString(output)
			if !strings.HasSuffix(output, "\n") {
				b.WriteByte('\n')
			}
		}
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
