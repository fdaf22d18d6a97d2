package guardian

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

const rule = "=================================================="

// MarshalJSON renders the window as a duration string
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	return json.Marshal(struct {
		alias
		Window string `json:"window"`
	}{
		alias:  alias(r),
		Window: r.Window.String(),
	})
}

// MarshalJSON renders the lookback as a duration string
func (s HealthSummary) MarshalJSON() ([]byte, error) {
	type alias HealthSummary
	return json.Marshal(struct {
		alias
		Lookback string `json:"lookback"`
	}{
		alias:    alias(s),
		Lookback: s.Lookback.String(),
	})
}

// WriteText prints a human readable evaluation summary
func (r Result) WriteText(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\nWORKFLOW GUARDIAN EVALUATION\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Window:  %s\n", r.Window)
	if r.DryRun {
		b.WriteString("Mode:    dry run (no retries issued)\n")
	}
	fmt.Fprintf(&b, "Checked: %d\n", r.Checked)
	fmt.Fprintf(&b, "Failed:  %d\n", r.Failed)
	fmt.Fprintf(&b, "Retried: %d\n", r.Retried)

	if len(r.Jobs) > 0 {
		b.WriteString("\nJobs:\n")
		for _, job := range r.Jobs {
			fmt.Fprintf(&b, "  %s: %s", job.JobID, job.State)
			if job.FailedRun != nil {
				fmt.Fprintf(&b, " (run %s at %s)", job.FailedRun.RunID, job.FailedRun.CreatedAt.Format("2006-01-02 15:04 UTC"))
			}
			b.WriteString("\n")
		}
	}

	if len(r.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteText prints a human readable health summary
func (s HealthSummary) WriteText(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\nWORKFLOW HEALTH SUMMARY\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Health Score: %d%%\n", s.Score)
	fmt.Fprintf(&b, "Status: %s\n", strings.ToUpper(s.Status))
	fmt.Fprintf(&b, "\nLast %s:\n", s.Lookback)
	fmt.Fprintf(&b, "  Total runs: %d\n", s.Total)
	fmt.Fprintf(&b, "  Successful: %d\n", s.Successful)
	fmt.Fprintf(&b, "  Failed: %d\n", s.FailedRuns)
	fmt.Fprintf(&b, "  In Progress: %d\n", s.InProgress)

	if len(s.ByJob) > 0 {
		jobs := make([]string, 0, len(s.ByJob))
		for job := range s.ByJob {
			jobs = append(jobs, string(job))
		}
		sort.Strings(jobs)

		b.WriteString("\nBy Job:\n")
		for _, job := range jobs {
			c := s.ByJob[JobID(job)]
			fmt.Fprintf(&b, "  %s: %d ok, %d failed\n", job, c.Success, c.Failure)
		}
	}

	if len(s.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
