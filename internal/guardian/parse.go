package guardian

import (
	"fmt"
	"strings"
	"time"
)

// ParseRun converts a provider payload into a RunRecord.
// Conclusions other than success and failure map to ConclusionUnknown.
func ParseRun(job JobID, raw RawRun) (RunRecord, error) {
	runID := strings.TrimSpace(raw.ID)
	if runID == "" {
		return RunRecord{}, &ParseError{JobID: job, Err: ErrMissingRunID}
	}

	ts := strings.TrimSpace(raw.CreatedAt)
	if ts == "" {
		return RunRecord{}, &ParseError{JobID: job, RunID: runID, Err: ErrEmptyTimestamp}
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return RunRecord{}, &ParseError{JobID: job, RunID: runID, Err: fmt.Errorf("invalid created_at %q: %w", ts, err)}
	}

	return RunRecord{
		JobID:      job,
		RunID:      runID,
		Status:     raw.Status,
		Conclusion: parseConclusion(raw.Conclusion),
		CreatedAt:  createdAt.UTC(),
		URL:        raw.URL,
	}, nil
}

func parseConclusion(s string) Conclusion {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ConclusionSuccess):
		return ConclusionSuccess
	case string(ConclusionFailure):
		return ConclusionFailure
	default:
		return ConclusionUnknown
	}
}

// qualifies reports whether run is a failure younger than window at now
func qualifies(run RunRecord, now time.Time, window time.Duration) bool {
	if window <= 0 || run.Conclusion != ConclusionFailure {
		return false
	}
	return now.Sub(run.CreatedAt) < window
}
