package retryqueue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentType of published retry requests
const ContentType = "application/json"

// ErrMalformedRequest is returned when a message body is not a valid retry request
var ErrMalformedRequest = errors.New("malformed retry request")

// RetryRequest asks the retry worker to rerun the failed jobs of a run
type RetryRequest struct {
	RequestID   string    `json:"request_id"`
	JobID       string    `json:"job_id"`
	RunID       string    `json:"run_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Decode parses and validates a retry request message body
func Decode(body []byte) (*RetryRequest, error) {
	var req RetryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	if _, err := uuid.Parse(req.RequestID); err != nil {
		return nil, fmt.Errorf("%w: invalid request_id %q", ErrMalformedRequest, req.RequestID)
	}

	req.RunID = strings.TrimSpace(req.RunID)
	if req.RunID == "" {
		return nil, fmt.Errorf("%w: missing run_id", ErrMalformedRequest)
	}

	return &req, nil
}
